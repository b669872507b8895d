// Command staconform checks SensorThings API responses for conformance.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/staconform/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
