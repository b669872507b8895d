package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/staconform/internal/fetch"
	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/query"
	"github.com/roach88/staconform/internal/validator"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	OracleOptions
	URL string // service root to fetch the response from
}

// ValidationResult is the payload of a validate run.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Request string `json:"request"`

	// ExpectedCount is the oracle count for the request, -1 when unknown.
	ExpectedCount int `json:"expected_count"`

	Mismatch *MismatchReport `json:"mismatch,omitempty"`
}

// MismatchReport is the JSON form of a validator.MismatchError.
type MismatchReport struct {
	Kind     string `json:"kind"`
	Where    string `json:"where"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func newMismatchReport(me *validator.MismatchError) *MismatchReport {
	return &MismatchReport{
		Kind:     string(me.Kind),
		Where:    me.Where,
		Subject:  me.Subject,
		Expected: me.Expected,
		Actual:   me.Actual,
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <request> [response.json]",
		Short: "Validate a response against its request",
		Long: `Validate one SensorThings response against the request that produced it.

The response is read from a file, from stdin when given as "-", or fetched
from a live service with --url. Expected counts come from --fixtures
and/or --db; without either, count checks are skipped.

Exit codes:
  0 - Response conforms
  1 - Mismatch found
  2 - Command error (bad request, unreadable response, etc.)

Examples:
  staconform validate '/Things?$top=2&$count=true' things.json --fixtures lab.yaml
  curl -s "$SVC/Things?\$expand=Datastreams" | staconform validate '/Things?$expand=Datastreams' -
  staconform validate '/Things?$count=true' --url http://localhost:8080/FROST-Server/v1.1 --db lab.db`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), opts, args, cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.URL, "url", "", "service root to fetch the response from")

	return cmd
}

func runValidate(ctx context.Context, opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd, formatter.RunID)

	req, err := query.ParseRequest(args[0])
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRequest, err.Error(), nil)
	}

	o, err := opts.Load(ctx)
	if err != nil {
		return failLoad(formatter, err)
	}

	var doc jsondoc.Value
	switch {
	case len(args) == 2 && opts.URL != "":
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "response file and --url are mutually exclusive", nil)
	case len(args) == 2:
		doc, err = readDocument(args[1], cmd.InOrStdin())
		if err != nil {
			return failLoad(formatter, err)
		}
	case opts.URL != "":
		client, err := fetch.New(opts.URL, fetch.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFetch, err.Error(), nil)
		}
		formatter.VerboseLog("Fetching %s", req)
		if doc, err = client.Get(ctx, args[0]); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFetch, err.Error(), nil)
		}
	default:
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "a response file or --url is required", nil)
	}

	result := ValidationResult{
		Valid:         true,
		Request:       req.String(),
		ExpectedCount: oracle.FindCountForRequest(req, o),
	}
	formatter.VerboseLog("Expected count for %s: %d", result.Request, result.ExpectedCount)

	err = validator.New(o, validator.WithLogger(logger)).Response(doc, req)
	if err != nil {
		var me *validator.MismatchError
		if !errors.As(err, &me) {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result.Valid = false
		result.Mismatch = newMismatchReport(me)
		return outputMismatch(formatter, me, result)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ Response conforms to %s", result.Request))
}

func outputMismatch(f *OutputFormatter, me *validator.MismatchError, result ValidationResult) error {
	if f.Format == "json" {
		if err := f.Error(ErrCodeMismatch, me.Error(), result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, me.Error())
	}

	w := f.Writer
	fmt.Fprintf(w, "✗ %s\n", me.Kind)
	fmt.Fprintf(w, "  where:    %s\n", me.Where)
	fmt.Fprintf(w, "  subject:  %s\n", me.Subject)
	fmt.Fprintf(w, "  expected: %s\n", me.Expected)
	fmt.Fprintf(w, "  actual:   %s\n", me.Actual)
	return NewExitError(ExitFailure, me.Error())
}
