package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/store"
)

// TypeSummary lists the stored entities of one tracked type.
type TypeSummary struct {
	Type  string   `json:"type"`
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// FixturesSummary is the payload of fixtures import and fixtures list.
type FixturesSummary struct {
	DB    string        `json:"db"`
	Types []TypeSummary `json:"types"`
}

// NewFixturesCommand creates the fixtures command group.
func NewFixturesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Manage fixture databases",
		Long: `Manage SQLite fixture databases.

A fixture database records the entities a service under test was loaded
with, so validate and compare can be pointed at it with --db.`,
	}

	cmd.AddCommand(newFixturesImportCommand(rootOpts))
	cmd.AddCommand(newFixturesListCommand(rootOpts))

	return cmd
}

func newFixturesImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <db> <fixtures>",
		Short: "Import a fixture file or CUE package into a database",
		Long: `Import fixtures into a database, creating it if needed.

<fixtures> is a YAML/JSON fixture file or a directory holding a CUE
package with a fixtures field. Importing the same fixtures twice is a
no-op.

Examples:
  staconform fixtures import lab.db fixtures/lab.yaml
  staconform fixtures import lab.db fixtures/observations`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixturesImport(cmd.Context(), rootOpts, args[0], args[1], cmd)
		},
	}
}

func newFixturesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <db>",
		Short:         "List the tracked entity types and ids in a database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixturesList(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
}

func runFixturesImport(ctx context.Context, opts *RootOptions, dbPath, fixturesPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts, cmd)

	fs, err := LoadFixtureSet(fixturesPath)
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("Loaded %d entities and %d links from %s", len(fs.Entities), len(fs.Links), fixturesPath)

	st, err := openStore(dbPath, true)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer st.Close()

	if err := fs.Save(ctx, st); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFixtures, fmt.Sprintf("saving fixtures: %v", err), nil)
	}

	return outputSummary(ctx, formatter, dbPath, st)
}

func runFixturesList(ctx context.Context, opts *RootOptions, dbPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts, cmd)

	st, err := openStore(dbPath, false)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer st.Close()

	return outputSummary(ctx, formatter, dbPath, st)
}

func summarize(ctx context.Context, st *store.Store) ([]TypeSummary, error) {
	f, err := st.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	types := []TypeSummary{}
	for _, kind := range model.Types() {
		n := f.Count(kind)
		if n == oracle.Unknown {
			continue
		}
		types = append(types, TypeSummary{
			Type:  kind.String(),
			Count: n,
			IDs:   literals(f.Entities(kind)),
		})
	}
	return types, nil
}

func outputSummary(ctx context.Context, f *OutputFormatter, dbPath string, st *store.Store) error {
	types, err := summarize(ctx, st)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeFixtures, fmt.Sprintf("reading database: %v", err), nil)
	}
	if f.Format == "json" {
		return f.Success(FixturesSummary{DB: dbPath, Types: types})
	}

	if len(types) == 0 {
		fmt.Fprintf(f.Writer, "%s: no tracked entity types\n", dbPath)
		return nil
	}
	fmt.Fprintf(f.Writer, "%s:\n", dbPath)
	for _, t := range types {
		fmt.Fprintf(f.Writer, "  %-18s %3d  %s\n", t.Type, t.Count, strings.Join(t.IDs, " "))
	}
	return nil
}
