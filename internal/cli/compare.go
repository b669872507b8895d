package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/staconform/internal/compare"
	"github.com/roach88/staconform/internal/fetch"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	OracleOptions
	Expect    string // comma separated id literals
	ExpectAll string // entity type whose fixture entities are expected
	URL       string // service root used to follow next links
	Request   string // query that produced the response, for failure details
}

// CompareResult is the payload of a compare run.
type CompareResult struct {
	OK       bool     `json:"ok"`
	Request  string   `json:"request,omitempty"`
	Message  string   `json:"message,omitempty"`
	Expected []string `json:"expected"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <response.json>",
		Short: "Check that a collection holds exactly the expected entities",
		Long: `Check that a collection response holds exactly an expected set of entities.

The expected ids are given as path key literals with --expect, or taken
from every fixture entity of one type with --expect-all. Next links are
followed when --url names the service root. --request names the query
that produced the response, usually a $filter, in the failure message.

Exit codes:
  0 - Result matches
  1 - SetMismatch
  2 - Command error

Examples:
  staconform compare things.json --expect "1,2,'ab''c'"
  staconform compare things.json --expect-all Thing --fixtures lab.yaml
  staconform compare lab.json --expect 1 --request "/Things?\$filter=name eq 'Lab'"
  staconform compare things.json --expect-all Things --db lab.db --url http://localhost:8080/v1.1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Expect, "expect", "", "expected ids, e.g. 1,2,'abc'")
	cmd.Flags().StringVar(&opts.ExpectAll, "expect-all", "", "expect every fixture entity of this type")
	cmd.Flags().StringVar(&opts.URL, "url", "", "service root used to follow next links")
	cmd.Flags().StringVar(&opts.Request, "request", "", "query that produced the response, named in failure messages")
	cmd.MarkFlagsMutuallyExclusive("expect", "expect-all")
	cmd.MarkFlagsOneRequired("expect", "expect-all")

	return cmd
}

func runCompare(ctx context.Context, opts *CompareOptions, responsePath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd, formatter.RunID)

	expected, err := opts.expectedIDs(ctx)
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("Expecting %d entities", len(expected))

	doc, err := readDocument(responsePath, cmd.InOrStdin())
	if err != nil {
		return failLoad(formatter, err)
	}

	var fetcher compare.PageFetcher
	if opts.URL != "" {
		client, err := fetch.New(opts.URL, fetch.WithLogger(logger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeFetch, err.Error(), nil)
		}
		fetcher = client
	}

	result := CompareResult{Request: opts.Request, Expected: literals(expected)}

	if pages, err := compare.NewPages(ctx, doc, fetcher); err != nil {
		result.Message = err.Error()
	} else {
		res := compare.ResultContains(pages, expected)
		result.OK = res.OK
		result.Message = res.Message
	}
	if !result.OK {
		logger.Info("result does not hold the expected entities",
			"request", opts.Request, "reason", result.Message)
		if opts.Request != "" {
			result.Message = fmt.Sprintf("failed on %s: %s", opts.Request, result.Message)
		}
		return outputSetMismatch(formatter, result)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ Result holds exactly %d expected entities", len(expected)))
}

func (o *CompareOptions) expectedIDs(ctx context.Context) ([]model.ID, error) {
	if o.ExpectAll == "" {
		ids, err := ParseIDList(o.Expect)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: "invalid --expect", Err: err}
		}
		return ids, nil
	}

	kind, ok := model.ParseEntityType(o.ExpectAll)
	if !ok {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unknown entity type %q", o.ExpectAll)}
	}
	f, err := o.Load(ctx)
	if err != nil {
		return nil, err
	}
	if f.Count(kind) == oracle.Unknown {
		return nil, &LoadError{Code: ErrCodeFixtures, Message: fmt.Sprintf("fixtures do not track %s", kind)}
	}
	return f.Entities(kind), nil
}

// ParseIDList parses comma separated path key literals: integers, or
// strings in single quotes with '' escaping a quote. An empty list is
// valid.
func ParseIDList(s string) ([]model.ID, error) {
	ids := []model.ID{}
	rest := strings.TrimSpace(s)
	for rest != "" {
		var (
			id  model.ID
			err error
		)
		if rest[0] == '\'' {
			id, rest, err = quotedID(rest)
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}
			id, err = integerID(strings.TrimSpace(rest[:end]))
			rest = rest[end:]
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)

		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("expected ',' before %q", rest)
		}
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return nil, fmt.Errorf("trailing ',' in %q", s)
		}
	}
	return ids, nil
}

func quotedID(s string) (model.ID, string, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		if b.Len() == 0 {
			return "", "", fmt.Errorf("empty id")
		}
		return model.ID(b.String()), s[i+1:], nil
	}
	return "", "", fmt.Errorf("unterminated string id %s", s)
}

func integerID(tok string) (model.ID, error) {
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return "", fmt.Errorf("id %q is neither an integer nor a quoted string", tok)
	}
	return model.IDFrom(n)
}

func literals(ids []model.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Literal()
	}
	return out
}

func outputSetMismatch(f *OutputFormatter, result CompareResult) error {
	if f.Format == "json" {
		if err := f.Error(ErrCodeSetMismatch, result.Message, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, result.Message)
	}

	fmt.Fprintf(f.Writer, "✗ %s\n", compare.SetMismatch)
	fmt.Fprintf(f.Writer, "  %s\n", result.Message)
	return NewExitError(ExitFailure, result.Message)
}
