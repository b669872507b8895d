package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/staconform/internal/harness"
	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/store"
)

// LoadError is an input error tagged with the code reported for it.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// failLoad reports err through the formatter with the code it carries.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		msg := loadErr.Message
		if loadErr.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, loadErr.Err)
		}
		return f.Fail(ExitCommandError, loadErr.Code, msg, nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// OracleOptions selects where expected counts come from.
type OracleOptions struct {
	Fixtures string // YAML fixture file or CUE package directory
	DB       string // SQLite fixture database
}

func (o *OracleOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Fixtures, "fixtures", "", "fixture file (YAML/JSON) or CUE package directory")
	cmd.Flags().StringVar(&o.DB, "db", "", "fixture database (SQLite)")
}

// LoadFixtureSet reads a fixture set from a YAML/JSON file or, when path is
// a directory, from the CUE package in it.
func LoadFixtureSet(path string) (*harness.FixtureSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixtures not found: %s", path)}
	}

	var fs *harness.FixtureSet
	if info.IsDir() {
		fs, err = harness.LoadFixturesCUE(path)
	} else {
		fs, err = harness.LoadFixtures(path)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeFixtures, Message: "loading fixtures", Err: err}
	}
	return fs, nil
}

// openStore opens an existing fixture database. When create is set a
// missing database is created instead.
func openStore(path string, create bool) (*store.Store, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeFixtures, Message: "opening database", Err: err}
	}
	return st, nil
}

// Load builds the oracle. With neither source every entity type is
// untracked, so only structural checks apply. With both, the fixtures are
// first saved into the database.
func (o *OracleOptions) Load(ctx context.Context) (*oracle.Fixtures, error) {
	var fs *harness.FixtureSet
	if o.Fixtures != "" {
		var err error
		if fs, err = LoadFixtureSet(o.Fixtures); err != nil {
			return nil, err
		}
	}

	if o.DB == "" {
		if fs == nil {
			return oracle.NewFixtures(), nil
		}
		f, err := fs.Build()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeFixtures, Message: "building fixtures", Err: err}
		}
		return f, nil
	}

	st, err := openStore(o.DB, fs != nil)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if fs != nil {
		if err := fs.Save(ctx, st); err != nil {
			return nil, &LoadError{Code: ErrCodeFixtures, Message: "saving fixtures", Err: err}
		}
	}
	f, err := st.Snapshot(ctx)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeFixtures, Message: "reading database", Err: err}
	}
	return f, nil
}

// readDocument parses the JSON document at path; "-" reads stdin.
func readDocument(path string, stdin io.Reader) (jsondoc.Value, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("response file not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeRead, Message: "reading response", Err: err}
	}

	doc, err := jsondoc.Parse(data)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: "invalid response", Err: err}
	}
	return doc, nil
}
