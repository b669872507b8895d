package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/query"
	"github.com/roach88/staconform/internal/validator"
)

// Scenario is a conformance scenario: a fixture dataset and a list of
// checks run against recorded service responses.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// At most one fixture source may be given. FixturesFile and FixturesCUE
	// are relative to the scenario file.
	Fixtures     *FixtureSet `yaml:"fixtures,omitempty"`
	FixturesFile string      `yaml:"fixtures_file,omitempty"`
	FixturesCUE  string      `yaml:"fixtures_cue,omitempty"`

	Checks []Check `yaml:"checks"`
}

// Check is one validation against a recorded response.
type Check struct {
	Name string `yaml:"name"`

	// Type is validate_response or result_contains.
	Type string `yaml:"type"`

	// Request is the request the response answers. Required for
	// validate_response; for result_contains it names the query (usually a
	// $filter) in failure details.
	Request string `yaml:"request,omitempty"`

	// Response is the JSON response document. ResponseFile, relative to
	// the scenario file, may be given instead.
	Response     string `yaml:"response,omitempty"`
	ResponseFile string `yaml:"response_file,omitempty"`

	// ExpectIDs lists the ids the result must hold (result_contains).
	ExpectIDs []any `yaml:"expect_ids,omitempty"`

	// ExpectAll takes the expected ids from every fixture entity of the
	// named kind instead (result_contains).
	ExpectAll string `yaml:"expect_all,omitempty"`

	// Expect is the outcome the check must produce: pass (the default) or
	// a failure kind such as PaginationMismatch or SetMismatch.
	Expect string `yaml:"expect,omitempty"`
}

// Check type constants.
const (
	CheckValidateResponse = "validate_response"
	CheckResultContains   = "result_contains"
)

// OutcomePass is the outcome of a check that found no mismatch.
const OutcomePass = "pass"

// outcomes lists every outcome a check may expect.
var outcomes = map[string]bool{
	OutcomePass:                          true,
	string(validator.StructuralMismatch): true,
	string(validator.LeakMismatch):       true,
	string(validator.CountMismatch):      true,
	string(validator.PaginationMismatch): true,
	string(validator.SetMismatch):        true,
}

// ExpectedOutcome returns the outcome the check must produce.
func (c *Check) ExpectedOutcome() string {
	if c.Expect == "" {
		return OutcomePass
	}
	return c.Expect
}

// LoadScenario reads and parses a scenario YAML file. Fixture and response
// files are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative fixture and response paths against basePath.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "check:" vs "checks:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if basePath != "" {
		scenario.FixturesFile = resolvePath(basePath, scenario.FixturesFile)
		scenario.FixturesCUE = resolvePath(basePath, scenario.FixturesCUE)
		for i := range scenario.Checks {
			scenario.Checks[i].ResponseFile = resolvePath(basePath, scenario.Checks[i].ResponseFile)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	sources := 0
	for _, set := range []bool{s.Fixtures != nil, s.FixturesFile != "", s.FixturesCUE != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("only one of fixtures, fixtures_file and fixtures_cue may be set")
	}
	if s.Fixtures != nil {
		if err := s.Fixtures.validate(); err != nil {
			return fmt.Errorf("fixtures: %w", err)
		}
	}
	if s.FixturesFile != "" {
		if _, err := os.Stat(s.FixturesFile); os.IsNotExist(err) {
			return fmt.Errorf("fixtures file not found: %s", s.FixturesFile)
		}
	}

	if len(s.Checks) == 0 {
		return fmt.Errorf("checks list is required and must be non-empty")
	}

	for i := range s.Checks {
		if err := validateCheck(i, &s.Checks[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateCheck validates a single check based on its type.
func validateCheck(index int, c *Check) error {
	if c.Name == "" {
		return fmt.Errorf("checks[%d]: name is required", index)
	}
	if c.Type == "" {
		return fmt.Errorf("checks[%d]: type is required", index)
	}

	switch {
	case c.Response == "" && c.ResponseFile == "":
		return fmt.Errorf("checks[%d]: response or response_file is required", index)
	case c.Response != "" && c.ResponseFile != "":
		return fmt.Errorf("checks[%d]: response and response_file are mutually exclusive", index)
	}
	if c.ResponseFile != "" {
		if _, err := os.Stat(c.ResponseFile); os.IsNotExist(err) {
			return fmt.Errorf("checks[%d]: response file not found: %s", index, c.ResponseFile)
		}
	}

	if !outcomes[c.ExpectedOutcome()] {
		return fmt.Errorf("checks[%d]: unknown expected outcome %q", index, c.Expect)
	}

	switch c.Type {
	case CheckValidateResponse:
		if c.Request == "" {
			return fmt.Errorf("checks[%d]: request is required for validate_response", index)
		}
		if _, err := query.ParseRequest(c.Request); err != nil {
			return fmt.Errorf("checks[%d]: %w", index, err)
		}
		if c.Expect == string(validator.SetMismatch) {
			return fmt.Errorf("checks[%d]: validate_response cannot produce %s", index, validator.SetMismatch)
		}
	case CheckResultContains:
		if c.ExpectIDs != nil && c.ExpectAll != "" {
			return fmt.Errorf("checks[%d]: expect_ids and expect_all are mutually exclusive", index)
		}
		if c.ExpectIDs == nil && c.ExpectAll == "" {
			return fmt.Errorf("checks[%d]: expect_ids or expect_all is required for result_contains", index)
		}
		if c.Request != "" {
			if _, err := query.ParseRequest(c.Request); err != nil {
				return fmt.Errorf("checks[%d]: %w", index, err)
			}
		}
		if c.ExpectAll != "" {
			if _, ok := model.ParseEntityType(c.ExpectAll); !ok {
				return fmt.Errorf("checks[%d]: unknown entity type %q", index, c.ExpectAll)
			}
		}
		switch c.ExpectedOutcome() {
		case OutcomePass, string(validator.SetMismatch):
		default:
			return fmt.Errorf("checks[%d]: result_contains cannot produce %s", index, c.Expect)
		}
	default:
		return fmt.Errorf("checks[%d]: unknown check type %q", index, c.Type)
	}

	return nil
}

// LoadFixtures returns the scenario's fixture set from whichever source it
// names, or an empty set when it names none.
func (s *Scenario) LoadFixtures() (*FixtureSet, error) {
	switch {
	case s.Fixtures != nil:
		return s.Fixtures, nil
	case s.FixturesFile != "":
		return LoadFixtures(s.FixturesFile)
	case s.FixturesCUE != "":
		return LoadFixturesCUE(s.FixturesCUE)
	default:
		return &FixtureSet{}, nil
	}
}

// Document parses the check's response document.
func (c *Check) Document() (jsondoc.Value, error) {
	data := []byte(c.Response)
	if c.ResponseFile != "" {
		var err error
		data, err = os.ReadFile(c.ResponseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read response file: %w", err)
		}
	}
	return jsondoc.Parse(data)
}
