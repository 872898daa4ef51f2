package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/kiosk/internal/ir"
	"github.com/roach88/kiosk/internal/query"
)

// Step operations.
const (
	OpUpsert = "upsert"
	OpRemove = "remove"
	OpGet    = "get"
	OpList   = "list"
	OpCount  = "count"
)

// Scenario is a named sequence of CRUD steps.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Setup steps establish state. Any error aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step is one call of the CRUD contract.
type Step struct {
	Op   string `yaml:"op"`
	Kind string `yaml:"kind"`

	// Doc and Terms are the upsert arguments. The document is always indexed
	// by its own id, handle, title and tags as well.
	Doc   map[string]any `yaml:"doc,omitempty"`
	Terms []string       `yaml:"terms,omitempty"`

	// ID is the id or handle for get and remove.
	ID     string   `yaml:"id,omitempty"`
	Expand []string `yaml:"expand,omitempty"`

	// Query is the list or count request.
	Query *QuerySpec `yaml:"query,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// QuerySpec is the YAML form of query.ApiQuery. Cursors use the
// "key:value,key:value" form of query.ParseCursor.
type QuerySpec struct {
	SortBy      []string `yaml:"sort_by,omitempty"`
	Order       string   `yaml:"order,omitempty"`
	Limit       int      `yaml:"limit,omitempty"`
	LimitToLast int      `yaml:"limit_to_last,omitempty"`
	StartAt     string   `yaml:"start_at,omitempty"`
	StartAfter  string   `yaml:"start_after,omitempty"`
	EndAt       string   `yaml:"end_at,omitempty"`
	EndBefore   string   `yaml:"end_before,omitempty"`
	VQL         string   `yaml:"vql,omitempty"`
	Expand      []string `yaml:"expand,omitempty"`
}

// ApiQuery converts q. A nil q is the empty query.
func (q *QuerySpec) ApiQuery() (*query.ApiQuery, error) {
	if q == nil {
		return &query.ApiQuery{}, nil
	}
	out := &query.ApiQuery{
		SortBy:      q.SortBy,
		Order:       query.Order(q.Order),
		Limit:       q.Limit,
		LimitToLast: q.LimitToLast,
		VQL:         q.VQL,
		Expand:      q.Expand,
	}
	cursors := []struct {
		src string
		dst *query.Cursor
	}{
		{q.StartAt, &out.StartAt},
		{q.StartAfter, &out.StartAfter},
		{q.EndAt, &out.EndAt},
		{q.EndBefore, &out.EndBefore},
	}
	for _, c := range cursors {
		if c.src == "" {
			continue
		}
		cur, err := query.ParseCursor(c.src)
		if err != nil {
			return nil, err
		}
		*c.dst = cur
	}
	return out, nil
}

// Expect is checked against the outcome of a step. Unset fields are not
// checked.
type Expect struct {
	// Error is the expected error code, e.g. NOT_FOUND. Without it any
	// error fails the step.
	Error string `yaml:"error,omitempty"`

	// Count is the count result, or the number of listed documents.
	Count *int `yaml:"count,omitempty"`

	// IDs and Handles are the listed documents, in order.
	IDs     []string `yaml:"ids,omitempty"`
	Handles []string `yaml:"handles,omitempty"`

	TagsInclude   []string `yaml:"tags_include,omitempty"`
	TagsExclude   []string `yaml:"tags_exclude,omitempty"`
	SearchInclude []string `yaml:"search_include,omitempty"`
	SearchExclude []string `yaml:"search_exclude,omitempty"`

	// Fields is a subset match on the upserted or fetched document.
	Fields map[string]any `yaml:"fields,omitempty"`
}

var errorCodes = map[ir.ErrorCode]bool{
	ir.CodeConstraintViolation: true,
	ir.CodeNotFound:            true,
	ir.CodeTransactionAborted:  true,
	ir.CodeDialectUnsupported:  true,
	ir.CodeQueryCompile:        true,
	ir.CodeValidationFailed:    true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must have at least one step")
	}
	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps take no expect clause", i)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if _, ok := ir.ParseKind(step.Kind); !ok {
		return fmt.Errorf("unknown kind %q", step.Kind)
	}
	switch step.Op {
	case OpUpsert:
		if step.Doc == nil {
			return fmt.Errorf("upsert requires doc")
		}
	case OpGet, OpRemove:
		if step.ID == "" {
			return fmt.Errorf("%s requires id", step.Op)
		}
	case OpList, OpCount:
		if _, err := step.Query.ApiQuery(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	if step.Expect != nil && step.Expect.Error != "" && !errorCodes[ir.ErrorCode(step.Expect.Error)] {
		return fmt.Errorf("unknown error code %q", step.Expect.Error)
	}
	return nil
}
