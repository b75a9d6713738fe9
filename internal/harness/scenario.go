package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relinq/internal/frontend"
	"github.com/roach88/relinq/internal/meta"
	"github.com/roach88/relinq/internal/ops"
)

// Scenario defines one parse scenario: a schema, a query in front-end
// syntax, and the model the query is expected to parse into.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Types declares record types, each with its fields in order. A field
	// may use a type declared above it.
	Types OrderedMap[OrderedMap[string]] `yaml:"types,omitempty"`

	// Sources maps free sequence variables to their item type.
	Sources map[string]string `yaml:"sources"`

	// Vars declares scalar free variables. Their values form the
	// environment used by partial evaluation.
	Vars map[string]VarDef `yaml:"vars,omitempty"`

	// Query is the call chain in front-end syntax.
	Query string `yaml:"query"`

	// Expect describes the expected outcome.
	Expect Expect `yaml:"expect"`
}

// VarDef declares a free variable.
type VarDef struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// Expect specifies the expected model or error. Only the fields that are
// set are checked; an empty list still asserts that nothing is present.
type Expect struct {
	Model           string       `yaml:"model,omitempty"`
	Body            []string     `yaml:"body,omitempty"`
	ResultOperators []string     `yaml:"result_operators,omitempty"`
	ResultType      string       `yaml:"result_type,omitempty"`
	SubQueries      []string     `yaml:"sub_queries,omitempty"`
	Error           *ExpectError `yaml:"error,omitempty"`
}

// ExpectError specifies an expected failure.
type ExpectError struct {
	// Code is a parser error code such as INVALID_CHAIN, or SYNTAX_ERROR /
	// COMPILE_ERROR for front-end failures.
	Code string `yaml:"code"`

	// Contains is a substring of the error message.
	Contains string `yaml:"contains,omitempty"`

	// Position is the chain position of the offending call.
	Position *int `yaml:"position,omitempty"`
}

// OrderedMap is a YAML mapping decoded in document order.
type OrderedMap[V any] []Entry[V]

// Entry is one key of an OrderedMap.
type Entry[V any] struct {
	Key   string
	Value V
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *OrderedMap[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if seen[key.Value] {
			return fmt.Errorf("line %d: duplicate key %q", key.Line, key.Value)
		}
		seen[key.Value] = true

		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return err
		}
		*m = append(*m, Entry[V]{Key: key.Value, Value: v})
	}
	return nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("query is required")
	}

	if len(s.Sources) == 0 {
		return fmt.Errorf("sources map is required and must be non-empty")
	}

	if e := s.Expect.Error; e != nil {
		if e.Code == "" {
			return fmt.Errorf("expect.error: code is required")
		}
		if s.Expect.Model != "" || s.Expect.Body != nil || s.Expect.ResultOperators != nil ||
			s.Expect.ResultType != "" || s.Expect.SubQueries != nil {
			return fmt.Errorf("expect: error cannot be combined with model expectations")
		}
	}

	_, _, err := s.Schema()
	return err
}

var builtinTypes = map[string]*meta.Type{
	"int":    meta.Int,
	"float":  meta.Float,
	"string": meta.String,
	"bool":   meta.Bool,
	"any":    meta.Any,
}

// Schema builds the front-end schema and the variable environment the
// scenario declares.
func (s *Scenario) Schema() (frontend.Schema, map[string]any, error) {
	schema := frontend.Schema{
		Sources: make(map[string]*meta.Type, len(s.Sources)),
		Vars:    make(map[string]*meta.Type, len(s.Vars)),
		Types:   make(map[string]*meta.Type, len(s.Types)),
	}

	for _, decl := range s.Types {
		if _, ok := builtinTypes[decl.Key]; ok {
			return frontend.Schema{}, nil, fmt.Errorf("types.%s: shadows a builtin type", decl.Key)
		}
		fields := make([]meta.Field, 0, len(decl.Value))
		for _, f := range decl.Value {
			t, err := resolveType(f.Value, schema.Types)
			if err != nil {
				return frontend.Schema{}, nil, fmt.Errorf("types.%s.%s: %w", decl.Key, f.Key, err)
			}
			fields = append(fields, meta.F(f.Key, t))
		}
		schema.Types[decl.Key] = meta.NewRecord(decl.Key, fields...)
	}

	for name, item := range s.Sources {
		t, err := resolveType(item, schema.Types)
		if err != nil {
			return frontend.Schema{}, nil, fmt.Errorf("sources.%s: %w", name, err)
		}
		schema.Sources[name] = t
	}

	env := make(map[string]any, len(s.Vars))
	for name, v := range s.Vars {
		if _, ok := schema.Sources[name]; ok {
			return frontend.Schema{}, nil, fmt.Errorf("vars.%s: already declared as a source", name)
		}
		t, err := resolveType(v.Type, schema.Types)
		if err != nil {
			return frontend.Schema{}, nil, fmt.Errorf("vars.%s: %w", name, err)
		}
		value, err := coerce(v.Value, t)
		if err != nil {
			return frontend.Schema{}, nil, fmt.Errorf("vars.%s: %w", name, err)
		}
		schema.Vars[name] = t
		env[name] = value
	}

	return schema, env, nil
}

// resolveType parses a type expression: a builtin, a declared record, or
// Seq<T> / List<T>.
func resolveType(text string, declared map[string]*meta.Type) (*meta.Type, error) {
	text = strings.TrimSpace(text)
	if open := strings.IndexByte(text, '<'); open > 0 && strings.HasSuffix(text, ">") {
		elem, err := resolveType(text[open+1:len(text)-1], declared)
		if err != nil {
			return nil, err
		}
		switch text[:open] {
		case "Seq":
			return meta.SeqOf(elem), nil
		case "List":
			return ops.ListOf(elem), nil
		}
		return nil, fmt.Errorf("unknown generic type %s", text[:open])
	}
	if t, ok := builtinTypes[text]; ok {
		return t, nil
	}
	if t, ok := declared[text]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", text)
}

// coerce checks a YAML value against t. Integers are accepted for float
// variables.
func coerce(v any, t *meta.Type) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("value is required")
	}
	if elem, ok := meta.ElementType(t); ok {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("value %v is not a list", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerce(item, elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	}

	ok := false
	switch t {
	case meta.Any:
		ok = true
	case meta.Int:
		_, ok = v.(int)
	case meta.Float:
		if n, isInt := v.(int); isInt {
			v, ok = float64(n), true
		} else {
			_, ok = v.(float64)
		}
	case meta.String:
		_, ok = v.(string)
	case meta.Bool:
		_, ok = v.(bool)
	}
	if !ok {
		return nil, fmt.Errorf("value %v is not a %s", v, t)
	}
	return v, nil
}
