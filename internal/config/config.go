// Package config loads relinq configuration written in CUE.
//
// A configuration file is unified with an embedded schema, so defaults are
// filled in and unknown or mistyped fields are rejected with their source
// position:
//
//	parser: partial_evaluation: false
//	aliases: [{name: "Filter", operator: "Where"}]
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relinq/internal/nodes"
	"github.com/roach88/relinq/internal/parser"
)

//go:embed schema.cue
var schemaSource string

// Config is the decoded configuration.
type Config struct {
	Parser  ParserConfig `json:"parser"`
	Aliases []Alias      `json:"aliases"`
}

// ParserConfig holds parser settings.
type ParserConfig struct {
	PartialEvaluation bool `json:"partial_evaluation"`
}

// Alias binds a custom operator name to a built-in operator.
type Alias struct {
	Name     string `json:"name"`
	Operator string `json:"operator"`
}

// Error reports an invalid configuration.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Parser: ParserConfig{PartialEvaluation: true}}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source against the schema and decodes it.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config: schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check() error {
	seen := make(map[string]bool, len(c.Aliases))
	for _, a := range c.Aliases {
		if seen[a.Name] {
			return &Error{Field: "aliases", Message: fmt.Sprintf("alias %q declared twice", a.Name)}
		}
		seen[a.Name] = true
	}
	return nil
}

// ParserOptions returns the parser options the configuration selects. The
// aliases are registered into a fresh default registry.
func (c *Config) ParserOptions() ([]parser.Option, error) {
	r := nodes.DefaultRegistry()
	for _, a := range c.Aliases {
		if err := nodes.RegisterAlias(r, a.Name, a.Operator); err != nil {
			return nil, &Error{Field: "aliases", Message: err.Error()}
		}
	}
	opts := []parser.Option{parser.WithRegistry(r)}
	if !c.Parser.PartialEvaluation {
		opts = append(opts, parser.WithoutPartialEvaluation())
	}
	return opts, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	e := &Error{Field: "cue", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		e.Field = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}
