// Package config loads a run configuration and builds the model, schedule
// and acceptor it describes.
//
// Loading happens in four stages:
//  1. The YAML document is parsed
//  2. It is validated against the embedded CUE schema (schema.cue)
//  3. It is decoded strictly into Config and identifiers are NFC-normalized
//  4. Cross references (parameters, operators, allow-list) are checked
//
// Build then turns a valid Config into runtime objects.
package config

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Config is a run configuration.
type Config struct {
	Name            string            `yaml:"name"`
	Chain           ChainConfig       `yaml:"chain"`
	Parameters      []ParameterConfig `yaml:"parameters"`
	Densities       []DensityConfig   `yaml:"densities"`
	Operators       []OperatorConfig  `yaml:"operators"`
	Schedule        ScheduleConfig    `yaml:"schedule"`
	AllowImpossible []string          `yaml:"allow_impossible"`
}

// ChainConfig holds the chain settings. Nil fields take the chain defaults.
type ChainConfig struct {
	Length           int64    `yaml:"length"`
	FullEvaluation   *int64   `yaml:"full_evaluation"`
	MinOperatorCount *int64   `yaml:"min_operator_count"`
	Tolerance        *float64 `yaml:"tolerance"`
	Coercion         *bool    `yaml:"coercion"`
	Seed             *uint64  `yaml:"seed"`
	LogEvery         int64    `yaml:"log_every"`
	Temperature      *float64 `yaml:"temperature"`
	Acceptor         string   `yaml:"acceptor"`
}

// ParameterConfig declares a parameter and its optional bounds.
type ParameterConfig struct {
	ID    string    `yaml:"id"`
	Value []float64 `yaml:"value"`
	Lower *float64  `yaml:"lower"`
	Upper *float64  `yaml:"upper"`
}

// DensityConfig declares one term of the joint density.
type DensityConfig struct {
	ID        string   `yaml:"id"`
	Type      string   `yaml:"type"`
	Parameter string   `yaml:"parameter"`
	Mean      float64  `yaml:"mean"`
	StdDev    float64  `yaml:"stddev"`
	Lower     float64  `yaml:"lower"`
	Upper     float64  `yaml:"upper"`
	Rate      float64  `yaml:"rate"`
	Value     *float64 `yaml:"value"`
}

// OperatorConfig declares a proposal operator.
type OperatorConfig struct {
	ID        string   `yaml:"id"`
	Type      string   `yaml:"type"`
	Parameter string   `yaml:"parameter"`
	Weight    *float64 `yaml:"weight"`
	Size      *float64 `yaml:"size"`
	Mode      string   `yaml:"mode"`
	Target    *float64 `yaml:"target"`
	Index     *int     `yaml:"index"`
	Mean      float64  `yaml:"mean"`
	StdDev    float64  `yaml:"stddev"`
}

// ScheduleConfig selects the operator schedule.
type ScheduleConfig struct {
	Sequential bool   `yaml:"sequential"`
	Transform  string `yaml:"transform"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(path, data)
}

// Parse validates and decodes a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	return parse("config.yaml", data)
}

func parse(filename string, data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Code: ErrCodeSyntax, Message: err.Error()}
	}
	if raw == nil {
		return nil, &ValidationError{Code: ErrCodeSyntax, Message: "empty configuration"}
	}

	if err := validateSchema(filename, data); err != nil {
		return nil, err
	}

	// Strict decode catches anything the schema let through as a type
	// mismatch for the Go structs.
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, &ValidationError{Code: ErrCodeSyntax, Message: err.Error()}
	}

	cfg.normalize()

	if err := cfg.checkReferences(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// normalize applies Unicode NFC to every identifier so visually identical
// IDs compare equal.
func (c *Config) normalize() {
	c.Name = norm.NFC.String(c.Name)
	for i := range c.Parameters {
		c.Parameters[i].ID = norm.NFC.String(c.Parameters[i].ID)
	}
	for i := range c.Densities {
		c.Densities[i].ID = norm.NFC.String(c.Densities[i].ID)
		c.Densities[i].Parameter = norm.NFC.String(c.Densities[i].Parameter)
	}
	for i := range c.Operators {
		c.Operators[i].ID = norm.NFC.String(c.Operators[i].ID)
		c.Operators[i].Parameter = norm.NFC.String(c.Operators[i].Parameter)
	}
	for i, id := range c.AllowImpossible {
		c.AllowImpossible[i] = norm.NFC.String(id)
	}
}

// checkReferences verifies identifiers are unique and every reference
// resolves.
func (c *Config) checkReferences() error {
	params := make(map[string]ParameterConfig, len(c.Parameters))
	for _, p := range c.Parameters {
		if _, dup := params[p.ID]; dup {
			return newDuplicateError("parameters", p.ID)
		}
		params[p.ID] = p

		lower, upper := p.bounds()
		if lower > upper {
			return &ValidationError{
				Code:    ErrCodeBounds,
				Field:   "parameters." + p.ID,
				Message: fmt.Sprintf("lower bound %g exceeds upper bound %g", lower, upper),
			}
		}
		for i, v := range p.Value {
			if v < lower || v > upper {
				return &ValidationError{
					Code:    ErrCodeBounds,
					Field:   fmt.Sprintf("parameters.%s.value[%d]", p.ID, i),
					Message: fmt.Sprintf("initial value %g outside [%g, %g]", v, lower, upper),
				}
			}
		}
	}

	densities := make(map[string]bool, len(c.Densities))
	for _, d := range c.Densities {
		if densities[d.ID] {
			return newDuplicateError("densities", d.ID)
		}
		densities[d.ID] = true
		if d.Type != "constant" {
			if _, ok := params[d.Parameter]; !ok {
				return newUnknownRefError("densities."+d.ID+".parameter", d.Parameter)
			}
		}
		if d.Type == "uniform" && d.Lower >= d.Upper {
			return &ValidationError{
				Code:    ErrCodeBounds,
				Field:   "densities." + d.ID,
				Message: fmt.Sprintf("uniform lower %g must be below upper %g", d.Lower, d.Upper),
			}
		}
	}

	operators := make(map[string]bool, len(c.Operators))
	for _, op := range c.Operators {
		if operators[op.ID] {
			return newDuplicateError("operators", op.ID)
		}
		operators[op.ID] = true
		p, ok := params[op.Parameter]
		if !ok {
			return newUnknownRefError("operators."+op.ID+".parameter", op.Parameter)
		}
		if op.Index != nil && *op.Index >= len(p.Value) {
			return &ValidationError{
				Code:    ErrCodeBounds,
				Field:   "operators." + op.ID + ".index",
				Message: fmt.Sprintf("index %d out of range for parameter %s of dimension %d", *op.Index, p.ID, len(p.Value)),
			}
		}
	}

	for _, id := range c.AllowImpossible {
		if !operators[id] {
			return newUnknownRefError("allow_impossible", id)
		}
	}

	return nil
}
