// Package config defines the immutable run configuration for the facc
// correction pipeline.
//
// Configuration comes from an optional YAML file validated against an
// embedded CUE schema, with defaults applied for absent fields. The
// resulting Run value is passed down to the pipeline explicitly; no
// package holds configuration in global state.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults for absent configuration fields. The oracle tolerances match
// the validation contract (5% relative on chains, 1 km² absolute at
// junctions); the internal stage arithmetic is stricter.
const (
	DefaultChainTolerance        = 0.95
	DefaultJunctionToleranceKm2  = 1.0
	DefaultMaxResidualViolations = 0
	DefaultLateralCapRatio       = 10.0
	DefaultDenoiseRatio          = 2.0
)

// Run is the immutable configuration for one pipeline invocation.
// Construct with Default() or Load(); treat as read-only afterwards.
type Run struct {
	// Regions restricts the run to the named regions; empty means every
	// region present in the database.
	Regions []string `yaml:"regions"`

	// ChainTolerance is the relative chain-monotonicity tolerance: a
	// downstream value below upstream * ChainTolerance is a violation.
	ChainTolerance float64 `yaml:"chain_tolerance"`

	// JunctionToleranceKm2 is the absolute junction-conservation
	// tolerance in km².
	JunctionToleranceKm2 float64 `yaml:"junction_tolerance_km2"`

	// MaxResidualViolations is the highest residual violation count that
	// still counts as success. Residue above it fails the run, signaling
	// a propagation-rule regression.
	MaxResidualViolations int `yaml:"max_residual_violations"`

	// LateralCapRatio zeroes lateral increments larger than
	// LateralCapRatio * upstream baseline.
	LateralCapRatio float64 `yaml:"lateral_cap_ratio"`

	// DenoiseRatio is the max/min node-sample ratio above which a reach
	// is treated as noise-affected.
	DenoiseRatio float64 `yaml:"denoise_ratio"`

	// Parallelism bounds concurrent region runs; zero means one
	// goroutine per region.
	Parallelism int `yaml:"parallelism"`
}

// Default returns a Run with every field at its default value.
func Default() Run {
	return Run{
		ChainTolerance:        DefaultChainTolerance,
		JunctionToleranceKm2:  DefaultJunctionToleranceKm2,
		MaxResidualViolations: DefaultMaxResidualViolations,
		LateralCapRatio:       DefaultLateralCapRatio,
		DenoiseRatio:          DefaultDenoiseRatio,
	}
}

// Load reads a YAML configuration file, validates it against the embedded
// CUE schema, and returns the configuration with defaults filled in.
func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes YAML configuration bytes.
func Parse(data []byte) (Run, error) {
	// Decode to a generic map first so CUE validates exactly what the
	// user wrote, including unknown fields.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Run{}, fmt.Errorf("parse config: %w", err)
	}
	if len(raw) > 0 {
		if err := validate(raw); err != nil {
			return Run{}, err
		}
	}

	// Decoding over a Default() value keeps defaults for absent fields:
	// yaml.v3 leaves struct fields untouched when the document has no
	// matching key.
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Run{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// validate unifies the decoded document with the embedded CUE schema.
// Schema violations (wrong types, out-of-range values, unknown fields)
// are returned as a single error listing the CUE failure.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()

	file := ctx.CompileString(schemaCUE)
	if err := file.Err(); err != nil {
		return fmt.Errorf("internal: config schema does not compile: %w", err)
	}
	schema := file.LookupPath(cue.ParsePath("#Run"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal: config schema missing #Run: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
