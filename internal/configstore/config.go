// Package configstore persists policyprobe defaults as a TOML file and merges
// them under CLI flags at startup.
package configstore

import (
	"github.com/policyprobe/policyprobe/internal/genetic"
	"github.com/policyprobe/policyprobe/internal/request"
	"github.com/policyprobe/policyprobe/internal/testgen"
)

// Config is the persisted configuration. Every field has a working default so
// a missing file or a partial file is never an error.
type Config struct {
	Generator GeneratorConfig `toml:"generator"`
	Optimizer OptimizerConfig `toml:"optimizer"`
	Export    ExportConfig    `toml:"export"`
}

// GeneratorConfig mirrors testgen.Options.
type GeneratorConfig struct {
	Strategy      string `toml:"strategy"`
	Sentinel      string `toml:"sentinel"`
	MaxCandidates int    `toml:"max_candidates"`
	Vacuous       string `toml:"vacuous_rules"`
}

// OptimizerConfig mirrors genetic.Config.
type OptimizerConfig struct {
	PopulationSize int     `toml:"population_size"`
	Generations    int     `toml:"generations"`
	Elite          int     `toml:"elite"`
	ParentPool     int     `toml:"parent_pool"`
	CrossoverRate  float64 `toml:"crossover_rate"`
	MutationRate   float64 `toml:"mutation_rate"`
	Alpha          float64 `toml:"alpha"`
	Beta           float64 `toml:"beta"`
	Plateau        int     `toml:"plateau"`
}

// ExportConfig controls where request documents land.
type ExportConfig struct {
	Dir         string `toml:"dir"`
	Compression string `toml:"compression"`
}

// New returns the built-in defaults.
func New() Config {
	gen := testgen.DefaultOptions()
	ga := genetic.DefaultConfig()
	return Config{
		Generator: GeneratorConfig{
			Strategy:      string(gen.Strategy),
			Sentinel:      gen.Sentinel,
			MaxCandidates: gen.MaxCandidates,
			Vacuous:       string(gen.Vacuous),
		},
		Optimizer: OptimizerConfig{
			PopulationSize: ga.PopulationSize,
			Generations:    ga.Generations,
			Elite:          ga.Elite,
			ParentPool:     ga.ParentPool,
			CrossoverRate:  ga.CrossoverRate,
			MutationRate:   ga.MutationRate,
			Alpha:          ga.Alpha,
			Beta:           ga.Beta,
		},
		Export: ExportConfig{
			Dir:         "requests",
			Compression: string(request.Gzip),
		},
	}
}

// GeneratorOptions converts the persisted form into testgen options.
func (c Config) GeneratorOptions() testgen.Options {
	opts := testgen.DefaultOptions()
	if c.Generator.Strategy != "" {
		opts.Strategy = testgen.Strategy(c.Generator.Strategy)
	}
	if c.Generator.Sentinel != "" {
		opts.Sentinel = c.Generator.Sentinel
	}
	if c.Generator.MaxCandidates != 0 {
		opts.MaxCandidates = c.Generator.MaxCandidates
	}
	if c.Generator.Vacuous != "" {
		opts.Vacuous = testgen.VacuousMode(c.Generator.Vacuous)
	}
	return opts
}

// OptimizerConfig converts the persisted form into a genetic search config.
// Out-of-range values are clamped by the optimizer itself.
func (c Config) OptimizerOptions() genetic.Config {
	return genetic.Config{
		PopulationSize: c.Optimizer.PopulationSize,
		Generations:    c.Optimizer.Generations,
		Elite:          c.Optimizer.Elite,
		ParentPool:     c.Optimizer.ParentPool,
		CrossoverRate:  c.Optimizer.CrossoverRate,
		MutationRate:   c.Optimizer.MutationRate,
		Alpha:          c.Optimizer.Alpha,
		Beta:           c.Optimizer.Beta,
		Plateau:        c.Optimizer.Plateau,
	}
}
