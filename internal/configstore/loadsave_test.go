package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/policyprobe/policyprobe/internal/testgen"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("POLICYPROBE_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Optimizer.PopulationSize != 20 || cfg.Optimizer.Generations != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg.Optimizer)
	}
	if cfg.Generator.Strategy != string(testgen.Combinatorial) {
		t.Fatalf("unexpected generator default: %+v", cfg.Generator)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POLICYPROBE_HOME", dir)

	content := `[optimizer]
population_size = 30
mutation_rate = 0.1

[generator]
strategy = "per-rule"

[export]
dir = "out"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Optimizer.PopulationSize != 30 {
		t.Fatalf("population_size = %d, want 30", cfg.Optimizer.PopulationSize)
	}
	if cfg.Optimizer.MutationRate != 0.1 {
		t.Fatalf("mutation_rate = %v, want 0.1", cfg.Optimizer.MutationRate)
	}
	// Untouched fields keep their defaults.
	if cfg.Optimizer.Generations != 50 {
		t.Fatalf("generations = %d, want default 50", cfg.Optimizer.Generations)
	}
	if cfg.Export.Dir != "out" {
		t.Fatalf("export dir = %q, want out", cfg.Export.Dir)
	}

	opts := cfg.GeneratorOptions()
	if opts.Strategy != testgen.PerRule {
		t.Fatalf("strategy = %q, want per-rule", opts.Strategy)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POLICYPROBE_HOME", dir)

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[optimizer\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("POLICYPROBE_HOME", t.TempDir())

	cfg := New()
	cfg.Optimizer.Generations = 75
	cfg.Export.Compression = "brotli"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Optimizer.Generations != 75 || loaded.Export.Compression != "brotli" {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
}
