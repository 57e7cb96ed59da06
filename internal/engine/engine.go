// Package engine runs the full pipeline: attribute domains, candidate
// generation, coverage measurement, and genetic minimization, producing the
// run summary callers rely on to judge suite quality.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/policyprobe/policyprobe/internal/genetic"
	"github.com/policyprobe/policyprobe/internal/policy"
	"github.com/policyprobe/policyprobe/internal/telemetry/otel"
	"github.com/policyprobe/policyprobe/internal/testgen"
)

// Config assembles the pipeline options.
type Config struct {
	Generator testgen.Options
	Optimizer genetic.Config

	// Instruments, when non-nil, records run metrics and a span.
	Instruments *otel.RunInstruments

	// Observers receive run lifecycle events. All calls happen on the run's
	// goroutine.
	Observers []Observer
}

// Observer watches a run's progress.
type Observer interface {
	RunStarted(runID string, rules, candidates int, coverageBefore float64)
	GenerationCompleted(runID string, p genetic.Progress)
	RunCompleted(s Summary)
}

// Summary is the contract a caller relies on: how many candidates were
// generated, the coverage before optimization, and the minimized suite's size
// and coverage.
type Summary struct {
	RunID          string        `json:"run_id"`
	Rules          int           `json:"rules"`
	Strategy       string        `json:"strategy"`
	Candidates     int           `json:"candidates"`
	CoverageBefore float64       `json:"coverage_before"`
	SuiteSize      int           `json:"suite_size"`
	CoverageAfter  float64       `json:"coverage_after"`
	Fitness        float64       `json:"fitness"`
	Generations    int           `json:"generations"`
	Duration       time.Duration `json:"duration_ns"`
}

// Run executes one generation-and-minimization run over the rules and returns
// the summary together with the minimized suite. The candidate pool is built
// exactly once; the optimizer only selects into it.
func Run(ctx context.Context, rules []policy.Rule, cfg Config) (Summary, []testgen.Vector, error) {
	runID := uuid.NewString()
	start := time.Now()
	ruleIDs := policy.IDs(rules)

	strategy := cfg.Generator.Strategy
	if strategy == "" {
		strategy = testgen.Combinatorial
	}

	handle, ctx := cfg.Instruments.Start(ctx, runID, string(strategy), len(rules))

	pool, err := testgen.Generate(rules, cfg.Generator)
	if err != nil {
		err = fmt.Errorf("generate candidates: %w", err)
		cfg.Instruments.Fail(handle, err)
		return Summary{}, nil, err
	}
	coverageBefore := testgen.Coverage(pool, ruleIDs)
	log.Printf("run %s: %d rules, %d candidates, coverage before optimization %.2f",
		runID, len(rules), len(pool), coverageBefore)

	for _, obs := range cfg.Observers {
		obs.RunStarted(runID, len(rules), len(pool), coverageBefore)
	}

	opt := genetic.New(pool, ruleIDs, cfg.Optimizer)
	opt.OnProgress = func(p genetic.Progress) {
		for _, obs := range cfg.Observers {
			obs.GenerationCompleted(runID, p)
		}
	}

	res, err := opt.Run(ctx)
	if err != nil {
		err = fmt.Errorf("minimize suite: %w", err)
		cfg.Instruments.Fail(handle, err)
		return Summary{}, nil, err
	}

	summary := Summary{
		RunID:          runID,
		Rules:          len(rules),
		Strategy:       string(strategy),
		Candidates:     len(pool),
		CoverageBefore: coverageBefore,
		SuiteSize:      len(res.Suite),
		CoverageAfter:  res.Coverage,
		Fitness:        res.Fitness,
		Generations:    res.Generations,
		Duration:       time.Since(start),
	}

	cfg.Instruments.Finish(handle, summary.Candidates, summary.SuiteSize, summary.CoverageBefore, summary.CoverageAfter)

	log.Printf("run %s: minimized to %d tests, coverage after optimization %.2f (%d generations)",
		runID, summary.SuiteSize, summary.CoverageAfter, summary.Generations)

	for _, obs := range cfg.Observers {
		obs.RunCompleted(summary)
	}

	return summary, res.Suite, nil
}
