package websocket

import (
	"github.com/policyprobe/policyprobe/internal/engine"
	"github.com/policyprobe/policyprobe/internal/genetic"
)

// Observer adapts a Hub to the engine's observer interface.
type Observer struct {
	hub *Hub
}

// NewObserver wraps the hub.
func NewObserver(hub *Hub) *Observer {
	return &Observer{hub: hub}
}

func (o *Observer) RunStarted(runID string, rules, candidates int, coverageBefore float64) {
	o.hub.Emit(Event{
		Event:      "run_started",
		RunID:      runID,
		Rules:      &rules,
		Candidates: &candidates,
		Coverage:   &coverageBefore,
	})
}

func (o *Observer) GenerationCompleted(runID string, p genetic.Progress) {
	o.hub.Emit(Event{
		Event:      "generation",
		RunID:      runID,
		Generation: &p.Generation,
		Fitness:    &p.BestFitness,
		Coverage:   &p.BestCoverage,
		SuiteSize:  &p.BestSize,
	})
}

func (o *Observer) RunCompleted(s engine.Summary) {
	o.hub.Emit(Event{
		Event:     "run_completed",
		RunID:     s.RunID,
		Rules:     &s.Rules,
		Coverage:  &s.CoverageAfter,
		SuiteSize: &s.SuiteSize,
	})
	o.hub.EmitJSON("summary", s)
}
