package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/policyprobe/policyprobe/internal/engine"
	"github.com/policyprobe/policyprobe/internal/genetic"
)

func newTestModel() *runModel {
	return &runModel{
		theme:       newTheme(false),
		events:      make(chan tea.Msg, 8),
		generations: 50,
	}
}

func TestModelTracksRunLifecycle(t *testing.T) {
	m := newTestModel()

	if view := m.View(); !strings.Contains(view, "generating candidates") {
		t.Fatalf("initial view missing placeholder: %q", view)
	}

	next, _ := m.Update(startedMsg{runID: "r1", rules: 3, candidates: 27})
	m = next.(*runModel)
	if !m.started || m.candidates != 27 {
		t.Fatalf("started state not applied: %+v", m)
	}

	next, _ = m.Update(generationMsg{progress: genetic.Progress{
		Generation: 25, BestFitness: 0.7, BestCoverage: 1.0, BestSize: 4,
	}})
	m = next.(*runModel)

	view := m.View()
	if !strings.Contains(view, "25/50") {
		t.Fatalf("view missing generation counter: %q", view)
	}
	if !strings.Contains(view, "fitness 0.700") {
		t.Fatalf("view missing fitness: %q", view)
	}
}

func TestModelQuitsOnCompletion(t *testing.T) {
	m := newTestModel()
	next, _ := m.Update(startedMsg{runID: "r1", rules: 2, candidates: 3})
	m = next.(*runModel)

	next, cmd := m.Update(doneMsg{summary: engine.Summary{
		SuiteSize: 2, Candidates: 3, CoverageAfter: 1.0, Generations: 50,
	}})
	m = next.(*runModel)

	if !m.finished {
		t.Fatal("model not finished after done message")
	}
	if cmd == nil {
		t.Fatal("done must produce a quit command")
	}
	if view := m.View(); !strings.Contains(view, "suite 2/3") {
		t.Fatalf("final view missing summary: %q", view)
	}
}

func TestModelQuitsOnKeypress(t *testing.T) {
	m := newTestModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q must produce a quit command")
	}
}

func TestObserverForwardsEvents(t *testing.T) {
	events := make(chan tea.Msg, 4)
	v := &RunView{events: events}

	v.RunStarted("r1", 2, 9, 1.0)
	v.GenerationCompleted("r1", genetic.Progress{Generation: 1})
	v.RunCompleted(engine.Summary{SuiteSize: 2})

	if msg, ok := (<-events).(startedMsg); !ok || msg.candidates != 9 {
		t.Fatalf("unexpected first message: %+v", msg)
	}
	if msg, ok := (<-events).(generationMsg); !ok || msg.progress.Generation != 1 {
		t.Fatalf("unexpected second message: %+v", msg)
	}
	if msg, ok := (<-events).(doneMsg); !ok || msg.summary.SuiteSize != 2 {
		t.Fatalf("unexpected third message: %+v", msg)
	}
}

func TestRunCompletedDoesNotBlockWhenBacklogged(t *testing.T) {
	events := make(chan tea.Msg, 2)
	v := &RunView{events: events}

	v.GenerationCompleted("r1", genetic.Progress{Generation: 1})
	v.GenerationCompleted("r1", genetic.Progress{Generation: 2})

	finished := make(chan struct{})
	go func() {
		v.RunCompleted(engine.Summary{SuiteSize: 1})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("RunCompleted blocked on a full event channel")
	}

	var sawDone bool
	for len(events) > 0 {
		if _, ok := (<-events).(doneMsg); ok {
			sawDone = true
		}
	}
	if !sawDone {
		t.Fatal("completion message was dropped")
	}
}

func TestSupportsTTYFalseForPlainWriter(t *testing.T) {
	var sb strings.Builder
	if SupportsTTY(&sb) {
		t.Fatal("a strings.Builder is not a terminal")
	}
}
