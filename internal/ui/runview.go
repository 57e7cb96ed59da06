// Package ui renders live run progress in the terminal. When stdout is not a
// TTY callers should skip the view entirely; progress still lands in the log.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/policyprobe/policyprobe/internal/engine"
	"github.com/policyprobe/policyprobe/internal/genetic"
)

// SupportsTTY reports whether the writer is an interactive color-capable
// terminal. NO_COLOR disables the view.
func SupportsTTY(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	type fd interface {
		Fd() uintptr
	}
	f, ok := w.(fd)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

type theme struct {
	title    lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	bar      lipgloss.Style
	barEmpty lipgloss.Style
	done     lipgloss.Style
}

func newTheme(color bool) theme {
	if !color {
		return theme{
			title:    lipgloss.NewStyle().Bold(true),
			label:    lipgloss.NewStyle().Faint(true),
			value:    lipgloss.NewStyle(),
			bar:      lipgloss.NewStyle(),
			barEmpty: lipgloss.NewStyle().Faint(true),
			done:     lipgloss.NewStyle().Bold(true),
		}
	}
	accent := lipgloss.Color("#58d4ff")
	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		label:    lipgloss.NewStyle().Faint(true),
		value:    lipgloss.NewStyle().Foreground(accent),
		bar:      lipgloss.NewStyle().Foreground(accent),
		barEmpty: lipgloss.NewStyle().Faint(true),
		done:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7bd88f")),
	}
}

type startedMsg struct {
	runID          string
	rules          int
	candidates     int
	coverageBefore float64
}

type generationMsg struct {
	progress genetic.Progress
}

type doneMsg struct {
	summary engine.Summary
}

type runModel struct {
	theme       theme
	events      chan tea.Msg
	generations int

	runID      string
	rules      int
	candidates int
	current    genetic.Progress
	started    bool
	finished   bool
	summary    engine.Summary
}

func waitForEvent(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m *runModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m *runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case startedMsg:
		m.started = true
		m.runID = msg.runID
		m.rules = msg.rules
		m.candidates = msg.candidates
		return m, waitForEvent(m.events)
	case generationMsg:
		m.current = msg.progress
		return m, waitForEvent(m.events)
	case doneMsg:
		m.finished = true
		m.summary = msg.summary
		return m, tea.Quit
	}
	return m, waitForEvent(m.events)
}

const barWidth = 32

func (m *runModel) View() string {
	var b strings.Builder

	b.WriteString(m.theme.title.Render("policyprobe"))
	b.WriteString("\n\n")

	if !m.started {
		b.WriteString(m.theme.label.Render("generating candidates..."))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s %s   %s %s\n",
		m.theme.label.Render("rules:"), m.theme.value.Render(fmt.Sprintf("%d", m.rules)),
		m.theme.label.Render("candidates:"), m.theme.value.Render(fmt.Sprintf("%d", m.candidates)))

	if m.finished {
		fmt.Fprintf(&b, "\n%s suite %d/%d vectors, coverage %.0f%%, %d generations\n",
			m.theme.done.Render("minimized:"),
			m.summary.SuiteSize, m.summary.Candidates,
			m.summary.CoverageAfter*100, m.summary.Generations)
		return b.String()
	}

	filled := 0
	if m.generations > 0 {
		filled = m.current.Generation * barWidth / m.generations
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := m.theme.bar.Render(strings.Repeat("█", filled)) +
		m.theme.barEmpty.Render(strings.Repeat("░", barWidth-filled))

	fmt.Fprintf(&b, "\n%s %s %d/%d\n", m.theme.label.Render("search:"), bar, m.current.Generation, m.generations)
	fmt.Fprintf(&b, "%s fitness %.3f, coverage %.0f%%, %d vectors\n",
		m.theme.label.Render("best:"),
		m.current.BestFitness, m.current.BestCoverage*100, m.current.BestSize)
	fmt.Fprintf(&b, "\n%s\n", m.theme.label.Render("q to abort"))
	return b.String()
}

// RunView drives the terminal view. It implements the engine observer
// interface; observer calls arrive from the run goroutine and are forwarded to
// the bubbletea program as messages.
type RunView struct {
	prog   *tea.Program
	events chan tea.Msg
}

// NewRunView builds the view writing to out. generations bounds the progress
// bar; pass the optimizer's configured generation count.
func NewRunView(out io.Writer, generations int) *RunView {
	events := make(chan tea.Msg, 64)
	model := &runModel{
		theme:       newTheme(SupportsTTY(out)),
		events:      events,
		generations: generations,
	}
	prog := tea.NewProgram(model, tea.WithOutput(out))
	return &RunView{prog: prog, events: events}
}

// Run blocks until the run completes or the user aborts.
func (v *RunView) Run() error {
	_, err := v.prog.Run()
	return err
}

func (v *RunView) send(msg tea.Msg) {
	select {
	case v.events <- msg:
	default:
		// The view lags behind the search; skipping a frame is fine.
	}
}

func (v *RunView) RunStarted(runID string, rules, candidates int, coverageBefore float64) {
	v.send(startedMsg{runID: runID, rules: rules, candidates: candidates, coverageBefore: coverageBefore})
}

func (v *RunView) GenerationCompleted(runID string, p genetic.Progress) {
	v.send(generationMsg{progress: p})
}

func (v *RunView) RunCompleted(s engine.Summary) {
	// Completion must not be dropped or the program never quits, but the run
	// goroutine must not block either: if stale frames backed up after the
	// user quit the view, evict one and retry. Observer calls all arrive from
	// the run goroutine, so the freed slot cannot be stolen.
	msg := doneMsg{summary: s}
	select {
	case v.events <- msg:
		return
	default:
	}
	select {
	case <-v.events:
	default:
	}
	select {
	case v.events <- msg:
	default:
	}
}
