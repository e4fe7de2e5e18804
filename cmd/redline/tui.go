package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/redlinehq/redline/document"
	"github.com/redlinehq/redline/engine"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	convergedTint = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
	failedTint    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type reviewEventMsg engine.Event

type eventsClosedMsg struct{}

type reviewDoneMsg struct {
	result *engine.Result
	err    error
}

// sectionRow is the per-section progress line shown in the view.
type sectionRow struct {
	title     string
	iteration int
	findings  int
	state     string
	reason    string
}

// reviewModel renders live run progress from engine events.
type reviewModel struct {
	spinner  spinner.Model
	docTitle string
	order    []string
	rows     map[string]*sectionRow
	cancel   context.CancelFunc

	events  <-chan engine.Event
	outcome <-chan reviewDoneMsg

	cancelling bool
	done       bool
	result     *engine.Result
	err        error
}

func newReviewModel(doc *document.Document, events <-chan engine.Event, outcome <-chan reviewDoneMsg, cancel context.CancelFunc) *reviewModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))

	m := &reviewModel{
		spinner:  sp,
		docTitle: doc.Title,
		rows:     make(map[string]*sectionRow),
		cancel:   cancel,
		events:   events,
		outcome:  outcome,
	}
	for _, sec := range doc.Sections {
		m.order = append(m.order, sec.ID)
		m.rows[sec.ID] = &sectionRow{title: sec.Title, state: "pending"}
	}
	return m
}

func (m *reviewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent(), m.waitForOutcome())
}

// waitForEvent delivers the next engine event as a message.
func (m *reviewModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return reviewEventMsg(ev)
	}
}

func (m *reviewModel) waitForOutcome() tea.Cmd {
	return func() tea.Msg {
		return <-m.outcome
	}
}

func (m *reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.done {
				return m, tea.Quit
			}
			// Cancel the run but keep the view up until the engine
			// hands back the partial result.
			m.cancelling = true
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reviewEventMsg:
		m.applyEvent(engine.Event(msg))
		return m, m.waitForEvent()

	case eventsClosedMsg:
		return m, nil

	case reviewDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *reviewModel) applyEvent(ev engine.Event) {
	row, ok := m.rows[ev.SectionID]
	if !ok && ev.SectionID != "" {
		row = &sectionRow{title: ev.SectionID}
		m.rows[ev.SectionID] = row
		m.order = append(m.order, ev.SectionID)
	}

	switch ev.Kind {
	case engine.EventSectionStarted:
		row.state = "reviewing"
	case engine.EventIterationCompleted:
		row.state = "reviewing"
		if n, ok := ev.Data["iteration"].(int); ok {
			row.iteration = n
		}
		if n, ok := ev.Data["new_findings"].(int); ok {
			row.findings += n
		}
	case engine.EventSectionConverged:
		row.state = "converged"
		if reason, ok := ev.Data["reason"].(string); ok {
			row.reason = reason
		}
	case engine.EventSectionFailed:
		row.state = "failed"
		if reason, ok := ev.Data["error"].(string); ok {
			row.reason = reason
		}
	}
}

func (m *reviewModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("redline · "+m.docTitle) + "\n\n")

	for _, id := range m.order {
		row := m.rows[id]
		marker := m.spinner.View()
		switch row.state {
		case "pending":
			marker = dimStyle.Render("·")
		case "converged":
			marker = convergedTint.Render("✓")
		case "failed":
			marker = failedTint.Render("✗")
		}
		line := fmt.Sprintf("%s %-40s iter %d  findings %d", marker, trim(row.title, 40), row.iteration, row.findings)
		if row.reason != "" {
			line += "  " + dimStyle.Render(trim(row.reason, 48))
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\n")
	switch {
	case m.cancelling:
		sb.WriteString(dimStyle.Render("cancelling, waiting for in-flight sections..."))
	case m.done:
		sb.WriteString(dimStyle.Render("finished"))
	default:
		sb.WriteString(dimStyle.Render("q or ctrl+c to cancel"))
	}
	return sb.String() + "\n"
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// runTUI executes the run behind an interactive progress view. The engine
// result is returned after the program exits.
func runTUI(ctx context.Context, orch *engine.Orchestrator, doc *document.Document) (*engine.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcome := make(chan reviewDoneMsg, 1)
	go func() {
		result, err := orch.Run(runCtx, doc)
		outcome <- reviewDoneMsg{result: result, err: err}
	}()

	model := newReviewModel(doc, orch.Events(), outcome, cancel)
	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil {
		cancel()
		done := <-outcome
		return done.result, done.err
	}

	m := final.(*reviewModel)
	if !m.done {
		cancel()
		done := <-outcome
		return done.result, done.err
	}
	return m.result, m.err
}
