// Package tui renders live sprint progress in the terminal. The watch view
// subscribes to a sprint's timeline and keeps a per-phase board of candidate
// and judge activity until the sprint reaches a terminal status.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/okapi-sh/sprintd/internal/orchestrator"
	"github.com/okapi-sh/sprintd/internal/sprint"
	"github.com/okapi-sh/sprintd/internal/timeline"
	"github.com/okapi-sh/sprintd/internal/util"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	phaseStyle   = lipgloss.NewStyle().PaddingLeft(2)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	winnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingTop(1)
)

// Watch runs the live view for a sprint until it reaches a terminal status
// or the user quits. Quitting with q detaches without canceling; ctrl+c
// cancels the sprint first.
func Watch(orch *orchestrator.Orchestrator, sprintID string) error {
	events, stop, err := orch.Subscribe(sprintID)
	if err != nil {
		return err
	}
	defer stop()

	m := newWatchModel(orch, sprintID, events)
	_, err = tea.NewProgram(m).Run()
	return err
}

// eventMsg wraps one timeline event for the update loop.
type eventMsg timeline.Event

// streamDoneMsg signals that the event stream closed (sprint terminal).
type streamDoneMsg struct{}

type candidateView struct {
	id       string
	provider string
	status   sprint.CandidateStatus
	winner   bool
}

type phaseView struct {
	name       string
	status     sprint.PhaseStatus
	attempt    int
	candidates []candidateView
	detail     string
}

type watchModel struct {
	orch     *orchestrator.Orchestrator
	sprintID string
	events   <-chan timeline.Event

	spinner  spinner.Model
	phases   []phaseView
	phaseIdx map[string]int
	status   string
	done     bool
	lastErr  string
}

func newWatchModel(orch *orchestrator.Orchestrator, sprintID string, events <-chan timeline.Event) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return watchModel{
		orch:     orch,
		sprintID: sprintID,
		events:   events,
		spinner:  s,
		phaseIdx: make(map[string]int),
		status:   string(sprint.StatusActive),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.nextEvent())
}

func (m watchModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return streamDoneMsg{}
		}
		return eventMsg(e)
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			_ = m.orch.Cancel(m.sprintID)
			return m, nil
		case "q":
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(timeline.Event(msg))
		return m, m.nextEvent()

	case streamDoneMsg:
		m.done = true
		if snap, err := m.orch.Status(m.sprintID); err == nil {
			m.status = string(snap.Sprint.Status)
			if snap.Sprint.FailureReason != "" {
				m.status += " (" + snap.Sprint.FailureReason + ")"
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *watchModel) phase(name string) *phaseView {
	if i, ok := m.phaseIdx[name]; ok {
		return &m.phases[i]
	}
	m.phases = append(m.phases, phaseView{name: name, status: sprint.PhaseStatusPending})
	m.phaseIdx[name] = len(m.phases) - 1
	return &m.phases[len(m.phases)-1]
}

func (m *watchModel) apply(e timeline.Event) {
	switch e.Type {
	case timeline.TypeWorkflowStatus:
		if s, ok := e.Metadata["status"]; ok {
			m.status = s
		}
		if e.Message != "" && e.Metadata["status"] == string(sprint.StatusFailed) {
			m.lastErr = util.Summarize(e.Message, 120)
		}

	case timeline.TypePhaseStarted:
		ph := m.phase(e.Phase)
		ph.status = sprint.PhaseStatusInProgress
		ph.attempt = e.Attempt
		ph.candidates = nil
		ph.detail = ""

	case timeline.TypeCandidateStarted:
		ph := m.phase(e.Phase)
		ph.candidates = append(ph.candidates, candidateView{
			id:       e.CandidateID,
			provider: e.Provider,
			status:   sprint.CandidateStatusRunning,
		})

	case timeline.TypeCandidateGenerated:
		ph := m.phase(e.Phase)
		for i := range ph.candidates {
			if ph.candidates[i].id != e.CandidateID {
				continue
			}
			if e.Success != nil && *e.Success {
				ph.candidates[i].status = sprint.CandidateStatusCompleted
			} else {
				ph.candidates[i].status = sprint.CandidateStatusFailed
			}
			break
		}

	case timeline.TypeJudgeStarted:
		m.phase(e.Phase).detail = "judging..."

	case timeline.TypeJudgeDecided:
		ph := m.phase(e.Phase)
		ph.detail = ""
		for i := range ph.candidates {
			ph.candidates[i].winner = ph.candidates[i].id == e.CandidateID
		}

	case timeline.TypePhaseCompleted:
		m.phase(e.Phase).status = sprint.PhaseStatusCompleted

	case timeline.TypePhaseFailed:
		ph := m.phase(e.Phase)
		ph.status = sprint.PhaseStatusFailed
		ph.detail = util.Summarize(e.Message, 80)
	}
}

func (m watchModel) View() string {
	var b strings.Builder

	head := fmt.Sprintf("sprint %s: %s", m.sprintID, m.status)
	if !m.done {
		head = m.spinner.View() + " " + head
	}
	b.WriteString(titleStyle.Render(head))
	b.WriteString("\n\n")

	for _, ph := range m.phases {
		var mark string
		switch ph.status {
		case sprint.PhaseStatusCompleted:
			mark = doneStyle.Render("✓")
		case sprint.PhaseStatusFailed:
			mark = failStyle.Render("✗")
		case sprint.PhaseStatusInProgress:
			mark = m.spinner.View()
		default:
			mark = pendingStyle.Render("·")
		}

		line := fmt.Sprintf("%s %s", mark, ph.name)
		if ph.attempt > 1 {
			line += fmt.Sprintf(" (attempt %d)", ph.attempt)
		}
		b.WriteString(phaseStyle.Render(line))
		b.WriteString("\n")

		for _, c := range ph.candidates {
			var cs string
			switch c.status {
			case sprint.CandidateStatusCompleted:
				cs = doneStyle.Render("done")
			case sprint.CandidateStatusFailed:
				cs = failStyle.Render("failed")
			default:
				cs = "running"
			}
			entry := fmt.Sprintf("  %s %s", c.provider, cs)
			if c.winner {
				entry += " " + winnerStyle.Render("★ winner")
			}
			b.WriteString(phaseStyle.Render(entry))
			b.WriteString("\n")
		}
		if ph.detail != "" {
			b.WriteString(phaseStyle.Render("  " + pendingStyle.Render(ph.detail)))
			b.WriteString("\n")
		}
	}

	if m.lastErr != "" {
		b.WriteString("\n")
		b.WriteString(failStyle.Render(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("q: detach  ctrl+c: cancel sprint"))
	return b.String()
}
