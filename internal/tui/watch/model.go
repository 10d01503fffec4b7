package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/taskd/internal/events"
)

const (
	eventLogSize   = 50
	recentTasks    = 20
	healthInterval = 5 * time.Second
	reconnectDelay = 3 * time.Second
)

// Model is the BubbleTea model behind `taskd watch`.
type Model struct {
	client *Client

	width  int
	height int

	health      HealthState
	tracker     *Tracker
	eventLog    []events.Event
	lastEventID int64

	tasks   table.Model
	spinner spinner.Model
	pulse   Pulse
	theme   Theme

	stream    chan events.Event
	lastError string
	now       func() time.Time
}

// New creates a watch model reading from client.
func New(client *Client) Model {
	theme := NewDefaultTheme()
	tasks := table.New(
		table.WithColumns(taskColumns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	tasks.SetStyles(theme.tableStyles())

	return Model{
		client:  client,
		tracker: NewTracker(recentTasks),
		tasks:   tasks,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(theme.Highlight)),
		theme:   theme,
		stream:  make(chan events.Event, 100),
		now:     time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribe(m.client, 0, m.stream),
		receive(m.stream),
		fetchHealth(m.client),
		m.spinner.Tick,
		tick(),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if s := msg.String(); s == "q" || s == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.tasks, cmd = m.tasks.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.tasks.SetWidth(max(20, msg.Width-8))
		m.tasks.SetHeight(max(4, msg.Height-26))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.pulse.Decay(m.now())
		m.refreshRows()
		return m, tick()

	case eventMsg:
		m.applyEvent(events.Event(msg))
		return m, receive(m.stream)

	case healthMsg:
		// A shrinking uptime means the server restarted and its event ids
		// started over.
		if msg.UptimeSeconds < m.health.UptimeSeconds {
			m.lastEventID = 0
		}
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.Inflight = msg.Inflight
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, m.after(healthInterval, fetchHealth(m.client))

	case errMsg:
		m.lastError = msg.err.Error()
		return m, m.after(healthInterval, fetchHealth(m.client))

	case disconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.err != nil {
			m.lastError = fmt.Sprintf("event stream: %v, reconnecting...", msg.err)
		}
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, subscribe(m.client, m.lastEventID, m.stream)
	}

	return m, nil
}

func (m *Model) applyEvent(e events.Event) {
	if e.ID != 0 && e.ID <= m.lastEventID {
		return
	}
	if e.ID != 0 {
		m.lastEventID = e.ID
	}

	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > eventLogSize {
		m.eventLog = m.eventLog[:eventLogSize]
	}
	m.pulse.OnEvent(m.now())
	m.tracker.Apply(e)
	m.refreshRows()

	m.health.Connected = true
	m.lastError = ""
}

func (m *Model) refreshRows() {
	m.tasks.SetRows(m.tracker.tableRows(m.now()))
}

// after runs cmd once d has elapsed.
func (m Model) after(d time.Duration, cmd tea.Cmd) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return cmd() })
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to taskd..."
	}

	completed, failed := m.tracker.Counts()
	header := renderHeader(headerView{
		health:    m.health,
		spinner:   m.spinner.View(),
		pulse:     m.pulse,
		completed: completed,
		failed:    failed,
		now:       m.now(),
	}, m.theme, m.width)

	tasks := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render("TASKS"), m.tasks.View()),
	)

	parts := []string{header, tasks, renderEventStream(m.eventLog, m.theme, m.width)}
	if m.lastError != "" {
		parts = append(parts, m.theme.Failed.Render(" ! "+m.lastError))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] quit  [↑/↓] scroll tasks"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
