package components

import (
	"fmt"
	"strings"

	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	tea "github.com/charmbracelet/bubbletea"
)

// StatusModel represents the state of the status bar component.
// It displays the host state, the open window count, the selected window
// and any active error.
type StatusModel struct {
	running   bool
	windows   int
	selected  string
	transport string
	error     error
	width     int
}

// NewStatusModel creates a new status bar model.
func NewStatusModel(transport string) StatusModel {
	return StatusModel{transport: transport}
}

// Init initializes the status bar model.
func (m StatusModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the status bar.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StatusRunningMsg:
		m.running = msg.Running
		if msg.Running {
			m.error = nil
		}
		return m, nil

	case StatusWindowsMsg:
		m.windows = msg.Count
		m.selected = msg.Selected
		return m, nil

	case StatusErrorMsg:
		m.error = msg.Err
		return m, nil
	}

	return m, nil
}

// View renders the status bar.
func (m StatusModel) View() string {
	if m.width <= 0 {
		return ""
	}

	sections := []string{
		styles.StatusStyle(m.running, m.error).Render(m.stateText()),
		styles.Styles.StatusInfo.Render(fmt.Sprintf("Windows: %d", m.windows)),
	}

	if m.selected != "" {
		sections = append(sections, styles.Styles.Normal.Render("Selected: "+ShortID(m.selected)))
	}
	if m.transport != "" {
		sections = append(sections, styles.Styles.Muted.Render("Transport: "+m.transport))
	}

	if m.error != nil {
		errorText := strings.TrimSpace(m.error.Error())
		if len(errorText) > 40 {
			errorText = errorText[:37] + "..."
		}
		sections = append(sections, styles.Styles.StatusError.Render("⚠ "+errorText))
	}

	bar := strings.Join(sections, styles.Styles.HelpSeparator.Render(" • "))
	return styles.Styles.StatusBorder.
		Width(m.width).
		Render(bar)
}

func (m StatusModel) stateText() string {
	switch {
	case m.error != nil:
		return "✕ Error"
	case m.running:
		return "✓ Running"
	default:
		return "✕ Stopped"
	}
}

// SetRunning sets the host state.
func (m *StatusModel) SetRunning(running bool) {
	m.running = running
	if running {
		m.error = nil
	}
}

// SetWindows sets the window count and the selected window ID.
func (m *StatusModel) SetWindows(count int, selected string) {
	m.windows = count
	m.selected = selected
}

// SetError sets the current error.
func (m *StatusModel) SetError(err error) {
	m.error = err
}

// IsRunning reports the host state.
func (m StatusModel) IsRunning() bool {
	return m.running
}

// WindowCount returns the displayed window count.
func (m StatusModel) WindowCount() int {
	return m.windows
}

// GetError returns the current error.
func (m StatusModel) GetError() error {
	return m.error
}

// StatusRunningMsg is sent when the host starts or stops.
type StatusRunningMsg struct {
	Running bool
}

// StatusWindowsMsg is sent when the window set or selection changes.
type StatusWindowsMsg struct {
	Count    int
	Selected string
}

// StatusErrorMsg is sent when an error occurs.
type StatusErrorMsg struct {
	Err error
}

// StatusErrorCmd returns a command that sends a StatusErrorMsg.
func StatusErrorCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return StatusErrorMsg{Err: err}
	}
}
