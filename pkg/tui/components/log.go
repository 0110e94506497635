package components

import (
	"strings"

	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// EntryKind identifies who produced a log entry.
type EntryKind string

const (
	EntryPage   EntryKind = "page"
	EntryHost   EntryKind = "host"
	EntryScript EntryKind = "script"
	EntrySystem EntryKind = "system"
	EntryError  EntryKind = "error"
)

// Entry is a single line of the message log.
type Entry struct {
	Kind    EntryKind
	Source  string
	Content string
}

// LogModel shows relayed messages in a scrolling viewport.
type LogModel struct {
	viewport   viewport.Model
	entries    []Entry
	maxEntries int
	width      int
	height     int
	autoscroll bool
}

// NewLogModel creates an empty log keeping at most maxEntries entries.
func NewLogModel(maxEntries int) LogModel {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return LogModel{
		viewport:   viewport.New(0, 0),
		maxEntries: maxEntries,
		autoscroll: true,
	}
}

// Init initializes the log model.
func (m LogModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the log component.
func (m LogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.width
		m.viewport.Height = m.height
		m.viewport.SetContent(m.render())
		return m, nil

	case LogAppendMsg:
		m.Append(msg.Entry)
		return m, nil

	case LogClearMsg:
		m.Clear()
		return m, nil

	case LogScrollMsg:
		switch msg.Direction {
		case ScrollUp:
			m.viewport.LineUp(1)
		case ScrollDown:
			m.viewport.LineDown(1)
		case ScrollTop:
			m.viewport.GotoTop()
		case ScrollBottom:
			m.viewport.GotoBottom()
		}
		m.autoscroll = m.viewport.AtBottom()
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the log component.
func (m LogModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	if len(m.entries) == 0 {
		placeholder := styles.Styles.Muted.Render("No messages yet.")
		return styles.Styles.LogBorder.
			Width(m.width).
			Height(m.height).
			Render(placeholder)
	}

	return styles.Styles.LogBorder.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m LogModel) render() string {
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		lines = append(lines, renderEntry(e))
	}
	return strings.Join(lines, "\n")
}

func renderEntry(e Entry) string {
	style := styles.EntryStyle(string(e.Kind))
	prefix := string(e.Kind)
	if e.Source != "" {
		prefix += " " + e.Source
	}
	return style.Render(prefix+":") + " " + strings.TrimSpace(e.Content)
}

// Append adds an entry, dropping the oldest beyond the limit.
func (m *LogModel) Append(e Entry) {
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.maxEntries; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
	}
	m.viewport.SetContent(m.render())
	if m.autoscroll {
		m.viewport.GotoBottom()
	}
}

// Clear removes all entries.
func (m *LogModel) Clear() {
	m.entries = nil
	m.viewport.SetContent("")
}

// Entries returns the current entries.
func (m LogModel) Entries() []Entry {
	return m.entries
}

// ScrollDirection is a log scroll request.
type ScrollDirection int

const (
	ScrollUp ScrollDirection = iota
	ScrollDown
	ScrollTop
	ScrollBottom
)

// LogAppendMsg appends an entry to the log.
type LogAppendMsg struct {
	Entry Entry
}

// LogClearMsg clears the log.
type LogClearMsg struct{}

// LogScrollMsg scrolls the log.
type LogScrollMsg struct {
	Direction ScrollDirection
}

// LogAppendCmd returns a command that sends a LogAppendMsg.
func LogAppendCmd(kind EntryKind, source, content string) tea.Cmd {
	return func() tea.Msg {
		return LogAppendMsg{Entry: Entry{Kind: kind, Source: source, Content: content}}
	}
}
