package components

import (
	"strings"

	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const inputPlaceholder = "Message for the script, or /help"

// InputModel is the operator's command line: a textinput with history
// recall on ctrl+up/ctrl+down and tab completion of slash commands.
type InputModel struct {
	textInput textinput.Model
	width     int
	err       error
	history   []string
	cursor    int
}

// NewInputModel creates a focused input that completes the given
// commands, each written with its leading slash.
func NewInputModel(commands []string) InputModel {
	ti := textinput.New()
	ti.Placeholder = inputPlaceholder
	ti.Prompt = "> "
	ti.ShowSuggestions = len(commands) > 0
	ti.SetSuggestions(commands)
	ti.Focus()
	return InputModel{textInput: ti}
}

func (m InputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m InputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.textInput.Width = max(m.width-4, 1)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+up":
			m.recall(-1)
			return m, nil
		case "ctrl+down":
			m.recall(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m InputModel) View() string {
	if m.width <= 0 {
		return ""
	}
	field := styles.Styles.AppBorder.Width(m.width).Render(m.textInput.View())
	if m.err == nil {
		return field
	}
	return styles.Styles.InputError.Render("⚠ "+m.err.Error()) + "\n" + field
}

// Submit returns the trimmed line, records it in the history and clears
// the field and any error. Empty input returns "".
func (m *InputModel) Submit() string {
	text := strings.TrimSpace(m.textInput.Value())
	m.textInput.Reset()
	m.err = nil
	if text == "" {
		return ""
	}
	m.history = append(m.history, text)
	m.cursor = len(m.history)
	return text
}

// History returns submitted lines, oldest first
func (m InputModel) History() []string {
	return append([]string(nil), m.history...)
}

func (m *InputModel) recall(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.cursor += delta
	switch {
	case m.cursor < 0:
		m.cursor = 0
	case m.cursor >= len(m.history):
		m.cursor = len(m.history)
		m.textInput.Reset()
		return
	}
	m.textInput.SetValue(m.history[m.cursor])
	m.textInput.CursorEnd()
}

// SetValue replaces the text in the field
func (m *InputModel) SetValue(value string) {
	m.textInput.SetValue(value)
}

// Value returns the text in the field
func (m InputModel) Value() string {
	return m.textInput.Value()
}

// SetError shows err above the field until the next submit
func (m *InputModel) SetError(err error) {
	m.err = err
}

func (m InputModel) Error() error {
	return m.err
}
