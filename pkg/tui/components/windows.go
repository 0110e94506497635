package components

import (
	"fmt"
	"strings"

	"github.com/billm/baaaht/webbridge/pkg/tui/styles"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// WindowItem is one open window in the list.
// It implements the list.Item interface from bubbles/list.
type WindowItem struct {
	ID         string
	WindowName string
	URL        string
	Fullscreen bool
	Maximized  bool
	Minimized  bool
	Drags      int
}

// Title returns the display title for the window item.
func (w WindowItem) Title() string {
	return w.WindowName + " (" + ShortID(w.ID) + ")"
}

// Description returns the window URL and state flags.
func (w WindowItem) Description() string {
	parts := []string{w.URL}
	if w.Fullscreen {
		parts = append(parts, "fullscreen")
	}
	if w.Maximized {
		parts = append(parts, "maximized")
	}
	if w.Minimized {
		parts = append(parts, "minimized")
	}
	if w.Drags > 0 {
		parts = append(parts, fmt.Sprintf("dragged %d", w.Drags))
	}
	return strings.Join(parts, " • ")
}

// FilterValue returns the value to use for filtering.
func (w WindowItem) FilterValue() string {
	return w.ID + " " + w.WindowName
}

// ShortID shortens an ID for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// WindowsModel lists open windows and tracks the selected one. The
// selection is kept while the list is hidden.
type WindowsModel struct {
	list     list.Model
	visible  bool
	width    int
	height   int
	items    []WindowItem
	selected int
}

// NewWindowsModel creates an empty, hidden window list.
func NewWindowsModel() WindowsModel {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = styles.Styles.WindowSelected
	delegate.Styles.SelectedDesc = styles.Styles.WindowSelected.Foreground(lipgloss.Color("251"))
	delegate.Styles.NormalTitle = styles.Styles.WindowNormal
	delegate.Styles.NormalDesc = styles.Styles.WindowNormal.Faint(true)
	delegate.ShowDescription = true
	delegate.SetSpacing(1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Title = "Windows"
	l.Styles.Title = styles.Styles.HeaderText

	return WindowsModel{list: l}
}

// Init initializes the windows model.
func (m WindowsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the windows component.
func (m WindowsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 0 && m.height > 0 {
			m.list.SetWidth(m.width)
			m.list.SetHeight(m.height)
		}
		return m, nil

	case WindowsToggleMsg:
		m.visible = !m.visible
		return m, nil

	case WindowsSetItemsMsg:
		m.SetItems(msg.Items)
		return m, nil

	case WindowsSelectNextMsg:
		m.Select(m.selected + 1)
		return m, nil

	case WindowsSelectPrevMsg:
		m.Select(m.selected - 1)
		return m, nil
	}

	return m, nil
}

// View renders the windows component.
func (m WindowsModel) View() string {
	if !m.visible || m.width <= 0 || m.height <= 0 {
		return ""
	}

	if len(m.items) == 0 {
		return styles.Styles.WindowsBorder.
			Width(m.width).
			Height(m.height).
			Render(styles.Styles.Muted.Render("No open windows."))
	}

	return styles.Styles.WindowsBorder.
		Width(m.width).
		Height(m.height).
		Render(m.list.View())
}

// SetItems replaces the list, keeping the selected window when it is still open.
func (m *WindowsModel) SetItems(items []WindowItem) {
	var selectedID string
	if cur, ok := m.Selected(); ok {
		selectedID = cur.ID
	}

	m.items = items
	listItems := make([]list.Item, len(items))
	m.selected = 0
	for i, item := range items {
		listItems[i] = item
		if item.ID == selectedID {
			m.selected = i
		}
	}
	m.list.SetItems(listItems)
	m.list.Select(m.selected)
}

// Select moves the selection to index i, wrapping around.
func (m *WindowsModel) Select(i int) {
	if len(m.items) == 0 {
		m.selected = 0
		return
	}
	n := len(m.items)
	m.selected = ((i % n) + n) % n
	m.list.Select(m.selected)
}

// Selected returns the selected window.
func (m WindowsModel) Selected() (WindowItem, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return WindowItem{}, false
	}
	return m.items[m.selected], true
}

// Items returns the listed windows.
func (m WindowsModel) Items() []WindowItem {
	return m.items
}

// IsVisible reports whether the list is shown.
func (m WindowsModel) IsVisible() bool {
	return m.visible
}

// WindowsToggleMsg shows or hides the list.
type WindowsToggleMsg struct{}

// WindowsSetItemsMsg replaces the listed windows.
type WindowsSetItemsMsg struct {
	Items []WindowItem
}

// WindowsSelectNextMsg selects the next window.
type WindowsSelectNextMsg struct{}

// WindowsSelectPrevMsg selects the previous window.
type WindowsSelectPrevMsg struct{}
