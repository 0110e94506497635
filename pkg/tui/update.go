package tui

import (
	"fmt"
	"time"

	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/tui/components"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/billm/baaaht/webbridge/pkg/window"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and updates the model state.
// Part of the tea.Model interface.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, tea.Quit
	}
	if m.err != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
		if size, ok := msg.(tea.WindowSizeMsg); ok {
			m.width = size.Width
		}
		return m, nil
	}

	// Global keys are handled before the components see them
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if m.keys.IsQuitKey(keyMsg) {
			return m.quit()
		}
		switch keyMsg.String() {
		case m.keys.Submit:
			return m.submit()
		case m.keys.ListWindows:
			wm, _ := m.windows.Update(components.WindowsToggleMsg{})
			m.windows = wm.(components.WindowsModel)
			return m, nil
		case m.keys.NextWindow:
			m.windows.Select(m.selectedIndex() + 1)
			m.refreshWindows()
			return m, nil
		case m.keys.PrevWindow:
			m.windows.Select(m.selectedIndex() - 1)
			m.refreshWindows()
			return m, nil
		case m.keys.ClearLog:
			m.log.Clear()
			return m, nil
		case m.keys.Traffic:
			tm, _ := m.traffic.Update(components.TrafficToggleMsg{})
			m.traffic = tm.(components.TrafficModel)
			return m, nil
		case m.keys.Cancel:
			if m.windows.IsVisible() {
				wm, _ := m.windows.Update(components.WindowsToggleMsg{})
				m.windows = wm.(components.WindowsModel)
			}
			return m, nil
		case m.keys.ScrollUp:
			return m.scroll(components.ScrollUp)
		case m.keys.ScrollDown:
			return m.scroll(components.ScrollDown)
		case m.keys.ScrollTop:
			return m.scroll(components.ScrollTop)
		case m.keys.ScrollBottom:
			return m.scroll(components.ScrollBottom)
		}

		im, cmd := m.input.Update(msg)
		m.input = im.(components.InputModel)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case EventMsg:
		switch msg.Event.Kind {
		case host.EventCommand, host.EventToScript, host.EventBroadcast:
			m.traffic.Record(time.Now())
		}
		m.logEvent(msg.Event)
		m.refreshWindows()
		return m, m.waitForEventCmd()

	case FeedClosedMsg:
		return m, nil

	case HostDoneMsg:
		m.status.SetRunning(false)
		m.log.Append(components.Entry{Kind: components.EntrySystem, Content: "all windows closed"})
		return m.quit()
	}

	var cmds []tea.Cmd
	im, cmd := m.input.Update(msg)
	m.input = im.(components.InputModel)
	cmds = append(cmds, cmd)
	lm, cmd := m.log.Update(msg)
	m.log = lm.(components.LogModel)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Close()
	return m, tea.Quit
}

func (m Model) scroll(dir components.ScrollDirection) (tea.Model, tea.Cmd) {
	lm, _ := m.log.Update(components.LogScrollMsg{Direction: dir})
	m.log = lm.(components.LogModel)
	return m, nil
}

func (m Model) selectedIndex() int {
	cur, ok := m.windows.Selected()
	if !ok {
		return 0
	}
	for i, item := range m.windows.Items() {
		if item.ID == cur.ID {
			return i
		}
	}
	return 0
}

// submit runs the typed line
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := m.input.Submit()
	if line == "" {
		return m, nil
	}
	action, err := ParseAction(line)
	if err == nil {
		err = m.apply(action)
	}
	if err != nil {
		m.input.SetError(err)
		m.log.Append(components.Entry{Kind: components.EntryError, Content: err.Error()})
		m.logger.Debug("Console command failed", "line", line, "error", err)
	}
	m.refreshWindows()
	return m, nil
}

// apply performs an action against the selected window's page. Commands go
// through the page so they reach the host the same way a real page's do.
func (m *Model) apply(a Action) error {
	switch a.Kind {
	case ActionHelp:
		m.log.Append(components.Entry{Kind: components.EntrySystem, Content: HelpText()})
		return nil
	case ActionClear:
		m.log.Clear()
		return nil
	case ActionStats:
		m.log.Append(components.Entry{Kind: components.EntrySystem, Content: m.host.Stats().String()})
		return nil
	case ActionBroadcast:
		m.host.Broadcast(a.Text)
		return nil
	}

	page, id, err := m.selectedPage()
	if err != nil {
		return err
	}
	region := window.NewElement(m.dragClass)

	switch a.Kind {
	case ActionFullscreen:
		page.Fullscreen()
	case ActionMinimize:
		page.Minimize()
	case ActionMaximize:
		page.Maximize()
	case ActionClose:
		page.Close()
	case ActionDrag:
		if page.HandlePointerDown(window.PointerEvent{Buttons: 1, Detail: 1, Target: region}) == nil {
			return types.NewError(types.ErrCodeInvalid, "pointer press ignored")
		}
	case ActionDoubleClick:
		if page.HandlePointerDown(window.PointerEvent{Buttons: 1, Detail: 2, Target: region}) == nil {
			return types.NewError(types.ErrCodeInvalid, "double-click ignored")
		}
	case ActionTouch:
		if page.HandleTouchStart(window.TouchEvent{Target: region}) == nil {
			m.log.Append(components.Entry{Kind: components.EntrySystem, Source: components.ShortID(id),
				Content: "touch ignored while fullscreen"})
		}
	case ActionOpen:
		var url, title string
		if len(a.Args) > 0 {
			url = a.Args[0]
		}
		if len(a.Args) > 1 {
			title = a.Args[1]
		}
		page.Create(url, title)
	case ActionScript:
		page.SendToScript(a.Text)
	default:
		return types.NewError(types.ErrCodeInvalidArgument, fmt.Sprintf("unsupported command: %s", a.Kind))
	}
	return nil
}

func (m Model) selectedPage() (*window.Controller, string, error) {
	w, ok := m.selectedWindow()
	if !ok {
		return nil, "", types.NewError(types.ErrCodeNotFound, "no window selected")
	}
	pw, ok := w.(pageWindow)
	if !ok {
		return nil, "", types.NewError(types.ErrCodeUnavailable, "window has no page to drive")
	}
	return pw.Page(), w.ID().String(), nil
}

// logEvent appends a dispatcher event to the log
func (m *Model) logEvent(e host.Event) {
	source := components.ShortID(e.WindowID.String())
	entry := components.Entry{Source: source, Content: e.Payload}

	switch e.Kind {
	case host.EventWindowOpened:
		entry.Kind = components.EntryHost
		entry.Content = "opened " + e.Payload
	case host.EventWindowClosed:
		entry.Kind = components.EntryHost
		entry.Content = "closed"
	case host.EventCommand:
		entry.Kind = components.EntryPage
		if e.Err != nil {
			entry.Kind = components.EntryError
			entry.Content = fmt.Sprintf("%s: %v", e.Payload, e.Err)
		}
	case host.EventToScript:
		entry.Kind = components.EntryScript
		entry.Content = "→ " + e.Payload
	case host.EventBroadcast:
		entry.Kind = components.EntryScript
		entry.Source = "all"
		entry.Content = "← " + e.Payload
	default:
		entry.Kind = components.EntrySystem
	}
	m.log.Append(entry)
}

// handleWindowSize handles terminal resize events.
func (m Model) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Layout: header(1)+nl(1) + status(3)+nl(1) + log + input(3)+nl(1) + footer(1)
	contentHeight := m.height - 11
	if contentHeight < 5 {
		contentHeight = 5
	}

	// bordered components need width - 2
	widthBordered := m.width - 2
	if widthBordered < 1 {
		widthBordered = 1
	}

	sm, _ := m.status.Update(tea.WindowSizeMsg{Width: widthBordered})
	m.status = sm.(components.StatusModel)

	lm, _ := m.log.Update(tea.WindowSizeMsg{Width: widthBordered, Height: contentHeight})
	m.log = lm.(components.LogModel)

	wm, _ := m.windows.Update(tea.WindowSizeMsg{Width: widthBordered, Height: contentHeight})
	m.windows = wm.(components.WindowsModel)

	tm, _ := m.traffic.Update(tea.WindowSizeMsg{Width: m.width, Height: contentHeight})
	m.traffic = tm.(components.TrafficModel)

	im, _ := m.input.Update(tea.WindowSizeMsg{Width: widthBordered, Height: 1})
	m.input = im.(components.InputModel)

	return m, nil
}
