// Package tui is a terminal console standing in for the native window
// shell. It lists the host's windows, logs the messages the dispatcher
// relays and lets the operator drive a page by hand.
package tui

import (
	"time"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/tui/components"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/billm/baaaht/webbridge/pkg/window"
	tea "github.com/charmbracelet/bubbletea"
)

// Host is the part of the dispatcher the console drives.
// *host.Dispatcher satisfies it.
type Host interface {
	Windows() []host.Window
	Open(opts host.WindowOptions) (host.Window, error)
	Broadcast(payload string)
	OnEvent(fn func(host.Event)) listeners.Unsubscribe
	Done() <-chan struct{}
	Stats() host.DispatcherStats
}

// pageWindow is a window whose page the console can drive
type pageWindow interface {
	Page() *window.Controller
}

type stateWindow interface {
	State() host.WindowState
}

// Model represents the console state.
// It implements the tea.Model interface following the Elm architecture.
type Model struct {
	host      Host
	feed      *Feed
	dragClass string
	version   string
	logger    *logger.Logger

	quitting bool
	err      error

	status  components.StatusModel
	log     components.LogModel
	input   components.InputModel
	windows components.WindowsModel
	traffic components.TrafficModel

	width  int
	height int

	keys KeyMap
}

// NewModel creates a console for h
func NewModel(h Host, cfg config.Config, version string, log *logger.Logger) Model {
	if log == nil {
		log = logger.NewNop()
	}
	dragClass := cfg.Window.DragRegionClass
	if dragClass == "" {
		dragClass = config.DefaultDragRegionClass
	}

	if h == nil {
		return Model{
			version: version,
			logger:  log,
			err:     types.NewError(types.ErrCodeInvalidArgument, "console needs a running host"),
			keys:    DefaultKeyMap(),
		}
	}

	m := Model{
		host:      h,
		feed:      NewFeed(h, 256),
		dragClass: dragClass,
		version:   version,
		logger:    log.With("component", "console"),
		status:    components.NewStatusModel(string(cfg.Transport.Kind)),
		log:       components.NewLogModel(1000),
		input:     components.NewInputModel(CommandNames()),
		windows:   components.NewWindowsModel(),
		traffic:   components.NewTrafficModel(time.Minute),
		keys:      DefaultKeyMap(),
	}
	m.status.SetRunning(true)
	m.refreshWindows()
	return m
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	if m.err != nil {
		return nil
	}
	return tea.Batch(m.input.Init(), m.waitForEventCmd(), m.waitForDoneCmd())
}

// EventMsg carries a dispatcher event
type EventMsg struct {
	Event host.Event
}

// FeedClosedMsg is sent once the event feed is closed
type FeedClosedMsg struct{}

// HostDoneMsg is sent when the last window has closed
type HostDoneMsg struct{}

// waitForEventCmd returns a command that waits for the next dispatcher event.
func (m Model) waitForEventCmd() tea.Cmd {
	events := m.feed.Events()
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return FeedClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

func (m Model) waitForDoneCmd() tea.Cmd {
	done := m.host.Done()
	return func() tea.Msg {
		<-done
		return HostDoneMsg{}
	}
}

// refreshWindows reloads the window list and the status bar
func (m *Model) refreshWindows() {
	wins := m.host.Windows()
	items := make([]components.WindowItem, 0, len(wins))
	for _, w := range wins {
		item := components.WindowItem{
			ID:         w.ID().String(),
			WindowName: w.Title(),
			URL:        w.URL(),
			Fullscreen: w.IsFullscreen(),
			Maximized:  w.IsMaximized(),
		}
		if sw, ok := w.(stateWindow); ok {
			st := sw.State()
			item.Minimized = st.Minimized
			item.Drags = st.Drags
		}
		items = append(items, item)
	}
	m.windows.SetItems(items)

	selected := ""
	if cur, ok := m.windows.Selected(); ok {
		selected = cur.ID
	}
	m.status.SetWindows(len(items), selected)
}

// selectedWindow returns the open window highlighted in the list
func (m Model) selectedWindow() (host.Window, bool) {
	cur, ok := m.windows.Selected()
	if !ok {
		return nil, false
	}
	for _, w := range m.host.Windows() {
		if w.ID().String() == cur.ID {
			return w, true
		}
	}
	return nil, false
}

// Close releases the event feed
func (m Model) Close() {
	if m.feed != nil {
		m.feed.Close()
	}
}
