// Package host is the native side of the webview channel. The Dispatcher
// owns the open windows, applies the commands their pages post, forwards
// page messages to the script runtime and broadcasts script messages back
// to every page.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/bridge"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/protocol"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// ScriptSink receives page messages addressed to the script runtime.
// *bridge.Bridge satisfies it.
type ScriptSink interface {
	Send(payload string)
}

// EventKind classifies dispatcher events
type EventKind string

const (
	EventWindowOpened EventKind = "window_opened"
	EventWindowClosed EventKind = "window_closed"
	EventCommand      EventKind = "command"
	EventToScript     EventKind = "to_script"
	EventBroadcast    EventKind = "broadcast"
)

// Event describes something the dispatcher did. Err is set for commands
// that could not be applied.
type Event struct {
	Kind     EventKind
	WindowID types.ID
	Payload  string
	Err      error
}

// Dispatcher routes messages between windows and the script runtime
type Dispatcher struct {
	cfg     config.Config
	factory WindowFactory
	script  ScriptSink
	logger  *logger.Logger
	events  *listeners.Registry[Event]

	mu       sync.RWMutex
	ctx      context.Context
	windows  []*managedWindow
	started  bool
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
	stats    DispatcherStats
}

type managedWindow struct {
	win  Window
	link *bridge.Bridge
}

// DispatcherStats represents dispatcher statistics
type DispatcherStats struct {
	OpenWindows     int   `json:"open_windows"`
	WindowsOpened   int64 `json:"windows_opened"`
	WindowsClosed   int64 `json:"windows_closed"`
	Commands        int64 `json:"commands"`
	UnknownCommands int64 `json:"unknown_commands"`
	ScriptForwarded int64 `json:"script_forwarded"`
	Broadcasts      int64 `json:"broadcasts"`
}

// String returns a string representation of the stats
func (s DispatcherStats) String() string {
	return fmt.Sprintf("DispatcherStats{Open: %d, Opened: %d, Closed: %d, Commands: %d, Unknown: %d, ToScript: %d, Broadcasts: %d}",
		s.OpenWindows, s.WindowsOpened, s.WindowsClosed, s.Commands,
		s.UnknownCommands, s.ScriptForwarded, s.Broadcasts)
}

// NewDispatcher creates a dispatcher. script may be nil when no script
// runtime is attached; page messages for it are then dropped.
func NewDispatcher(cfg config.Config, factory WindowFactory, script ScriptSink, log *logger.Logger) (*Dispatcher, error) {
	if factory == nil {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "window factory cannot be nil")
	}
	if log == nil {
		log = logger.Global()
	}
	return &Dispatcher{
		cfg:     cfg,
		factory: factory,
		script:  script,
		logger:  log.With("component", "dispatcher"),
		events:  listeners.New[Event](),
		done:    make(chan struct{}),
	}, nil
}

// Start opens the first window with the configured defaults. Page links
// run until ctx is cancelled or their window closes.
func (d *Dispatcher) Start(ctx context.Context) (Window, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, types.NewError(types.ErrCodeUnavailable, "dispatcher is closed")
	}
	if d.started {
		d.mu.Unlock()
		return nil, types.NewError(types.ErrCodeInvalid, "dispatcher already started")
	}
	d.started = true
	d.ctx = ctx
	d.mu.Unlock()

	d.logger.Info("Dispatcher started",
		"default_url", d.cfg.Window.DefaultURL,
		"default_title", d.cfg.Window.DefaultTitle)
	return d.Open(WindowOptions{})
}

// SetWindowDefaults replaces the defaults used for new windows
func (d *Dispatcher) SetWindowDefaults(cfg config.WindowConfig) {
	d.mu.Lock()
	d.cfg.Window = cfg
	d.mu.Unlock()
}

// Open opens a window. Empty options fall back to the configured defaults.
func (d *Dispatcher) Open(opts WindowOptions) (Window, error) {
	d.mu.RLock()
	ctx := d.ctx
	cfg := d.cfg
	defaults := cfg.Window
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, types.NewError(types.ErrCodeUnavailable, "dispatcher is closed")
	}
	if ctx == nil {
		return nil, types.NewError(types.ErrCodeUnavailable, "dispatcher not started")
	}

	if opts.URL == "" {
		opts.URL = defaults.DefaultURL
	}
	if opts.Title == "" {
		opts.Title = defaults.DefaultTitle
	}
	if opts.Width <= 0 {
		opts.Width = defaults.Width
	}
	if opts.Height <= 0 {
		opts.Height = defaults.Height
	}

	win, t, err := d.factory(ctx, opts)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "failed to open window", err)
	}

	winLog := d.logger.With("window_id", win.ID().String())
	link := bridge.New(types.ChannelWebview, t, cfg, winLog)
	link.OnMessage(func(msg types.Message) {
		if err := d.Handle(win, msg.Payload); err != nil {
			winLog.Warn("Command dropped", "payload", msg.Payload, "error", err)
		}
	})

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		_ = link.Close()
		_ = win.Close()
		return nil, types.NewError(types.ErrCodeUnavailable, "dispatcher closed while opening window")
	}
	d.windows = append(d.windows, &managedWindow{win: win, link: link})
	d.stats.WindowsOpened++
	d.mu.Unlock()

	go func() {
		if err := link.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			winLog.Warn("Window link stopped", "error", err)
		}
	}()

	winLog.Info("Window opened", "url", opts.URL, "title", opts.Title)
	d.emit(Event{Kind: EventWindowOpened, WindowID: win.ID(), Payload: opts.URL})
	return win, nil
}

// OnEvent registers fn for dispatcher events. Listeners run synchronously
// on the goroutine that caused the event and must not block.
func (d *Dispatcher) OnEvent(fn func(Event)) listeners.Unsubscribe {
	return d.events.Register(fn)
}

func (d *Dispatcher) emit(e Event) {
	for _, err := range d.events.Emit(e) {
		d.logger.Error("Event listener failed", "kind", string(e.Kind), "error", err)
	}
}

// Handle applies a command posted by the page of w
func (d *Dispatcher) Handle(w Window, payload string) error {
	err := d.apply(w, payload)
	d.emit(Event{Kind: EventCommand, WindowID: w.ID(), Payload: payload, Err: err})
	return err
}

func (d *Dispatcher) apply(w Window, payload string) error {
	cmd, err := protocol.Decode(payload)
	if err != nil {
		d.mu.Lock()
		d.stats.UnknownCommands++
		d.mu.Unlock()
		return err
	}

	d.mu.Lock()
	d.stats.Commands++
	d.mu.Unlock()

	switch c := cmd.(type) {
	case protocol.Fullscreen:
		w.SetFullscreen(!w.IsFullscreen())
	case protocol.Minimize:
		w.Minimize()
	case protocol.Maximize:
		w.SetMaximized(!w.IsMaximized())
	case protocol.DragWindow:
		if err := w.DragWindow(); err != nil {
			return types.WrapError(types.ErrCodeUnavailable, "failed to drag window", err)
		}
	case protocol.Close:
		return d.CloseWindow(w.ID())
	case protocol.CreateWindow:
		opts := WindowOptions{URL: c.URL, Title: c.Title}
		if opts.URL == "" {
			opts.URL = w.URL()
		}
		if opts.Title == "" {
			opts.Title = w.Title()
		}
		if _, err := d.Open(opts); err != nil {
			return err
		}
	case protocol.ScriptMessage:
		d.forwardToScript(w, c.Payload)
	}
	return nil
}

func (d *Dispatcher) forwardToScript(w Window, payload string) {
	if d.script == nil {
		d.logger.Warn("No script runtime attached, dropping page message")
		return
	}
	d.script.Send(payload)
	d.mu.Lock()
	d.stats.ScriptForwarded++
	d.mu.Unlock()
	d.emit(Event{Kind: EventToScript, WindowID: w.ID(), Payload: payload})
}

// Broadcast delivers payload to the page of every open window
func (d *Dispatcher) Broadcast(payload string) {
	for _, w := range d.Windows() {
		w.Deliver(payload)
	}
	d.mu.Lock()
	d.stats.Broadcasts++
	d.mu.Unlock()
	d.emit(Event{Kind: EventBroadcast, Payload: payload})
}

// HandleScriptMessage broadcasts a message from the script runtime. It is
// meant to be registered with the ipc bridge's OnMessage.
func (d *Dispatcher) HandleScriptMessage(msg types.Message) {
	d.Broadcast(msg.Payload)
}

// CloseWindow closes the window with id. Closing the last window closes Done.
func (d *Dispatcher) CloseWindow(id types.ID) error {
	d.mu.Lock()
	idx := -1
	for i, mw := range d.windows {
		if mw.win.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return types.NewError(types.ErrCodeNotFound, "window not found: "+id.String())
	}
	mw := d.windows[idx]
	d.windows = append(d.windows[:idx:idx], d.windows[idx+1:]...)
	d.stats.WindowsClosed++
	remaining := len(d.windows)
	d.mu.Unlock()

	d.closeWindow(mw)
	d.logger.Info("Window closed", "window_id", id.String(), "remaining", remaining)
	d.emit(Event{Kind: EventWindowClosed, WindowID: id})

	if remaining == 0 {
		d.doneOnce.Do(func() { close(d.done) })
	}
	return nil
}

func (d *Dispatcher) closeWindow(mw *managedWindow) {
	if err := mw.link.Close(); err != nil {
		d.logger.Warn("Failed to close window link", "window_id", mw.win.ID().String(), "error", err)
	}
	if err := mw.win.Close(); err != nil {
		d.logger.Warn("Failed to close window", "window_id", mw.win.ID().String(), "error", err)
	}
}

// Window returns the open window with id
func (d *Dispatcher) Window(id types.ID) (Window, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, mw := range d.windows {
		if mw.win.ID() == id {
			return mw.win, true
		}
	}
	return nil, false
}

// Windows returns the open windows in the order they were opened
func (d *Dispatcher) Windows() []Window {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Window, len(d.windows))
	for i, mw := range d.windows {
		out[i] = mw.win
	}
	return out
}

// Done is closed once the last window has closed or the dispatcher is closed
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Stats returns dispatcher statistics
func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stats := d.stats
	stats.OpenWindows = len(d.windows)
	return stats
}

// Close closes every window
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	windows := d.windows
	d.windows = nil
	d.stats.WindowsClosed += int64(len(windows))
	d.mu.Unlock()

	for _, mw := range windows {
		d.closeWindow(mw)
	}
	d.doneOnce.Do(func() { close(d.done) })

	d.logger.Info("Dispatcher closed", "stats", d.Stats().String())
	return nil
}
