package host

import (
	"context"
	"sync"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/bridge"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/billm/baaaht/webbridge/pkg/window"
)

// Window is a native window hosting one page
type Window interface {
	ID() types.ID
	URL() string
	Title() string
	IsFullscreen() bool
	SetFullscreen(on bool)
	Minimize()
	IsMaximized() bool
	SetMaximized(on bool)
	DragWindow() error
	// Deliver hands a script message to the page
	Deliver(payload string)
	Close() error
}

// WindowOptions describes a window to open
type WindowOptions struct {
	URL    string
	Title  string
	Width  int
	Height int
}

// WindowFactory opens a window and returns it together with the host end
// of its page transport
type WindowFactory func(ctx context.Context, opts WindowOptions) (Window, transport.Transport, error)

// WindowState is a snapshot of a window
type WindowState struct {
	ID         types.ID `json:"id"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Fullscreen bool     `json:"fullscreen"`
	Maximized  bool     `json:"maximized"`
	Minimized  bool     `json:"minimized"`
	Drags      int      `json:"drags"`
	Closed     bool     `json:"closed"`
}

// VirtualWindow is an in-memory Window. Its page is a window.Controller
// connected to the host over an in-process pipe.
type VirtualWindow struct {
	mu    sync.RWMutex
	state WindowState

	page     *window.Controller
	pageLink *bridge.Bridge
	cancel   context.CancelFunc
}

// NewVirtualFactory returns a WindowFactory producing VirtualWindows
func NewVirtualFactory(cfg config.Config, log *logger.Logger) WindowFactory {
	if log == nil {
		log = logger.Global()
	}
	return func(ctx context.Context, opts WindowOptions) (Window, transport.Transport, error) {
		hostEnd, pageEnd := transport.NewPipe(cfg.Sender.QueueSize)

		id := types.GenerateID()
		pageLog := log.With("window_id", id.String())
		link := bridge.New(types.ChannelWebview, pageEnd, cfg, pageLog)

		w := &VirtualWindow{
			state: WindowState{
				ID:     id,
				URL:    opts.URL,
				Title:  opts.Title,
				Width:  opts.Width,
				Height: opts.Height,
			},
			page:     window.NewController(link, cfg.Window, pageLog),
			pageLink: link,
		}

		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		w.cancel = cancel
		go func() {
			if err := link.Run(runCtx); err != nil && runCtx.Err() == nil {
				pageLog.Warn("Page link stopped", "error", err)
			}
		}()
		return w, hostEnd, nil
	}
}

// Page returns the page-side controller
func (w *VirtualWindow) Page() *window.Controller {
	return w.page
}

// ID returns the window ID
func (w *VirtualWindow) ID() types.ID {
	return w.state.ID
}

// URL returns the page URL
func (w *VirtualWindow) URL() string {
	return w.state.URL
}

// Title returns the window title
func (w *VirtualWindow) Title() string {
	return w.state.Title
}

// State returns a snapshot of the window
func (w *VirtualWindow) State() WindowState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *VirtualWindow) IsFullscreen() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.Fullscreen
}

func (w *VirtualWindow) SetFullscreen(on bool) {
	w.mu.Lock()
	w.state.Fullscreen = on
	w.mu.Unlock()
}

func (w *VirtualWindow) Minimize() {
	w.mu.Lock()
	w.state.Minimized = true
	w.mu.Unlock()
}

func (w *VirtualWindow) IsMaximized() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state.Maximized
}

func (w *VirtualWindow) SetMaximized(on bool) {
	w.mu.Lock()
	w.state.Maximized = on
	w.mu.Unlock()
}

// DragWindow records a drag. A closed window cannot be dragged.
func (w *VirtualWindow) DragWindow() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Closed {
		return types.NewError(types.ErrCodeUnavailable, "window is closed")
	}
	w.state.Drags++
	return nil
}

// Deliver triggers the page's message listeners
func (w *VirtualWindow) Deliver(payload string) {
	w.page.TriggerMessage(payload)
}

// Close shuts the page link down
func (w *VirtualWindow) Close() error {
	w.mu.Lock()
	if w.state.Closed {
		w.mu.Unlock()
		return nil
	}
	w.state.Closed = true
	w.mu.Unlock()

	err := w.pageLink.Close()
	w.cancel()
	return err
}
