// Package window is the page-side control surface of a host window. It
// turns window operations into command strings posted to the host and
// delivers host messages to page listeners.
package window

import (
	"sync"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/protocol"
)

// Poster posts a payload to the host without waiting for it to be handled.
// *bridge.Bridge satisfies it.
type Poster interface {
	Send(payload string)
}

// Controller issues window commands for one page. The fullscreen flag is
// tracked locally and flipped on every Fullscreen call; the host never
// confirms it, so a fullscreen exit initiated by the host is not seen here.
type Controller struct {
	poster    Poster
	dragClass string
	logger    *logger.Logger

	mu         sync.RWMutex
	fullscreen bool

	fullscreenListeners *listeners.Registry[bool]
	messageListeners    *listeners.Registry[string]
}

// NewController creates a controller posting through p
func NewController(p Poster, cfg config.WindowConfig, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Global()
	}
	dragClass := cfg.DragRegionClass
	if dragClass == "" {
		dragClass = config.DefaultDragRegionClass
	}
	return &Controller{
		poster:              p,
		dragClass:           dragClass,
		logger:              log.With("component", "window"),
		fullscreenListeners: listeners.New[bool](),
		messageListeners:    listeners.New[string](),
	}
}

// Create asks the host to open a new window
func (c *Controller) Create(url, title string) {
	c.post(protocol.CreateWindow{URL: url, Title: title})
}

// Fullscreen flips the local fullscreen flag, asks the host to toggle
// fullscreen and notifies OnFullscreen listeners with the new value
func (c *Controller) Fullscreen() {
	c.mu.Lock()
	c.fullscreen = !c.fullscreen
	state := c.fullscreen
	c.mu.Unlock()

	c.post(protocol.Fullscreen{})
	for _, err := range c.fullscreenListeners.Emit(state) {
		c.logger.Error("Fullscreen listener failed", "error", err)
	}
}

// IsFullscreen returns the local fullscreen flag
func (c *Controller) IsFullscreen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullscreen
}

// Minimize asks the host to minimize the window
func (c *Controller) Minimize() {
	c.post(protocol.Minimize{})
}

// Maximize asks the host to toggle maximization
func (c *Controller) Maximize() {
	c.post(protocol.Maximize{})
}

// Close asks the host to close the window
func (c *Controller) Close() {
	c.post(protocol.Close{})
}

// SendToScript forwards msg to the script runtime through the host
func (c *Controller) SendToScript(msg string) {
	c.post(protocol.ScriptMessage{Payload: msg})
}

// OnFullscreen registers fn for fullscreen toggles
func (c *Controller) OnFullscreen(fn func(bool)) listeners.Unsubscribe {
	return c.fullscreenListeners.Register(fn)
}

// OnMessage registers fn for messages the host delivers to this page
func (c *Controller) OnMessage(fn func(string)) listeners.Unsubscribe {
	return c.messageListeners.Register(fn)
}

// TriggerMessage delivers msg to every OnMessage listener in order
func (c *Controller) TriggerMessage(msg string) {
	for _, err := range c.messageListeners.Emit(msg) {
		c.logger.Error("Message listener failed", "error", err)
	}
}

func (c *Controller) post(cmd protocol.Command) {
	payload := protocol.Encode(cmd)
	c.logger.Debug("Posting command", "kind", cmd.Kind().String())
	c.poster.Send(payload)
}
