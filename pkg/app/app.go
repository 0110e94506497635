// Package app assembles the host: the window dispatcher, the ipc link to
// the script runtime over the configured transport and, for in-memory
// links, a WebAssembly guest running in the same process.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/bridge"
	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/journal"
	"github.com/billm/baaaht/webbridge/pkg/script"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// App is a running host
type App struct {
	cfg     config.Config
	logger  *logger.Logger
	factory host.WindowFactory

	mu         sync.RWMutex
	endpoint   *Endpoint
	scriptLink *bridge.Bridge
	dispatcher *host.Dispatcher
	journal    *journal.Journal
	guestDone  chan error
	started    bool
	closed     bool
	cancel     context.CancelFunc
}

// Stats represents host statistics
type Stats struct {
	Dispatcher host.DispatcherStats `json:"dispatcher"`
	ScriptLink bridge.Stats         `json:"script_link"`
	Journal    *journal.Stats       `json:"journal,omitempty"`
}

// String returns a string representation of the stats
func (s Stats) String() string {
	if s.Journal == nil {
		return fmt.Sprintf("AppStats{%s, %s}", s.Dispatcher, s.ScriptLink)
	}
	return fmt.Sprintf("AppStats{%s, %s, Journal{written: %d, dropped: %d, failed: %d}}",
		s.Dispatcher, s.ScriptLink, s.Journal.Written, s.Journal.Dropped, s.Journal.Failed)
}

// New creates a host. A nil factory opens virtual windows.
func New(cfg config.Config, factory host.WindowFactory, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(types.ErrCodeInvalidArgument, "invalid configuration", err)
	}
	if log == nil {
		log = logger.Global()
	}
	if factory == nil {
		factory = host.NewVirtualFactory(cfg, log)
	}
	return &App{
		cfg:     cfg,
		logger:  log.With("component", "app"),
		factory: factory,
	}, nil
}

// Start opens the ipc link, starts the in-process guest when one is
// configured and opens the first window.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return types.NewError(types.ErrCodeUnavailable, "app is closed")
	}
	if a.started {
		a.mu.Unlock()
		return types.NewError(types.ErrCodeInvalid, "app already started")
	}
	a.started = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	ep, err := OpenHostTransport(ctx, a.cfg.Transport, a.logger)
	if err != nil {
		cancel()
		return err
	}

	link := bridge.New(types.ChannelIPC, ep.Transport, a.cfg, a.logger)
	d, err := host.NewDispatcher(a.cfg, a.factory, link, a.logger)
	if err != nil {
		cancel()
		_ = link.Close()
		_ = ep.Close()
		return err
	}
	link.OnMessage(d.HandleScriptMessage)
	link.OnError(func(se bridge.SendError) {
		a.logger.Warn("Message to script lost", "message_id", se.Message.ID.String(), "error", se.Err)
	})

	var j *journal.Journal
	if path := a.cfg.Journal.Path; path != "" {
		if j, err = journal.Open(path, a.cfg.Journal.QueueSize, a.logger); err != nil {
			cancel()
			_ = link.Close()
			_ = ep.Close()
			return err
		}
		j.Attach(d)
	}

	a.mu.Lock()
	a.endpoint = ep
	a.scriptLink = link
	a.dispatcher = d
	a.journal = j
	a.cancel = cancel
	a.mu.Unlock()

	go func() {
		if err := link.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("Script link stopped", "error", err)
		}
	}()

	if path := a.cfg.Script.ModulePath; path != "" {
		if ep.Peer == nil {
			a.logger.Warn("Script module ignored, only the memory transport runs a guest in process",
				"module_path", path, "transport", a.cfg.Transport.Kind)
		} else {
			done := make(chan error, 1)
			a.mu.Lock()
			a.guestDone = done
			a.mu.Unlock()
			go func() {
				done <- RunGuest(ctx, ep.Peer, a.cfg, path, script.Options{}, a.logger)
			}()
		}
	}

	if _, err := d.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}
	return nil
}

// RunGuest runs the WebAssembly guest at path with its ipc channel bound
// to t. It returns when the guest exits or ctx is cancelled.
func RunGuest(ctx context.Context, t transport.Transport, cfg config.Config, path string, opts script.Options, log *logger.Logger) error {
	if log == nil {
		log = logger.Global()
	}
	link := bridge.New(types.ChannelIPC, t, cfg, log.With("side", "guest"))
	defer link.Close()

	linkCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = link.Run(linkCtx)
	}()

	if opts.MemoryLimitPages == 0 {
		opts.MemoryLimitPages = cfg.Script.MemoryLimitPages
	}
	h, err := script.New(ctx, link, opts, log)
	if err != nil {
		return err
	}
	defer h.Close(context.WithoutCancel(ctx))

	err = h.RunFile(ctx, path)
	log.Info("Guest stopped", "module_path", path, "stats", fmt.Sprintf("%+v", h.Stats()), "error", err)
	return err
}

// Dispatcher returns the window dispatcher, or nil before Start
func (a *App) Dispatcher() *host.Dispatcher {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dispatcher
}

// ScriptLink returns the ipc bridge, or nil before Start
func (a *App) ScriptLink() *bridge.Bridge {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.scriptLink
}

// Endpoint returns the host side of the ipc link, or nil before Start
func (a *App) Endpoint() *Endpoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.endpoint
}

// GuestDone yields the in-process guest's result. It is nil when no guest
// was started.
func (a *App) GuestDone() <-chan error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.guestDone
}

// Done is closed when the last window closes
func (a *App) Done() <-chan struct{} {
	d := a.Dispatcher()
	if d == nil {
		return nil
	}
	return d.Done()
}

// SetWindowDefaults updates the defaults for windows opened from now on
func (a *App) SetWindowDefaults(cfg config.WindowConfig) {
	if d := a.Dispatcher(); d != nil {
		d.SetWindowDefaults(cfg)
	}
}

// Stats returns host statistics
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var s Stats
	if a.dispatcher != nil {
		s.Dispatcher = a.dispatcher.Stats()
	}
	if a.scriptLink != nil {
		s.ScriptLink = a.scriptLink.Stats()
	}
	if a.journal != nil {
		js := a.journal.Stats()
		s.Journal = &js
	}
	return s
}

// Close closes every window, flushes the journal, drains the ipc link and
// releases the transport
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	d, link, ep, j, cancel := a.dispatcher, a.scriptLink, a.endpoint, a.journal, a.cancel
	a.mu.Unlock()

	var errs []error
	if d != nil {
		errs = append(errs, d.Close())
	}
	if j != nil {
		errs = append(errs, j.Close())
	}
	if link != nil {
		errs = append(errs, link.Close())
	}
	if cancel != nil {
		cancel()
	}
	if ep != nil {
		errs = append(errs, ep.Close())
	}

	a.logger.Info("Host closed")
	return errors.Join(errs...)
}
