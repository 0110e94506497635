package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// ShutdownState is the progress of a host shutdown
type ShutdownState string

const (
	ShutdownStateRunning   ShutdownState = "running"
	ShutdownStateInitiated ShutdownState = "initiated"
	ShutdownStateClosing   ShutdownState = "closing"
	ShutdownStateComplete  ShutdownState = "complete"
)

// String returns the state name
func (s ShutdownState) String() string {
	return string(s)
}

// HookPhase says when a shutdown hook runs relative to closing the host
type HookPhase string

const (
	// BeforeClose hooks run while the bridge links are still open
	BeforeClose HookPhase = "before_close"
	// AfterClose hooks run once the host and its transport are closed
	AfterClose HookPhase = "after_close"
)

// ShutdownHook runs during shutdown. Its context carries the hook timeout.
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	run  ShutdownHook
}

// DefaultHookTimeout bounds a single shutdown hook
const DefaultHookTimeout = 5 * time.Second

// ShutdownManager closes a host once, on SIGINT, SIGTERM or an explicit
// request, with hooks on either side of the close.
type ShutdownManager struct {
	target  io.Closer
	timeout time.Duration
	logger  *logger.Logger

	mu          sync.RWMutex
	state       ShutdownState
	reason      string
	initiatedAt time.Time
	hooks       map[HookPhase][]namedHook
	err         error

	signals  chan os.Signal
	stopSig  chan struct{}
	watching bool
	done     chan struct{}
}

// NewShutdownManager creates a shutdown manager for target. A nil target
// only runs the hooks.
func NewShutdownManager(target io.Closer, timeout time.Duration, log *logger.Logger) *ShutdownManager {
	if log == nil {
		log = logger.Global()
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownManager{
		target:  target,
		timeout: timeout,
		logger:  log.With("component", "shutdown"),
		state:   ShutdownStateRunning,
		hooks:   make(map[HookPhase][]namedHook),
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// Start watches for SIGINT and SIGTERM. Calling it twice is a no-op.
func (sm *ShutdownManager) Start() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.watching {
		return
	}
	signal.Notify(sm.signals, syscall.SIGINT, syscall.SIGTERM)
	sm.stopSig = make(chan struct{})
	sm.watching = true
	go sm.watch(sm.stopSig)
	sm.logger.Debug("Watching for shutdown signals", "timeout", sm.timeout)
}

// Stop stops watching for signals
func (sm *ShutdownManager) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.watching {
		return
	}
	signal.Stop(sm.signals)
	close(sm.stopSig)
	sm.watching = false
}

// AddHook registers a named hook for phase. Hooks of a phase run in
// registration order.
func (sm *ShutdownManager) AddHook(phase HookPhase, name string, hook ShutdownHook) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks[phase] = append(sm.hooks[phase], namedHook{name: name, run: hook})
}

// Shutdown runs the BeforeClose hooks, closes the target and runs the
// AfterClose hooks. Hook and close failures are logged and kept in Err;
// only a repeated call returns an error.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	sm.mu.Lock()
	if sm.state != ShutdownStateRunning {
		sm.mu.Unlock()
		return types.NewError(types.ErrCodeInvalid, "shutdown already initiated")
	}
	sm.state = ShutdownStateInitiated
	sm.reason = reason
	sm.initiatedAt = time.Now()
	sm.mu.Unlock()

	sm.logger.Info("Shutting down", "reason", reason)

	ctx, cancel := context.WithTimeout(ctx, sm.timeout)
	defer cancel()

	errs := sm.runHooks(ctx, BeforeClose)

	sm.setState(ShutdownStateClosing)
	if sm.target != nil {
		if err := sm.target.Close(); err != nil {
			sm.logger.Error("Closing host failed", "error", err)
			errs = append(errs, err)
		}
	}

	errs = append(errs, sm.runHooks(ctx, AfterClose)...)

	sm.mu.Lock()
	sm.err = errors.Join(errs...)
	sm.state = ShutdownStateComplete
	started := sm.initiatedAt
	sm.mu.Unlock()
	close(sm.done)

	sm.logger.Info("Shutdown complete", "reason", reason, "duration", time.Since(started), "errors", len(errs))
	return nil
}

// ShutdownAndWait shuts down, giving up when ctx ends first
func (sm *ShutdownManager) ShutdownAndWait(ctx context.Context, reason string) error {
	result := make(chan error, 1)
	go func() { result <- sm.Shutdown(ctx, reason) }()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return types.WrapError(types.ErrCodeCanceled, "shutdown wait canceled", ctx.Err())
	}
}

// WaitCompletion blocks until a shutdown started elsewhere has finished
func (sm *ShutdownManager) WaitCompletion(ctx context.Context) error {
	select {
	case <-sm.done:
		return nil
	case <-ctx.Done():
		return types.WrapError(types.ErrCodeCanceled, "wait for shutdown canceled", ctx.Err())
	}
}

// Completed is closed once shutdown is complete
func (sm *ShutdownManager) Completed() <-chan struct{} {
	return sm.done
}

// State returns the current shutdown state
func (sm *ShutdownManager) State() ShutdownState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// IsShuttingDown reports whether shutdown has begun
func (sm *ShutdownManager) IsShuttingDown() bool {
	return sm.State() != ShutdownStateRunning
}

// IsComplete reports whether shutdown has finished
func (sm *ShutdownManager) IsComplete() bool {
	return sm.State() == ShutdownStateComplete
}

// ShutdownReason returns the reason given to the first Shutdown call
func (sm *ShutdownManager) ShutdownReason() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.reason
}

// Err returns the joined hook and close failures of a completed shutdown
func (sm *ShutdownManager) Err() error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.err
}

func (sm *ShutdownManager) watch(stop <-chan struct{}) {
	select {
	case sig := <-sm.signals:
		sm.logger.Info("Shutdown signal received", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
		defer cancel()
		if err := sm.ShutdownAndWait(ctx, fmt.Sprintf("signal received: %s", sig)); err != nil {
			sm.logger.Warn("Signal shutdown failed", "error", err)
		}
	case <-stop:
	}
}

func (sm *ShutdownManager) runHooks(ctx context.Context, phase HookPhase) []error {
	sm.mu.RLock()
	hooks := append([]namedHook(nil), sm.hooks[phase]...)
	sm.mu.RUnlock()

	var errs []error
	for _, h := range hooks {
		if ctx.Err() != nil {
			sm.logger.Warn("Skipping shutdown hooks", "phase", phase, "error", ctx.Err())
			errs = append(errs, types.WrapError(types.ErrCodeCanceled, string(phase)+" hooks skipped", ctx.Err()))
			break
		}
		hookCtx, cancel := context.WithTimeout(ctx, DefaultHookTimeout)
		err := h.run(hookCtx)
		cancel()
		if err != nil {
			sm.logger.Error("Shutdown hook failed", "phase", phase, "hook", h.name, "error", err)
			errs = append(errs, types.WrapError(types.ErrCodeHandlerFailed, h.name, err))
		}
	}
	return errs
}

func (sm *ShutdownManager) setState(state ShutdownState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = state
}

// String returns a summary of the manager
func (sm *ShutdownManager) String() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return fmt.Sprintf("ShutdownManager{state: %s, timeout: %v, hooks: %d/%d, watching: %t}",
		sm.state, sm.timeout, len(sm.hooks[BeforeClose]), len(sm.hooks[AfterClose]), sm.watching)
}
