package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"
)

// ReloadState represents the current state of the config reloader
type ReloadState string

const (
	ReloadStateIdle      ReloadState = "idle"
	ReloadStateReloading ReloadState = "reloading"
	ReloadStateStopped   ReloadState = "stopped"
)

// reloadTimeout bounds the callbacks run for a single SIGHUP
const reloadTimeout = 30 * time.Second

// Sections of Config, as named in the YAML file
const (
	SectionLogging   = "logging"
	SectionRelay     = "relay"
	SectionSender    = "sender"
	SectionTransport = "transport"
	SectionWindow    = "window"
	SectionScript    = "script"
	SectionJournal   = "journal"
)

// liveSections can change while the host runs; the rest need a restart
var liveSections = map[string]bool{
	SectionLogging: true,
	SectionWindow:  true,
}

// ChangedSections lists the sections that differ between old and new
func ChangedSections(old, new *Config) []string {
	pairs := []struct {
		name     string
		old, new any
	}{
		{SectionLogging, old.Logging, new.Logging},
		{SectionRelay, old.Relay, new.Relay},
		{SectionSender, old.Sender, new.Sender},
		{SectionTransport, old.Transport, new.Transport},
		{SectionWindow, old.Window, new.Window},
		{SectionScript, old.Script, new.Script},
		{SectionJournal, old.Journal, new.Journal},
	}
	var changed []string
	for _, p := range pairs {
		if !reflect.DeepEqual(p.old, p.new) {
			changed = append(changed, p.name)
		}
	}
	return changed
}

// RestartRequired filters sections down to those a running host cannot apply
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !liveSections[s] {
			out = append(out, s)
		}
	}
	return out
}

// ReloadCallback is called with the freshly loaded configuration
type ReloadCallback func(ctx context.Context, newConfig *Config) error

// Reloader re-reads the configuration file on SIGHUP and hands the result
// to registered callbacks. The current config only changes when every
// callback accepted the new one.
type Reloader struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	current   *Config
	state     ReloadState
	callbacks []ReloadCallback
	changed   []string

	signals chan os.Signal
	stop    chan struct{}
}

// NewReloader creates a reloader for the file at path
func NewReloader(path string, initial *Config) *Reloader {
	return &Reloader{
		path:    path,
		logger:  slog.Default(),
		current: initial,
		state:   ReloadStateIdle,
		signals: make(chan os.Signal, 1),
	}
}

// SetLogger replaces the default slog logger
func (r *Reloader) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l.With("component", "config_reloader")
	}
}

// Start begins listening for SIGHUP
func (r *Reloader) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return
	}
	r.stop = make(chan struct{})
	r.state = ReloadStateIdle
	signal.Notify(r.signals, syscall.SIGHUP)
	r.logger.Info("Config reloader started", "path", r.path)
	go r.watch(r.stop)
}

// Stop stops signal handling
func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return
	}
	signal.Stop(r.signals)
	close(r.stop)
	r.stop = nil
	r.state = ReloadStateStopped
}

// Reload loads and validates the file, then runs the callbacks. A reload
// already in progress makes this a no-op.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	if r.state == ReloadStateReloading {
		r.mu.Unlock()
		return nil
	}
	prev := r.state
	r.state = ReloadStateReloading
	old := r.current
	r.mu.Unlock()

	next, err := LoadFromFile(r.path)
	if err == nil {
		err = r.runCallbacks(ctx, next)
	}
	if err != nil {
		r.setState(prev)
		return fmt.Errorf("reload %s: %w", r.path, err)
	}

	var changed []string
	if old != nil {
		changed = ChangedSections(old, next)
	}

	r.mu.Lock()
	r.current = next
	r.changed = changed
	r.state = prev
	r.mu.Unlock()

	if restart := RestartRequired(changed); len(restart) > 0 {
		r.logger.Warn("Configuration changes need a restart", "sections", restart)
	}
	r.logger.Info("Configuration reloaded", "changed", changed)
	return nil
}

// AddCallback registers a callback run on every successful load
func (r *Reloader) AddCallback(callback ReloadCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}

// GetConfig returns the current configuration
func (r *Reloader) GetConfig() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// LastChanged returns the sections changed by the last successful reload
func (r *Reloader) LastChanged() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.changed...)
}

// State returns the current reload state
func (r *Reloader) State() ReloadState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reloader) watch(stop <-chan struct{}) {
	for {
		select {
		case <-r.signals:
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			if err := r.Reload(ctx); err != nil {
				r.logger.Error("Configuration reload failed", "error", err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}

func (r *Reloader) runCallbacks(ctx context.Context, next *Config) error {
	r.mu.RLock()
	callbacks := append([]ReloadCallback(nil), r.callbacks...)
	r.mu.RUnlock()

	for i, cb := range callbacks {
		if err := cb(ctx, next); err != nil {
			return fmt.Errorf("callback %d: %w", i, err)
		}
	}
	return nil
}

func (r *Reloader) setState(state ReloadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// String returns a string representation of the reloader
func (r *Reloader) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("Reloader{state: %s, path: %s, callbacks: %d}", r.state, r.path, len(r.callbacks))
}
