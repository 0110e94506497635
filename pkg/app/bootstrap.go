package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

const (
	// DefaultVersion is the default version of webbridge
	DefaultVersion = "0.1.0"
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

// BootstrapResult contains the result of a bootstrap operation
type BootstrapResult struct {
	App       *App
	StartedAt time.Time
	Version   string
	Error     error
}

// BootstrapConfig contains configuration for the bootstrap process
type BootstrapConfig struct {
	Config        config.Config
	Logger        *logger.Logger
	Version       string
	WindowFactory host.WindowFactory
}

// Bootstrap creates and starts a host with the specified configuration.
// It performs the following steps:
// 1. Validates the configuration
// 2. Opens the ipc link over the configured transport
// 3. Opens the first window
func Bootstrap(ctx context.Context, cfg BootstrapConfig) (*BootstrapResult, error) {
	startedAt := time.Now()

	result := &BootstrapResult{
		StartedAt: startedAt,
		Version:   cfg.Version,
	}

	a, err := New(cfg.Config, cfg.WindowFactory, cfg.Logger)
	if err != nil {
		result.Error = err
		return result, result.Error
	}

	if err := a.Start(ctx); err != nil {
		result.Error = types.WrapError(types.ErrCodeInternal, "failed to start host", err)
		_ = a.Close()
		return result, result.Error
	}
	result.App = a

	a.logger.Info("Host bootstrapped successfully",
		"version", cfg.Version,
		"transport", cfg.Config.Transport.Kind,
		"duration", time.Since(startedAt))

	return result, nil
}

// GetVersion returns the version of webbridge
func GetVersion() string {
	return DefaultVersion
}

// GetVersionInfo returns the version plus the vcs revision and time
// stamped into the binary, or "unknown" when the build carries none
func GetVersionInfo() map[string]string {
	info := map[string]string{
		"version":    DefaultVersion,
		"build_time": "unknown",
		"git_commit": "unknown",
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info["git_commit"] = s.Value
		case "vcs.time":
			info["build_time"] = s.Value
		}
	}
	return info
}

// String returns a string representation of the bootstrap result
func (r *BootstrapResult) String() string {
	if r.Error != nil {
		return fmt.Sprintf("BootstrapResult{version: %s, error: %v}", r.Version, r.Error)
	}
	return fmt.Sprintf("BootstrapResult{version: %s, started_at: %s, app: %v}",
		r.Version, r.StartedAt.Format(time.RFC3339), r.App != nil)
}

// IsSuccessful returns true if the bootstrap was successful
func (r *BootstrapResult) IsSuccessful() bool {
	return r.Error == nil && r.App != nil
}
