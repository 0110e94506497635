package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		wantCode string
	}{
		{
			name: "valid full config",
			file: "full.yaml",
			content: `
logging:
  level: debug
  format: json
  output: stdout
relay:
  retry_delay: 50ms
  max_retry_delay: 2s
sender:
  queue_size: 64
  write_timeout: 1s
transport:
  kind: unix
  socket_path: /tmp/test-bridge.sock
  enable_auth: true
window:
  default_url: https://example.com
  default_title: Example
`,
		},
		{
			name:    "partial config gets defaults",
			file:    "partial.yml",
			content: "transport:\n  kind: memory\n",
		},
		{
			name:     "wrong extension",
			file:     "config.json",
			content:  "{}",
			wantCode: types.ErrCodeInvalidArgument,
		},
		{
			name:     "empty file",
			file:     "empty.yaml",
			content:  "   \n",
			wantCode: types.ErrCodeInvalid,
		},
		{
			name:     "syntax error",
			file:     "broken.yaml",
			content:  "logging: [level: info\n",
			wantCode: types.ErrCodeInvalid,
		},
		{
			name:     "invalid transport kind",
			file:     "kind.yaml",
			content:  "transport:\n  kind: carrier-pigeon\n",
			wantCode: types.ErrCodeInvalid,
		},
		{
			name:     "invalid log level",
			file:     "level.yaml",
			content:  "logging:\n  level: loud\n",
			wantCode: types.ErrCodeInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tmpDir, tt.file, tt.content)
			cfg, err := LoadFromFile(path)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, types.IsErrCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
relay:
  retry_delay: 250ms
sender:
  queue_size: 8
transport:
  kind: memory
window:
  default_title: Bridge
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Relay.RetryDelay)
	assert.Equal(t, DefaultMaxRetryDelay, cfg.Relay.MaxRetryDelay)
	assert.Equal(t, 8, cfg.Sender.QueueSize)
	assert.Equal(t, TransportMemory, cfg.Transport.Kind)
	assert.Equal(t, "Bridge", cfg.Window.DefaultTitle)
	assert.Equal(t, DefaultWindowURL, cfg.Window.DefaultURL)
	assert.Equal(t, DefaultDragRegionClass, cfg.Window.DragRegionClass)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeNotFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadUsesEnvConfigPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "env.yaml", "window:\n  default_title: FromEnv\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "FromEnv", cfg.Window.DefaultTitle)
}

func TestEnvVarInterpolation(t *testing.T) {
	t.Setenv("BRIDGE_TEST_SOCKET", "/run/bridge.sock")

	tests := []struct {
		input string
		want  string
	}{
		{"${BRIDGE_TEST_SOCKET}", "/run/bridge.sock"},
		{"${BRIDGE_TEST_UNSET:-fallback}", "fallback"},
		{"${BRIDGE_TEST_UNSET}", ""},
		{"prefix-${BRIDGE_TEST_SOCKET}", "prefix-/run/bridge.sock"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, interpolateEnvVars(tt.input))
		})
	}

	path := writeConfig(t, t.TempDir(), "interp.yaml",
		"transport:\n  socket_path: ${BRIDGE_TEST_SOCKET}\n  libp2p:\n    listen_addrs: [\"${BRIDGE_TEST_ADDR:-/ip4/127.0.0.1/tcp/0}\"]\n")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/bridge.sock", cfg.Transport.SocketPath)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/0"}, cfg.Transport.Libp2p.ListenAddrs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, false},
		{"zero retry delay", func(c *Config) { c.Relay.RetryDelay = 0 }, false},
		{"max below retry", func(c *Config) { c.Relay.MaxRetryDelay = time.Millisecond }, false},
		{"zero queue", func(c *Config) { c.Sender.QueueSize = 0 }, false},
		{"unix without path", func(c *Config) { c.Transport.SocketPath = "" }, false},
		{"memory without path", func(c *Config) {
			c.Transport.Kind = TransportMemory
			c.Transport.SocketPath = ""
		}, true},
		{"zero window", func(c *Config) { c.Window.Width = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument), "got %v", err)
			}
		})
	}
}

func TestReloader(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "window:\n  default_title: First\n")

	initial, err := LoadFromFile(path)
	require.NoError(t, err)

	r := NewReloader(path, initial)
	assert.Equal(t, ReloadStateIdle, r.State())

	var seen []string
	r.AddCallback(func(ctx context.Context, c *Config) error {
		seen = append(seen, c.Window.DefaultTitle)
		return nil
	})

	writeConfig(t, dir, "config.yaml", "window:\n  default_title: Second\n")
	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, []string{"Second"}, seen)
	assert.Equal(t, "Second", r.GetConfig().Window.DefaultTitle)
	assert.Equal(t, []string{SectionWindow}, r.LastChanged())

	r.AddCallback(func(ctx context.Context, c *Config) error {
		return errors.New("rejected")
	})
	writeConfig(t, dir, "config.yaml", "window:\n  default_title: Third\n")
	require.Error(t, r.Reload(context.Background()))
	assert.Equal(t, "Second", r.GetConfig().Window.DefaultTitle)
	assert.Equal(t, ReloadStateIdle, r.State())

	r.Start()
	r.Stop()
	assert.Equal(t, ReloadStateStopped, r.State())
}

func TestChangedSections(t *testing.T) {
	old := DefaultConfig()
	next := DefaultConfig()
	assert.Empty(t, ChangedSections(&old, &next))

	next.Window.DefaultTitle = "Other"
	next.Logging.Level = "debug"
	next.Transport.Kind = TransportUnix
	changed := ChangedSections(&old, &next)
	assert.Equal(t, []string{SectionLogging, SectionTransport, SectionWindow}, changed)
	assert.Equal(t, []string{SectionTransport}, RestartRequired(changed))
}
