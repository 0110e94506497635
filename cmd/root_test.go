package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverridesFromEnv(t *testing.T) {
	t.Setenv("WEBBRIDGE_TRANSPORT_KIND", config.TransportMemory)
	t.Setenv("WEBBRIDGE_WINDOW_DEFAULT_TITLE", "From Env")
	t.Setenv("WEBBRIDGE_TRANSPORT_LIBP2P_ENABLE_MDNS", "true")

	cfg := config.DefaultConfig()
	applyOverrides(&cfg)

	assert.Equal(t, config.TransportMemory, cfg.Transport.Kind)
	assert.Equal(t, "From Env", cfg.Window.DefaultTitle)
	assert.True(t, cfg.Transport.Libp2p.EnableMDNS)
	assert.Equal(t, config.DefaultWindowURL, cfg.Window.DefaultURL)
}

func TestApplyOverridesFromFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Set("socket", "/tmp/flag.sock"))
	require.NoError(t, flags.Set("log-level", "debug"))
	t.Cleanup(func() {
		_ = flags.Set("socket", "")
		_ = flags.Set("log-level", "")
		flags.Lookup("socket").Changed = false
		flags.Lookup("log-level").Changed = false
	})

	cfg := config.DefaultConfig()
	applyOverrides(&cfg)

	assert.Equal(t, "/tmp/flag.sock", cfg.Transport.SocketPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	t.Setenv("WEBBRIDGE_CONFIG", t.TempDir()+"/missing.yaml")
	t.Setenv("WEBBRIDGE_TRANSPORT_KIND", "carrier-pigeon")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transport kind")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "webbridge version 0.1.0")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "console", "send", "script", "journal", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestJournalCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.db")
	j, err := journal.Open(path, 0, logger.NewNop())
	require.NoError(t, err)
	j.Record(host.Event{Kind: host.EventWindowOpened, WindowID: "w1", Payload: "./index.html"})
	j.Record(host.Event{Kind: host.EventToScript, WindowID: "w1", Payload: "ping"})
	require.NoError(t, j.Close())

	t.Setenv("WEBBRIDGE_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("WEBBRIDGE_JOURNAL_PATH", path)

	var out bytes.Buffer
	journalCmd.SetOut(&out)
	journalCmd.SetContext(context.Background())
	journalKind = string(host.EventToScript)
	t.Cleanup(func() { journalKind = "" })

	require.NoError(t, runJournal(journalCmd, nil))
	assert.Contains(t, out.String(), `"ping"`)
	assert.NotContains(t, out.String(), "index.html")
}

func TestJournalCommandNeedsPath(t *testing.T) {
	t.Setenv("WEBBRIDGE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	err := runJournal(journalCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal configured")
}
