package config

import (
	"os"
	"path/filepath"
	"time"
)

// Transport kinds
const (
	TransportMemory = "memory"
	TransportStdio  = "stdio"
	TransportUnix   = "unix"
	TransportLibp2p = "libp2p"
)

const (
	// EnvPrefix is the prefix for environment overrides bound by the CLI
	EnvPrefix = "WEBBRIDGE"

	// EnvConfigPath overrides the default config file location
	EnvConfigPath = "WEBBRIDGE_CONFIG"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultRetryDelay    = 100 * time.Millisecond
	DefaultMaxRetryDelay = 5 * time.Second

	DefaultSenderQueueSize    = 1024
	DefaultSenderWriteTimeout = 5 * time.Second

	DefaultTransportKind  = TransportUnix
	DefaultSocketPath     = "/tmp/webbridge.sock"
	DefaultMaxConnections = 16
	DefaultMaxMessageSize = 4 << 20

	DefaultRendezvous  = "webbridge"
	DefaultTopicPrefix = "webbridge"

	DefaultWindowURL       = "./index.html"
	DefaultWindowTitle     = "Webview"
	DefaultWindowWidth     = 1680
	DefaultWindowHeight    = 840
	DefaultDragRegionClass = "drag-region"

	// 64 KiB wasm pages; 256 pages is 16 MiB
	DefaultMemoryLimitPages = 256

	DefaultJournalQueueSize = 256
)

// GetConfigDir returns the webbridge configuration directory
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "webbridge"), nil
}

// GetDefaultConfigPath returns the config file path, honouring WEBBRIDGE_CONFIG
func GetDefaultConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// DefaultConfig returns a configuration with every field set to its default
func DefaultConfig() Config {
	return Config{
		Logging:   DefaultLoggingConfig(),
		Relay:     DefaultRelayConfig(),
		Sender:    DefaultSenderConfig(),
		Transport: DefaultTransportConfig(),
		Window:    DefaultWindowConfig(),
		Script: ScriptConfig{
			MemoryLimitPages: DefaultMemoryLimitPages,
		},
		Journal: JournalConfig{
			QueueSize: DefaultJournalQueueSize,
		},
	}
}

// DefaultLoggingConfig returns the default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
		Output: DefaultLogOutput,
	}
}

// DefaultRelayConfig returns the default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// DefaultSenderConfig returns the default sender configuration
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		QueueSize:    DefaultSenderQueueSize,
		WriteTimeout: DefaultSenderWriteTimeout,
	}
}

// DefaultTransportConfig returns the default transport configuration
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Kind:           DefaultTransportKind,
		SocketPath:     DefaultSocketPath,
		MaxConnections: DefaultMaxConnections,
		MaxMessageSize: DefaultMaxMessageSize,
		Libp2p: Libp2pConfig{
			Rendezvous:  DefaultRendezvous,
			TopicPrefix: DefaultTopicPrefix,
		},
	}
}

// DefaultWindowConfig returns the default window configuration
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		DefaultURL:      DefaultWindowURL,
		DefaultTitle:    DefaultWindowTitle,
		Width:           DefaultWindowWidth,
		Height:          DefaultWindowHeight,
		DragRegionClass: DefaultDragRegionClass,
	}
}
