package config

import (
	"fmt"
	"time"

	"github.com/billm/baaaht/webbridge/pkg/types"
)

// Config represents the complete configuration for the bridge
type Config struct {
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Relay     RelayConfig     `json:"relay" yaml:"relay"`
	Sender    SenderConfig    `json:"sender" yaml:"sender"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Window    WindowConfig    `json:"window" yaml:"window"`
	Script    ScriptConfig    `json:"script" yaml:"script"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, file path
}

// RelayConfig controls the inbound receive loop
type RelayConfig struct {
	RetryDelay    time.Duration `json:"retry_delay" yaml:"retry_delay"`
	MaxRetryDelay time.Duration `json:"max_retry_delay" yaml:"max_retry_delay"`
}

// SenderConfig controls the outbound fire-and-forget queue
type SenderConfig struct {
	QueueSize    int           `json:"queue_size" yaml:"queue_size"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// TransportConfig selects and configures the host transport
type TransportConfig struct {
	Kind           string       `json:"kind" yaml:"kind"` // memory, stdio, unix, libp2p
	SocketPath     string       `json:"socket_path" yaml:"socket_path"`
	EnableAuth     bool         `json:"enable_auth" yaml:"enable_auth"`
	MaxConnections int          `json:"max_connections" yaml:"max_connections"`
	MaxMessageSize int          `json:"max_message_size" yaml:"max_message_size"`
	Libp2p         Libp2pConfig `json:"libp2p" yaml:"libp2p"`
}

// Libp2pConfig configures the gossipsub transport
type Libp2pConfig struct {
	ListenAddrs     []string `json:"listen_addrs" yaml:"listen_addrs"`
	Bootstrap       []string `json:"bootstrap" yaml:"bootstrap"`
	Rendezvous      string   `json:"rendezvous" yaml:"rendezvous"`
	EnableMDNS      bool     `json:"enable_mdns" yaml:"enable_mdns"`
	IdentityKeyFile string   `json:"identity_key_file" yaml:"identity_key_file"`
	TopicPrefix     string   `json:"topic_prefix" yaml:"topic_prefix"`
}

// WindowConfig holds defaults for windows opened by the host
type WindowConfig struct {
	DefaultURL      string `json:"default_url" yaml:"default_url"`
	DefaultTitle    string `json:"default_title" yaml:"default_title"`
	Width           int    `json:"width" yaml:"width"`
	Height          int    `json:"height" yaml:"height"`
	DragRegionClass string `json:"drag_region_class" yaml:"drag_region_class"`
}

// ScriptConfig configures the WebAssembly script host
type ScriptConfig struct {
	ModulePath       string `json:"module_path" yaml:"module_path"`
	MemoryLimitPages uint32 `json:"memory_limit_pages" yaml:"memory_limit_pages"`
}

// JournalConfig configures the sqlite event journal. An empty path
// disables it.
type JournalConfig struct {
	Path      string `json:"path" yaml:"path"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
}

// applyDefaults fills zero-valued fields that were not present in the file
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = def.Logging.Output
	}

	if cfg.Relay.RetryDelay == 0 {
		cfg.Relay.RetryDelay = def.Relay.RetryDelay
	}
	if cfg.Relay.MaxRetryDelay == 0 {
		cfg.Relay.MaxRetryDelay = def.Relay.MaxRetryDelay
	}

	if cfg.Sender.QueueSize == 0 {
		cfg.Sender.QueueSize = def.Sender.QueueSize
	}
	if cfg.Sender.WriteTimeout == 0 {
		cfg.Sender.WriteTimeout = def.Sender.WriteTimeout
	}

	if cfg.Transport.Kind == "" {
		cfg.Transport.Kind = def.Transport.Kind
	}
	if cfg.Transport.SocketPath == "" {
		cfg.Transport.SocketPath = def.Transport.SocketPath
	}
	if cfg.Transport.MaxConnections == 0 {
		cfg.Transport.MaxConnections = def.Transport.MaxConnections
	}
	if cfg.Transport.MaxMessageSize == 0 {
		cfg.Transport.MaxMessageSize = def.Transport.MaxMessageSize
	}
	if cfg.Transport.Libp2p.Rendezvous == "" {
		cfg.Transport.Libp2p.Rendezvous = def.Transport.Libp2p.Rendezvous
	}
	if cfg.Transport.Libp2p.TopicPrefix == "" {
		cfg.Transport.Libp2p.TopicPrefix = def.Transport.Libp2p.TopicPrefix
	}

	if cfg.Window.DefaultURL == "" {
		cfg.Window.DefaultURL = def.Window.DefaultURL
	}
	if cfg.Window.DefaultTitle == "" {
		cfg.Window.DefaultTitle = def.Window.DefaultTitle
	}
	if cfg.Window.Width == 0 {
		cfg.Window.Width = def.Window.Width
	}
	if cfg.Window.Height == 0 {
		cfg.Window.Height = def.Window.Height
	}
	if cfg.Window.DragRegionClass == "" {
		cfg.Window.DragRegionClass = def.Window.DragRegionClass
	}

	if cfg.Script.MemoryLimitPages == 0 {
		cfg.Script.MemoryLimitPages = def.Script.MemoryLimitPages
	}

	if cfg.Journal.QueueSize == 0 {
		cfg.Journal.QueueSize = def.Journal.QueueSize
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid log format: %s (must be json or text)", c.Logging.Format))
	}

	if c.Relay.RetryDelay <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "relay retry delay must be positive")
	}
	if c.Relay.MaxRetryDelay < c.Relay.RetryDelay {
		return types.NewError(types.ErrCodeInvalidArgument, "relay max retry delay must not be below retry delay")
	}

	if c.Sender.QueueSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "sender queue size must be positive")
	}
	if c.Sender.WriteTimeout < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "sender write timeout cannot be negative")
	}

	switch c.Transport.Kind {
	case TransportMemory, TransportStdio, TransportLibp2p:
	case TransportUnix:
		if c.Transport.SocketPath == "" {
			return types.NewError(types.ErrCodeInvalidArgument, "unix transport requires a socket path")
		}
	default:
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("invalid transport kind: %s (must be memory, stdio, unix, or libp2p)", c.Transport.Kind))
	}
	if c.Transport.MaxConnections < 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "transport max connections cannot be negative")
	}
	if c.Transport.MaxMessageSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "transport max message size must be positive")
	}

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "window size must be positive")
	}

	if c.Journal.QueueSize <= 0 {
		return types.NewError(types.ErrCodeInvalidArgument, "journal queue size must be positive")
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Transport: %s, Log: %s/%s, Queue: %d}",
		c.Transport.Kind, c.Logging.Level, c.Logging.Format, c.Sender.QueueSize)
}
