// Package cmd holds the webbridge command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/app"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// CLI flags
	cfgFile string

	// Global variables
	rootLog *logger.Logger
	v       = viper.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webbridge",
	Short: "webbridge - message bridge between a webview and a script runtime",
	Long: `webbridge relays messages between the pages running in host windows and
an embedded script runtime. Pages post window commands (fullscreen,
minimize, maximize, close, drag, create) and user messages; the host applies
the commands and forwards the messages to the script, which can answer every
open page at once.

Every flag can also be set through a WEBBRIDGE_ environment variable, for
example WEBBRIDGE_TRANSPORT_KIND=memory.`,
	Version:       app.DefaultVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if rootLog != nil {
			rootLog.Error("Command execution failed", "error", err)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bindings maps viper keys to persistent flag names
var bindings = map[string]string{
	"log.level":                     "log-level",
	"log.format":                    "log-format",
	"log.output":                    "log-output",
	"transport.kind":                "transport",
	"transport.socket_path":         "socket",
	"transport.libp2p.listen_addrs": "listen",
	"transport.libp2p.bootstrap":    "bootstrap",
	"transport.libp2p.topic_prefix": "topic-prefix",
	"transport.libp2p.enable_mdns":  "mdns",
	"journal.path":                  "journal",
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "",
		"Config file path (default: $WEBBRIDGE_CONFIG or the user config dir)")

	// Logging flags
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: json, text")
	flags.String("log-output", "", "Log output: stdout, stderr, or file path")

	// Transport flags
	flags.String("transport", "", "ipc transport: memory, stdio, unix, libp2p")
	flags.String("socket", "", "Unix socket path for the unix transport")
	flags.StringSlice("listen", nil, "libp2p listen multiaddrs")
	flags.StringSlice("bootstrap", nil, "libp2p bootstrap peer multiaddrs")
	flags.String("topic-prefix", "", "libp2p gossipsub topic prefix")
	flags.Bool("mdns", false, "Discover libp2p peers with mDNS")

	flags.String("journal", "", "sqlite file recording dispatcher events")

	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, consoleCmd, sendCmd, scriptCmd, journalCmd, versionCmd)
}

// loadConfig reads the config file and applies flag and environment
// overrides on top of it
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every value set by a flag or a WEBBRIDGE_
// environment variable into cfg
func applyOverrides(cfg *config.Config) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			if s := v.GetString(key); s != "" {
				*dst = s
			}
		}
	}
	setSlice := func(key string, dst *[]string) {
		if v.IsSet(key) {
			if s := v.GetStringSlice(key); len(s) > 0 {
				*dst = s
			}
		}
	}

	setString("log.level", &cfg.Logging.Level)
	setString("log.format", &cfg.Logging.Format)
	setString("log.output", &cfg.Logging.Output)
	setString("transport.kind", &cfg.Transport.Kind)
	setString("transport.socket_path", &cfg.Transport.SocketPath)
	setSlice("transport.libp2p.listen_addrs", &cfg.Transport.Libp2p.ListenAddrs)
	setSlice("transport.libp2p.bootstrap", &cfg.Transport.Libp2p.Bootstrap)
	setString("transport.libp2p.topic_prefix", &cfg.Transport.Libp2p.TopicPrefix)
	if v.IsSet("transport.libp2p.enable_mdns") {
		cfg.Transport.Libp2p.EnableMDNS = v.GetBool("transport.libp2p.enable_mdns")
	}
	setString("window.default_url", &cfg.Window.DefaultURL)
	setString("window.default_title", &cfg.Window.DefaultTitle)
	setString("script.module_path", &cfg.Script.ModulePath)
	setString("journal.path", &cfg.Journal.Path)
}

// initLogger initializes the global logger from the logging config
func initLogger(cfg config.LoggingConfig) error {
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	rootLog = log
	logger.SetGlobal(log)
	return nil
}

// configPath returns the config file that SIGHUP reloads, or "" when none exists
func configPath() string {
	path := cfgFile
	if path == "" {
		p, err := config.GetDefaultConfigPath()
		if err != nil {
			return ""
		}
		path = p
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
