// Package cmd implements the CLI commands for mediatool.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/mediatool/internal/config"
	"github.com/jmylchreest/mediatool/internal/observability"
	"github.com/jmylchreest/mediatool/internal/provider"
	"github.com/jmylchreest/mediatool/internal/version"
)

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string

	// cfg and registry are set by PersistentPreRunE before any command runs.
	cfg      *config.Config
	registry *provider.Registry
)

// rootCmd represents the base command. Without a subcommand it behaves like
// "mediatool run".
var rootCmd = &cobra.Command{
	Use:     "mediatool",
	Short:   "Inspect, copy and trim media containers without re-encoding",
	Version: version.Short(),
	Long: `mediatool reads a media container and copies its packets into a new
container without decoding them.

It can print a report of the container's streams and codec parameters, copy
every stream into a new file, or copy only the packets presented within a time
window. Run without a subcommand it trims the configured input, prints its
report and then copies it in full.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runRun,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set PersistentPreRunE here to avoid initialization cycle
	// (initLogging references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return setup()
	}

	// Logging flags are NOT bound to viper. They only override config and env
	// values when explicitly set, see initLogging.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mediatool.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	rootCmd.PersistentFlags().String("codec-policy", config.CodecPolicyCopy, "output codec policy (copy, fixed)")
	rootCmd.PersistentFlags().String("target-codec", "h264", "codec for every output stream when --codec-policy=fixed")
	rootCmd.PersistentFlags().Bool("skip-unsupported", false, "drop streams the output format cannot carry instead of failing")
	mustBindPFlag("remux.codec_policy", rootCmd.PersistentFlags().Lookup("codec-policy"))
	mustBindPFlag("remux.target_codec", rootCmd.PersistentFlags().Lookup("target-codec"))
	mustBindPFlag("remux.skip_unsupported", rootCmd.PersistentFlags().Lookup("skip-unsupported"))
}

// setup loads configuration, installs the default logger and initialises the
// provider registry.
func setup() error {
	loaded, err := config.LoadWithViper(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	initLogging(cfg.Logging)
	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", slog.String("path", used))
	}

	registry = provider.Init(provider.OptionsFromConfig(cfg), slog.Default())
	return nil
}

// initLogging configures the slog logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (MEDIATOOL_LOGGING_LEVEL, MEDIATOOL_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, text)
func initLogging(logCfg config.LoggingConfig) {
	if rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		logCfg.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	logCfg.Level = strings.ToLower(logCfg.Level)
	logCfg.Format = strings.ToLower(logCfg.Format)

	// Handle "warning" as an alias for "warn"
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	observability.SetDefault(observability.NewLogger(logCfg))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// mustBindPFlag binds a viper key to a cobra flag and panics if binding fails.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q to key %q: %v", flag.Name, key, err))
	}
}
