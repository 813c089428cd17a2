package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/cwbudde/ffopt/internal/config"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFormat  string
	configPath string
	logger     = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "ffopt",
	Short: "Force field parameter optimization by finite differences",
	Long: `ffopt adjusts selected parameters of an MM3* force field to reduce the
weighted deviation (x2) between calculated and reference data. Each step
perturbs every parameter, estimates first and second derivatives of x2 from
the perturbed evaluations, and keeps the best force field found.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ffopt.yaml", "Run configuration file")
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

// loadConfig reads the configuration file. A missing file is only an error
// when --config was given explicitly; otherwise the defaults are used and the
// command-line flags must supply the rest.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		logger.Debug("Loaded configuration", "path", configPath)
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.DefaultConfig(), nil
	}
	return nil, err
}
