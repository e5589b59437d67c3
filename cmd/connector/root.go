package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Guliveer/livetiming-connector/internal/config"
	"github.com/Guliveer/livetiming-connector/internal/logger"
)

var version = "dev"

type rootOptions struct {
	logLevel string
	noColor  bool
	envFile  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "connector",
		Short:         "Live timing hub connector",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL env)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false,
		"Disable colored output (overrides TTY detection)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env",
		"Environment file loaded before the configuration")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newMockHubCmd(opts))
	return cmd
}

// setupLogger builds the root logger. The flag wins over the config level,
// which already carries LOG_LEVEL.
func (o *rootOptions) setupLogger(cfg config.LogConfig, component string) (*logger.Logger, error) {
	level := logger.ParseLevel(cfg.Level)
	if o.logLevel != "" {
		level = logger.ParseLevel(o.logLevel)
	}
	fileLevel := slog.LevelDebug
	if cfg.FileLevel != "" {
		fileLevel = logger.ParseLevel(cfg.FileLevel)
	}

	colored := !o.noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	if cfg.Color != nil && !*cfg.Color {
		colored = false
	}

	lc := logger.DefaultConfig()
	lc.Level = level
	lc.FileLevel = fileLevel
	lc.Colored = colored
	lc.LogDir = cfg.Dir
	lc.Component = component
	return logger.Setup(lc)
}

// logFlags writes the flags set on the command line at DEBUG.
func logFlags(log *logger.Logger, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		log.Debug("Flag set", "name", f.Name, "value", f.Value.String())
	})
}
