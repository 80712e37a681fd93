package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vito/tealoop/pkg/config"
	"github.com/vito/tealoop/pkg/ioctx"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tealoop",
		Short: "A tiny terminal editor driven by a Model-Update-View runtime",
		Long: `tealoop echoes what you type at the cursor position it finds when it starts.

Keys:
  ^C     quit
  ^S     save the scratch buffer
  Enter  new line
  ^H/DEL erase
  Esc    clear the status line`,
		Example: `  # Start editing
  tealoop

  # Log every published message
  tealoop --debug --log-file /tmp/tealoop.log

  # Show how bytes decode into keys
  tealoop decode 'a\x1b[12;34R\x03'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, runEditor)
		},
	}

	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(configCmd())

	ctx := context.Background()
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithCommit("dev"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, err.Error())
		}),
	); err != nil {
		os.Exit(1)
	}
}

// withConfig loads the configuration for cmd, installs the logger it asks
// for and calls fn.
func withConfig(cmd *cobra.Command, fn func(context.Context, *config.Config) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx := ioctx.LoggerToContext(cmd.Context(), logger)
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	}
	return fn(ctx, cfg)
}

// setupLogger writes to the configured log file. Without one, logs are
// discarded: the terminal belongs to the program.
func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := clog.InfoLevel
	if cfg.Debug {
		level = clog.DebugLevel
	}
	handler := clog.NewWithOptions(f, clog.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "tealoop",
	})
	return slog.New(handler), func() { _ = f.Close() }, nil
}
