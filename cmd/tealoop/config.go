package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vito/tealoop/pkg/config"
	"github.com/vito/tealoop/pkg/ioctx"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd, func(ctx context.Context, cfg *config.Config) error {
				out := ioctx.StdoutFromContext(ctx)
				if cfg.File != "" {
					fmt.Fprintf(out, "# %s\n", cfg.File)
				}
				return cfg.WriteTOML(out)
			})
		},
	}
}
