// Command waterflow uploads water-quality lab reports, extracts their monitoring
// events and answers questions about the stored records.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lllllllleong/waterqualityflow/internal/config"
	"github.com/Lllllllleong/waterqualityflow/internal/services"
	"github.com/spf13/cobra"
)

var (
	cfg      *config.Config
	logger   *slog.Logger
	platform *services.Platform
)

var rootCmd = &cobra.Command{
	Use:           "waterflow",
	Short:         "Water-quality report ingestion and querying",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = cfg.NewLogger()
		slog.SetDefault(logger)
		platform = services.NewPlatform(cfg, logger)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd, listCmd, ingestCmd, recordsCmd, askCmd, exportCmd, checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, rootCmd, func() io.Closer { return platform }); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// execute runs root and then releases the platform clients, also when the command
// failed. Cobra skips post-run hooks on error, so the release happens here.
func execute(ctx context.Context, root *cobra.Command, closer func() io.Closer) error {
	err := root.ExecuteContext(ctx)
	c := closer()
	if p, ok := c.(*services.Platform); ok && p == nil {
		return err
	}
	if c != nil {
		if cerr := c.Close(); cerr != nil {
			return errors.Join(err, fmt.Errorf("close clients: %w", cerr))
		}
	}
	return err
}
