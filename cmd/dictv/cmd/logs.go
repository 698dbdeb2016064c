package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmtftr/dictv/internal/logging"
	"github.com/mmtftr/dictv/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int
	var level string
	var path string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View dictv's debug log file",
		Long: `logs tails the debug log written to ~/.dictv/logs/server.log when a
command ran with --debug. It has no effect on logging itself -- it is a
read-only viewer.`,
		RunE: func(c *cobra.Command, _ []string) error {
			logPath, err := logging.FindLogFile(path)
			if err != nil {
				return err
			}

			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				NoColor: ui.DetectNoColor() || !ui.IsTTY(c.OutOrStdout()),
			}, c.OutOrStdout())

			entries, err := viewer.Tail(logPath, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followLogs(ctx, viewer, logPath)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output as it's written")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Filter by level (debug, info, warn, error)")
	cmd.Flags().StringVar(&path, "path", "", "Explicit log file path (default: ~/.dictv/logs/server.log)")

	return cmd
}

func followLogs(ctx context.Context, viewer *logging.Viewer, path string) error {
	entries := make(chan logging.LogEntry, 16)
	done := make(chan error, 1)

	go func() { done <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return <-done
			}
			viewer.Print([]logging.LogEntry{entry})
		case err := <-done:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}
