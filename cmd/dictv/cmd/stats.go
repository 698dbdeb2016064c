package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmtftr/dictv/internal/history"
	"github.com/mmtftr/dictv/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var showHistory bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index size and recent build history",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			mgr, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			stats, err := mgr.Stats(ctx)
			if err != nil {
				return err
			}

			info := ui.StatusInfo{
				TotalEntries:   int64(stats.DocCount),
				PerLanguage:    toInt64Map(stats.PerLanguage),
				IndexSizeBytes: dirSize(stats.IndexPath),
				WatcherStatus:  "running",
			}
			if stats.LastBuild != nil {
				info.LastBuildAt = stats.LastBuild.StartedAt
				if stats.LastBuild.Success {
					info.LastBuild = "success"
				} else {
					info.LastBuild = "failed"
				}
			} else {
				info.LastBuild = "n/a"
			}

			renderer := ui.NewStatusRenderer(c.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(c.OutOrStdout()))
			if jsonOut {
				if err := renderer.RenderJSON(info); err != nil {
					return err
				}
			} else if err := renderer.Render(info); err != nil {
				return err
			}

			if showHistory {
				printBuildHistory(c, stats.RecentBuilds)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showHistory, "history", false, "Show recent build history")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func toInt64Map(m map[string]uint64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = int64(v)
	}
	return out
}

func printBuildHistory(c *cobra.Command, builds []history.Build) {
	fmt.Fprintln(c.OutOrStdout(), "\nRecent builds:")
	if len(builds) == 0 {
		fmt.Fprintln(c.OutOrStdout(), "  (none)")
		return
	}
	for _, b := range builds {
		status := "success"
		if !b.Success {
			status = "failed"
		}
		fmt.Fprintf(c.OutOrStdout(), "  %s  run=%s  %6dms  %-8s  %s entries=%d\n",
			b.StartedAt.Format(time.RFC3339), b.RunID, b.DurationMs, status, b.SourceFeeds, b.EntriesIndexed)
		if b.ErrorMessage != "" {
			fmt.Fprintf(c.OutOrStdout(), "    error: %s\n", b.ErrorMessage)
		}
	}
}

// dirSize mirrors internal/httpapi's dirSize, recomputed here so the CLI
// doesn't need to import the HTTP package just for this helper.
func dirSize(path string) int64 {
	var total int64
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if e.IsDir() {
			total += dirSize(filepath.Join(path, e.Name()))
			continue
		}
		total += info.Size()
	}
	return total
}
