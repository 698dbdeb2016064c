package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	dictverrors "github.com/mmtftr/dictv/internal/errors"
	"github.com/mmtftr/dictv/internal/indexer"
	"github.com/mmtftr/dictv/internal/store"
	"github.com/mmtftr/dictv/internal/ui"
)

func newRebuildCmd() *cobra.Command {
	cfg := effectiveConfig()
	defaultBatchMiB := store.DefaultBatchMiB
	if cfg.Writer.BatchMiB > 0 {
		defaultBatchMiB = cfg.Writer.BatchMiB
	}

	var batchMiB int

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the search index from every imported feed",
		Long: `Rebuild scans the data root's data/ directory for .dict.dz/.index feed
pairs (as left there by 'dictv import'), re-reads every one of them, and
atomically commits a fresh index -- replacing whatever was indexed before.`,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := c.Context()
			mgr, err := openManager(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = mgr.Close() }()

			feeds, err := discoverFeeds(mgr.DataPath())
			if err != nil {
				return err
			}
			if len(feeds) == 0 {
				return dictverrors.New(dictverrors.ErrCodeFileNotFound,
					"no feeds found under data/; run 'dictv import' first", nil).
					WithSuggestion("dictv import --download de-en")
			}

			renderer := ui.NewRenderer(ui.NewConfig(c.OutOrStdout()))
			_ = renderer.Start(ctx)
			onProgress := func(stage string, processed int, feed string) {
				renderer.UpdateProgress(ui.ProgressEvent{Stage: progressStage(stage), Current: processed, Feed: feed})
			}

			opts := store.WriterOptions{BatchMiB: batchMiB}
			result, err := mgr.Rebuild(ctx, feeds, opts, onProgress)
			if err != nil {
				_ = renderer.Stop()
				return err
			}
			_ = renderer.Stop()

			fmt.Fprintf(c.OutOrStdout(), "Indexed %d entries across %d feed(s)\n", result.EntriesIndexed, len(feeds))
			for lang, n := range result.PerLanguage {
				fmt.Fprintf(c.OutOrStdout(), "  %s: %d\n", lang, n)
			}
			for _, w := range result.Warnings {
				fmt.Fprintf(c.ErrOrStderr(), "warning: %s\n", w)
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&batchMiB, "batch-mib", defaultBatchMiB, "Writer batch buffer size in MiB")

	return cmd
}

// discoverFeeds pairs up every <name>.dict.dz in dataDir with its matching
// <name>.index, using the name itself as the language tag -- the same
// convention 'dictv import' writes feeds under.
func discoverFeeds(dataDir string) ([]indexer.Feed, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, dictverrors.IOError("read data directory", err)
	}

	var feeds []indexer.Feed
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".dict.dz") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".dict.dz")
		indexPath := filepath.Join(dataDir, name+".index")
		if _, err := os.Stat(indexPath); err != nil {
			continue
		}

		feeds = append(feeds, indexer.Feed{
			DictPath:  filepath.Join(dataDir, e.Name()),
			IndexPath: indexPath,
			Language:  name,
			Name:      name,
		})
	}

	return feeds, nil
}
