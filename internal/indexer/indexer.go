// Package indexer drives the DICTD reader and the schema/store layer to
// build a committed index from one or more dictionary feeds. A build is a
// single synchronous pass: read, analyze (implicitly, via the schema's
// bleve analyzer), batch, commit once. It reports progress every 10,000
// entries the way the teacher's background indexer reports progress, but
// as a direct synchronous call rather than a goroutine-driven lifecycle —
// there is no concurrent-writer or resume model to coordinate here.
package indexer

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mmtftr/dictv/internal/dictd"
	"github.com/mmtftr/dictv/internal/schema"
	"github.com/mmtftr/dictv/internal/store"
)

// progressInterval is how often (in entries processed) progress is logged.
const progressInterval = 10_000

// ProgressFunc receives periodic progress updates during Build. stage is one
// of "reading" (streaming and indexing entries), "committing" (flushing
// the final batch and renaming the staging directory into place), or
// "complete" (reported once after a successful commit); feed is
// the name of the dictionary feed currently being read, empty once the
// build has moved past the per-feed reading stage.
type ProgressFunc func(stage string, processed int, feed string)

// Feed describes one DICTD dictionary pair to ingest into the build.
type Feed struct {
	DictPath  string
	IndexPath string
	Language  string // de-en or en-de
	Name      string // base filename, stored as SourceFeed
}

// Result summarizes a completed build.
type Result struct {
	EntriesIndexed int
	PerLanguage    map[string]int
	PerFeed        map[string]int
	Warnings       []string
}

// Build reads every feed in order, indexes each entry, and commits the
// result to indexPath. It is idempotent: running it again with the same
// feeds against the same indexPath fully replaces the previous index
// (Builder.Commit removes any index already at that path).
func Build(indexPath string, feeds []Feed, opts store.WriterOptions, log *slog.Logger, onProgress ProgressFunc) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	if onProgress == nil {
		onProgress = func(string, int, string) {}
	}

	result := Result{
		PerLanguage: make(map[string]int),
		PerFeed:     make(map[string]int),
	}

	builder, err := store.NewBuilder(indexPath, opts)
	if err != nil {
		return result, fmt.Errorf("create index builder: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = builder.Close()
		}
	}()

	processed := 0
	for _, feed := range feeds {
		name := feed.Name
		if name == "" {
			name = filepath.Base(feed.DictPath)
		}

		src, warnings, err := dictd.Open(feed.DictPath, feed.IndexPath)
		if err != nil {
			return result, fmt.Errorf("open feed %s: %w", name, err)
		}
		result.Warnings = append(result.Warnings, warnings...)

		docID := 0
		entryWarnings, err := src.Each(func(e dictd.Entry) error {
			id := fmt.Sprintf("%s/%d", name, docID)
			docID++

			if err := builder.Add(id, schema.Document{
				Word:       e.Word,
				Definition: e.Definition,
				Language:   feed.Language,
				SourceFeed: name,
			}); err != nil {
				return fmt.Errorf("add %q: %w", e.Word, err)
			}

			result.EntriesIndexed++
			result.PerLanguage[feed.Language]++
			result.PerFeed[name]++
			processed++
			if processed%progressInterval == 0 {
				log.Info("indexing progress",
					slog.Int("entries_indexed", processed),
					slog.String("current_feed", name))
				onProgress("reading", processed, name)
			}

			return nil
		})
		_ = src.Close()
		result.Warnings = append(result.Warnings, entryWarnings...)
		if err != nil {
			return result, fmt.Errorf("index feed %s: %w", name, err)
		}
		onProgress("reading", processed, name)
	}

	onProgress("committing", processed, "")
	if err := builder.Commit(); err != nil {
		return result, fmt.Errorf("commit index: %w", err)
	}
	committed = true

	log.Info("indexing complete",
		slog.Int("entries_indexed", result.EntriesIndexed),
		slog.Int("feeds", len(feeds)))
	onProgress("complete", processed, "")

	return result, nil
}
