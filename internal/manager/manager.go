// Package manager owns the on-disk data root ($HOME/.dictv by default),
// brokers single-writer access to index builds, and keeps a live reader
// handle that swaps atomically when a new index is committed. Locking is
// grounded on the teacher's internal/embed.FileLock (gofrs/flock); the
// reader-swap-on-commit watch is grounded on internal/watcher's
// fsnotify-primary/poll-fallback HybridWatcher.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/blevesearch/bleve/v2"

	dictverrors "github.com/mmtftr/dictv/internal/errors"
	"github.com/mmtftr/dictv/internal/history"
	"github.com/mmtftr/dictv/internal/indexer"
	"github.com/mmtftr/dictv/internal/schema"
	"github.com/mmtftr/dictv/internal/store"
	"github.com/mmtftr/dictv/internal/watcher"
)

const buildLockName = ".build.lock"

// Manager owns the data root layout and the live index reader.
type Manager struct {
	root string
	log  *slog.Logger

	buildLock *flock.Flock

	mu     sync.RWMutex
	reader *store.Store

	watcherCancel context.CancelFunc
	hw            *watcher.HybridWatcher

	history *history.Store

	swapMu        sync.Mutex
	swapListeners []func()
}

// Stats summarizes the current index for reporting.
type Stats struct {
	DataRoot       string
	IndexPath      string
	DocCount       uint64
	PerLanguage    map[string]uint64
	LastBuild      *history.Build
	RecentBuilds   []history.Build
	IndexAvailable bool
}

// Open resolves the data root (creating data/ and index/ subdirectories if
// needed), opens the build-history database, opens the current index for
// reading if one exists, and starts watching the data root for committed
// renames of index/.
func Open(ctx context.Context, root string, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, dictverrors.New(dictverrors.ErrCodeDataRootInvalid, "cannot resolve home directory", err)
		}
		root = filepath.Join(home, ".dictv")
	}

	for _, sub := range []string{"data", "index"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, dictverrors.New(dictverrors.ErrCodeDataRootInvalid, fmt.Sprintf("create %s dir", sub), err)
		}
	}

	hist, err := history.Open(filepath.Join(root, "dictv.db"))
	if err != nil {
		return nil, err
	}

	m := &Manager{
		root:      root,
		log:       log,
		buildLock: flock.New(filepath.Join(root, buildLockName)),
		history:   hist,
	}

	if s, err := store.Open(m.IndexPath()); err == nil {
		m.reader = s
	}

	if err := m.startWatch(ctx); err != nil {
		log.Warn("index watch unavailable, reader will not auto-swap on external commit", slog.String("error", err.Error()))
	}

	return m, nil
}

// DataRoot returns the root directory this manager was opened with.
func (m *Manager) DataRoot() string { return m.root }

// DataPath returns the data/ subdirectory holding raw DICTD feed files.
func (m *Manager) DataPath() string { return filepath.Join(m.root, "data") }

// IndexPath returns the index/ subdirectory holding the committed bleve index.
func (m *Manager) IndexPath() string { return filepath.Join(m.root, "index") }

// OnReaderSwap registers fn to be called every time swapReader installs a
// freshly committed index, whether triggered by Rebuild in this process or
// by startWatch noticing a commit from a separate 'dictv rebuild' process.
// httpapi.Server uses this to purge its query result cache, whose entries
// would otherwise keep referencing the superseded index generation.
func (m *Manager) OnReaderSwap(fn func()) {
	m.swapMu.Lock()
	defer m.swapMu.Unlock()
	m.swapListeners = append(m.swapListeners, fn)
}

func (m *Manager) notifyReaderSwap() {
	m.swapMu.Lock()
	listeners := append([]func(){}, m.swapListeners...)
	m.swapMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Reader returns the currently live index store for queries, or an error if
// no index has ever been committed.
func (m *Manager) Reader() (*store.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.reader == nil {
		return nil, dictverrors.New(dictverrors.ErrCodeIndexCorrupt, "no index committed yet", nil)
	}
	return m.reader, nil
}

// Rebuild acquires the single-writer build lock (non-blocking — a concurrent
// rebuild attempt is rejected rather than queued), runs indexer.Build against
// a fresh staging directory, swaps the live reader on success, and records
// the attempt in build history regardless of outcome. onProgress is optional
// (nil is fine) and, if given, is forwarded to indexer.Build so a caller such
// as the CLI can render live stage/entry-count progress.
func (m *Manager) Rebuild(ctx context.Context, feeds []indexer.Feed, opts store.WriterOptions, onProgress indexer.ProgressFunc) (indexer.Result, error) {
	locked, err := m.buildLock.TryLock()
	if err != nil {
		return indexer.Result{}, dictverrors.New(dictverrors.ErrCodeConcurrentBuild, "acquire build lock", err)
	}
	if !locked {
		return indexer.Result{}, dictverrors.ConcurrencyError("another build is already in progress", nil)
	}
	defer func() { _ = m.buildLock.Unlock() }()

	runID := history.NewRunID()
	m.log.Info("build started", slog.String("run_id", runID))

	start := time.Now()
	result, buildErr := indexer.Build(m.IndexPath(), feeds, opts, m.log, onProgress)
	duration := time.Since(start)

	feedNames := ""
	for i, f := range feeds {
		if i > 0 {
			feedNames += ","
		}
		feedNames += f.Name
	}

	record := history.Build{
		RunID:          runID,
		StartedAt:      start,
		DurationMs:     duration.Milliseconds(),
		SourceFeeds:    feedNames,
		EntriesIndexed: result.EntriesIndexed,
		Success:        buildErr == nil,
	}
	if buildErr != nil {
		record.ErrorMessage = buildErr.Error()
	}
	if err := m.history.Record(ctx, record); err != nil {
		m.log.Warn("failed to record build history", slog.String("error", err.Error()))
	}

	if buildErr != nil {
		return result, buildErr
	}

	if err := m.swapReader(); err != nil {
		return result, dictverrors.New(dictverrors.ErrCodeIndexCorrupt, "open newly committed index", err)
	}

	return result, nil
}

// Delete removes the committed index entirely, releasing the reader first.
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reader != nil {
		_ = m.reader.Close()
		m.reader = nil
	}
	if err := os.RemoveAll(m.IndexPath()); err != nil {
		return dictverrors.New(dictverrors.ErrCodeFilePermission, "delete index", err)
	}
	return os.MkdirAll(m.IndexPath(), 0o755)
}

// Stats reports the current index document count and recent build history.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{DataRoot: m.root, IndexPath: m.IndexPath()}

	m.mu.RLock()
	reader := m.reader
	m.mu.RUnlock()

	if reader != nil {
		idx, err := reader.Index()
		if err == nil {
			if count, err := idx.DocCount(); err == nil {
				stats.DocCount = count
				stats.IndexAvailable = true
				stats.PerLanguage = perLanguageCounts(idx)
			}
			reader.Release()
		}
	}

	builds, err := m.history.Recent(ctx, 10)
	if err != nil {
		return stats, err
	}
	stats.RecentBuilds = builds
	if len(builds) > 0 {
		stats.LastBuild = &builds[0]
	}

	return stats, nil
}

// perLanguageCounts runs a zero-result term query per known language tag
// and reads back Total, the cheapest way to get a per-language document
// count out of bleve without a dedicated facet request.
func perLanguageCounts(idx bleve.Index) map[string]uint64 {
	languages := []string{"de-en", "en-de"}
	counts := make(map[string]uint64, len(languages))

	for _, lang := range languages {
		q := bleve.NewTermQuery(lang)
		q.SetField(schema.LanguageField)
		req := bleve.NewSearchRequest(q)
		req.Size = 0

		result, err := idx.Search(req)
		if err != nil {
			continue
		}
		counts[lang] = result.Total
	}

	return counts
}

// swapReader opens the freshly committed index and atomically replaces the
// live reader, closing the previous one only after the new one is in place.
func (m *Manager) swapReader() error {
	newReader, err := store.Open(m.IndexPath())
	if err != nil {
		return err
	}

	m.mu.Lock()
	old := m.reader
	m.reader = newReader
	m.mu.Unlock()

	m.notifyReaderSwap()

	if old != nil {
		return old.Close()
	}
	return nil
}

// startWatch launches a HybridWatcher on the data root so a long-lived
// server process notices an index committed by a separate `dictv rebuild`
// invocation and swaps its reader without a restart. It watches the root
// rather than index/ itself because Builder.Commit replaces that directory
// wholesale (remove, then rename); a watch on the entry being replaced would
// be invalidated by the very event it's meant to observe.
func (m *Manager) startWatch(ctx context.Context) error {
	opts := watcher.DefaultOptions()
	opts.IgnorePatterns = []string{"data"}

	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := hw.Start(watchCtx, m.root); err != nil && err != context.Canceled {
			m.log.Warn("index watch stopped", slog.String("error", err.Error()))
		}
	}()

	m.hw = hw
	m.watcherCancel = cancel

	go func() {
		for batch := range hw.Events() {
			if !batchTouchesIndex(batch) {
				continue
			}
			if err := m.swapReader(); err != nil {
				m.log.Warn("index reader swap after external commit failed", slog.String("error", err.Error()))
			} else {
				m.log.Info("index reader swapped after external commit")
			}
		}
	}()

	return nil
}

// batchTouchesIndex reports whether any event in batch concerns the index/
// entry itself (its top-level path component), as opposed to unrelated
// churn elsewhere under the data root.
func batchTouchesIndex(batch []watcher.FileEvent) bool {
	for _, ev := range batch {
		top := ev.Path
		if i := indexOfSeparator(top); i >= 0 {
			top = top[:i]
		}
		if top == "index" {
			return true
		}
	}
	return false
}

func indexOfSeparator(path string) int {
	for i, r := range path {
		if r == '/' {
			return i
		}
	}
	return -1
}

// Close releases the watcher, the live reader, and the history database.
func (m *Manager) Close() error {
	if m.watcherCancel != nil {
		m.watcherCancel()
	}
	if m.hw != nil {
		_ = m.hw.Stop()
	}

	m.mu.Lock()
	if m.reader != nil {
		_ = m.reader.Close()
		m.reader = nil
	}
	m.mu.Unlock()

	if m.history != nil {
		return m.history.Close()
	}
	return nil
}
