// Package store wraps a bleve index with the mutex-guarded, closed-flag
// idiom the teacher's BleveBM25Index uses, plus an atomic build-then-
// rename commit path: a new index is always built under a temporary
// directory and only made visible at its final path via os.Rename, so a
// failed or interrupted build never leaves a partial index where readers
// expect one.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/mmtftr/dictv/internal/analyzer"
	"github.com/mmtftr/dictv/internal/schema"
)

// DefaultBatchMiB is the default bounded writer buffer size.
const DefaultBatchMiB = 100

// MinBatchMiB is the lowest writer buffer size accepted; smaller values
// are clamped up to this floor.
const MinBatchMiB = 50

// SchemaVersion identifies the shape of the index mapping (field set,
// field analyzers) this build of dictv produces. It is persisted into
// meta.json and checked on open, the same way AnalyzerID is.
const SchemaVersion = 1

// MetaFileName is the metadata file written alongside an index's segment
// files, recording schema version, analyzer identity, and per-language
// entry counts.
const MetaFileName = "meta.json"

// Meta is an index's IndexLayout metadata, written once at commit time and
// never mutated afterward.
type Meta struct {
	SchemaVersion int              `json:"schema_version"`
	AnalyzerID    string           `json:"analyzer_id"`
	PerLanguage   map[string]int64 `json:"per_language"`
	TotalEntries  int64            `json:"total_entries"`
}

func writeMeta(indexDir string, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", MetaFileName, err)
	}
	return os.WriteFile(filepath.Join(indexDir, MetaFileName), data, 0o644)
}

func readMeta(indexDir string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(indexDir, MetaFileName))
	if err != nil {
		return Meta{}, fmt.Errorf("read %s: %w", MetaFileName, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parse %s: %w", MetaFileName, err)
	}
	return meta, nil
}

// WriterOptions configures a Builder's batching behavior.
type WriterOptions struct {
	// BatchMiB bounds how much uncommitted document data accumulates in a
	// single bleve.Batch before it is flushed. Clamped to [MinBatchMiB, ∞).
	BatchMiB int
}

func (o WriterOptions) batchBytes() int64 {
	mib := o.BatchMiB
	if mib < MinBatchMiB {
		mib = MinBatchMiB
	}
	return int64(mib) * 1024 * 1024
}

// Store wraps an opened bleve.Index for read queries. It is safe for
// concurrent use; Close is idempotent.
//
// Close is reference-counted against in-flight Index() callers via wg: a
// manager that swaps in a fresh Store and calls Close on the superseded one
// blocks until every query already holding its index via Index() has called
// Release, so a request never sees SearchInContext invoked against a
// segment set closed out from under it (spec.md §5's "in-flight requests
// continue against the old snapshot until they complete" guarantee).
type Store struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	meta   Meta
	closed bool
	wg     sync.WaitGroup
}

// Open opens an existing index directory for read access, refusing to open
// one whose persisted meta.json disagrees with this build's schema version
// or analyzer identity (spec.md §9: "refuse to open a reader whose analyzer
// tag the current build does not implement").
func Open(path string) (*Store, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index at %s: %w", path, err)
	}

	meta, err := readMeta(path)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("open index at %s: %w", path, err)
	}
	if meta.AnalyzerID != analyzer.ID {
		_ = idx.Close()
		return nil, fmt.Errorf("open index at %s: built with analyzer %q, current analyzer is %q; rebuild required", path, meta.AnalyzerID, analyzer.ID)
	}
	if meta.SchemaVersion != SchemaVersion {
		_ = idx.Close()
		return nil, fmt.Errorf("open index at %s: built with schema version %d, current schema version is %d; rebuild required", path, meta.SchemaVersion, SchemaVersion)
	}

	return &Store{index: idx, path: path, meta: meta}, nil
}

// Index returns the underlying bleve.Index for query compilation. The
// caller must call Release exactly once when done using it, and must not
// call Close on the returned index directly.
func (s *Store) Index() (bleve.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	s.wg.Add(1)
	return s.index, nil
}

// Release signals that a caller is done with an index handle obtained from
// Index. Every successful Index call must be paired with exactly one
// Release call, typically via defer.
func (s *Store) Release() {
	s.wg.Done()
}

// Path returns the directory this store was opened from.
func (s *Store) Path() string { return s.path }

// Meta returns the index's persisted metadata (schema version, analyzer id,
// per-language entry counts).
func (s *Store) Meta() Meta { return s.meta }

// Close marks the store closed to new Index() callers, waits for every
// caller already holding an index handle to Release it, and then releases
// the underlying index. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	return s.index.Close()
}

// Builder drives a fresh index build under a staging directory. Call
// Add repeatedly, then Commit to atomically publish the result at
// finalPath.
type Builder struct {
	opts       WriterOptions
	stagingDir string
	finalPath  string
	index      bleve.Index
	batch      *bleve.Batch
	batchBytes int64
	committed  bool
	counts     map[string]int64
}

// NewBuilder creates a fresh bleve index under a sibling temp directory of
// finalPath. The staging directory is removed if Commit is never called
// (or Close is invoked instead), leaving finalPath untouched.
func NewBuilder(finalPath string, opts WriterOptions) (*Builder, error) {
	parent := filepath.Dir(finalPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create index parent dir %s: %w", parent, err)
	}

	stagingDir, err := os.MkdirTemp(parent, ".dictv-build-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	indexMapping, err := schema.New()
	if err != nil {
		_ = os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	indexPath := filepath.Join(stagingDir, "index")
	idx, err := bleve.New(indexPath, indexMapping)
	if err != nil {
		_ = os.RemoveAll(stagingDir)
		return nil, fmt.Errorf("create staging index at %s: %w", indexPath, err)
	}

	return &Builder{
		opts:       opts,
		stagingDir: stagingDir,
		finalPath:  finalPath,
		index:      idx,
		batch:      idx.NewBatch(),
		counts:     make(map[string]int64),
	}, nil
}

// Add queues a document for indexing, flushing the current batch first
// if adding it would exceed the configured batch size. WordKey is derived
// from Word via analyzer.Key when the caller leaves it unset, so every
// caller gets the same single-term collapsed field the query compiler
// matches against without having to compute it itself.
func (b *Builder) Add(id string, doc schema.Document) error {
	if doc.WordKey == "" {
		doc.WordKey = analyzer.Key(doc.Word)
	}

	approxSize := int64(len(doc.Word) + len(doc.Definition) + len(doc.Language) + len(doc.SourceFeed))
	if b.batchBytes+approxSize > b.opts.batchBytes() && b.batch.Size() > 0 {
		if err := b.flush(); err != nil {
			return err
		}
	}

	if err := b.batch.Index(id, doc); err != nil {
		return fmt.Errorf("queue document %s: %w", id, err)
	}
	b.batchBytes += approxSize
	b.counts[doc.Language]++
	return nil
}

func (b *Builder) flush() error {
	if b.batch.Size() == 0 {
		return nil
	}
	if err := b.index.Batch(b.batch); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	b.batch = b.index.NewBatch()
	b.batchBytes = 0
	return nil
}

// Commit flushes any remaining documents, closes the staging index, writes
// meta.json (schema version, analyzer id, per-language counts) alongside
// it, and atomically renames the staging directory's index subdirectory
// onto finalPath, replacing whatever was there before. meta.json moves
// with the rename, so it is never visible at finalPath without a complete,
// consistent index alongside it.
func (b *Builder) Commit() error {
	if err := b.flush(); err != nil {
		return err
	}
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close staging index: %w", err)
	}

	stagedIndexPath := filepath.Join(b.stagingDir, "index")

	var total int64
	perLanguage := make(map[string]int64, len(b.counts))
	for lang, n := range b.counts {
		perLanguage[lang] = n
		total += n
	}
	meta := Meta{
		SchemaVersion: SchemaVersion,
		AnalyzerID:    analyzer.ID,
		PerLanguage:   perLanguage,
		TotalEntries:  total,
	}
	if err := writeMeta(stagedIndexPath, meta); err != nil {
		return fmt.Errorf("write index metadata: %w", err)
	}

	if err := os.RemoveAll(b.finalPath); err != nil {
		return fmt.Errorf("remove previous index at %s: %w", b.finalPath, err)
	}
	if err := os.Rename(stagedIndexPath, b.finalPath); err != nil {
		return fmt.Errorf("publish index to %s: %w", b.finalPath, err)
	}
	b.committed = true

	return os.RemoveAll(b.stagingDir)
}

// Close discards the staging build without publishing it. Safe to call
// after Commit (no-op).
func (b *Builder) Close() error {
	if b.committed {
		return nil
	}
	_ = b.index.Close()
	return os.RemoveAll(b.stagingDir)
}
