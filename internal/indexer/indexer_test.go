package indexer

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/ianlewis/go-dictzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmtftr/dictv/internal/schema"
	"github.com/mmtftr/dictv/internal/store"
)

// writeFeed builds a synthetic .dict.dz/.index pair for (word, definition)
// pairs under dir, using the real go-dictzip writer for the body and the
// DICTD base64 alphabet for the index offsets/lengths.
func writeFeed(t *testing.T, dir, name string, entries [][2]string) (dictPath, indexPath string) {
	t.Helper()

	dictPath = filepath.Join(dir, name+".dict.dz")
	indexPath = filepath.Join(dir, name+".index")

	f, err := os.Create(dictPath)
	require.NoError(t, err)
	defer f.Close()

	w, err := dictzip.NewWriter(f)
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	encode := func(v int64) string {
		if v == 0 {
			return "A"
		}
		var digits []byte
		for v > 0 {
			digits = append([]byte{alphabet[v%64]}, digits...)
			v /= 64
		}
		return string(digits)
	}

	var idx []byte
	var offset int64
	for _, e := range entries {
		n, err := w.Write([]byte(e[1]))
		require.NoError(t, err)
		idx = append(idx, []byte(e[0]+"\t"+encode(offset)+"\t"+encode(int64(n))+"\n")...)
		offset += int64(n)
	}
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(indexPath, idx, 0o644))
	return dictPath, indexPath
}

func TestBuild_IndexesMultipleFeeds(t *testing.T) {
	// Given: two feeds in different languages
	dir := t.TempDir()
	deDict, deIndex := writeFeed(t, dir, "de-en", [][2]string{
		{"haus", "house"},
		{"brot", "bread"},
	})
	enDict, enIndex := writeFeed(t, dir, "en-de", [][2]string{
		{"house", "haus"},
	})

	indexPath := filepath.Join(dir, "index")
	feeds := []Feed{
		{DictPath: deDict, IndexPath: deIndex, Language: "de-en", Name: "de-en"},
		{DictPath: enDict, IndexPath: enIndex, Language: "en-de", Name: "en-de"},
	}

	// When: building the index
	result, err := Build(indexPath, feeds, store.WriterOptions{}, slog.New(slog.NewTextHandler(os.Stderr, nil)), nil)

	// Then: all entries are counted per-language and per-feed
	require.NoError(t, err)
	assert.Equal(t, 3, result.EntriesIndexed)
	assert.Equal(t, 2, result.PerLanguage["de-en"])
	assert.Equal(t, 1, result.PerLanguage["en-de"])
	assert.Equal(t, 2, result.PerFeed["de-en"])
	assert.Equal(t, 1, result.PerFeed["en-de"])

	// And: the committed index is queryable
	s, err := store.Open(indexPath)
	require.NoError(t, err)
	defer s.Close()

	idx, err := s.Index()
	require.NoError(t, err)
	q := bleve.NewTermQuery("haus")
	q.SetField(schema.WordField)
	searchResult, err := idx.Search(bleve.NewSearchRequest(q))
	require.NoError(t, err)
	s.Release()
	assert.Equal(t, uint64(1), searchResult.Total)
}

func TestBuild_IsIdempotentOverSameInputs(t *testing.T) {
	// Given: a feed and a target index path
	dir := t.TempDir()
	dictPath, indexPath := writeFeed(t, dir, "de-en", [][2]string{{"haus", "house"}})
	target := filepath.Join(dir, "index")
	feeds := []Feed{{DictPath: dictPath, IndexPath: indexPath, Language: "de-en", Name: "de-en"}}

	// When: building twice against the same target
	_, err := Build(target, feeds, store.WriterOptions{}, nil, nil)
	require.NoError(t, err)
	result2, err := Build(target, feeds, store.WriterOptions{}, nil, nil)

	// Then: the second build succeeds and the entry count is unchanged,
	// not doubled
	require.NoError(t, err)
	assert.Equal(t, 1, result2.EntriesIndexed)

	s, err := store.Open(target)
	require.NoError(t, err)
	defer s.Close()
	idx, err := s.Index()
	require.NoError(t, err)
	count, err := idx.DocCount()
	require.NoError(t, err)
	s.Release()
	assert.Equal(t, uint64(1), count)
}

func TestBuild_ReportsProgressThroughStages(t *testing.T) {
	dir := t.TempDir()
	dictPath, indexPath := writeFeed(t, dir, "de-en", [][2]string{{"haus", "house"}})
	target := filepath.Join(dir, "index")
	feeds := []Feed{{DictPath: dictPath, IndexPath: indexPath, Language: "de-en", Name: "de-en"}}

	var stages []string
	_, err := Build(target, feeds, store.WriterOptions{}, nil, func(stage string, _ int, _ string) {
		if len(stages) == 0 || stages[len(stages)-1] != stage {
			stages = append(stages, stage)
		}
	})
	require.NoError(t, err)

	require.Contains(t, stages, "reading")
	require.Contains(t, stages, "committing")
	assert.Equal(t, "complete", stages[len(stages)-1])
}

func TestBuild_FailsOnMissingFeedFatally(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "index")
	feeds := []Feed{{DictPath: filepath.Join(dir, "missing.dict.dz"), IndexPath: filepath.Join(dir, "missing.index"), Language: "de-en"}}

	_, err := Build(target, feeds, store.WriterOptions{}, nil, nil)
	require.Error(t, err)

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr))
}
