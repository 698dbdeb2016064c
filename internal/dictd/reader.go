package dictd

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/ianlewis/go-dictzip"
)

// Entry is one decoded (headword, definition) pair, in .index order.
type Entry struct {
	Word       string
	Definition string
}

// Source provides ordered, random-access iteration over a DICTD
// dictionary pair. It prefers go-dictzip's chunked random access; if the
// .dict.dz body has no RA FEXTRA subfield, it falls back to decompressing
// the whole body into memory once, which is acceptable given the ≤100MB
// sizes this format is used for.
type Source struct {
	records []Record

	dz   *dictzip.Reader
	file *os.File

	full []byte
}

// Open opens a DICTD dictionary pair. Missing files and truncated or
// malformed .dict.dz bodies are fatal; malformed individual .index lines
// are collected as warnings and returned alongside the Source.
func Open(dictPath, indexPath string) (*Source, []string, error) {
	idxFile, err := os.Open(indexPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open index %s: %w", indexPath, err)
	}
	records, warnings, err := ParseIndex(idxFile)
	_ = idxFile.Close()
	if err != nil {
		return nil, warnings, fmt.Errorf("parse index %s: %w", indexPath, err)
	}

	dictFile, err := os.Open(dictPath)
	if err != nil {
		return nil, warnings, fmt.Errorf("open dict body %s: %w", dictPath, err)
	}

	dz, err := dictzip.NewReader(dictFile)
	if err == nil {
		return &Source{records: records, dz: dz, file: dictFile}, warnings, nil
	}

	// No RA subfield (or some other header issue go-dictzip refuses):
	// fall back to decompressing the whole body once.
	if _, serr := dictFile.Seek(0, io.SeekStart); serr != nil {
		_ = dictFile.Close()
		return nil, warnings, fmt.Errorf("seek dict body %s: %w", dictPath, serr)
	}
	gz, gerr := gzip.NewReader(dictFile)
	if gerr != nil {
		_ = dictFile.Close()
		return nil, warnings, fmt.Errorf("open dict body %s as plain gzip: %w", dictPath, gerr)
	}
	full, rerr := io.ReadAll(gz)
	_ = dictFile.Close()
	if rerr != nil {
		return nil, warnings, fmt.Errorf("decompress dict body %s: %w", dictPath, rerr)
	}

	return &Source{records: records, full: full}, warnings, nil
}

// Len returns the number of parsed index records.
func (s *Source) Len() int { return len(s.records) }

// Close releases the underlying file handle, if any.
func (s *Source) Close() error {
	if s.dz != nil {
		_ = s.dz.Close()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

func (s *Source) readRange(offset, length int64) ([]byte, error) {
	if s.full != nil {
		if offset < 0 || length < 0 || offset+length > int64(len(s.full)) {
			return nil, fmt.Errorf("offset %d length %d outside uncompressed length %d", offset, length, len(s.full))
		}
		return s.full[offset : offset+length], nil
	}

	buf := make([]byte, length)
	n, err := s.dz.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) < length {
		return nil, fmt.Errorf("offset %d length %d outside uncompressed length (short read of %d bytes)", offset, length, n)
	}
	return buf, nil
}

// Each calls fn once per (headword, definition) pair in .index order.
// Zero-length definitions are skipped with a warning. Malformed UTF-8 in
// a definition is a per-record parse error: it is warned and the record
// is skipped, not fatal to the whole build. An offset or length outside
// the uncompressed stream is fatal and aborts iteration.
func (s *Source) Each(fn func(Entry) error) ([]string, error) {
	var warnings []string

	for _, rec := range s.records {
		data, err := s.readRange(rec.Offset, rec.Length)
		if err != nil {
			return warnings, fmt.Errorf("record %q: %w", rec.Headword, err)
		}
		if len(data) == 0 {
			warnings = append(warnings, fmt.Sprintf("%q: zero-length definition, skipped", rec.Headword))
			continue
		}
		if !utf8.Valid(data) {
			warnings = append(warnings, fmt.Sprintf("%q: malformed UTF-8 at offset %d, skipped", rec.Headword, rec.Offset))
			continue
		}

		if err := fn(Entry{Word: rec.Headword, Definition: string(data)}); err != nil {
			return warnings, err
		}
	}

	return warnings, nil
}
