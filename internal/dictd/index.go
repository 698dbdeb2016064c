// Package dictd reads the DICTD dictionary wire format: a random-access
// gzip body (.dict.dz) paired with a tab-separated headword index
// (.index). It wraps github.com/ianlewis/go-dictzip for the chunked
// random-access decompression and hand-parses the .index side file's
// custom base-64 integer encoding, which go-dictzip does not cover.
package dictd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Record is one parsed .index line: a headword and its byte range in the
// uncompressed .dict.dz stream.
type Record struct {
	Headword string
	Offset   int64
	Length   int64
}

// base64Alphabet is the DICTD positional integer alphabet: A=0..Z=25,
// a=26..z=51, 0=52..9=61, +=62, /=63. Most significant digit first, no
// padding.
const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Digit [256]int8

func init() {
	for i := range base64Digit {
		base64Digit[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		base64Digit[base64Alphabet[i]] = int8(i)
	}
}

// decodeB64Int decodes a DICTD base-64 positional integer. Returns an
// error if s is empty or contains a byte outside the alphabet.
func decodeB64Int(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty integer")
	}
	var v int64
	for i := 0; i < len(s); i++ {
		d := base64Digit[s[i]]
		if d < 0 {
			return 0, fmt.Errorf("invalid base64 digit %q at position %d", s[i], i)
		}
		v = v*64 + int64(d)
	}
	return v, nil
}

// ParseIndex reads a DICTD .index file and returns its records in file
// order. A single malformed line (wrong field count, bad integer) is
// skipped and recorded as a warning; parsing continues. A record with an
// empty headword is skipped with a warning as well. Returning a
// structural read error from r is the only fatal case.
func ParseIndex(r io.Reader) ([]Record, []string, error) {
	var records []Record
	var warnings []string

	scanner := bufio.NewScanner(r)
	// .index lines are short, but raise the buffer well above the default
	// 64KiB in case of unusually long definitions encoded as a single line.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			warnings = append(warnings, fmt.Sprintf("index line %d: expected 3 tab-separated fields, got %d", lineNo, len(fields)))
			continue
		}

		headword := fields[0]
		if headword == "" {
			warnings = append(warnings, fmt.Sprintf("index line %d: empty headword", lineNo))
			continue
		}

		offset, err := decodeB64Int(fields[1])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("index line %d: bad offset: %v", lineNo, err))
			continue
		}
		length, err := decodeB64Int(fields[2])
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("index line %d: bad length: %v", lineNo, err))
			continue
		}

		records = append(records, Record{Headword: headword, Offset: offset, Length: length})
	}

	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("reading index: %w", err)
	}

	return records, warnings, nil
}
