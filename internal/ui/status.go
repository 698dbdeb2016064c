package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusInfo contains index health information for `dictv stats`.
type StatusInfo struct {
	TotalEntries int64            `json:"total_entries"`
	PerLanguage  map[string]int64 `json:"per_language"`
	LastBuildAt  time.Time        `json:"last_build_at"`
	LastBuild    string           `json:"last_build_status"` // "success", "failed", "n/a"

	IndexSizeBytes int64 `json:"index_size_bytes"`

	WatcherStatus string `json:"watcher_status"` // "running", "stopped", "n/a"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status"))

	_, _ = fmt.Fprintf(r.out, "  Entries: %d\n", info.TotalEntries)
	for _, lang := range []string{"de-en", "en-de"} {
		if count, ok := info.PerLanguage[lang]; ok {
			_, _ = fmt.Fprintf(r.out, "    %s: %d\n", lang, count)
		}
	}
	if !info.LastBuildAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last build: %s (%s)\n", humanize.Time(info.LastBuildAt), r.renderStatus(info.LastBuild))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Index size: %s\n", FormatBytes(info.IndexSizeBytes))

	if info.WatcherStatus != "" && info.WatcherStatus != "n/a" {
		_, _ = fmt.Fprintf(r.out, "  Watcher: %s\n", r.renderStatus(info.WatcherStatus))
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "success", "running":
		return r.styles.Success.Render(status)
	case "stopped":
		return r.styles.Warning.Render(status)
	case "failed":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
