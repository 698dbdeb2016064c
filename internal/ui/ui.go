// Package ui provides terminal progress and status display for the dictv
// CLI's import/rebuild and stats commands.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a build stage.
type Stage int

const (
	// StageReading is the DICTD feed read stage.
	StageReading Stage = iota
	// StageAnalyzing is the tokenize/fold stage.
	StageAnalyzing
	// StageCommitting is the index commit stage.
	StageCommitting
	// StageComplete indicates the build is complete.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageReading:
		return "Reading"
	case StageAnalyzing:
		return "Analyzing"
	case StageCommitting:
		return "Committing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage icon for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageReading:
		return "READ"
	case StageAnalyzing:
		return "ANALYZE"
	case StageCommitting:
		return "COMMIT"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Feed    string
	Message string
}

// ErrorEvent represents an error during processing.
type ErrorEvent struct {
	Feed   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each build stage.
type StageTimings struct {
	Read    time.Duration
	Analyze time.Duration
	Commit  time.Duration
}

// CompletionStats contains final build statistics.
type CompletionStats struct {
	EntriesIndexed int
	Duration       time.Duration
	Errors         int
	Warnings       int
	Stages         StageTimings
}

// Renderer defines the interface for progress display.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the plain text renderer. It sets cfg.NoColor from
// terminal, CI and NO_COLOR detection the same way the teacher's CLI gates
// its styled output, but PlainRenderer writes no colour codes either way.
// A dictv build runs for seconds, not minutes, so a full-screen TUI isn't
// proportionate to the work it would be displaying.
func NewRenderer(cfg Config) Renderer {
	if !cfg.ForcePlain && IsTTY(cfg.Output) && !DetectCI() {
		cfg.NoColor = cfg.NoColor || DetectNoColor()
	} else {
		cfg.NoColor = true
	}
	return NewPlainRenderer(cfg)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
