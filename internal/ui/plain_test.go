package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{
		Stage:   StageReading,
		Current: 50,
		Total:   100,
		Feed:    "de-en",
	})

	output := buf.String()
	assert.Contains(t, output, "[READ]")
	assert.Contains(t, output, "50/100")
	assert.Contains(t, output, "de-en")
}

func TestPlainRenderer_UpdateProgress_NoANSICodes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	stages := []Stage{StageReading, StageAnalyzing, StageCommitting, StageComplete}
	for _, stage := range stages {
		r.UpdateProgress(ProgressEvent{
			Stage:   stage,
			Current: 50,
			Total:   100,
			Message: "Processing...",
		})
	}

	output := buf.String()
	assert.NotContains(t, output, "\x1b[", "should not contain ANSI escape codes")
	assert.NotContains(t, output, "\033[", "should not contain ANSI escape codes")
}

func TestPlainRenderer_UpdateProgress_WithMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{
		Stage:   StageAnalyzing,
		Current: 100,
		Total:   200,
		Message: "Folding diacritics...",
	})

	output := buf.String()
	assert.Contains(t, output, "[ANALYZE]")
	assert.Contains(t, output, "Folding diacritics...")
}

func TestPlainRenderer_UpdateProgress_ZeroTotal(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{
		Stage:   StageReading,
		Total:   0,
		Message: "Reading feeds...",
	})

	output := buf.String()
	assert.Contains(t, output, "[READ]")
	assert.Contains(t, output, "Reading feeds...")
	assert.NotContains(t, output, "0/0")
}

func TestPlainRenderer_AddError_Error(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{
		Feed:   "de-en",
		Err:    errors.New("malformed index line at offset 42"),
		IsWarn: false,
	})

	output := buf.String()
	assert.Contains(t, output, "ERROR:")
	assert.Contains(t, output, "de-en")
	assert.Contains(t, output, "malformed index line at offset 42")
}

func TestPlainRenderer_AddError_Warning(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{
		Feed:   "en-de",
		Err:    errors.New("entry skipped: invalid UTF-8"),
		IsWarn: true,
	})

	output := buf.String()
	assert.Contains(t, output, "WARN:")
	assert.Contains(t, output, "en-de")
	assert.Contains(t, output, "entry skipped: invalid UTF-8")
}

func TestPlainRenderer_AddError_NoFile(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{
		Err:    errors.New("connection failed"),
		IsWarn: false,
	})

	output := buf.String()
	assert.Contains(t, output, "ERROR:")
	assert.Contains(t, output, "connection failed")
}

func TestPlainRenderer_Complete_Basic(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{
		EntriesIndexed: 500,
		Duration:       5 * time.Second,
		Errors:         0,
		Warnings:       0,
	})

	output := buf.String()
	assert.Contains(t, output, "Complete:")
	assert.Contains(t, output, "500 entries")
	assert.Contains(t, output, "5s")
}

func TestPlainRenderer_Complete_WithErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{
		EntriesIndexed: 450,
		Duration:       10 * time.Second,
		Errors:         3,
		Warnings:       2,
	})

	output := buf.String()
	assert.Contains(t, output, "Complete:")
	assert.Contains(t, output, "450 entries")
	assert.Contains(t, output, "3 errors")
	assert.Contains(t, output, "2 warnings")
}

func TestPlainRenderer_Complete_NoANSICodes(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.Complete(CompletionStats{
		EntriesIndexed: 500,
		Duration:       5 * time.Second,
		Errors:         2,
		Warnings:       1,
	})

	output := buf.String()
	assert.NotContains(t, output, "\x1b[")
	assert.NotContains(t, output, "\033[")
}

func TestPlainRenderer_StartStop(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Stop())
}

func TestPlainRenderer_ThreadSafe(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			r.UpdateProgress(ProgressEvent{
				Stage:   StageReading,
				Current: n,
				Total:   100,
			})
			r.AddError(ErrorEvent{
				Feed:   "test-feed",
				Err:    errors.New("test"),
				IsWarn: n%2 == 0,
			})
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	output := buf.String()
	assert.NotEmpty(t, output)
}

func TestPlainRenderer_AllStages(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	stages := []struct {
		stage Stage
		icon  string
	}{
		{StageReading, "READ"},
		{StageAnalyzing, "ANALYZE"},
		{StageCommitting, "COMMIT"},
	}

	for _, s := range stages {
		r.UpdateProgress(ProgressEvent{
			Stage:   s.stage,
			Current: 50,
			Total:   100,
		})
	}

	output := buf.String()
	for _, s := range stages {
		assert.Contains(t, output, "["+s.icon+"]")
	}
}

func TestPlainRenderer_LongFeedName(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	longName := strings.Repeat("very-", 20) + "long-feed"
	r.UpdateProgress(ProgressEvent{
		Stage:   StageReading,
		Current: 1,
		Total:   10,
		Feed:    longName,
	})

	output := buf.String()
	assert.Contains(t, output, "long-feed")
}
