// Package fetch downloads DICTD feed pairs (.dict.dz + .index) over plain
// net/http into the data root, retrying transient failures with the
// teacher's exponential backoff and fetching multiple feeds concurrently
// via an errgroup.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	dictverrors "github.com/mmtftr/dictv/internal/errors"
)

// Feed names one DICTD pair to download by URL.
type Feed struct {
	Name      string // base name, e.g. "de-en"
	Language  string
	DictURL   string
	IndexURL  string
}

// Result is the on-disk outcome of downloading one Feed.
type Result struct {
	Name      string
	Language  string
	DictPath  string
	IndexPath string
}

// Client downloads feed pairs into a destination directory.
type Client struct {
	HTTP        *http.Client
	RetryConfig dictverrors.RetryConfig

	// breaker is shared across every feed a Client downloads: a dictionary
	// mirror that's down for one feed is usually down for all of them, so a
	// run of failures on "de-en" should fail fast on "en-de" too rather than
	// burning the full retry budget against a host that's already unreachable.
	breaker *dictverrors.CircuitBreaker
}

// NewClient builds a Client with sane request timeouts, the teacher's
// default exponential backoff (3 retries, 1s initial delay, 16s cap), and a
// circuit breaker that opens after repeated download failures.
func NewClient() *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: 2 * time.Minute},
		RetryConfig: dictverrors.DefaultRetryConfig(),
		breaker:     dictverrors.NewCircuitBreaker("feed-download"),
	}
}

// FetchAll downloads every feed concurrently into destDir, bounded by
// errgroup's shared-context cancellation: the first unrecoverable failure
// cancels the remaining in-flight downloads.
func (c *Client) FetchAll(ctx context.Context, feeds []Feed, destDir string) ([]Result, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, dictverrors.New(dictverrors.ErrCodeDataRootInvalid, "create download destination", err)
	}

	results := make([]Result, len(feeds))
	g, ctx := errgroup.WithContext(ctx)

	for i, feed := range feeds {
		i, feed := i, feed
		g.Go(func() error {
			res, err := c.fetchOne(ctx, feed, destDir)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) fetchOne(ctx context.Context, feed Feed, destDir string) (Result, error) {
	dictPath := filepath.Join(destDir, feed.Name+".dict.dz")
	indexPath := filepath.Join(destDir, feed.Name+".index")

	if err := c.breaker.Execute(func() error {
		return dictverrors.Retry(ctx, c.RetryConfig, func() error {
			return c.download(ctx, feed.DictURL, dictPath)
		})
	}); err != nil {
		return Result{}, dictverrors.New(dictverrors.ErrCodeFeedDownloadFailed,
			fmt.Sprintf("download %s dict file", feed.Name), err)
	}

	if err := c.breaker.Execute(func() error {
		return dictverrors.Retry(ctx, c.RetryConfig, func() error {
			return c.download(ctx, feed.IndexURL, indexPath)
		})
	}); err != nil {
		return Result{}, dictverrors.New(dictverrors.ErrCodeFeedDownloadFailed,
			fmt.Sprintf("download %s index file", feed.Name), err)
	}

	return Result{
		Name:      feed.Name,
		Language:  feed.Language,
		DictPath:  dictPath,
		IndexPath: indexPath,
	}, nil
}

// download streams one URL to destPath via a temp-file-then-rename so a
// failed or cancelled attempt never leaves a truncated file at destPath for
// a later retry to read.
func (c *Client) download(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, destPath)
}
