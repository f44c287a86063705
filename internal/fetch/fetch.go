// Package fetch downloads release assets into a scratch directory.
//
// Downloads never touch the install root. Only HTTPS URLs are accepted and
// compressed transfer encodings are refused so the bytes on disk are the
// bytes upstream published.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsukumogami/nativedep/internal/httputil"
	"github.com/tsukumogami/nativedep/internal/log"
	"github.com/tsukumogami/nativedep/internal/progress"
)

// Target identifies what to download.
type Target struct {
	URL string

	// Name is the file name inside the destination directory. Defaults to
	// the last path segment of URL.
	Name string

	// Size is the expected length in bytes, or 0 when unknown. A
	// Content-Length header takes precedence.
	Size int64
}

// Fetcher downloads files with one retry on failure.
type Fetcher struct {
	client      *http.Client
	retryDelay  time.Duration
	progressOut io.Writer
	logger      log.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetryDelay sets the wait before the retry.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.retryDelay = d }
}

// WithProgress draws a progress bar on w when it is a terminal.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) { f.progressOut = w }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher. timeout bounds each attempt including the body.
func New(timeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:     httputil.NewClient(httputil.Options{Timeout: timeout}),
		retryDelay: 2 * time.Second,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads t into dir and returns the file path. A failed attempt's
// partial file is removed before the retry and after the final failure.
func (f *Fetcher) Fetch(ctx context.Context, t Target, dir string) (string, error) {
	display := log.SanitizeURL(t.URL)
	name, err := fileName(t)
	if err != nil {
		return "", &Error{Kind: Network, URL: display, Err: err, permanent: true}
	}
	dest := filepath.Join(dir, name)

	policy := httputil.RetryPolicy{
		Attempts:  2,
		Delay:     f.retryDelay,
		Retryable: retryable,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			f.logger.Warn("download failed, retrying", "url", display, "attempt", attempt, "delay", delay, "error", err)
		},
	}
	err = policy.Do(ctx, func(ctx context.Context) error {
		err := f.once(ctx, t, dest, display)
		if err != nil {
			_ = os.Remove(dest)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	f.logger.Debug("downloaded", "url", display, "path", dest)
	return dest, nil
}

func (f *Fetcher) once(ctx context.Context, t Target, dest, display string) error {
	u, err := url.Parse(t.URL)
	if err != nil || u.Scheme != "https" {
		return &Error{Kind: Network, URL: display, Err: errors.New("download URL must use HTTPS"), permanent: true}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return &Error{Kind: Network, URL: display, Err: err, permanent: true}
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		return &Error{Kind: Network, URL: display, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: Network, URL: display, Err: fmt.Errorf("unexpected status %s", resp.Status),
			permanent: resp.StatusCode >= 400 && resp.StatusCode < 500 &&
				resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests}
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return &Error{Kind: Network, URL: display, Err: fmt.Errorf("refusing %s-encoded response", enc), permanent: true}
	}

	expected := t.Size
	if resp.ContentLength > 0 {
		expected = resp.ContentLength
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return &Error{Kind: Network, URL: display, Err: err, permanent: true}
	}

	var body io.Reader = resp.Body
	if f.progressOut != nil && progress.Enabled(f.progressOut) {
		bar := progress.NewBar(f.progressOut, filepath.Base(dest), expected)
		defer bar.Finish()
		body = io.TeeReader(resp.Body, bar)
	}

	n, copyErr := io.Copy(out, body)
	closeErr := out.Close()

	switch {
	case copyErr != nil && errors.Is(copyErr, io.ErrUnexpectedEOF):
		return &Error{Kind: Incomplete, URL: display, Err: fmt.Errorf("received %d of %d bytes: %w", n, expected, copyErr)}
	case copyErr != nil:
		return &Error{Kind: Network, URL: display, Err: copyErr}
	case closeErr != nil:
		return &Error{Kind: Network, URL: display, Err: closeErr, permanent: true}
	case expected > 0 && n < expected:
		return &Error{Kind: Incomplete, URL: display, Err: fmt.Errorf("received %d of %d bytes", n, expected)}
	}
	return nil
}

func fileName(t Target) (string, error) {
	name := t.Name
	if name == "" {
		u, err := url.Parse(t.URL)
		if err != nil {
			return "", err
		}
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("cannot derive a file name from %q", name)
	}
	return name, nil
}
