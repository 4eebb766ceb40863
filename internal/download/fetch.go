// SPDX-License-Identifier: MPL-2.0

package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

type (
	// Fetcher is the network capability used by the Manager.
	Fetcher interface {
		// Size returns the remote size in bytes.
		Size(ctx context.Context, url string) (int64, error)
		// Fetch stores the body of url at dest. A failed fetch leaves no
		// file at dest.
		Fetch(ctx context.Context, url, dest string) error
	}

	// HTTPFetcher fetches over HTTP(S).
	HTTPFetcher struct {
		httpClient *http.Client
		userAgent  string
	}

	// FetcherOption configures an HTTPFetcher.
	FetcherOption func(*HTTPFetcher)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// NewHTTPFetcher creates an HTTPFetcher using http.DefaultClient.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient: http.DefaultClient,
		userAgent:  "kmake/dev",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Size implements Fetcher with a HEAD request.
func (f *HTTPFetcher) Size(ctx context.Context, url string) (int64, error) {
	resp, err := f.doRequest(ctx, http.MethodHead, url)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close() // HEAD has no body

	if resp.ContentLength < 0 {
		return 0, errors.New("server did not report a content length")
	}
	return resp.ContentLength, nil
}

// Fetch implements Fetcher. The body is written to a temp file next to dest
// and renamed into place once complete.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) (err error) {
	resp, err := f.doRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".kmake-download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("moving download into place: %w", err)
	}
	return nil
}

func (f *HTTPFetcher) doRequest(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s returned %s", ErrHTTPStatus, method, url, resp.Status)
	}
	return resp, nil
}
