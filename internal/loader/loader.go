// Package loader fetches an application bundle, preferring a precompressed
// variant and reporting indeterminate progress while it works.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"devlens/internal/debug"

	"github.com/andybalholm/brotli"
)

// ErrNoCandidates is returned when the bundle URL is blank.
var ErrNoCandidates = errors.New("no bundle candidates")

// DefaultExtensions are the bundle extensions that get a ".br" candidate.
var DefaultExtensions = []string{".wasm"}

const brotliSuffix = ".br"

// CandidateURLs lists the URLs to try for url, in order. When the path ends
// in one of exts the brotli variant comes first; the query is kept on every
// candidate. A blank url yields nil.
func CandidateURLs(url string, exts ...string) []string {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	base, query := trimmed, ""
	if i := strings.Index(trimmed, "?"); i >= 0 {
		base, query = trimmed[:i], trimmed[i:]
	}
	var urls []string
	if !strings.HasSuffix(base, brotliSuffix) {
		for _, ext := range exts {
			if strings.HasSuffix(base, ext) {
				urls = append(urls, base+brotliSuffix+query)
				break
			}
		}
	}
	return append(urls, trimmed)
}

// CandidatesError reports that every candidate failed.
type CandidatesError struct {
	URLs []string
	Errs []error
}

func (e *CandidatesError) Error() string {
	return "failed to load bundle from candidates: " + strings.Join(e.URLs, ", ")
}

func (e *CandidatesError) Unwrap() []error {
	return e.Errs
}

// Fetcher downloads bundles.
type Fetcher struct {
	Client     *http.Client
	Extensions []string
}

// Result is a downloaded bundle.
type Result struct {
	URL  string
	Data []byte
}

// Fetch tries each candidate in order and returns the first success.
// Progress, when non-nil, is finished on success and removed on failure.
func (f *Fetcher) Fetch(ctx context.Context, url string, p *Progress) (Result, error) {
	urls := CandidateURLs(url, f.Extensions...)
	if len(urls) == 0 {
		return Result{}, ErrNoCandidates
	}
	var errs []error
	for _, u := range urls {
		data, err := f.fetchOne(ctx, u)
		if err != nil {
			debug.Log("bundle candidate %s: %v", u, err)
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if p != nil {
			p.Finish()
		}
		return Result{URL: u, Data: data}, nil
	}
	if p != nil {
		p.Fail()
	}
	return Result{}, &CandidatesError{URLs: urls, Errs: errs}
}

func (f *Fetcher) fetchOne(ctx context.Context, u string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %s", resp.Status)
	}
	var body io.Reader = resp.Body
	path := u
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if strings.HasSuffix(path, brotliSuffix) && resp.Header.Get("Content-Encoding") != "br" {
		body = brotli.NewReader(resp.Body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
