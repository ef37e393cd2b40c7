// Package debugvars reads the host's expvar and pprof endpoints.
package debugvars

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"devlens/internal/jsonv"
	"devlens/internal/metrics"

	"golang.org/x/net/html"
)

const (
	VarsPath  = "/debug/vars"
	PprofPath = "/debug/pprof/"
)

var (
	// ErrFailed means the endpoint answered with a non-2xx status.
	ErrFailed = errors.New("failed to load")
	// ErrLoading means the request or decoding failed.
	ErrLoading = errors.New("error loading")
)

// Client talks to one host origin.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for base. A nil hc uses http.DefaultClient.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

func (c *Client) get(ctx context.Context, what, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoading, what, err)
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoading, what, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s", ErrFailed, what, resp.Status)
	}
	return resp, nil
}

// Vars fetches the expvar document.
func (c *Client) Vars(ctx context.Context) (jsonv.Object, error) {
	resp, err := c.get(ctx, "vars", VarsPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w vars: %w", ErrLoading, err)
	}
	obj, err := jsonv.DecodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w vars: %w", ErrLoading, err)
	}
	return obj, nil
}

// MemAllocMB reads memstats.Alloc in MB. ok is false when missing or zero.
func MemAllocMB(vars jsonv.Object) (float64, bool) {
	ms, ok := vars.Get("memstats")
	if !ok {
		return 0, false
	}
	obj, ok := ms.(jsonv.Object)
	if !ok {
		return 0, false
	}
	alloc, ok := obj.Get("Alloc")
	if !ok {
		return 0, false
	}
	f, ok := jsonv.Float(alloc)
	if !ok || f <= 0 {
		return 0, false
	}
	return f / 1048576, true
}

// ExpvarProbe samples memory from the host's expvar endpoint.
func (c *Client) ExpvarProbe() metrics.Probe {
	return metrics.Probe{Name: metrics.SourceExpvar, Read: func(ctx context.Context) (float64, bool) {
		vars, err := c.Vars(ctx)
		if err != nil {
			return 0, false
		}
		return MemAllocMB(vars)
	}}
}

// Profile is one link on the pprof index page.
type Profile struct {
	Href  string `json:"href"`
	Label string `json:"label"`
}

// Index lists the profiles linked from the pprof index. Links that only
// change the query of the index page itself are skipped.
func (c *Client) Index(ctx context.Context) ([]Profile, error) {
	resp, err := c.get(ctx, "profiles", PprofPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w profiles: %w", ErrLoading, err)
	}
	return anchors(doc), nil
}

func anchors(doc *html.Node) []Profile {
	var out []Profile
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				if a.Val == "" || strings.HasPrefix(a.Val, "?") {
					break
				}
				label := strings.TrimSpace(text(n))
				if label == "" {
					label = a.Val
				}
				out = append(out, Profile{Href: a.Val, Label: label})
				break
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return out
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		b.WriteString(text(ch))
	}
	return b.String()
}

// ProfileURL is the path fetched for href, always asking for debug=1.
func ProfileURL(href string) string {
	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return PprofPath + href + sep + "debug=1"
}

// Content is a fetched profile: text for textual profiles, otherwise the
// raw bytes and a download file name.
type Content struct {
	IsText      bool
	Text        string
	Data        []byte
	FileName    string
	ContentType string
}

// Profile fetches one profile.
func (c *Client) Profile(ctx context.Context, href string) (Content, error) {
	resp, err := c.get(ctx, "profile", ProfileURL(href))
	if err != nil {
		return Content{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Content{}, fmt.Errorf("%w profile: %w", ErrLoading, err)
	}
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "text") {
		return Content{IsText: true, Text: string(data), ContentType: ct}, nil
	}
	name := href
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	return Content{Data: data, FileName: name, ContentType: ct}, nil
}
