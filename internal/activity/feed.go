// Package activity records the overlay's log and network lists and
// subscribes to the host's live event stream.
package activity

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"devlens/internal/model"
	"devlens/internal/normalize"

	"github.com/dustin/go-humanize"
)

// mutationPrefix marks store mutation chatter, which the Logs list skips.
const mutationPrefix = "mutation:"

// LogEntry is one line in the Logs list.
type LogEntry struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Request is one completed request in the Network list.
type Request struct {
	Seq      uint64        `json:"seq"`
	At       time.Time     `json:"at"`
	Method   string        `json:"method,omitempty"`
	URL      string        `json:"url"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration"`
}

// Network phases reported by hosts. Only completed requests are listed.
const (
	PhaseStart = "start"
	PhaseEnd   = "end"
)

// Feed holds both lists. It is safe for concurrent use: requests are
// recorded from fetch goroutines while the UI reads.
type Feed struct {
	mu       sync.Mutex
	seq      uint64
	version  uint64
	logs     *Ring[LogEntry]
	requests *Ring[Request]
	now      func() time.Time
}

// NewFeed returns a feed whose lists keep at most limit entries each.
func NewFeed(limit int) *Feed {
	return &Feed{
		logs:     NewRing[LogEntry](limit),
		requests: NewRing[Request](limit),
		now:      time.Now,
	}
}

// Log formats args like a console call and appends the line. Strings are
// kept verbatim, everything else is shown as JSON.
func (f *Feed) Log(level string, args ...any) {
	if len(args) > 0 {
		if s, ok := args[0].(string); ok && strings.HasPrefix(s, mutationPrefix) {
			return
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = s
			continue
		}
		parts[i] = normalize.Stringify(a)
	}
	if level == "" {
		level = "log"
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.version++
	f.logs.Push(LogEntry{Seq: f.seq, At: f.now(), Level: level, Message: strings.Join(parts, " ")})
}

// Network records a request. Start notifications are ignored.
func (f *Feed) Network(phase, method, url string, status int, dur time.Duration) {
	if phase == PhaseStart {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.version++
	f.requests.Push(Request{Seq: f.seq, At: f.now(), Method: method, URL: url, Status: status, Duration: dur})
}

// Logs returns the log lines, oldest first.
func (f *Feed) Logs() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs.Items()
}

// Requests returns the completed requests, oldest first.
func (f *Feed) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests.Items()
}

// Version changes whenever either list changes.
func (f *Feed) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// ClearLogs empties the Logs list.
func (f *Feed) ClearLogs() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs.Clear()
	f.version++
}

// ClearRequests empties the Network list.
func (f *Feed) ClearRequests() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests.Clear()
	f.version++
}

// LogNodes presents the Logs list as flat rows for the tree renderer.
func LogNodes(entries []LogEntry) []*model.Node {
	nodes := make([]*model.Node, 0, len(entries))
	for _, e := range entries {
		nodes = append(nodes, &model.Node{
			ID:       fmt.Sprintf("log-%d", e.Seq),
			Kind:     model.Kind(e.Level),
			Name:     e.Message,
			Value:    e.At.Format("15:04:05.000"),
			HasValue: true,
		})
	}
	return nodes
}

// RequestNodes presents the Network list as flat rows.
func RequestNodes(reqs []Request) []*model.Node {
	nodes := make([]*model.Node, 0, len(reqs))
	for _, r := range reqs {
		status := "ERR"
		if r.Status > 0 {
			status = fmt.Sprint(r.Status)
		}
		label := r.URL
		if r.Method != "" {
			label = r.Method + " " + r.URL
		}
		nodes = append(nodes, &model.Node{
			ID:       fmt.Sprintf("req-%d", r.Seq),
			Kind:     model.Kind(status),
			Name:     label,
			Value:    fmt.Sprintf("%.1f ms, %s", float64(r.Duration.Microseconds())/1000, humanize.Time(r.At)),
			HasValue: true,
		})
	}
	return nodes
}

// Transport records every round trip made through it into feed.
type Transport struct {
	Base http.RoundTripper
	Feed *Feed
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	resp, err := base.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	t.Feed.Network(PhaseEnd, req.Method, req.URL.String(), status, time.Since(start))
	return resp, err
}

// Client returns an HTTP client whose requests are recorded into f.
func (f *Feed) Client(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: &Transport{Feed: f}}
}
