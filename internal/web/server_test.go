package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"devlens/internal/bridge"
	"devlens/internal/demo"
	"devlens/internal/session"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *demo.App, *Server) {
	t.Helper()
	app := demo.New()
	app.Step()
	sess := session.New(session.Options{Bridge: bridge.New(app.Host().Capabilities())})
	s := NewServer(sess, 0, nil)
	h := s.Open()
	require.True(t, s.Refresh(h))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, app, s
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRowsAndFilter(t *testing.T) {
	ts, _, _ := newTestServer(t)

	code, body := getBody(t, ts.URL+"/api/tabs/components")
	require.Equal(t, http.StatusOK, code)
	var rows rowsJSON
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	assert.Len(t, rows.Rows, 7)
	assert.Equal(t, "AppLayout", rows.Rows[0].Label)

	_, body = getBody(t, ts.URL+"/api/tabs/components?q=chart")
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "UsageChart", rows.Rows[0].Label)
	assert.Equal(t, "chart", rows.Filter)

	code, _ = getBody(t, ts.URL+"/api/tabs/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTabsList(t *testing.T) {
	ts, _, _ := newTestServer(t)
	_, body := getBody(t, ts.URL+"/api/tabs")
	var tabs []tabInfo
	require.NoError(t, json.Unmarshal([]byte(body), &tabs))
	require.Len(t, tabs, len(session.Tabs))
	assert.Equal(t, "Components", tabs[0].Title)
	assert.Equal(t, "Not available for this host", tabs[7].Status)
}

func TestDetailIsEscaped(t *testing.T) {
	ts, _, s := newTestServer(t)
	s.mu.Lock()
	s.sess.Feed().Log("log", "<script>alert(1)</script>")
	s.sess.SyncActivity()
	key := s.sess.View(session.TabLogs).Rows[0].Key
	s.mu.Unlock()

	code, body := getBody(t, ts.URL+"/api/detail?tab=logs&key="+url.QueryEscape(key))
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")

	code, _ = getBody(t, ts.URL+"/api/detail?tab=logs")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = getBody(t, ts.URL+"/api/detail?tab=logs&key=missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNavigate(t *testing.T) {
	ts, app, _ := newTestServer(t)

	code, out := post(t, ts.URL+"/api/navigate", `{"key":"/settings"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/settings", out["path"])
	assert.Equal(t, "/settings", app.Current())

	code, out = post(t, ts.URL+"/api/navigate", `{"key":"/users/:id/posts/:postId"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"id", "postId"}, out["params"])

	code, out = post(t, ts.URL+"/api/navigate", `{"key":"/users/:id/posts/:postId","values":["42",""]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "postId", out["param"])
	assert.Equal(t, "/settings", app.Current())

	code, out = post(t, ts.URL+"/api/navigate", `{"key":"/users/:id/posts/:postId","values":["42","a b"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/users/42/posts/a%20b", out["path"])

	code, _ = post(t, ts.URL+"/api/navigate", `{"key":"/nowhere"}`)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = post(t, ts.URL+"/api/navigate", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestKPIAndClear(t *testing.T) {
	ts, _, s := newTestServer(t)
	_, body := getBody(t, ts.URL+"/api/kpi")
	var k kpiJSON
	require.NoError(t, json.Unmarshal([]byte(body), &k))
	assert.Equal(t, "7", k.Nodes)
	assert.Equal(t, "—", k.FPS)

	s.mu.Lock()
	s.sess.Feed().Log("warn", "x")
	s.sess.SyncActivity()
	s.mu.Unlock()

	code, _ := post(t, ts.URL+"/api/clear/logs", "")
	assert.Equal(t, http.StatusNoContent, code)
	s.mu.Lock()
	assert.Empty(t, s.sess.View(session.TabLogs).Rows)
	s.mu.Unlock()

	code, _ = post(t, ts.URL+"/api/clear/components", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPageAndHelp(t *testing.T) {
	ts, _, _ := newTestServer(t)
	code, body := getBody(t, ts.URL+"/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>devlens</title>")

	_, body = getBody(t, ts.URL+"/api/help")
	assert.NotContains(t, body, "{{VERSION}}")
	assert.Contains(t, Help(), "# devlens")
}
