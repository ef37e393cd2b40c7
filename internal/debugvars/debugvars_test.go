package debugvars

import (
	"context"
	"expvar"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/pprof"
	"testing"

	"devlens/internal/jsonv"
	"devlens/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const index = `<html><body>
<a href="?debug=0">refresh</a>
<a href="allocs?debug=1">allocs</a>
<a href="goroutine?debug=2">full goroutine stack dump</a>
<a href="cmdline"></a>
</body></html>`

func testServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(VarsPath, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"cmdline":["app"],"memstats":{"Alloc":3145728,"Sys":1}}`)
	})
	mux.HandleFunc(PprofPath, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, index)
	})
	mux.HandleFunc(PprofPath+"allocs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "heap profile: "+r.URL.RawQuery)
	})
	mux.HandleFunc(PprofPath+"trace", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{1, 2, 3})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVarsAndMem(t *testing.T) {
	c := NewClient(testServer(t).URL, nil)
	vars, err := c.Vars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cmdline", "memstats"}, vars.Keys())

	mb, ok := MemAllocMB(vars)
	assert.True(t, ok)
	assert.Equal(t, 3.0, mb)

	s, ok := metrics.SampleMemory(context.Background(), c.ExpvarProbe(), metrics.HeapProbe())
	require.True(t, ok)
	assert.Equal(t, metrics.SourceExpvar, s.Source)
}

func TestMemAllocMissing(t *testing.T) {
	_, ok := MemAllocMB(jsonv.Object{})
	assert.False(t, ok)
	_, ok = MemAllocMB(jsonv.Object{{Key: "memstats", Value: "x"}})
	assert.False(t, ok)
}

func TestVarsFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	_, err := NewClient(srv.URL, nil).Vars(context.Background())
	assert.ErrorIs(t, err, ErrFailed)

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json")
	}))
	defer bad.Close()
	_, err = NewClient(bad.URL, nil).Vars(context.Background())
	assert.ErrorIs(t, err, ErrLoading)

	_, err = NewClient("http://127.0.0.1:1", nil).Vars(context.Background())
	assert.ErrorIs(t, err, ErrLoading)
}

func TestIndexSkipsQueryOnlyLinks(t *testing.T) {
	profiles, err := NewClient(testServer(t).URL, nil).Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Profile{
		{Href: "allocs?debug=1", Label: "allocs"},
		{Href: "goroutine?debug=2", Label: "full goroutine stack dump"},
		{Href: "cmdline", Label: "cmdline"},
	}, profiles)
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "/debug/pprof/heap?debug=1", ProfileURL("heap"))
	assert.Equal(t, "/debug/pprof/allocs?debug=1&debug=1", ProfileURL("allocs?debug=1"))
}

func TestProfileTextAndBlob(t *testing.T) {
	c := NewClient(testServer(t).URL, nil)

	text, err := c.Profile(context.Background(), "allocs")
	require.NoError(t, err)
	assert.True(t, text.IsText)
	assert.Equal(t, "heap profile: debug=1", text.Text)

	blob, err := c.Profile(context.Background(), "trace?seconds=1")
	require.NoError(t, err)
	assert.False(t, blob.IsText)
	assert.Equal(t, "trace", blob.FileName)
	assert.Equal(t, []byte{1, 2, 3}, blob.Data)

	_, err = c.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFailed)
}

func TestAgainstRealHandlers(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(VarsPath, expvar.Handler())
	mux.HandleFunc(PprofPath, pprof.Index)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	vars, err := c.Vars(context.Background())
	require.NoError(t, err)
	_, ok := MemAllocMB(vars)
	assert.True(t, ok)

	profiles, err := c.Index(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, profiles)

	heap, err := c.Profile(context.Background(), "heap")
	require.NoError(t, err)
	assert.True(t, heap.IsText)
}
