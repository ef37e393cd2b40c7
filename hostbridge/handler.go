package hostbridge

import (
	"expvar"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"devlens/internal/bridge"

	"github.com/goccy/go-json"
)

const maxNavigateBody = 64 << 10

// Handler serves the devtools API, expvar and pprof. Mount it at "/" or
// "/debug/".
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	h.Mount(mux)
	return mux
}

// Mount registers every route on mux.
func (h *Host) Mount(mux *http.ServeMux) {
	base := bridge.BasePath
	mux.HandleFunc("GET "+base+"{$}", h.handleIndex)
	if h.tree != nil {
		mux.HandleFunc("GET "+base+bridge.CapTree, h.snapshot(func() any { return h.tree() }))
	}
	if h.stores != nil {
		mux.HandleFunc("GET "+base+bridge.CapStores, h.snapshot(h.stores))
	}
	if h.signals != nil {
		mux.HandleFunc("GET "+base+bridge.CapSignals, h.snapshot(h.signals))
	}
	if h.plugins != nil {
		mux.HandleFunc("GET "+base+bridge.CapPlugins, h.snapshot(func() any { return h.plugins() }))
	}
	if h.routes != nil {
		mux.HandleFunc("GET "+base+bridge.CapRoutes, h.snapshot(func() any { return h.routes() }))
	}
	if h.navigate != nil {
		mux.HandleFunc("POST "+base+bridge.CapNavigate, h.handleNavigate)
	}
	mux.HandleFunc("GET "+base+"events", h.hub.serveEvents)

	mux.Handle("GET /debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func (h *Host) handleIndex(w http.ResponseWriter, r *http.Request) {
	names := h.Capabilities().Names()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": names})
}

func (h *Host) snapshot(fn func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, fmt.Sprintf("snapshot panicked: %v", rec), http.StatusInternalServerError)
			}
		}()
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, fn())
	}
}

func (h *Host) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNavigateBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil || !strings.HasPrefix(req.Path, "/") {
		http.Error(w, "body must be {\"path\":\"/...\"}", http.StatusBadRequest)
		return
	}
	if err := h.navigate(req.Path); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware publishes a network event for every request next serves,
// except the debug endpoints themselves.
func (h *Host) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/debug/") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		h.Network("start", r.Method, r.URL.RequestURI(), 0, 0)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Network("end", r.Method, r.URL.RequestURI(), rec.status, time.Since(start))
	})
}
