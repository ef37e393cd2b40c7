// Package web serves the overlay as a page plus a small JSON API. The
// panel session is single-threaded, so every handler runs under one mutex.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"devlens/internal/activity"
	"devlens/internal/debug"
	"devlens/internal/detail"
	"devlens/internal/model"
	"devlens/internal/route"
	"devlens/internal/session"

	"github.com/goccy/go-json"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

// Help returns the usage text shared by the web page and the TUI.
func Help() string {
	return strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)
}

// Server owns one always-open panel session.
type Server struct {
	mu       sync.Mutex
	sess     *session.Session
	handle   session.Handle
	interval time.Duration
	events   <-chan activity.Event
}

// NewServer wraps sess. events may be nil.
func NewServer(sess *session.Session, interval time.Duration, events <-chan activity.Event) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{sess: sess, interval: interval, events: events}
}

// Open opens the panel and returns its handle.
func (s *Server) Open() session.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = s.sess.Open()
	return s.handle
}

// Refresh pulls outside the lock and applies under it.
func (s *Server) Refresh(h session.Handle) bool {
	snap := s.sess.Pull(h.Ctx, session.PullOptions{Profiles: true})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Apply(h, snap)
}

// Run polls the host and drains its event stream until ctx is done.
func (s *Server) Run(ctx context.Context) {
	h := s.Open()
	defer func() {
		s.mu.Lock()
		s.sess.Close()
		s.mu.Unlock()
	}()

	s.Refresh(h)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	events := s.events
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Refresh(h)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.mu.Lock()
			refresh := s.sess.HandleEvent(ev)
			s.sess.SyncActivity()
			s.mu.Unlock()
			if refresh {
				s.Refresh(h)
			}
		}
	}
}

// Handler routes the page and API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	subFS, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(subFS)))

	mux.HandleFunc("GET /api/tabs", s.handleTabs)
	mux.HandleFunc("GET /api/tabs/{tab}", s.handleRows)
	mux.HandleFunc("GET /api/detail", s.handleDetail)
	mux.HandleFunc("GET /api/kpi", s.handleKPI)
	mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	mux.HandleFunc("POST /api/clear/{tab}", s.handleClear)
	mux.HandleFunc("GET /api/help", handleHelp)
	return mux
}

// StartServer serves h on addr until ctx is done.
func StartServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Starting devlens web overlay at http://%s\n", displayAddr(addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

type tabInfo struct {
	Name   string `json:"name"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Status string `json:"status,omitempty"`
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	tabs := make([]tabInfo, 0, len(session.Tabs))
	for _, t := range session.Tabs {
		tabs = append(tabs, tabInfo{
			Name:   string(t),
			Title:  t.Title(),
			Count:  len(s.sess.View(t).Rows),
			Status: s.sess.Status(t),
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, tabs)
}

type rowJSON struct {
	Key   string `json:"key"`
	Depth int    `json:"depth"`
	Kind  string `json:"kind"`
	Icon  string `json:"icon"`
	Label string `json:"label"`
	Badge string `json:"badge,omitempty"`
}

type rowsJSON struct {
	Tab      string    `json:"tab"`
	Filter   string    `json:"filter"`
	Status   string    `json:"status,omitempty"`
	Selected string    `json:"selected,omitempty"`
	Rows     []rowJSON `json:"rows"`
}

// handleRows lists the visible rows of a tab. A q parameter, when present,
// replaces the tab's filter.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	tab, ok := session.ParseTab(r.PathValue("tab"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tab "+r.PathValue("tab"))
		return
	}

	s.mu.Lock()
	if q := r.URL.Query(); q.Has("q") {
		s.sess.SetFilter(tab, q.Get("q"))
	}
	v := s.sess.View(tab)
	out := rowsJSON{
		Tab:      string(tab),
		Filter:   s.sess.Filter(tab),
		Status:   s.sess.Status(tab),
		Selected: s.sess.Selected(tab),
		Rows:     []rowJSON{},
	}
	for _, i := range v.Visible() {
		row := v.Rows[i]
		out.Rows = append(out.Rows, rowJSON{
			Key:   row.Key,
			Depth: row.Depth,
			Kind:  string(row.Kind),
			Icon:  model.IconFor(row.Kind),
			Label: row.Label,
			Badge: row.Badge,
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// handleDetail selects key on tab and returns its fields as escaped HTML.
// Pprof profiles are fetched on first view.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	tab, ok := session.ParseTab(r.URL.Query().Get("tab"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tab")
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	s.mu.Lock()
	s.sess.Select(tab, key)
	found := s.sess.SelectedNode(tab) != nil
	h := s.handle
	_, fetched := s.sess.Profile(key)
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "no such item "+key)
		return
	}

	if tab == session.TabPprof && !fetched && s.sess.Profiles() != nil {
		c, err := s.sess.FetchProfile(r.Context(), key)
		s.mu.Lock()
		s.sess.SetProfile(h, key, c, err)
		s.mu.Unlock()
	}

	s.mu.Lock()
	body := detail.HTML(s.sess.Detail(tab))
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

type kpiJSON struct {
	FPS    string `json:"fps"`
	Memory string `json:"memory"`
	Render string `json:"render"`
	Nodes  string `json:"nodes"`
}

func (s *Server) handleKPI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	k := s.sess.KPI()
	out := kpiJSON{FPS: k.FPSText(), Memory: k.MemText(), Render: k.RenderText(), Nodes: k.NodesText()}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

type navigateRequest struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

type navigateResponse struct {
	Path   string   `json:"path,omitempty"`
	Params []string `json:"params,omitempty"`
}

// handleNavigate opens the route with the given key. Without values a
// dynamic route answers with its parameter names so the page can show the
// form; a blank value answers 422 naming the parameter.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sess.Select(session.TabRoutes, req.Key)
	if !s.sess.OpenSelectedRoute() {
		writeError(w, http.StatusNotFound, "no such route "+req.Key)
		return
	}
	nav := s.sess.Navigator()
	if nav.State() != route.CollectingParams {
		writeJSON(w, http.StatusOK, navigateResponse{Path: nav.LastDispatched()})
		return
	}
	params := nav.Route().Params
	if req.Values == nil {
		nav.Cancel()
		writeJSON(w, http.StatusOK, navigateResponse{Params: params})
		return
	}
	for i, v := range req.Values {
		nav.SetValue(i, v)
	}
	path, err := nav.Confirm()
	if err != nil {
		nav.Cancel()
		var missing *route.MissingParamError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": err.Error(),
				"param": missing.Name,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	debug.Log("web navigate %s", path)
	writeJSON(w, http.StatusOK, navigateResponse{Path: path})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	tab, ok := session.ParseTab(r.PathValue("tab"))
	if !ok || (tab != session.TabLogs && tab != session.TabNetwork) {
		writeError(w, http.StatusBadRequest, "only logs and network can be cleared")
		return
	}
	s.mu.Lock()
	s.sess.ClearActivity(tab)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown")
	w.Write([]byte(Help()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Warn("web: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
