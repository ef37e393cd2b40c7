// Package session owns all mutable overlay state for one panel: the last
// snapshot's views, per-tab filter and selection, KPIs, the navigator and
// the poll handle. Apply, Select and SetFilter must only be called from the
// UI loop; Pull is safe to run on any goroutine.
package session

import (
	"context"
	"errors"
	"time"

	"devlens/internal/activity"
	"devlens/internal/bridge"
	"devlens/internal/debug"
	"devlens/internal/debugvars"
	"devlens/internal/jsonv"
	"devlens/internal/metrics"
	"devlens/internal/model"
	"devlens/internal/normalize"
	"devlens/internal/route"
	"devlens/internal/tree"

	"golang.org/x/sync/errgroup"
)

// Options wires a session to its collaborators.
type Options struct {
	Bridge *bridge.Bridge
	// Vars is nil when the host has no HTTP debug endpoints.
	Vars       *debugvars.Client
	Feed       *activity.Feed
	Fallback   func(path string) error
	Timeout    time.Duration
	Concurrent int
}

// Handle identifies one open period of the panel. Work started under a
// handle is discarded once the panel closes or reopens.
type Handle struct {
	Gen uint64
	Ctx context.Context
}

// Session is the panel state.
type Session struct {
	bridge  *bridge.Bridge
	vars    *debugvars.Client
	feed    *activity.Feed
	nav     *route.Navigator
	timeout time.Duration
	limit   int

	kpi      metrics.KPI
	views    map[Tab]*tree.View
	filters  map[Tab]string
	selected map[Tab]string
	status   map[Tab]string
	profiles map[string]ProfileResult
	routes   []model.Route

	open           bool
	gen            uint64
	cancel         context.CancelFunc
	feedVersion    uint64
	activitySynced bool
}

// ProfileResult is a fetched profile or the error that prevented it.
type ProfileResult struct {
	Content debugvars.Content
	Err     error
}

// New builds a closed session.
func New(opts Options) *Session {
	if opts.Feed == nil {
		opts.Feed = activity.NewFeed(activity.DefaultLimit)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Concurrent <= 0 {
		opts.Concurrent = 4
	}
	s := &Session{
		bridge:  opts.Bridge,
		vars:    opts.Vars,
		feed:    opts.Feed,
		timeout: opts.Timeout,
		limit:   opts.Concurrent,
	}
	d := route.Dispatcher{Fallback: opts.Fallback}
	if s.bridge.CanNavigate() {
		d.Host = s.bridge.Navigate
	}
	s.nav = route.NewNavigator(d)
	s.reset()
	return s
}

func (s *Session) reset() {
	s.kpi.Reset()
	s.views = make(map[Tab]*tree.View, len(Tabs))
	s.filters = make(map[Tab]string)
	s.selected = make(map[Tab]string)
	s.status = make(map[Tab]string)
	s.profiles = make(map[string]ProfileResult)
	s.routes = nil
	s.feedVersion = 0
	s.activitySynced = false
	for _, t := range Tabs {
		s.views[t] = tree.Build(nil, nil)
	}
}

// Open starts a new open period and returns its handle. Opening an open
// panel first closes it.
func (s *Session) Open() Handle {
	if s.open {
		s.Close()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.gen++
	s.open = true
	s.cancel = cancel
	s.reset()
	s.SyncActivity()
	debug.Log("panel open gen=%d", s.gen)
	return Handle{Gen: s.gen, Ctx: ctx}
}

// Close cancels the current handle and drops every snapshot.
func (s *Session) Close() {
	if !s.open {
		return
	}
	s.cancel()
	s.cancel = nil
	s.open = false
	s.gen++
	s.nav.Cancel()
	s.reset()
	debug.Log("panel closed")
}

// IsOpen reports whether the panel is visible.
func (s *Session) IsOpen() bool { return s.open }

// Current reports whether h still belongs to the open panel.
func (s *Session) Current(h Handle) bool {
	return s.open && h.Gen == s.gen
}

// Snapshot is one poll's worth of host data. Zero values with Has* false
// mean the capability was unavailable.
type Snapshot struct {
	Tree       []model.Component
	HasTree    bool
	Stores     jsonv.Object
	HasStores  bool
	Signals    jsonv.Object
	HasSignals bool
	Plugins    []model.Plugin
	HasPlugins bool
	Routes     []model.Route
	HasRoutes  bool

	Vars    jsonv.Object
	VarsErr error

	Profiles    []debugvars.Profile
	ProfilesErr error
	HasProfiles bool

	Memory    metrics.Sample
	HasMemory bool

	Took time.Duration
}

// PullOptions selects the optional parts of a pull.
type PullOptions struct {
	Profiles bool
}

// Pull reads every domain concurrently. It never fails: each domain's
// failure is recorded in the snapshot.
func (s *Session) Pull(ctx context.Context, opts PullOptions) Snapshot {
	start := time.Now()
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	g.Go(func() error {
		snap.Tree, snap.HasTree = s.bridge.Tree()
		return nil
	})
	g.Go(func() error {
		snap.Stores, snap.HasStores = s.bridge.Stores()
		return nil
	})
	g.Go(func() error {
		snap.Signals, snap.HasSignals = s.bridge.Signals()
		return nil
	})
	g.Go(func() error {
		snap.Plugins, snap.HasPlugins = s.bridge.Plugins()
		return nil
	})
	g.Go(func() error {
		snap.Routes, snap.HasRoutes = s.bridge.Routes()
		return nil
	})
	if s.vars != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()
			snap.Vars, snap.VarsErr = s.vars.Vars(cctx)
			return nil
		})
		if opts.Profiles {
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(gctx, s.timeout)
				defer cancel()
				snap.Profiles, snap.ProfilesErr = s.vars.Index(cctx)
				snap.HasProfiles = true
				return nil
			})
		}
	} else {
		snap.VarsErr = errNoVars
	}
	g.Wait()

	expvarProbe := metrics.Probe{Name: metrics.SourceExpvar, Read: func(context.Context) (float64, bool) {
		if snap.VarsErr != nil {
			return 0, false
		}
		return debugvars.MemAllocMB(snap.Vars)
	}}
	snap.Memory, snap.HasMemory = metrics.SampleMemory(ctx, expvarProbe, metrics.HeapProbe())
	snap.Took = time.Since(start)
	debug.LogTiming("pull", snap.Took)
	return snap
}

var errNoVars = errors.New("host exposes no debug endpoints")

// Apply installs a snapshot pulled under h. It returns false and changes
// nothing when h is stale.
func (s *Session) Apply(h Handle, snap Snapshot) bool {
	if !s.Current(h) {
		debug.Log("dropping stale snapshot gen=%d", h.Gen)
		return false
	}

	components := normalize.ComponentTree(snap.Tree)
	s.install(TabComponents, components, componentBadge)
	s.kpi.SetTree(components)
	s.kpi.SetMemory(snap.Memory, snap.HasMemory)

	s.install(TabStore, normalize.StoreTree(snap.Stores), nil)
	s.install(TabSignals, normalize.SignalList(snap.Signals), signalBadge)
	s.install(TabPlugins, normalize.PluginList(snap.Plugins), nil)
	s.routes = snap.Routes
	s.install(TabRoutes, normalize.RouteForest(snap.Routes), nil)

	s.status[TabVars] = ""
	if snap.VarsErr != nil {
		s.status[TabVars] = loadStatus(snap.VarsErr, "Error loading vars")
	}
	s.install(TabVars, normalize.VarsTree(snap.Vars), nil)

	if snap.HasProfiles {
		s.status[TabPprof] = ""
		if snap.ProfilesErr != nil {
			s.status[TabPprof] = loadStatus(snap.ProfilesErr, "Error loading profiles")
		}
		s.install(TabPprof, ProfileNodes(snap.Profiles), nil)
	}
	s.SyncActivity()
	return true
}

func loadStatus(err error, fallback string) string {
	switch {
	case errors.Is(err, errNoVars):
		return "Not available for this host"
	case errors.Is(err, debugvars.ErrFailed):
		return "Failed to load"
	default:
		return fallback
	}
}

// SyncActivity rebuilds the Logs and Network views if the feed changed.
func (s *Session) SyncActivity() bool {
	v := s.feed.Version()
	if s.activitySynced && v == s.feedVersion {
		return false
	}
	s.feedVersion = v
	s.activitySynced = true
	s.install(TabLogs, activity.LogNodes(s.feed.Logs()), nil)
	s.install(TabNetwork, activity.RequestNodes(s.feed.Requests()), nil)
	return true
}

// HandleEvent applies a host stream event. It reports whether the host
// asked for an immediate refresh.
func (s *Session) HandleEvent(ev activity.Event) bool {
	switch ev.Type {
	case activity.EventMetrics:
		s.kpi.Feed(ev.Fed)
	case activity.EventRefresh:
		return true
	default:
		s.feed.Apply(ev)
	}
	return false
}

func (s *Session) install(t Tab, nodes []*model.Node, badge tree.BadgeFunc) {
	v := tree.Build(nodes, badge)
	v.Filter(s.filters[t])
	s.views[t] = v
}

// View returns the rows of tab.
func (s *Session) View(t Tab) *tree.View {
	return s.views[t]
}

// Status is a load message for tabs backed by network endpoints.
func (s *Session) Status(t Tab) string {
	return s.status[t]
}

// SetFilter re-filters tab. Selection is kept by key.
func (s *Session) SetFilter(t Tab, q string) {
	s.filters[t] = q
	s.views[t].Filter(q)
}

// Filter is the raw query typed for tab.
func (s *Session) Filter(t Tab) string {
	return s.filters[t]
}

// Select remembers key as the chosen item of tab.
func (s *Session) Select(t Tab, key string) {
	s.selected[t] = key
}

// Selected is the chosen key of tab.
func (s *Session) Selected(t Tab) string {
	return s.selected[t]
}

// SelectedNode resolves the chosen key against the current view.
func (s *Session) SelectedNode(t Tab) *model.Node {
	key, ok := s.selected[t]
	if !ok {
		return nil
	}
	for _, r := range s.views[t].Rows {
		if r.Key == key {
			return r.Node
		}
	}
	return nil
}

// Cursor is the visible position of the selected row, 0 when it is gone.
func (s *Session) Cursor(t Tab) int {
	if i := s.views[t].IndexOf(s.selected[t]); i >= 0 {
		return i
	}
	return 0
}

// KPI returns the headline metrics.
func (s *Session) KPI() *metrics.KPI { return &s.kpi }

// Feed returns the activity feed.
func (s *Session) Feed() *activity.Feed { return s.feed }

// Navigator returns the route form state machine.
func (s *Session) Navigator() *route.Navigator { return s.nav }

// Routes is the last route table received.
func (s *Session) Routes() []model.Route { return s.routes }

// OpenSelectedRoute starts navigation for the selected route row.
func (s *Session) OpenSelectedRoute() bool {
	n := s.SelectedNode(TabRoutes)
	if n == nil || n.Route == nil {
		return false
	}
	s.nav.Open(*n.Route)
	return true
}

// Frame feeds the FPS counter.
func (s *Session) Frame(now time.Time) {
	s.kpi.Frame(now)
}

// ClearActivity empties the list shown on tab.
func (s *Session) ClearActivity(t Tab) {
	switch t {
	case TabLogs:
		s.feed.ClearLogs()
	case TabNetwork:
		s.feed.ClearRequests()
	}
	s.SyncActivity()
}

// Profiles returns the pprof client, nil when unavailable.
func (s *Session) Profiles() *debugvars.Client { return s.vars }

// FetchProfile loads one profile. Safe to call off the UI loop.
func (s *Session) FetchProfile(ctx context.Context, href string) (debugvars.Content, error) {
	if s.vars == nil {
		return debugvars.Content{}, errNoVars
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.vars.Profile(cctx, href)
}

// SetProfile stores a fetched profile for the detail pane.
func (s *Session) SetProfile(h Handle, href string, c debugvars.Content, err error) bool {
	if !s.Current(h) {
		return false
	}
	s.profiles[href] = ProfileResult{Content: c, Err: err}
	return true
}

// Profile returns a previously fetched profile.
func (s *Session) Profile(href string) (ProfileResult, bool) {
	r, ok := s.profiles[href]
	return r, ok
}
