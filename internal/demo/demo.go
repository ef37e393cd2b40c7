// Package demo is a small fake host application used by --demo and by
// tests. It renders nothing; it only keeps the state a real component
// runtime would report and mutates it on a timer.
package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"devlens/hostbridge"
	"devlens/internal/route"
)

// App is the fake host.
type App struct {
	mu      sync.Mutex
	tree    []hostbridge.Component
	counter int
	theme   string
	current string
	user    any
	clock   float64

	host *hostbridge.Host
}

// New builds the app and its host bridge.
func New() *App {
	a := &App{theme: "dark", current: "/", tree: initialTree()}
	a.host = hostbridge.New(
		hostbridge.WithTree(a.Tree),
		hostbridge.WithStores(a.Stores),
		hostbridge.WithSignals(a.Signals),
		hostbridge.WithPlugins(a.Plugins),
		hostbridge.WithRoutes(a.Routes),
		hostbridge.WithNavigator(a.Navigate),
	)
	return a
}

// Host exposes the bridge.
func (a *App) Host() *hostbridge.Host {
	return a.host
}

func initialTree() []hostbridge.Component {
	return []hostbridge.Component{
		{ID: "1", Kind: "Layout", Name: "AppLayout", Time: 2.3, Path: "/app/Layout",
			Props: map[string]any{"title": "Demo"},
			Children: []hostbridge.Component{
				{ID: "2", Kind: "Header", Name: "Header", Time: 1.2, Path: "/app/Layout/Header", Owner: "AppLayout",
					Children: []hostbridge.Component{
						{ID: "5", Kind: "Button", Name: "ThemeToggle", Time: 0.4, Path: "/app/common/ThemeToggle", Owner: "Header",
							StoreBindings: []hostbridge.StoreBinding{{Module: "app", Name: "prefs", Keys: []string{"theme"}}}},
					}},
				{ID: "3", Kind: "Route", Name: "Dashboard", Time: 3.0, Path: "/routes/dashboard", Owner: "AppLayout",
					Slots: map[string]any{"default": "dashboard body"},
					Children: []hostbridge.Component{
						{ID: "6", Kind: "Card", Name: "StatsCard", Time: 0.9, Path: "/routes/dashboard/StatsCard",
							Signals: map[string]any{"counter": 0}, HostComponent: "StatsHost"},
						{ID: "7", Kind: "Chart", Name: "UsageChart", Time: 2.8, Path: "/routes/dashboard/UsageChart",
							Store: &hostbridge.StoreRef{Module: "app", Name: "stats"}},
					}},
				{ID: "4", Kind: "Footer", Name: "Footer", Time: 0.7, Path: "/app/Layout/Footer", Owner: "AppLayout"},
			}},
	}
}

// Tree returns a deep copy of the component tree.
func (a *App) Tree() []hostbridge.Component {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyTree(a.tree)
}

func copyTree(in []hostbridge.Component) []hostbridge.Component {
	if in == nil {
		return nil
	}
	out := make([]hostbridge.Component, len(in))
	for i, c := range in {
		c.Children = copyTree(c.Children)
		c.Timeline = append([]hostbridge.TimelineEvent(nil), c.Timeline...)
		out[i] = c
	}
	return out
}

// Stores reports module -> store -> state.
func (a *App) Stores() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return hostbridge.Fields{
		{Key: "auth", Value: hostbridge.Fields{
			{Key: "session", Value: hostbridge.Fields{
				{Key: "token", Value: "tok-3f9a"},
				{Key: "user", Value: a.user},
			}},
		}},
		{Key: "app", Value: hostbridge.Fields{
			{Key: "prefs", Value: hostbridge.Fields{{Key: "theme", Value: a.theme}}},
			{Key: "stats", Value: hostbridge.Fields{
				{Key: "counter", Value: a.counter},
				{Key: "history", Value: []int{1, 2, 3}},
			}},
		}},
	}
}

// Signals reports signal id -> value.
func (a *App) Signals() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return hostbridge.Fields{
		{Key: "counter", Value: a.counter},
		{Key: "theme", Value: a.theme},
		{Key: "route", Value: a.current},
	}
}

// Plugins lists the registered plugins.
func (a *App) Plugins() []hostbridge.Plugin {
	return []hostbridge.Plugin{
		{Name: "router", Config: hostbridge.Fields{{Key: "mode", Value: "history"}, {Key: "base", Value: "/"}}},
		{Name: "i18n", Config: map[string]any{"locale": "en"}},
		{Name: "devtools"},
	}
}

// Routes is the route table.
func (a *App) Routes() []hostbridge.Route {
	return []hostbridge.Route{
		{Path: "/"},
		{Path: "/dashboard"},
		{Path: "/users/:id", Params: []string{"id"}, Children: []hostbridge.Route{
			{Path: "/users/:id/posts/:postId", Params: []string{"id", "postId"}},
		}},
		{Path: "/docs/*", Template: "/docs/:page", Params: []string{"page"}},
		{Path: "/settings"},
	}
}

// Navigate switches the current route if it matches the table.
func (a *App) Navigate(path string) error {
	if _, _, ok := route.Match(a.Routes(), path); !ok {
		return fmt.Errorf("no route matches %s", path)
	}
	a.mu.Lock()
	a.current = path
	a.mu.Unlock()
	a.host.Log("info", "navigated to", path)
	a.host.Refresh()
	return nil
}

// Current is the active route path.
func (a *App) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Step advances the simulation once: a counter bump re-renders the
// dashboard subtree.
func (a *App) Step() {
	a.mu.Lock()
	a.counter++
	a.clock += 16
	if a.counter%5 == 0 {
		if a.theme == "dark" {
			a.theme = "light"
		} else {
			a.theme = "dark"
		}
	}
	if a.counter == 3 {
		a.user = map[string]any{"id": 42, "name": "Ada"}
	}
	dash := &a.tree[0].Children[1]
	for _, c := range []*hostbridge.Component{dash, &dash.Children[0]} {
		d := 0.5 + rand.Float64()*2
		c.Time = d
		c.Updates++
		c.Total += d
		c.Average = c.Total / float64(c.Updates)
		c.Timeline = append(c.Timeline, hostbridge.TimelineEvent{Kind: "render", At: a.clock, Duration: d})
		if len(c.Timeline) > 64 {
			c.Timeline = c.Timeline[len(c.Timeline)-64:]
		}
	}
	n := a.counter
	a.mu.Unlock()

	a.host.Log("log", "counter", n)
	a.host.Log("log", "mutation: app/stats/counter")
}

// Run steps the app every interval until ctx is done.
func (a *App) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Step()
		}
	}
}

// Handler serves a tiny API plus the debug endpoints. API requests show up
// in the overlay's Network list.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.host.Mount(mux)
	mux.HandleFunc("GET /api/counter", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		n := a.counter
		a.mu.Unlock()
		fmt.Fprintf(w, `{"counter":%d}`, n)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "devlens demo host, route %s\n", a.Current())
	})
	return a.host.Middleware(mux)
}
