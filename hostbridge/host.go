// Package hostbridge exposes a running application to devlens.
//
// A host registers whichever introspection capabilities it supports and
// mounts the handler on its own mux:
//
//	h := hostbridge.New(
//		hostbridge.WithTree(app.ComponentTree),
//		hostbridge.WithRoutes(app.Routes),
//		hostbridge.WithNavigator(app.Router.Navigate),
//	)
//	defer h.Close()
//	mux.Handle("/debug/", h.Handler())
//
// The handler serves the capabilities under /debug/devtools/, a websocket
// event stream for logs, network activity and pushed metrics, plus the
// standard /debug/vars and /debug/pprof/ endpoints.
package hostbridge

import (
	"fmt"
	"time"

	"devlens/internal/bridge"
	"devlens/internal/jsonv"
	"devlens/internal/model"

	"github.com/goccy/go-json"
)

// Wire types shared with the overlay.
type (
	Component     = model.Component
	ComponentID   = model.ComponentID
	StoreBinding  = model.StoreBinding
	StoreRef      = model.StoreRef
	TimelineEvent = model.TimelineEvent
	Route         = model.Route
	Plugin        = model.Plugin
	// Fields is an object whose keys keep their insertion order. Use it for
	// stores and signals when order matters.
	Fields = jsonv.Object
	Field  = jsonv.Field
)

// Option configures a Host.
type Option func(*Host)

// WithTree registers the component tree capability.
func WithTree(fn func() []Component) Option {
	return func(h *Host) { h.tree = fn }
}

// WithStores registers the store capability: module -> store -> state.
func WithStores(fn func() any) Option {
	return func(h *Host) { h.stores = fn }
}

// WithSignals registers the signal capability: id -> current value.
func WithSignals(fn func() any) Option {
	return func(h *Host) { h.signals = fn }
}

// WithPlugins registers the plugin list capability.
func WithPlugins(fn func() []Plugin) Option {
	return func(h *Host) { h.plugins = fn }
}

// WithRoutes registers the route table capability.
func WithRoutes(fn func() []Route) Option {
	return func(h *Host) { h.routes = fn }
}

// WithNavigator registers in-place navigation.
func WithNavigator(fn func(path string) error) Option {
	return func(h *Host) { h.navigate = fn }
}

// WithEventBuffer sets how many frames a slow subscriber may fall behind
// before frames are dropped for it.
func WithEventBuffer(n int) Option {
	return func(h *Host) { h.hub.buffer = n }
}

// Host holds the registered capabilities and the event hub.
type Host struct {
	tree     func() []Component
	stores   func() any
	signals  func() any
	plugins  func() []Plugin
	routes   func() []Route
	navigate func(path string) error

	hub *hub
}

// New builds a host from options.
func New(opts ...Option) *Host {
	h := &Host{hub: newHub(64)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Capabilities returns the in-process capability set, for overlays running
// in the same process as the host.
func (h *Host) Capabilities() bridge.Capabilities {
	var c bridge.Capabilities
	if h.tree != nil {
		c.Tree = marshalFn(func() any { return h.tree() })
	}
	if h.stores != nil {
		c.Stores = marshalFn(h.stores)
	}
	if h.signals != nil {
		c.Signals = marshalFn(h.signals)
	}
	if h.routes != nil {
		c.Routes = marshalFn(func() any { return h.routes() })
	}
	if h.plugins != nil {
		c.Plugins = func() ([]model.Plugin, error) { return h.plugins(), nil }
	}
	if h.navigate != nil {
		c.Navigate = h.navigate
	}
	return c
}

func marshalFn(fn func() any) func() (string, error) {
	return func() (string, error) {
		b, err := json.Marshal(fn())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// Log publishes a console line to connected overlays.
func (h *Host) Log(level string, args ...any) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			b, _ = json.Marshal(fmt.Sprint(a))
		}
		raw = append(raw, b)
	}
	h.publish(event{Type: "log", Level: level, Args: raw})
}

// Network publishes a request notification. Overlays list only the "end"
// phase.
func (h *Host) Network(phase, method, url string, status int, dur time.Duration) {
	h.publish(event{
		Type:       "network",
		Phase:      phase,
		Method:     method,
		URL:        url,
		Status:     status,
		DurationMS: float64(dur.Microseconds()) / 1000,
	})
}

// Metrics are host-measured figures that override overlay sampling.
type Metrics struct {
	FPS    *float64 `json:"fps,omitempty"`
	Mem    *float64 `json:"mem,omitempty"`
	Render *float64 `json:"render,omitempty"`
}

// FeedMetrics publishes host-measured metrics.
func (h *Host) FeedMetrics(m Metrics) {
	h.publish(event{Type: "metrics", FPS: m.FPS, Mem: m.Mem, Render: m.Render})
}

// Refresh asks overlays to pull a new snapshot now.
func (h *Host) Refresh() {
	h.publish(event{Type: "refresh"})
}

// Subscribe returns a channel of encoded event frames for an in-process
// overlay, and a function that ends the subscription.
func (h *Host) Subscribe() (<-chan []byte, func()) {
	return h.hub.subscribe()
}

// Close disconnects every subscriber.
func (h *Host) Close() {
	h.hub.close()
}

type event struct {
	Type       string            `json:"type"`
	Level      string            `json:"level,omitempty"`
	Args       []json.RawMessage `json:"args,omitempty"`
	Phase      string            `json:"phase,omitempty"`
	Method     string            `json:"method,omitempty"`
	URL        string            `json:"url,omitempty"`
	Status     int               `json:"status,omitempty"`
	DurationMS float64           `json:"duration,omitempty"`
	FPS        *float64          `json:"fps,omitempty"`
	Mem        *float64          `json:"mem,omitempty"`
	Render     *float64          `json:"render,omitempty"`
}

func (h *Host) publish(ev event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.hub.broadcast(b)
}
