// Package bridge reads snapshots from the host runtime through a fixed set
// of optional capabilities. A capability that is missing, fails, panics or
// returns malformed data is reported as absent; nothing here is fatal.
package bridge

import (
	"errors"
	"fmt"

	"devlens/internal/debug"
	"devlens/internal/jsonv"
	"devlens/internal/model"

	"github.com/goccy/go-json"
)

// Capability names, shared with the hostbridge HTTP routes and the snapshot
// directory file names.
const (
	CapTree     = "tree"
	CapStores   = "stores"
	CapSignals  = "signals"
	CapPlugins  = "plugins"
	CapRoutes   = "routes"
	CapNavigate = "navigate"
)

// ErrNoNavigator is returned by Navigate when the host offers no navigation
// capability.
var ErrNoNavigator = errors.New("host has no navigation capability")

// Capabilities is the host surface. Any field may be nil. The tree, stores,
// signals and routes calls return JSON text; plugins return native values.
type Capabilities struct {
	Tree     func() (string, error)
	Stores   func() (string, error)
	Signals  func() (string, error)
	Routes   func() (string, error)
	Plugins  func() ([]model.Plugin, error)
	Navigate func(path string) error
}

// Names lists the capabilities that are present, in a fixed order.
func (c Capabilities) Names() []string {
	var names []string
	if c.Tree != nil {
		names = append(names, CapTree)
	}
	if c.Stores != nil {
		names = append(names, CapStores)
	}
	if c.Signals != nil {
		names = append(names, CapSignals)
	}
	if c.Plugins != nil {
		names = append(names, CapPlugins)
	}
	if c.Routes != nil {
		names = append(names, CapRoutes)
	}
	if c.Navigate != nil {
		names = append(names, CapNavigate)
	}
	return names
}

// Bridge narrows raw capability results into typed snapshots.
type Bridge struct {
	caps Capabilities
}

// New wraps caps. The set of capabilities is fixed for the bridge's lifetime.
func New(caps Capabilities) *Bridge {
	return &Bridge{caps: caps}
}

// Capabilities returns the wrapped capability set.
func (b *Bridge) Capabilities() Capabilities {
	return b.caps
}

// Tree returns the component forest.
func (b *Bridge) Tree() ([]model.Component, bool) {
	raw, ok := b.text(CapTree, b.caps.Tree)
	if !ok {
		return nil, false
	}
	var tree []model.Component
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		debug.Warn("devtools %s: malformed snapshot: %v", CapTree, err)
		return nil, false
	}
	return tree, true
}

// Stores returns module -> store -> state, in host order.
func (b *Bridge) Stores() (jsonv.Object, bool) {
	return b.object(CapStores, b.caps.Stores)
}

// Signals returns signal id -> current value, in host order.
func (b *Bridge) Signals() (jsonv.Object, bool) {
	return b.object(CapSignals, b.caps.Signals)
}

// Routes returns the route forest.
func (b *Bridge) Routes() ([]model.Route, bool) {
	raw, ok := b.text(CapRoutes, b.caps.Routes)
	if !ok {
		return nil, false
	}
	var routes []model.Route
	if err := json.Unmarshal([]byte(raw), &routes); err != nil {
		debug.Warn("devtools %s: malformed snapshot: %v", CapRoutes, err)
		return nil, false
	}
	return routes, true
}

// Plugins returns the registered plugins.
func (b *Bridge) Plugins() (plugins []model.Plugin, ok bool) {
	if b.caps.Plugins == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			debug.Warn("devtools %s: panic: %v", CapPlugins, r)
			plugins, ok = nil, false
		}
	}()
	list, err := b.caps.Plugins()
	if err != nil {
		debug.Warn("devtools %s: %v", CapPlugins, err)
		return nil, false
	}
	return list, true
}

// CanNavigate reports whether the host can route without a page load.
func (b *Bridge) CanNavigate() bool {
	return b.caps.Navigate != nil
}

// Navigate asks the host to route to path.
func (b *Bridge) Navigate(path string) (err error) {
	if b.caps.Navigate == nil {
		return ErrNoNavigator
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("navigate %s: panic: %v", path, r)
		}
	}()
	return b.caps.Navigate(path)
}

func (b *Bridge) object(name string, fn func() (string, error)) (jsonv.Object, bool) {
	raw, ok := b.text(name, fn)
	if !ok {
		return nil, false
	}
	obj, err := jsonv.DecodeObject([]byte(raw))
	if err != nil {
		debug.Warn("devtools %s: malformed snapshot: %v", name, err)
		return nil, false
	}
	return obj, true
}

func (b *Bridge) text(name string, fn func() (string, error)) (raw string, ok bool) {
	if fn == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			debug.Warn("devtools %s: panic: %v", name, r)
			raw, ok = "", false
		}
	}()
	raw, err := fn()
	if err != nil {
		debug.Warn("devtools %s: %v", name, err)
		return "", false
	}
	return raw, true
}
