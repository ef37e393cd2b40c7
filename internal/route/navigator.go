// Package route drives navigation from the Routes panel: collecting values
// for dynamic routes, substituting them into the template, and dispatching.
package route

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"devlens/internal/debug"
	"devlens/internal/model"
)

// State of the navigator.
type State int

const (
	Idle State = iota
	CollectingParams
	Dispatching
)

func (s State) String() string {
	switch s {
	case CollectingParams:
		return "collecting-params"
	case Dispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// MissingParamError reports the first parameter left blank on confirm.
type MissingParamError struct {
	Name  string
	Index int
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing value for :%s", e.Name)
}

// Substitute replaces each ":name" segment of template with the
// component-escaped value, in a single pass over the template. A name only
// matches when followed by "/" or the end of the template, so ":id" never
// touches ":idx", and substituted text is never scanned again.
func Substitute(template string, params, values []string) string {
	byName := make(map[string]string, len(params))
	names := make([]string, 0, len(params))
	for i, name := range params {
		if _, dup := byName[name]; dup || name == "" {
			continue
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		byName[name] = EscapeComponent(v)
		names = append(names, regexp.QuoteMeta(name))
	}
	if len(names) == 0 {
		return template
	}
	// longest first so ":idx" is not read as ":id" + "x"
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	re := regexp.MustCompile(`:(` + strings.Join(names, "|") + `)(/|$)`)
	return re.ReplaceAllStringFunc(template, func(m string) string {
		name := strings.TrimSuffix(m[1:], "/")
		return byName[name] + m[1+len(name):]
	})
}

// EscapeComponent percent-encodes everything except letters, digits and
// "-_.~", so a value always stays inside its own path segment.
func EscapeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Dispatcher performs a navigation. Host is used when the runtime can route
// in place; Fallback performs a full navigation otherwise.
type Dispatcher struct {
	Host     func(path string) error
	Fallback func(path string) error
}

// Navigator is the parameter form state machine. It is owned by the UI loop.
type Navigator struct {
	state    State
	route    *model.Route
	values   []string
	focus    int
	dispatch Dispatcher
	last     string

	deferred bool
	pending  string
	queued   bool
}

// NewNavigator returns an idle navigator.
func NewNavigator(d Dispatcher) *Navigator {
	return &Navigator{dispatch: d}
}

func (n *Navigator) State() State        { return n.state }
func (n *Navigator) Route() *model.Route { return n.route }
func (n *Navigator) Focus() int          { return n.focus }

// Values returns a copy of the pending parameter values.
func (n *Navigator) Values() []string {
	return append([]string(nil), n.values...)
}

// SetDeferred makes Open and Confirm resolve paths without dispatching them.
// The caller collects each one with TakePending and runs Dispatch off the
// UI loop.
func (n *Navigator) SetDeferred(on bool) {
	n.deferred = on
}

// TakePending returns the path resolved by the last Open or Confirm in
// deferred mode, at most once.
func (n *Navigator) TakePending() (string, bool) {
	p, ok := n.pending, n.queued
	n.pending, n.queued = "", false
	return p, ok
}

// LastDispatched is the most recent path sent (or queued) to a dispatcher.
func (n *Navigator) LastDispatched() string {
	return n.last
}

// Open starts navigation to r. Routes without parameters dispatch at once;
// otherwise a fresh form is opened, replacing any pending one.
func (n *Navigator) Open(r model.Route) {
	if !r.Dynamic() {
		n.route = &r
		n.run(r.Pattern())
		return
	}
	n.route = &r
	n.values = make([]string, len(r.Params))
	n.focus = 0
	n.state = CollectingParams
}

// SetValue stores the value typed for parameter i.
func (n *Navigator) SetValue(i int, v string) {
	if n.state != CollectingParams || i < 0 || i >= len(n.values) {
		return
	}
	n.values[i] = v
}

// SetFocus moves the form cursor, wrapping around.
func (n *Navigator) SetFocus(i int) {
	if len(n.values) == 0 {
		return
	}
	n.focus = ((i % len(n.values)) + len(n.values)) % len(n.values)
}

// Confirm validates the form. The first blank parameter is returned as a
// *MissingParamError and receives focus; nothing is dispatched. Otherwise the
// substituted path is dispatched and returned.
func (n *Navigator) Confirm() (string, error) {
	if n.state != CollectingParams || n.route == nil {
		return "", fmt.Errorf("no route pending")
	}
	for i, v := range n.values {
		if strings.TrimSpace(v) == "" {
			n.focus = i
			return "", &MissingParamError{Name: n.route.Params[i], Index: i}
		}
	}
	path := Substitute(n.route.Pattern(), n.route.Params, n.values)
	n.run(path)
	return path, nil
}

// Cancel discards the form.
func (n *Navigator) Cancel() {
	n.state = Idle
	n.route = nil
	n.values = nil
	n.focus = 0
	n.pending, n.queued = "", false
}

// Dispatch sends path to the host router, or to the fallback when the host
// cannot route in place. Errors are logged and returned. It reads no form
// state, so it may run on any goroutine.
func (n *Navigator) Dispatch(path string) error {
	var err error
	switch {
	case n.dispatch.Host != nil:
		err = n.dispatch.Host(path)
	case n.dispatch.Fallback != nil:
		err = n.dispatch.Fallback(path)
	default:
		err = fmt.Errorf("no dispatcher")
	}
	if err != nil {
		debug.Warn("navigate %s: %v", path, err)
	}
	return err
}

func (n *Navigator) run(path string) {
	n.state = Dispatching
	n.last = path
	if n.deferred {
		n.pending, n.queued = path, true
	} else {
		n.Dispatch(path)
	}
	n.state = Idle
	n.route = nil
	n.values = nil
	n.focus = 0
}
