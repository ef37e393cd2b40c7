package model

import (
	"regexp"

	"github.com/goccy/go-json"
)

// Kind tags a Node for display and search. Component nodes carry whatever
// kind string the host reported.
type Kind string

const (
	KindModule  Kind = "module"
	KindStore   Kind = "store"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindSignal  Kind = "signal"
	KindPlugin  Kind = "plugin"
	KindDynamic Kind = "dynamic"
	KindStatic  Kind = "static"
	KindProfile Kind = "profile"
)

// Metrics are the per-component render counters reported by the host.
// Times are milliseconds.
type Metrics struct {
	Time    float64 `json:"time"`
	Average float64 `json:"average"`
	Total   float64 `json:"total"`
	Updates int     `json:"updates"`
}

// Node is the unit every panel renders. A nil Children slice marks a leaf.
type Node struct {
	ID       string  `json:"id,omitempty"`
	Path     string  `json:"path,omitempty"`
	Kind     Kind    `json:"kind"`
	Name     string  `json:"name"`
	Value    any     `json:"value,omitempty"`
	HasValue bool    `json:"-"`
	Children []*Node `json:"children,omitempty"`

	Metrics *Metrics `json:"metrics,omitempty"`

	Props         any             `json:"props,omitempty"`
	Slots         any             `json:"slots,omitempty"`
	Signals       any             `json:"signals,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	HostComponent string          `json:"hostComponent,omitempty"`
	StoreBindings []StoreBinding  `json:"storeBindings,omitempty"`
	Store         *StoreRef       `json:"store,omitempty"`
	Timeline      []TimelineEvent `json:"timeline,omitempty"`
	Route         *Route          `json:"route,omitempty"`
}

// Key identifies the node across refreshes: the path when set, else the id.
func (n *Node) Key() string {
	if n.Path != "" {
		return n.Path
	}
	return n.ID
}

// IsLeaf reports whether the node has no child list.
func (n *Node) IsLeaf() bool {
	return n.Children == nil
}

// StoreBinding names the store keys a component reads.
type StoreBinding struct {
	Module string   `json:"module"`
	Name   string   `json:"name"`
	Keys   []string `json:"keys,omitempty"`
}

// StoreRef is the store a component owns, with its state at snapshot time.
type StoreRef struct {
	Module string `json:"module"`
	Name   string `json:"name"`
	State  any    `json:"state,omitempty"`
}

// TimelineEvent is one lifecycle event of a component. At and Duration are
// milliseconds.
type TimelineEvent struct {
	Kind     string  `json:"kind"`
	At       float64 `json:"at"`
	Duration float64 `json:"duration,omitempty"`
}

// Component is the wire shape of one entry in the host's component tree.
type Component struct {
	ID            ComponentID     `json:"id"`
	Kind          string          `json:"kind"`
	Name          string          `json:"name"`
	Time          float64         `json:"time,omitempty"`
	Average       float64         `json:"average,omitempty"`
	Total         float64         `json:"total,omitempty"`
	Path          string          `json:"path,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	HostComponent string          `json:"hostComponent,omitempty"`
	Updates       int             `json:"updates,omitempty"`
	Props         any             `json:"props,omitempty"`
	Slots         any             `json:"slots,omitempty"`
	Signals       any             `json:"signals,omitempty"`
	StoreBindings []StoreBinding  `json:"storeBindings,omitempty"`
	Store         *StoreRef       `json:"store,omitempty"`
	Children      []Component     `json:"children,omitempty"`
	Timeline      []TimelineEvent `json:"timeline,omitempty"`
}

// ComponentID accepts either a JSON number or a JSON string.
type ComponentID string

func (id *ComponentID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ComponentID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	*id = ComponentID(b)
	return nil
}

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// MarshalJSON writes numeric ids back as numbers.
func (id ComponentID) MarshalJSON() ([]byte, error) {
	if jsonNumber.MatchString(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Route is one entry of the host's route table.
type Route struct {
	Path     string   `json:"path"`
	Template string   `json:"template,omitempty"`
	Params   []string `json:"params,omitempty"`
	Children []Route  `json:"children,omitempty"`
}

// Pattern is the template when present, else the path.
func (r *Route) Pattern() string {
	if r.Template != "" {
		return r.Template
	}
	return r.Path
}

// Dynamic reports whether the route needs parameters before navigating.
func (r *Route) Dynamic() bool {
	return len(r.Params) > 0
}

// Plugin is a registered host plugin. Config is an arbitrary native value.
type Plugin struct {
	Name   string `json:"name"`
	Config any    `json:"config,omitempty"`
}
