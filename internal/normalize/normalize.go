// Package normalize turns heterogeneous host snapshots into the uniform
// model.Node forests the panels render. Every function is pure and keeps the
// source order of its input.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"devlens/internal/jsonv"
	"devlens/internal/model"
)

// ComponentTree converts the host component forest field by field.
func ComponentTree(comps []model.Component) []*model.Node {
	if len(comps) == 0 {
		return nil
	}
	nodes := make([]*model.Node, 0, len(comps))
	for i := range comps {
		nodes = append(nodes, component(&comps[i]))
	}
	return nodes
}

func component(c *model.Component) *model.Node {
	n := &model.Node{
		ID:            string(c.ID),
		Path:          c.Path,
		Kind:          model.Kind(c.Kind),
		Name:          c.Name,
		Props:         c.Props,
		Slots:         c.Slots,
		Signals:       c.Signals,
		Owner:         c.Owner,
		HostComponent: c.HostComponent,
		StoreBindings: c.StoreBindings,
		Store:         c.Store,
		Timeline:      c.Timeline,
		Metrics: &model.Metrics{
			Time:    c.Time,
			Average: c.Average,
			Total:   c.Total,
			Updates: c.Updates,
		},
	}
	if c.Children != nil {
		n.Children = make([]*model.Node, 0, len(c.Children))
		for i := range c.Children {
			n.Children = append(n.Children, component(&c.Children[i]))
		}
	}
	return n
}

// StoreTree flattens module -> store -> key into three levels with
// "/"-joined paths. A module or store whose value is not an object becomes
// a node with no children.
func StoreTree(stores jsonv.Object) []*model.Node {
	nodes := make([]*model.Node, 0, len(stores))
	for _, mod := range stores {
		mn := &model.Node{
			Path:     mod.Key,
			Kind:     model.KindModule,
			Name:     mod.Key,
			Children: []*model.Node{},
		}
		storesOf, ok := mod.Value.(jsonv.Object)
		if !ok {
			mn.Value, mn.HasValue = mod.Value, true
			nodes = append(nodes, mn)
			continue
		}
		for _, st := range storesOf {
			sn := &model.Node{
				Path:     mod.Key + "/" + st.Key,
				Kind:     model.KindStore,
				Name:     st.Key,
				Children: []*model.Node{},
				Store:    &model.StoreRef{Module: mod.Key, Name: st.Key, State: st.Value},
			}
			state, ok := st.Value.(jsonv.Object)
			if !ok {
				sn.Value, sn.HasValue = st.Value, true
			}
			for _, kv := range state {
				sn.Children = append(sn.Children, &model.Node{
					Path:     sn.Path + "/" + kv.Key,
					Kind:     jsonv.TypeOf(kv.Value),
					Name:     kv.Key,
					Value:    kv.Value,
					HasValue: true,
				})
			}
			mn.Children = append(mn.Children, sn)
		}
		nodes = append(nodes, mn)
	}
	return nodes
}

// SignalList yields one flat leaf per signal id, labelled "#id".
func SignalList(signals jsonv.Object) []*model.Node {
	nodes := make([]*model.Node, 0, len(signals))
	for _, s := range signals {
		nodes = append(nodes, &model.Node{
			ID:       s.Key,
			Path:     "#" + s.Key,
			Kind:     model.KindSignal,
			Name:     "#" + s.Key,
			Value:    s.Value,
			HasValue: true,
		})
	}
	return nodes
}

// RouteForest passes routes through, tagging each dynamic or static.
func RouteForest(routes []model.Route) []*model.Node {
	if routes == nil {
		return nil
	}
	nodes := make([]*model.Node, 0, len(routes))
	for i := range routes {
		r := routes[i]
		kind := model.KindStatic
		if r.Dynamic() {
			kind = model.KindDynamic
		}
		n := &model.Node{
			Path:  r.Pattern(),
			Kind:  kind,
			Name:  r.Pattern(),
			Route: &r,
		}
		if r.Children != nil {
			n.Children = RouteForest(r.Children)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// PluginList yields one leaf per plugin with its config as the value.
func PluginList(plugins []model.Plugin) []*model.Node {
	nodes := make([]*model.Node, 0, len(plugins))
	for _, p := range plugins {
		nodes = append(nodes, &model.Node{
			Path:     p.Name,
			Kind:     model.KindPlugin,
			Name:     p.Name,
			Value:    p.Config,
			HasValue: p.Config != nil,
		})
	}
	return nodes
}

// VarsTree walks an expvar document recursively. Paths are "."-joined;
// array elements use their index as key.
func VarsTree(vars jsonv.Object) []*model.Node {
	return varsObject(vars, "")
}

func varsObject(obj jsonv.Object, prefix string) []*model.Node {
	nodes := make([]*model.Node, 0, len(obj))
	for _, f := range obj {
		nodes = append(nodes, varsNode(f.Key, f.Value, prefix))
	}
	return nodes
}

func varsNode(key string, v any, prefix string) *model.Node {
	full := key
	if prefix != "" {
		full = prefix + "." + key
	}
	n := &model.Node{Path: full, Kind: jsonv.TypeOf(v), Name: key}
	switch t := v.(type) {
	case jsonv.Object:
		n.Children = varsObject(t, full)
	case []any:
		n.Children = make([]*model.Node, 0, len(t))
		for i, item := range t {
			n.Children = append(n.Children, varsNode(strconv.Itoa(i), item, full))
		}
	default:
		n.Value, n.HasValue = v, true
	}
	return n
}

// Stringify renders v as JSON text. Values JSON cannot encode fall back to
// fmt formatting; self-referencing values are shown by type only.
func Stringify(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fallback(v, nil)
		}
	}()
	b, err := json.Marshal(v)
	if err != nil {
		return fallback(v, err)
	}
	return string(b)
}

// Pretty is Stringify with two-space indentation.
func Pretty(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fallback(v, nil)
		}
	}()
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fallback(v, err)
	}
	return string(b)
}

func fallback(v any, err error) string {
	var uve *json.UnsupportedValueError
	if err == nil || (errors.As(err, &uve) && strings.Contains(uve.Str, "cycle")) {
		return fmt.Sprintf("<%s>", reflect.TypeOf(v))
	}
	return fmt.Sprint(v)
}
