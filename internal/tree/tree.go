// Package tree flattens node forests into rows once per snapshot and filters
// them in place by toggling visibility.
package tree

import (
	"strings"

	"devlens/internal/model"
	"devlens/internal/normalize"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Row is one rendered line of a tree panel.
type Row struct {
	Key     string
	Depth   int
	Kind    model.Kind
	Label   string
	Badge   string
	Visible bool
	Node    *model.Node

	blob string
}

// BadgeFunc computes the secondary text shown next to a row's label.
type BadgeFunc func(*model.Node) string

// KindBadge shows the node kind, plus a short value preview for leaves.
func KindBadge(n *model.Node) string {
	if n.HasValue && n.IsLeaf() {
		return string(n.Kind) + " " + runewidth.Truncate(normalize.Stringify(n.Value), 32, "…")
	}
	return string(n.Kind)
}

// View holds the rows of one panel and the filter applied to them.
type View struct {
	Rows  []Row
	query string
}

// Build walks nodes in pre-order. A nil badge uses KindBadge.
func Build(nodes []*model.Node, badge BadgeFunc) *View {
	if badge == nil {
		badge = KindBadge
	}
	v := &View{}
	var walk func([]*model.Node, int)
	walk = func(ns []*model.Node, depth int) {
		for _, n := range ns {
			label := n.Name
			if label == "" {
				label = n.Key()
			}
			b := badge(n)
			v.Rows = append(v.Rows, Row{
				Key:     n.Key(),
				Depth:   depth,
				Kind:    n.Kind,
				Label:   label,
				Badge:   b,
				Visible: true,
				Node:    n,
				blob:    strings.ToLower(string(n.Kind) + " " + label + " " + b),
			})
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return v
}

// Filter shows the rows whose kind, label or badge contains query, case
// insensitively. Rows are never reordered or removed; the empty query shows
// everything.
func (v *View) Filter(query string) {
	q := strings.ToLower(strings.TrimSpace(query))
	v.query = q
	for i := range v.Rows {
		v.Rows[i].Visible = q == "" || strings.Contains(v.Rows[i].blob, q)
	}
}

// Query is the normalized filter currently applied.
func (v *View) Query() string {
	return v.query
}

// Visible returns indexes into Rows of the rows currently shown.
func (v *View) Visible() []int {
	var idx []int
	for i, r := range v.Rows {
		if r.Visible {
			idx = append(idx, i)
		}
	}
	return idx
}

// At returns the row at visible position pos.
func (v *View) At(pos int) (Row, bool) {
	vis := v.Visible()
	if pos < 0 || pos >= len(vis) {
		return Row{}, false
	}
	return v.Rows[vis[pos]], true
}

// IndexOf returns the visible position of the row with key, or -1.
func (v *View) IndexOf(key string) int {
	pos := 0
	for _, r := range v.Rows {
		if !r.Visible {
			continue
		}
		if r.Key == key {
			return pos
		}
		pos++
	}
	return -1
}

// Styles used by Render.
type Styles struct {
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Badge    lipgloss.Style
	Dim      lipgloss.Style
}

// DefaultStyles match the overlay palette.
func DefaultStyles() Styles {
	return Styles{
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")),
		Normal:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		Badge:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

// Render draws at most height visible rows, keeping the cursor centred once
// the list is longer than the window.
func (v *View) Render(cursor, width, height int, st Styles) string {
	vis := v.Visible()
	if len(vis) == 0 {
		if v.query != "" {
			return st.Dim.Render("no matches")
		}
		return st.Dim.Render("(empty)")
	}
	if height < 1 {
		height = 1
	}
	start, end := 0, len(vis)
	if len(vis) > height {
		if cursor >= height/2 {
			start = cursor - height/2
		}
		if start+height > len(vis) {
			start = len(vis) - height
		}
		end = start + height
	}

	var b strings.Builder
	for pos := start; pos < end; pos++ {
		r := v.Rows[vis[pos]]
		indent := strings.Repeat("  ", r.Depth)
		label := indent + model.IconFor(r.Kind) + " " + r.Label
		badge := ""
		if r.Badge != "" {
			badge = " " + r.Badge
		}
		line := runewidth.Truncate(label+badge, width, "…")
		if pos == cursor {
			b.WriteString(st.Selected.Render(runewidth.FillRight(line, width)))
		} else {
			labelPart := runewidth.Truncate(label, width, "…")
			rest := runewidth.Truncate(line, width, "")
			b.WriteString(st.Normal.Render(labelPart))
			if w := runewidth.StringWidth(labelPart); w < runewidth.StringWidth(rest) {
				b.WriteString(st.Badge.Render(runewidth.TruncateLeft(rest, w, "")))
			}
		}
		if pos < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
