// Package detail turns a selected node into label/value pairs and writes
// them to an HTML fragment or a terminal pane. Host-supplied text is never
// interpreted as markup or control sequences.
package detail

import (
	"fmt"
	"html"
	"strings"

	"devlens/internal/metrics"
	"devlens/internal/model"
	"devlens/internal/normalize"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Field is one labelled attribute of the selected node.
type Field struct {
	Label string
	Value string
}

// FormatDuration renders milliseconds for display.
func FormatDuration(ms float64) string {
	return metrics.FormatMillis(ms)
}

// Present lists the attributes of n that are present and non-empty, in a
// fixed order.
func Present(n *model.Node) []Field {
	if n == nil {
		return nil
	}
	var fields []Field
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fields = append(fields, Field{Label: label, Value: value})
		}
	}
	addJSON := func(label string, v any) {
		if isEmpty(v) {
			return
		}
		add(label, normalize.Pretty(v))
	}

	add("Path", n.Path)
	add("Kind", string(n.Kind))
	if n.HasValue {
		add("Value", normalize.Pretty(n.Value))
	}
	if r := n.Route; r != nil {
		if r.Template != "" {
			add("Template", r.Template)
		}
		add("Params", strings.Join(r.Params, ", "))
	}
	addJSON("Props", n.Props)
	addJSON("Slots", n.Slots)
	addJSON("Signals", n.Signals)
	if n.Store != nil && n.Kind != model.KindStore {
		add("Store", n.Store.Module+"/"+n.Store.Name)
		addJSON("Store state", n.Store.State)
	}
	if len(n.StoreBindings) > 0 {
		var lines []string
		for _, b := range n.StoreBindings {
			line := b.Module + "/" + b.Name
			if len(b.Keys) > 0 {
				line += " [" + strings.Join(b.Keys, ", ") + "]"
			}
			lines = append(lines, line)
		}
		add("Store bindings", strings.Join(lines, "\n"))
	}
	if m := n.Metrics; m != nil && (m.Updates > 0 || m.Time > 0 || m.Total > 0) {
		add("Render time", FormatDuration(m.Time))
		add("Average", FormatDuration(m.Average))
		add("Total", FormatDuration(m.Total))
		add("Updates", fmt.Sprint(m.Updates))
	}
	add("Owner", n.Owner)
	add("Host component", n.HostComponent)
	if len(n.Timeline) > 0 {
		var lines []string
		for _, ev := range n.Timeline {
			line := fmt.Sprintf("%s @ %s", ev.Kind, FormatDuration(ev.At))
			if ev.Duration > 0 {
				line += " (" + FormatDuration(ev.Duration) + ")"
			}
			lines = append(lines, line)
		}
		add("Timeline", strings.Join(lines, "\n"))
	}
	return fields
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	s := normalize.Stringify(v)
	return s == "{}" || s == "[]" || s == "null" || s == `""`
}

// HTML writes fields as <b>label</b><div>value</div> pairs with every label
// and value escaped.
func HTML(fields []Field) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString("<b>")
		b.WriteString(html.EscapeString(f.Label))
		b.WriteString("</b><div>")
		b.WriteString(html.EscapeString(f.Value))
		b.WriteString("</div>")
	}
	return b.String()
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).PaddingLeft(2)
)

// Terminal renders fields for a pane of the given width. Control sequences
// in host text are stripped before styling.
func Terminal(fields []Field, width int) string {
	if len(fields) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("Select an item to inspect it.")
	}
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(sanitize(f.Label)))
		b.WriteString("\n")
		b.WriteString(valueStyle.Width(max(width-2, 10)).Render(sanitize(f.Value)))
	}
	return b.String()
}

func sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
