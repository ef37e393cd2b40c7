package session

import (
	"errors"
	"fmt"
	"strings"

	"devlens/internal/debugvars"
	"devlens/internal/detail"
	"devlens/internal/jsonv"
	"devlens/internal/metrics"
	"devlens/internal/model"
	"devlens/internal/normalize"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// Tab names one panel of the overlay.
type Tab string

const (
	TabComponents Tab = "components"
	TabStore      Tab = "store"
	TabSignals    Tab = "signals"
	TabPlugins    Tab = "plugins"
	TabRoutes     Tab = "routes"
	TabNetwork    Tab = "network"
	TabLogs       Tab = "logs"
	TabVars       Tab = "vars"
	TabPprof      Tab = "pprof"
)

// Tabs in display order.
var Tabs = []Tab{TabComponents, TabStore, TabSignals, TabPlugins, TabRoutes, TabNetwork, TabLogs, TabVars, TabPprof}

// Title is the tab label.
func (t Tab) Title() string {
	if t == TabPprof {
		return "Pprof"
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// ParseTab accepts a tab name in any case.
func ParseTab(s string) (Tab, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

func componentBadge(n *model.Node) string {
	if n.Metrics != nil && n.Metrics.Updates > 0 {
		return fmt.Sprintf("%s %s ×%d", n.Kind, metrics.FormatMillis(n.Metrics.Average), n.Metrics.Updates)
	}
	return string(n.Kind)
}

func signalBadge(n *model.Node) string {
	return string(jsonv.TypeOf(n.Value)) + " " + runewidth.Truncate(normalize.Stringify(n.Value), 32, "…")
}

// ProfileNodes lists pprof index links as leaves keyed by href.
func ProfileNodes(profiles []debugvars.Profile) []*model.Node {
	nodes := make([]*model.Node, 0, len(profiles))
	for _, p := range profiles {
		nodes = append(nodes, &model.Node{Path: p.Href, Kind: model.KindProfile, Name: p.Label})
	}
	return nodes
}

// Detail presents the selected item of tab.
func (s *Session) Detail(t Tab) []detail.Field {
	n := s.SelectedNode(t)
	if n == nil {
		return nil
	}
	switch t {
	case TabLogs, TabNetwork:
		label := "Message"
		if t == TabNetwork {
			label = "Request"
		}
		return []detail.Field{
			{Label: label, Value: n.Name},
			{Label: "Kind", Value: string(n.Kind)},
			{Label: "When", Value: fmt.Sprint(n.Value)},
		}
	case TabPprof:
		fields := []detail.Field{{Label: "Profile", Value: n.Name}, {Label: "URL", Value: debugvars.ProfileURL(n.Path)}}
		res, ok := s.profiles[n.Path]
		switch {
		case !ok:
			fields = append(fields, detail.Field{Label: "Content", Value: "Loading..."})
		case res.Err != nil:
			msg := "Error fetching profile"
			if errors.Is(res.Err, debugvars.ErrFailed) {
				msg = "Failed to load"
			}
			fields = append(fields, detail.Field{Label: "Content", Value: msg})
		case res.Content.IsText:
			fields = append(fields, detail.Field{Label: "Content", Value: res.Content.Text})
		default:
			fields = append(fields, detail.Field{
				Label: "Download profile",
				Value: fmt.Sprintf("%s (%s, %s)", res.Content.FileName, humanize.Bytes(uint64(len(res.Content.Data))), res.Content.ContentType),
			})
		}
		return fields
	}
	return detail.Present(n)
}
