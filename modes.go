package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"devlens/internal/config"
	"devlens/internal/jsonv"
	"devlens/internal/loader"
	"devlens/internal/model"
	"devlens/internal/route"
	"devlens/internal/session"
	"devlens/internal/tree"
	"devlens/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// pullOnce opens the panel and installs a single snapshot.
func pullOnce(ctx context.Context, env *hostEnv) {
	h := env.sess.Open()
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.Ctx.Done():
			cancel()
		case <-pctx.Done():
		}
	}()
	snap := env.sess.Pull(pctx, session.PullOptions{Profiles: true})
	env.sess.Apply(h, snap)
}

func writeOutput(path string, data []byte, what string) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s to %s: %w", what, path, err)
	}
	fmt.Printf("%s saved to %s\n", strings.ToUpper(what[:1])+what[1:], path)
	return nil
}

// roots returns the top-level nodes a view was built from.
func roots(v *tree.View) []*model.Node {
	out := []*model.Node{}
	for _, r := range v.Rows {
		if r.Depth == 0 {
			out = append(out, r.Node)
		}
	}
	return out
}

func runJSONMode(ctx context.Context, env *hostEnv, output string) error {
	pullOnce(ctx, env)
	defer env.sess.Close()

	tabs := make(jsonv.Object, 0, len(session.Tabs))
	for _, t := range session.Tabs {
		tabs = append(tabs, jsonv.Field{Key: string(t), Value: roots(env.sess.View(t))})
	}
	k := env.sess.KPI()
	out := jsonv.Object{
		{Key: "version", Value: model.Version},
		{Key: "source", Value: env.source},
		{Key: "capabilities", Value: env.caps.Names()},
		{Key: "kpi", Value: jsonv.Object{
			{Key: "memory", Value: k.MemText()},
			{Key: "render", Value: k.RenderText()},
			{Key: "nodes", Value: k.Nodes},
		}},
		{Key: "tabs", Value: tabs},
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return writeOutput(output, append(data, '\n'), "snapshot")
}

func runReportMode(ctx context.Context, env *hostEnv, output string) error {
	pullOnce(ctx, env)
	defer env.sess.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "devlens report (version %s)\n", model.Version)
	fmt.Fprintf(&b, "Generated:    %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&b, "Source:       %s\n", env.source)
	caps := env.caps.Names()
	if len(caps) == 0 {
		caps = []string{"none"}
	}
	fmt.Fprintf(&b, "Capabilities: %s\n\n", strings.Join(caps, ", "))

	k := env.sess.KPI()
	b.WriteString("Headline\n")
	for _, kv := range [][2]string{
		{"Memory", k.MemText()},
		{"Render", k.RenderText()},
		{"Nodes", k.NodesText()},
	} {
		fmt.Fprintf(&b, "  %s %s\n", runewidth.FillRight(kv[0], 10), kv[1])
	}

	b.WriteString("\nTabs\n")
	for _, t := range session.Tabs {
		n := len(env.sess.View(t).Rows)
		line := fmt.Sprintf("  %s %s", runewidth.FillRight(t.Title(), 12), humanize.Comma(int64(n)))
		if n == 1 {
			line += " row"
		} else {
			line += " rows"
		}
		if st := env.sess.Status(t); st != "" {
			line += "  (" + st + ")"
		}
		b.WriteString(line + "\n")
	}

	if logs := env.sess.Feed().Logs(); len(logs) > 0 {
		b.WriteString("\nRecent warnings\n")
		for _, l := range logs {
			if l.Level == "warn" || l.Level == "error" {
				fmt.Fprintf(&b, "  %s %s\n", humanize.Time(l.At), l.Message)
			}
		}
	}
	return writeOutput(output, []byte(b.String()), "report")
}

// isTerminal checks if stdin is connected to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// runNavigateMode accepts either a concrete path ("/users/42") or a route
// pattern ("/users/:id"). Patterns prompt for their parameters.
func runNavigateMode(ctx context.Context, env *hostEnv, target string) error {
	pullOnce(ctx, env)
	defer env.sess.Close()

	routes := env.sess.Routes()
	nav := env.sess.Navigator()

	if r, values, ok := route.Match(routes, target); ok && !strings.Contains(target, ":") {
		nav.Open(r)
		if nav.State() == route.CollectingParams {
			for i, v := range values {
				if uv, err := url.PathUnescape(v); err == nil {
					v = uv
				}
				nav.SetValue(i, v)
			}
			if _, err := nav.Confirm(); err != nil {
				return err
			}
		}
		fmt.Printf("Navigated to %s\n", nav.LastDispatched())
		return nil
	}

	r, ok := route.Find(routes, target)
	if !ok {
		if s, ok := route.Suggest(routes, target); ok {
			return fmt.Errorf("no route matches %s (did you mean %s?)", target, s)
		}
		return fmt.Errorf("no route matches %s", target)
	}

	nav.Open(r)
	if nav.State() != route.CollectingParams {
		fmt.Printf("Navigated to %s\n", nav.LastDispatched())
		return nil
	}

	values := make([]string, len(r.Params))
	fields := make([]huh.Field, len(r.Params))
	for i, p := range r.Params {
		fields[i] = huh.NewInput().
			Title(":" + p).
			Value(&values[i]).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s is required", p)
				}
				return nil
			})
	}
	if err := newForm(huh.NewGroup(fields...)).Run(); err != nil {
		nav.Cancel()
		return err
	}
	for i, v := range values {
		nav.SetValue(i, v)
	}
	path, err := nav.Confirm()
	if err != nil {
		return err
	}
	fmt.Printf("Navigated to %s\n", path)
	return nil
}

// runFetchMode downloads a bundle with a progress bar.
func runFetchMode(ctx context.Context, cfg config.Config, target, output string) error {
	m := tui.NewFetchModel(target)
	p := tea.NewProgram(m)

	progress := loader.NewProgress(func(v float64, s loader.BarState) {
		p.Send(tui.MsgFetchProgress{Value: v, State: s})
	})
	fetcher := &loader.Fetcher{Extensions: cfg.Loader.Extensions}

	go func() {
		go progress.Run(ctx)
		res, err := fetcher.Fetch(ctx, target, progress)
		p.Send(tui.MsgFetchDone{Result: res, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}
	res, err := final.(tui.FetchModel).Result()
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Printf("%s: %s\n", res.URL, humanize.Bytes(uint64(len(res.Data))))
		return nil
	}
	return writeOutput(output, res.Data, "bundle")
}
