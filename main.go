package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"devlens/internal/activity"
	"devlens/internal/bridge"
	"devlens/internal/config"
	"devlens/internal/debug"
	"devlens/internal/debugvars"
	"devlens/internal/demo"
	"devlens/internal/model"
	"devlens/internal/route"
	"devlens/internal/session"
	"devlens/internal/tui"
	"devlens/internal/web"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
)

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "devlens",
		Repository: "devlens",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("👉 Download it from https://github.com/devlens/devlens/releases")
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: devlens [options]\n\n")
		fmt.Fprintf(os.Stderr, "devlens is a live inspector for a running application.\n")
		fmt.Fprintf(os.Stderr, "It shows the component tree, stores, signals, plugins, routes,\n")
		fmt.Fprintf(os.Stderr, "logs, network requests and Go runtime profiles the host exposes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  devlens -s http://localhost:8080   # TUI overlay for a host\n")
		fmt.Fprintf(os.Stderr, "  devlens --demo                     # TUI overlay for the built-in demo host\n")
		fmt.Fprintf(os.Stderr, "  devlens --demo --web               # Web overlay on http://localhost:7070\n")
		fmt.Fprintf(os.Stderr, "  devlens -s ./snapshots --report    # Print counts and headline figures\n")
		fmt.Fprintf(os.Stderr, "  devlens --navigate /users/42       # Ask the host to navigate\n")
		fmt.Fprintf(os.Stderr, "  devlens --fetch http://host/app.wasm -o app.wasm\n")
	}

	sourceFlag := pflag.StringP("source", "s", "", "Host URL or snapshot directory (overrides config)")
	configFlag := pflag.StringP("config", "c", "", "Path to config file")
	demoFlag := pflag.Bool("demo", false, "Inspect the built-in demo host")
	jsonFlag := pflag.BoolP("json", "j", false, "Print the normalized snapshot as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print counts and headline figures (CLI mode)")
	outputFlag := pflag.StringP("output", "o", "", "Write --report, --json or --fetch output to a file")
	webFlag := pflag.BoolP("web", "w", false, "Start the web overlay")
	addrFlag := pflag.String("addr", ":7070", "Listen address for --web")
	navigateFlag := pflag.String("navigate", "", "Navigate the host to a route path or pattern")
	fetchFlag := pflag.String("fetch", "", "Download a bundle, preferring its brotli variant")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("devlens version %s\n", model.Version)
		return
	}

	if *updateFlag {
		checkUpdate(model.Version)
		return
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *sourceFlag != "" {
		cfg.Source = *sourceFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *fetchFlag != "" {
		if err := runFetchMode(ctx, cfg, *fetchFlag, *outputFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	env, err := connect(ctx, cfg, *demoFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *navigateFlag != "":
		err = runNavigateMode(ctx, env, *navigateFlag)
	case *reportFlag:
		err = runReportMode(ctx, env, *outputFlag)
	case *jsonFlag:
		err = runJSONMode(ctx, env, *outputFlag)
	case *webFlag:
		srv := web.NewServer(env.sess, cfg.Poll.Interval, env.events)
		go srv.Run(ctx)
		err = web.StartServer(ctx, *addrFlag, srv.Handler())
	default:
		err = runTuiMode(cfg, env)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// hostEnv is everything a mode needs to talk to the host.
type hostEnv struct {
	source string
	caps   bridge.Capabilities
	sess   *session.Session
	events <-chan activity.Event
}

// connect resolves the source and wires the session. In demo mode the app
// runs in-process and also serves its debug endpoints on a loopback port.
func connect(ctx context.Context, cfg config.Config, useDemo bool) (*hostEnv, error) {
	feed := activity.NewFeed(cfg.ListLimit)
	debug.SetWarnSink(func(msg string) { feed.Log("warn", msg) })
	client := feed.Client(cfg.Poll.Timeout)

	var (
		src    bridge.Source
		vars   *debugvars.Client
		events <-chan activity.Event
		base   = cfg.BaseURL
	)

	if useDemo {
		app := demo.New()
		go app.Run(ctx, 500*time.Millisecond)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("demo listener: %w", err)
		}
		hs := &http.Server{Handler: app.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go hs.Serve(ln)
		go func() {
			<-ctx.Done()
			hs.Close()
		}()
		demoURL := "http://" + ln.Addr().String()
		if base == "" {
			base = demoURL
		}
		src = &bridge.LocalSource{Caps: app.Host().Capabilities()}
		vars = debugvars.NewClient(demoURL, client)
		frames, unsubscribe := app.Host().Subscribe()
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
		var errs <-chan error
		events, errs = activity.FromFrames(ctx, frames)
		go drainErrors(errs)
	} else {
		var err error
		src, err = bridge.Detect(ctx, cfg.Source, bridge.WithClient(client), bridge.WithTimeout(cfg.Poll.Timeout))
		if err != nil {
			return nil, err
		}
		switch s := src.(type) {
		case *bridge.HTTPSource:
			if base == "" {
				base = s.Base()
			}
			vars = debugvars.NewClient(s.Base(), client)
			events = subscribe(ctx, s.Base())
		case *bridge.DirSource:
			events = watchDir(ctx, s)
		}
	}

	caps := src.Capabilities()
	debug.Log("source %s (%s) capabilities %v", cfg.Source, src.Name(), caps.Names())
	sess := session.New(session.Options{
		Bridge:   bridge.New(caps),
		Vars:     vars,
		Feed:     feed,
		Fallback: route.BrowserFallback(base),
		Timeout:  cfg.Poll.Timeout,
	})
	return &hostEnv{source: src.Name(), caps: caps, sess: sess, events: events}, nil
}

// subscribe connects to the host's event stream. A host without one is
// simply polled.
func subscribe(ctx context.Context, base string) <-chan activity.Event {
	wsURL, err := activity.StreamURL(base)
	if err != nil {
		debug.Warn("event stream: %v", err)
		return nil
	}
	events, errs, err := activity.Subscribe(ctx, wsURL)
	if err != nil {
		debug.Log("no event stream: %v", err)
		return nil
	}
	go drainErrors(errs)
	return events
}

// watchDir turns snapshot file rewrites into refresh events.
func watchDir(ctx context.Context, s *bridge.DirSource) <-chan activity.Event {
	events := make(chan activity.Event, 1)
	err := s.Watch(ctx, func(name string) {
		debug.Log("snapshot %s changed", name)
		select {
		case events <- activity.Event{Type: activity.EventRefresh}:
		default:
		}
	})
	if err != nil {
		debug.Warn("watch %s: %v", s.Name(), err)
		return nil
	}
	return events
}

func drainErrors(errs <-chan error) {
	for err := range errs {
		debug.Warn("event stream: %v", err)
	}
}

func runTuiMode(cfg config.Config, env *hostEnv) error {
	if debug.Enabled() {
		f, err := tea.LogToFile("devlens-debug.log", "debug")
		if err != nil {
			return err
		}
		defer f.Close()
		debug.SetOutput(f)
	}

	tab, _ := session.ParseTab(cfg.UI.DefaultTab)
	m := tui.InitialModel(tui.Options{
		Session:    env.sess,
		Hotkey:     cfg.UI.Hotkey,
		DefaultTab: tab,
		StartOpen:  cfg.UI.StartOpen,
		Interval:   cfg.Poll.Interval,
		Frame:      cfg.Poll.Frame,
		Events:     env.events,
		Help:       web.Help(),
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
