package tui

import (
	"time"

	"devlens/internal/activity"
	"devlens/internal/session"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Options configures the overlay program.
type Options struct {
	Session    *session.Session
	Hotkey     string
	DefaultTab session.Tab
	StartOpen  bool
	Interval   time.Duration
	Frame      time.Duration
	// Events is the host's push stream, nil when the host has none.
	Events <-chan activity.Event
	// Help is markdown shown by '?'.
	Help string
	Copy func(string) error
}

// AppModel holds the TUI state. Everything about the host lives in the
// session; the model only keeps what belongs to the terminal.
type AppModel struct {
	sess *session.Session
	opts Options

	Tab        session.Tab
	handle     session.Handle
	WindowSize tea.WindowSizeMsg

	// Filter input
	InputMode   bool
	InputBuffer textinput.Model

	// Route parameter modal
	ParamInputs []textinput.Model
	ParamErr    string

	ShowHelp    bool
	HelpContent string
	HelpView    viewport.Model

	DetailsViewport viewport.Model
	Status          string
}

// InitialModel returns the closed overlay.
func InitialModel(opts Options) AppModel {
	if opts.Hotkey == "" {
		opts.Hotkey = "ctrl+d"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Frame <= 0 {
		opts.Frame = 16 * time.Millisecond
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}
	opts.Session.Navigator().SetDeferred(true)

	tab := opts.DefaultTab
	if _, ok := session.ParseTab(string(tab)); !ok {
		tab = session.TabComponents
	}

	ti := textinput.New()
	ti.Placeholder = "filter..."
	ti.CharLimit = 64
	ti.Width = 30

	return AppModel{
		sess:            opts.Session,
		opts:            opts,
		Tab:             tab,
		InputBuffer:     ti,
		DetailsViewport: viewport.New(40, 10),
		HelpView:        viewport.New(60, 20),
	}
}

// Session exposes the panel state, mostly for tests.
func (m AppModel) Session() *session.Session {
	return m.sess
}
