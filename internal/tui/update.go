package tui

import (
	"errors"
	"fmt"
	"time"

	"devlens/internal/activity"
	"devlens/internal/debug"
	"devlens/internal/debugvars"
	"devlens/internal/route"
	"devlens/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgSnapshot carries one pull back to the UI loop. Rearm is set for pulls
// issued by the poll timer, so manual refreshes never start a second loop.
type MsgSnapshot struct {
	Handle session.Handle
	Snap   session.Snapshot
	Rearm  bool
}

// MsgEvent is one frame from the host stream.
type MsgEvent activity.Event

// MsgProfile is a fetched pprof profile.
type MsgProfile struct {
	Handle  session.Handle
	Href    string
	Content debugvars.Content
	Err     error
}

// MsgNavigated reports a dispatched navigation.
type MsgNavigated struct {
	Handle session.Handle
	Path   string
	Err    error
}

type msgToggle struct{}

type msgPoll struct{ h session.Handle }

type msgFrame struct {
	h  session.Handle
	at time.Time
}

type msgStreamClosed struct{}

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.resize()
		m.syncDetail()
		return m, nil

	case msgToggle:
		return m, m.toggle()

	case MsgSnapshot:
		if !m.sess.Apply(msg.Handle, msg.Snap) {
			return m, nil
		}
		m.ensureSelection()
		m.syncDetail()
		cmds := []tea.Cmd{m.fetchProfile()}
		if msg.Rearm {
			cmds = append(cmds, pollTick(msg.Handle, m.opts.Interval))
		}
		return m, tea.Batch(cmds...)

	case msgPoll:
		if !m.sess.Current(msg.h) {
			return m, nil
		}
		return m, m.pull(msg.h, true)

	case msgFrame:
		if !m.sess.Current(msg.h) {
			return m, nil
		}
		m.sess.Frame(msg.at)
		return m, frameTick(msg.h, m.opts.Frame)

	case MsgEvent:
		refresh := m.sess.HandleEvent(activity.Event(msg))
		cmds := []tea.Cmd{waitEvent(m.opts.Events)}
		if m.sess.IsOpen() {
			if m.sess.SyncActivity() {
				m.ensureSelection()
				m.syncDetail()
			}
			if refresh {
				cmds = append(cmds, m.pull(m.handle, false))
			}
		}
		return m, tea.Batch(cmds...)

	case msgStreamClosed:
		debug.Log("host event stream closed")
		return m, nil

	case MsgNavigated:
		if !m.sess.Current(msg.Handle) {
			return m, nil
		}
		if msg.Err != nil {
			m.Status = fmt.Sprintf("navigation to %s failed: %v", msg.Path, msg.Err)
			return m, nil
		}
		m.Status = "navigated to " + msg.Path
		return m, m.pull(msg.Handle, false)

	case MsgProfile:
		if m.sess.SetProfile(msg.Handle, msg.Href, msg.Content, msg.Err) {
			m.syncDetail()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, cmd
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	key := msg.String()

	if key == m.opts.Hotkey {
		return m, m.toggle()
	}
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if !m.sess.IsOpen() {
		if key == "q" {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.ShowHelp {
		switch key {
		case "esc", "?", "q":
			m.ShowHelp = false
			return m, nil
		}
		m.HelpView, cmd = m.HelpView.Update(msg)
		return m, cmd
	}

	if len(m.ParamInputs) > 0 {
		return m.updateParams(msg)
	}

	if m.InputMode {
		switch msg.Type {
		case tea.KeyEnter:
			m.InputMode = false
			m.InputBuffer.Blur()
			return m, nil
		case tea.KeyEsc:
			m.InputMode = false
			m.InputBuffer.Blur()
			m.InputBuffer.SetValue("")
			m.applyFilter()
			return m, nil
		}
		m.InputBuffer, cmd = m.InputBuffer.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "esc":
		if m.sess.Filter(m.Tab) != "" {
			m.InputBuffer.SetValue("")
			m.applyFilter()
		}
		m.Status = ""
	case "tab":
		return m, m.switchTab(m.tabOffset(1))
	case "shift+tab":
		return m, m.switchTab(m.tabOffset(-1))
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(key[0] - '1')
		if i < len(session.Tabs) {
			return m, m.switchTab(session.Tabs[i])
		}
	case "up", "k":
		return m, m.move(-1)
	case "down", "j":
		return m, m.move(1)
	case "pgup", "pgdown":
		m.DetailsViewport, cmd = m.DetailsViewport.Update(msg)
		return m, cmd
	case "/":
		m.InputMode = true
		m.InputBuffer.SetValue(m.sess.Filter(m.Tab))
		m.InputBuffer.Focus()
		return m, textinput.Blink
	case "enter":
		return m, m.activate()
	case "r":
		m.Status = "refreshing"
		return m, m.pull(m.handle, false)
	case "c":
		if m.Tab == session.TabLogs || m.Tab == session.TabNetwork {
			m.sess.ClearActivity(m.Tab)
			m.syncDetail()
			m.Status = "cleared " + m.Tab.Title()
		}
	case "y":
		m.copySelected()
	case "?":
		m.ShowHelp = true
		m.HelpView.SetContent(m.renderHelp())
		m.HelpView.GotoTop()
	}
	return m, nil
}

func (m *AppModel) toggle() tea.Cmd {
	if m.sess.IsOpen() {
		m.sess.Close()
		m.InputMode = false
		m.InputBuffer.Blur()
		m.InputBuffer.SetValue("")
		m.ParamInputs = nil
		m.ParamErr = ""
		m.ShowHelp = false
		m.Status = ""
		return nil
	}
	m.handle = m.sess.Open()
	m.ensureSelection()
	m.syncDetail()
	return tea.Batch(m.pull(m.handle, true), frameTick(m.handle, m.opts.Frame))
}

func (m AppModel) pull(h session.Handle, rearm bool) tea.Cmd {
	if !m.sess.Current(h) {
		return nil
	}
	sess := m.sess
	opts := session.PullOptions{Profiles: m.Tab == session.TabPprof}
	return func() tea.Msg {
		return MsgSnapshot{Handle: h, Snap: sess.Pull(h.Ctx, opts), Rearm: rearm}
	}
}

func pollTick(h session.Handle, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return msgPoll{h: h} })
}

func frameTick(h session.Handle, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return msgFrame{h: h, at: t} })
}

func waitEvent(ch <-chan activity.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return msgStreamClosed{}
		}
		return MsgEvent(ev)
	}
}

func (m AppModel) tabOffset(delta int) session.Tab {
	n := len(session.Tabs)
	for i, t := range session.Tabs {
		if t == m.Tab {
			return session.Tabs[((i+delta)%n+n)%n]
		}
	}
	return session.Tabs[0]
}

func (m *AppModel) switchTab(t session.Tab) tea.Cmd {
	if t == m.Tab {
		return nil
	}
	m.Tab = t
	m.InputBuffer.SetValue(m.sess.Filter(t))
	m.Status = ""
	m.ensureSelection()
	m.syncDetail()
	if t == session.TabPprof {
		return m.pull(m.handle, false)
	}
	return nil
}

func (m *AppModel) applyFilter() {
	m.sess.SetFilter(m.Tab, m.InputBuffer.Value())
	m.syncDetail()
}

// ensureSelection picks the first visible row when nothing was chosen yet.
// A chosen key that is merely filtered out is left alone.
func (m *AppModel) ensureSelection() {
	if m.sess.Selected(m.Tab) != "" {
		return
	}
	if row, ok := m.sess.View(m.Tab).At(0); ok {
		m.sess.Select(m.Tab, row.Key)
	}
}

func (m *AppModel) move(delta int) tea.Cmd {
	v := m.sess.View(m.Tab)
	n := len(v.Visible())
	if n == 0 {
		return nil
	}
	pos := v.IndexOf(m.sess.Selected(m.Tab))
	if pos < 0 {
		pos = 0
	} else {
		pos += delta
	}
	if pos < 0 {
		pos = 0
	}
	if pos >= n {
		pos = n - 1
	}
	row, _ := v.At(pos)
	m.sess.Select(m.Tab, row.Key)
	m.syncDetail()
	return m.fetchProfile()
}

func (m *AppModel) activate() tea.Cmd {
	switch m.Tab {
	case session.TabRoutes:
		if !m.sess.OpenSelectedRoute() {
			return nil
		}
		nav := m.sess.Navigator()
		if nav.State() == route.CollectingParams {
			m.openParams(nav.Route().Params)
			return textinput.Blink
		}
		return m.dispatch()
	case session.TabPprof:
		return m.fetchProfile()
	}
	return nil
}

func (m *AppModel) openParams(params []string) {
	m.ParamInputs = make([]textinput.Model, len(params))
	for i, name := range params {
		ti := textinput.New()
		ti.Prompt = ":" + name + " "
		ti.Placeholder = name
		ti.CharLimit = 128
		ti.Width = 30
		m.ParamInputs[i] = ti
	}
	m.ParamErr = ""
	m.focusParam(0)
}

func (m *AppModel) focusParam(i int) {
	nav := m.sess.Navigator()
	nav.SetFocus(i)
	for j := range m.ParamInputs {
		if j == nav.Focus() {
			m.ParamInputs[j].Focus()
		} else {
			m.ParamInputs[j].Blur()
		}
	}
}

func (m AppModel) updateParams(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	nav := m.sess.Navigator()

	switch msg.String() {
	case "esc":
		nav.Cancel()
		m.ParamInputs = nil
		m.ParamErr = ""
		return m, nil
	case "tab", "down":
		m.focusParam(nav.Focus() + 1)
		return m, nil
	case "shift+tab", "up":
		m.focusParam(nav.Focus() - 1)
		return m, nil
	case "enter":
		for i, in := range m.ParamInputs {
			nav.SetValue(i, in.Value())
		}
		_, err := nav.Confirm()
		var missing *route.MissingParamError
		if errors.As(err, &missing) {
			m.ParamErr = err.Error()
			m.focusParam(missing.Index)
			return m, nil
		}
		if err != nil {
			m.ParamErr = err.Error()
			return m, nil
		}
		m.ParamInputs = nil
		m.ParamErr = ""
		return m, m.dispatch()
	}

	i := nav.Focus()
	m.ParamInputs[i], cmd = m.ParamInputs[i].Update(msg)
	nav.SetValue(i, m.ParamInputs[i].Value())
	return m, cmd
}

// dispatch runs the path the navigator just resolved outside the UI loop;
// a host router may sit behind an HTTP round trip.
func (m AppModel) dispatch() tea.Cmd {
	nav := m.sess.Navigator()
	path, ok := nav.TakePending()
	if !ok {
		return nil
	}
	h := m.handle
	return func() tea.Msg {
		return MsgNavigated{Handle: h, Path: path, Err: nav.Dispatch(path)}
	}
}

func (m AppModel) fetchProfile() tea.Cmd {
	if m.Tab != session.TabPprof || m.sess.Profiles() == nil {
		return nil
	}
	n := m.sess.SelectedNode(session.TabPprof)
	if n == nil {
		return nil
	}
	if _, ok := m.sess.Profile(n.Path); ok {
		return nil
	}
	sess, h, href := m.sess, m.handle, n.Path
	return func() tea.Msg {
		c, err := sess.FetchProfile(h.Ctx, href)
		return MsgProfile{Handle: h, Href: href, Content: c, Err: err}
	}
}

func (m *AppModel) copySelected() {
	n := m.sess.SelectedNode(m.Tab)
	if n == nil {
		return
	}
	if err := m.opts.Copy(n.Key()); err != nil {
		debug.Warn("clipboard: %v", err)
		m.Status = fmt.Sprintf("copy failed: %v", err)
		return
	}
	m.Status = "copied " + n.Key()
}
