package tui

import (
	"testing"
	"time"

	"devlens/internal/bridge"
	"devlens/internal/demo"
	"devlens/internal/loader"
	"devlens/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (AppModel, *demo.App, *[]string) {
	t.Helper()
	app := demo.New()
	app.Step()
	sess := session.New(session.Options{Bridge: bridge.New(app.Host().Capabilities())})
	var copied []string
	m := InitialModel(Options{
		Session: sess,
		Help:    "# devlens\n\nPress `q` to quit.",
		Copy: func(s string) error {
			copied = append(copied, s)
			return nil
		},
	})
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, app, &copied
}

func update(m AppModel, msg tea.Msg) AppModel {
	next, _ := m.Update(msg)
	return next.(AppModel)
}

func updateCmd(m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(AppModel), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func openAndPull(m AppModel) AppModel {
	if !m.sess.IsOpen() {
		m = update(m, key("ctrl+d"))
	}
	snap := m.sess.Pull(m.handle.Ctx, session.PullOptions{})
	return update(m, MsgSnapshot{Handle: m.handle, Snap: snap})
}

func TestHotkeyTogglesPanel(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.False(t, m.sess.IsOpen())
	assert.Contains(t, m.View(), "devlens is hidden")

	m = update(m, key("ctrl+d"))
	assert.True(t, m.sess.IsOpen())

	m = update(m, key("ctrl+d"))
	assert.False(t, m.sess.IsOpen())
}

func TestSnapshotSelectsFirstRow(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = openAndPull(m)

	assert.Equal(t, "/app/Layout", m.sess.Selected(session.TabComponents))
	view := m.View()
	assert.Contains(t, view, "AppLayout")
	assert.Contains(t, view, "Components")
	assert.Contains(t, view, "Nodes")

	m = update(m, key("down"))
	assert.Equal(t, "/app/Layout/Header", m.sess.Selected(session.TabComponents))
}

func TestStaleSnapshotIgnored(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = update(m, key("ctrl+d"))
	old := m.handle
	snap := m.sess.Pull(old.Ctx, session.PullOptions{})

	m = update(m, key("ctrl+d"))
	m = update(m, key("ctrl+d"))
	m = update(m, MsgSnapshot{Handle: old, Snap: snap, Rearm: true})
	assert.Empty(t, m.sess.View(session.TabComponents).Rows)
}

func TestFilterAndEscape(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = openAndPull(m)

	m = update(m, key("/"))
	require.True(t, m.InputMode)
	m = update(m, key("card"))
	assert.Equal(t, "card", m.sess.Filter(session.TabComponents))
	assert.Len(t, m.sess.View(session.TabComponents).Visible(), 1)

	m = update(m, key("enter"))
	assert.False(t, m.InputMode)
	assert.Equal(t, "card", m.sess.Filter(session.TabComponents))

	m = update(m, key("esc"))
	assert.Empty(t, m.sess.Filter(session.TabComponents))
	assert.True(t, m.sess.IsOpen())
}

func TestTabSwitchKeepsFilterPerTab(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = openAndPull(m)
	m = update(m, key("/"))
	m = update(m, key("stats"))
	m = update(m, key("enter"))

	m = update(m, key("tab"))
	assert.Equal(t, session.TabStore, m.Tab)
	assert.Empty(t, m.InputBuffer.Value())

	m = update(m, key("1"))
	assert.Equal(t, session.TabComponents, m.Tab)
	assert.Equal(t, "stats", m.InputBuffer.Value())
}

func TestRouteParamModal(t *testing.T) {
	m, app, _ := newTestModel(t)
	m = openAndPull(m)
	m = update(m, key("5"))
	require.Equal(t, session.TabRoutes, m.Tab)
	m.sess.Select(session.TabRoutes, "/users/:id/posts/:postId")

	m = update(m, key("enter"))
	require.Len(t, m.ParamInputs, 2)

	m = update(m, key("enter"))
	assert.Contains(t, m.ParamErr, ":id")

	m = update(m, key("42"))
	m = update(m, key("enter"))
	assert.Contains(t, m.ParamErr, ":postId")
	assert.Equal(t, 1, m.sess.Navigator().Focus())

	m = update(m, key("7"))
	m, cmd := updateCmd(m, key("enter"))
	assert.Empty(t, m.ParamInputs)
	require.NotNil(t, cmd)
	m = update(m, cmd())
	assert.Equal(t, "/users/42/posts/7", app.Current())
	assert.Equal(t, "navigated to /users/42/posts/7", m.Status)
}

func TestNavigationDoesNotBlockUpdate(t *testing.T) {
	app := demo.New()
	app.Step()
	release := make(chan struct{})
	caps := app.Host().Capabilities()
	caps.Navigate = func(p string) error {
		<-release
		return app.Navigate(p)
	}
	m := InitialModel(Options{Session: session.New(session.Options{Bridge: bridge.New(caps)})})
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = openAndPull(m)
	m = update(m, key("5"))
	m.sess.Select(session.TabRoutes, "/settings")

	type result struct {
		m   AppModel
		cmd tea.Cmd
	}
	done := make(chan result, 1)
	go func() {
		next, cmd := updateCmd(m, key("enter"))
		done <- result{next, cmd}
	}()
	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("Update blocked on the host router")
	}
	assert.Equal(t, "/", app.Current())
	require.NotNil(t, res.cmd)

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- res.cmd() }()
	close(release)
	msg := <-msgs
	nav, ok := msg.(MsgNavigated)
	require.True(t, ok)
	assert.Equal(t, "/settings", nav.Path)
	assert.NoError(t, nav.Err)

	m = update(res.m, msg)
	assert.Equal(t, "navigated to /settings", m.Status)
	assert.Equal(t, "/settings", app.Current())
}

func TestNavigationAfterCloseIsIgnored(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = openAndPull(m)
	old := m.handle
	m = update(m, key("ctrl+d"))
	m = update(m, key("ctrl+d"))
	m = update(m, MsgNavigated{Handle: old, Path: "/settings"})
	assert.Empty(t, m.Status)
}

func TestEscapeClosesModalNotPanel(t *testing.T) {
	m, app, _ := newTestModel(t)
	m = openAndPull(m)
	m = update(m, key("5"))
	m.sess.Select(session.TabRoutes, "/users/:id")
	m = update(m, key("enter"))
	require.Len(t, m.ParamInputs, 1)
	assert.Contains(t, m.View(), "Navigate to /users/:id")

	m = update(m, key("esc"))
	assert.Empty(t, m.ParamInputs)
	assert.True(t, m.sess.IsOpen())
	assert.Equal(t, "/", app.Current())
}

func TestCopySelected(t *testing.T) {
	m, _, copied := newTestModel(t)
	m = openAndPull(m)
	m = update(m, key("y"))
	assert.Equal(t, []string{"/app/Layout"}, *copied)
	assert.Equal(t, "copied /app/Layout", m.Status)
}

func TestHelpDialog(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = openAndPull(m)
	m = update(m, key("?"))
	require.True(t, m.ShowHelp)
	assert.Contains(t, m.View(), "devlens")

	m = update(m, key("esc"))
	assert.False(t, m.ShowHelp)
	assert.True(t, m.sess.IsOpen())
}

func TestEventsReachLogs(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = openAndPull(m)
	m = update(m, MsgEvent{Type: "log", Level: "error", Args: nil})
	assert.Len(t, m.sess.View(session.TabLogs).Rows, 1)

	m = update(m, key("7"))
	require.Equal(t, session.TabLogs, m.Tab)
	m = update(m, key("c"))
	assert.Empty(t, m.sess.View(session.TabLogs).Rows)
}

func TestFetchModel(t *testing.T) {
	m := NewFetchModel("https://example.com/app.wasm")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 10})
	m = next.(FetchModel)
	next, cmd := m.Update(MsgFetchProgress{Value: 40})
	m = next.(FetchModel)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Fetching https://example.com/app.wasm")

	next, _ = m.Update(MsgFetchDone{Result: loader.Result{URL: "https://example.com/app.wasm.br", Data: make([]byte, 2048)}})
	m = next.(FetchModel)
	res, err := m.Result()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/app.wasm.br", res.URL)
	assert.Contains(t, m.View(), "2.0 kB")
}
