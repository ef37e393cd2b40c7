package bridge

import (
	"errors"
	"testing"

	"devlens/internal/debug"
	"devlens/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureWarnings(t *testing.T) *[]string {
	t.Helper()
	var got []string
	debug.SetWarnSink(func(s string) { got = append(got, s) })
	t.Cleanup(func() { debug.SetWarnSink(nil) })
	return &got
}

func TestAbsentCapabilitiesAreSilent(t *testing.T) {
	warnings := captureWarnings(t)
	b := New(Capabilities{})

	_, ok := b.Tree()
	assert.False(t, ok)
	_, ok = b.Stores()
	assert.False(t, ok)
	_, ok = b.Signals()
	assert.False(t, ok)
	_, ok = b.Plugins()
	assert.False(t, ok)
	_, ok = b.Routes()
	assert.False(t, ok)
	assert.False(t, b.CanNavigate())
	assert.ErrorIs(t, b.Navigate("/x"), ErrNoNavigator)
	assert.Empty(t, *warnings)
}

func TestFailingCapabilityIsAbsentAndLogged(t *testing.T) {
	warnings := captureWarnings(t)
	b := New(Capabilities{
		Stores: func() (string, error) { return "", errors.New("boom") },
		Tree:   func() (string, error) { panic("host crashed") },
		Routes: func() (string, error) { return `{"not":"a list"}`, nil },
		Plugins: func() ([]model.Plugin, error) {
			panic("plugins crashed")
		},
	})

	_, ok := b.Stores()
	assert.False(t, ok)
	_, ok = b.Tree()
	assert.False(t, ok)
	_, ok = b.Routes()
	assert.False(t, ok)
	_, ok = b.Plugins()
	assert.False(t, ok)
	assert.Len(t, *warnings, 4)
}

func TestMalformedJSONIsAbsent(t *testing.T) {
	captureWarnings(t)
	b := New(Capabilities{
		Signals: func() (string, error) { return `{"a":`, nil },
		Stores:  func() (string, error) { return `[1,2]`, nil },
	})
	_, ok := b.Signals()
	assert.False(t, ok)
	_, ok = b.Stores()
	assert.False(t, ok)
}

func TestTypedSnapshots(t *testing.T) {
	b := New(Capabilities{
		Tree: func() (string, error) {
			return `[{"id":1,"kind":"component","name":"App","total":4,"updates":2,
				"children":[{"id":"c2","kind":"component","name":"Child"}]}]`, nil
		},
		Stores: func() (string, error) {
			return `{"auth":{"session":{"token":"abc","user":null}}}`, nil
		},
		Routes: func() (string, error) {
			return `[{"path":"/users/:id","params":["id"]},{"path":"/"}]`, nil
		},
		Navigate: func(string) error { return nil },
	})

	tree, ok := b.Tree()
	require.True(t, ok)
	require.Len(t, tree, 1)
	assert.Equal(t, model.ComponentID("1"), tree[0].ID)
	assert.Equal(t, model.ComponentID("c2"), tree[0].Children[0].ID)
	assert.Equal(t, 2, tree[0].Updates)

	stores, ok := b.Stores()
	require.True(t, ok)
	assert.Equal(t, []string{"auth"}, stores.Keys())

	routes, ok := b.Routes()
	require.True(t, ok)
	assert.True(t, routes[0].Dynamic())
	assert.False(t, routes[1].Dynamic())

	assert.True(t, b.CanNavigate())
	assert.NoError(t, b.Navigate("/"))
}

func TestNavigatePanicBecomesError(t *testing.T) {
	b := New(Capabilities{Navigate: func(string) error { panic("router gone") }})
	err := b.Navigate("/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router gone")
}

func TestCapabilityNames(t *testing.T) {
	c := Capabilities{
		Tree:     func() (string, error) { return "", nil },
		Routes:   func() (string, error) { return "", nil },
		Navigate: func(string) error { return nil },
	}
	assert.Equal(t, []string{CapTree, CapRoutes, CapNavigate}, c.Names())
}

func TestDecodePlugins(t *testing.T) {
	plugins, err := DecodePlugins([]byte(`[{"name":"router","config":{"mode":"history","base":"/"}},{"name":"bare"}]`))
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "router", plugins[0].Name)
	assert.NotNil(t, plugins[0].Config)
	assert.Nil(t, plugins[1].Config)

	_, err = DecodePlugins([]byte(`{"name":"x"}`))
	assert.Error(t, err)
}

func TestTreeAcceptsJSONEscapesInIDs(t *testing.T) {
	warnings := captureWarnings(t)
	b := New(Capabilities{
		Tree: func() (string, error) {
			return `[{"id":"app\/root","kind":"c","name":"App","children":[{"id":"été","kind":"c","name":"Summer"}]}]`, nil
		},
	})
	tree, ok := b.Tree()
	require.True(t, ok)
	require.Len(t, tree, 1)
	assert.Equal(t, model.ComponentID("app/root"), tree[0].ID)
	assert.Equal(t, model.ComponentID("été"), tree[0].Children[0].ID)
	assert.Empty(t, *warnings)
}
