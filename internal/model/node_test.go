package model

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentIDDecoding(t *testing.T) {
	cases := []struct {
		in   string
		want ComponentID
	}{
		{`42`, "42"},
		{`"c2"`, "c2"},
		{`"app\/root"`, "app/root"},
		{`"tab\tbar"`, "tab\tbar"},
		{`"😀"`, "😀"},
		{`null`, ""},
	}
	for _, c := range cases {
		var id ComponentID
		require.NoError(t, json.Unmarshal([]byte(c.in), &id), c.in)
		assert.Equal(t, c.want, id, c.in)
	}
}

func TestComponentIDEncoding(t *testing.T) {
	for _, c := range []struct {
		id   ComponentID
		want string
	}{
		{"42", `42`},
		{"-1.5e3", `-1.5e3`},
		{"NaN", `"NaN"`},
		{"Inf", `"Inf"`},
		{"app/root", `"app/root"`},
		{"a\x00b", `"a\u0000b"`},
	} {
		b, err := json.Marshal(c.id)
		require.NoError(t, err)
		assert.Equal(t, c.want, string(b), string(c.id))
		assert.True(t, json.Valid(b), string(c.id))
	}
}
