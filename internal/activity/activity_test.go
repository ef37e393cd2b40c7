package activity

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"devlens/internal/jsonv"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](DefaultLimit)
	for i := 0; i < 200; i++ {
		assert.False(t, r.Push(i))
	}
	assert.True(t, r.Push(200))
	items := r.Items()
	require.Len(t, items, 200)
	assert.Equal(t, 1, items[0])
	assert.Equal(t, 200, items[199])
}

func TestRingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 20).Draw(t, "limit")
		n := rapid.IntRange(0, 60).Draw(t, "n")
		r := NewRing[int](limit)
		for i := 0; i < n; i++ {
			r.Push(i)
		}
		items := r.Items()
		want := n
		if want > limit {
			want = limit
		}
		if len(items) != want {
			t.Fatalf("len %d want %d", len(items), want)
		}
		for i, v := range items {
			if v != n-want+i {
				t.Fatalf("items[%d]=%d", i, v)
			}
		}
	})
}

func TestFeedLogFormatsArgs(t *testing.T) {
	f := NewFeed(0)
	f.Log("info", "user", map[string]int{"id": 3}, 4)
	f.Log("", jsonv.Object{{Key: "b", Value: 1}, {Key: "a", Value: 2}})
	logs := f.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, `user {"id":3} 4`, logs[0].Message)
	assert.Equal(t, "info", logs[0].Level)
	assert.Equal(t, `{"b":1,"a":2}`, logs[1].Message)
	assert.Equal(t, "log", logs[1].Level)
}

func TestFeedSkipsMutationNoise(t *testing.T) {
	f := NewFeed(0)
	f.Log("log", "mutation: counter/inc")
	assert.Empty(t, f.Logs())
	assert.Zero(t, f.Version())
}

func TestFeedNetworkIgnoresStart(t *testing.T) {
	f := NewFeed(0)
	f.Network(PhaseStart, "GET", "/api", 0, 0)
	f.Network(PhaseEnd, "GET", "/api", 200, 12*time.Millisecond)
	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 200, reqs[0].Status)

	nodes := RequestNodes(reqs)
	assert.Equal(t, "GET /api", nodes[0].Name)
	assert.Equal(t, "200", string(nodes[0].Kind))
}

func TestFeedListsAreCapped(t *testing.T) {
	f := NewFeed(0)
	for i := 0; i < 250; i++ {
		f.Log("log", "line")
	}
	assert.Len(t, f.Logs(), DefaultLimit)
	f.ClearLogs()
	assert.Empty(t, f.Logs())
}

func TestTransportRecordsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	f := NewFeed(0)
	resp, err := f.Client(time.Second).Get(srv.URL + "/debug/vars")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.StatusTeapot, reqs[0].Status)
	assert.True(t, strings.HasSuffix(reqs[0].URL, "/debug/vars"))
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"log","level":"warn","args":["hello",{"z":1,"a":2}]}`))
	require.NoError(t, err)
	args := ev.LogArgs()
	require.Len(t, args, 2)
	assert.Equal(t, "hello", args[0])
	assert.Equal(t, []string{"z", "a"}, args[1].(jsonv.Object).Keys())

	ev, err = ParseEvent([]byte(`{"type":"metrics","fps":58.5,"render":1.25}`))
	require.NoError(t, err)
	require.NotNil(t, ev.FPS)
	assert.Equal(t, 58.5, *ev.FPS)
	assert.Nil(t, ev.Mem)

	_, err = ParseEvent([]byte(`{"type":"bogus"}`))
	assert.Error(t, err)
	_, err = ParseEvent([]byte(`{}`))
	assert.Error(t, err)
	_, err = ParseEvent([]byte(`nope`))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	f := NewFeed(0)
	ev, _ := ParseEvent([]byte(`{"type":"network","phase":"end","url":"/x","status":500,"duration":3.5}`))
	assert.True(t, f.Apply(ev))
	assert.Equal(t, 3500*time.Microsecond, f.Requests()[0].Duration)

	ev, _ = ParseEvent([]byte(`{"type":"refresh"}`))
	assert.False(t, f.Apply(ev))
}

func TestStreamURL(t *testing.T) {
	u, err := StreamURL("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/debug/devtools/events", u)
	u, err = StreamURL("https://host/app")
	require.NoError(t, err)
	assert.Equal(t, "wss://host/app/debug/devtools/events", u)
	_, err = StreamURL("ftp://x")
	assert.Error(t, err)
}

func TestSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"log","args":["hi"]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"refresh"}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL, err := StreamURL(srv.URL)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, errs, err := Subscribe(ctx, wsURL)
	require.NoError(t, err)

	var got []string
	for ev := range events {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []string{EventLog, EventRefresh}, got)
	assert.Error(t, <-errs)
}

func TestFromFrames(t *testing.T) {
	frames := make(chan []byte, 3)
	frames <- []byte(`{"type":"network","phase":"end","method":"GET","url":"/x","status":200}`)
	frames <- []byte(`{}`)
	frames <- []byte(`{"type":"metrics","fps":58}`)
	close(frames)

	events, errs := FromFrames(context.Background(), frames)
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventNetwork, got[0].Type)
	assert.Equal(t, 200, got[0].Status)
	require.NotNil(t, got[1].FPS)
	assert.Equal(t, 58.0, *got[1].FPS)
	assert.Error(t, <-errs)
}
