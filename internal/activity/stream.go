package activity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"devlens/internal/jsonv"
	"devlens/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Event types carried on the host stream.
const (
	EventLog     = "log"
	EventNetwork = "network"
	EventMetrics = "metrics"
	EventRefresh = "refresh"
)

// Event is one frame from the host's event stream.
type Event struct {
	Type string `json:"type"`

	// log
	Level string            `json:"level,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`

	// network
	Phase      string  `json:"phase,omitempty"`
	Method     string  `json:"method,omitempty"`
	URL        string  `json:"url,omitempty"`
	Status     int     `json:"status,omitempty"`
	DurationMS float64 `json:"duration,omitempty"`

	// metrics
	metrics.Fed
}

// ParseEvent decodes one frame.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("event: %w", err)
	}
	switch ev.Type {
	case EventLog, EventNetwork, EventMetrics, EventRefresh:
		return ev, nil
	case "":
		return Event{}, errors.New("event: missing type")
	default:
		return Event{}, fmt.Errorf("event: unknown type %q", ev.Type)
	}
}

// LogArgs decodes the log arguments, keeping object key order.
func (ev Event) LogArgs() []any {
	args := make([]any, 0, len(ev.Args))
	for _, raw := range ev.Args {
		v, err := jsonv.Decode(raw)
		if err != nil {
			args = append(args, string(raw))
			continue
		}
		args = append(args, v)
	}
	return args
}

// Apply records log and network events into f. It reports false for event
// types the feed does not own.
func (f *Feed) Apply(ev Event) bool {
	switch ev.Type {
	case EventLog:
		f.Log(ev.Level, ev.LogArgs()...)
		return true
	case EventNetwork:
		f.Network(ev.Phase, ev.Method, ev.URL, ev.Status, time.Duration(ev.DurationMS*float64(time.Millisecond)))
		return true
	}
	return false
}

// StreamURL turns a host base URL into its event stream websocket URL.
func StreamURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("stream: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/debug/devtools/events"
	return u.String(), nil
}

// Subscribe connects to the event stream and delivers frames until ctx is
// done or the connection drops. Malformed frames are reported on the error
// channel and skipped.
func Subscribe(ctx context.Context, wsURL string) (<-chan Event, <-chan error, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("stream %s: %w", wsURL, err)
	}

	events := make(chan Event)
	errs := make(chan error, 1) // buffered so a slow reader never blocks close

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer close(errs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					select {
					case errs <- err:
					default:
					}
				}
				return
			}
			ev, err := ParseEvent(data)
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs, nil
}

// FromFrames decodes frames delivered by an in-process host until frames is
// closed or ctx is done. Malformed frames are reported on errs and skipped.
func FromFrames(ctx context.Context, frames <-chan []byte) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errs := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errs)
		for {
			var data []byte
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				data = f
			}
			ev, err := ParseEvent(data)
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, errs
}
