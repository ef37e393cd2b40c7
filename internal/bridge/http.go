package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"devlens/internal/debug"
	"devlens/internal/jsonv"
	"devlens/internal/model"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

// BasePath is where hostbridge mounts its devtools routes.
const BasePath = "/debug/devtools/"

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithClient sets the HTTP client used for every call.
func WithClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithTimeout bounds each capability call.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.timeout = d
	}
}

// WithBreakerTimeout sets how long the breaker stays open after tripping.
func WithBreakerTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.breakerTimeout = d
	}
}

// HTTPSource reads capabilities from a hostbridge endpoint.
type HTTPSource struct {
	base           string
	client         *http.Client
	timeout        time.Duration
	breakerTimeout time.Duration
	breaker        *gobreaker.CircuitBreaker
	present        map[string]bool // nil when the probe failed
}

// NewHTTPSource probes base once to learn which capabilities exist. When the
// probe fails every capability is assumed present and failures surface per
// call.
func NewHTTPSource(ctx context.Context, base string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		base:           strings.TrimRight(base, "/"),
		client:         http.DefaultClient,
		timeout:        3 * time.Second,
		breakerTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "devtools " + s.base,
		Timeout: s.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			debug.Log("%s: breaker %s -> %s", name, from, to)
		},
	})
	s.probe(ctx)
	return s
}

func (s *HTTPSource) Name() string {
	return "http " + s.base
}

// Base is the host origin.
func (s *HTTPSource) Base() string {
	return s.base
}

func (s *HTTPSource) probe(ctx context.Context) {
	body, err := s.do(ctx, http.MethodGet, BasePath, nil)
	if err != nil {
		debug.Warn("devtools probe %s: %v", s.base, err)
		return
	}
	var resp struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		debug.Warn("devtools probe %s: %v", s.base, err)
		return
	}
	s.present = make(map[string]bool, len(resp.Capabilities))
	for _, c := range resp.Capabilities {
		s.present[c] = true
	}
}

func (s *HTTPSource) has(name string) bool {
	return s.present == nil || s.present[name]
}

func (s *HTTPSource) Capabilities() Capabilities {
	var c Capabilities
	if s.has(CapTree) {
		c.Tree = s.textFn(CapTree)
	}
	if s.has(CapStores) {
		c.Stores = s.textFn(CapStores)
	}
	if s.has(CapSignals) {
		c.Signals = s.textFn(CapSignals)
	}
	if s.has(CapRoutes) {
		c.Routes = s.textFn(CapRoutes)
	}
	if s.has(CapPlugins) {
		c.Plugins = s.plugins
	}
	if s.has(CapNavigate) {
		c.Navigate = s.navigate
	}
	return c
}

func (s *HTTPSource) textFn(name string) func() (string, error) {
	return func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		body, err := s.do(ctx, http.MethodGet, BasePath+name, nil)
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
}

func (s *HTTPSource) plugins() ([]model.Plugin, error) {
	raw, err := s.textFn(CapPlugins)()
	if err != nil {
		return nil, err
	}
	return DecodePlugins([]byte(raw))
}

func (s *HTTPSource) navigate(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	payload, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPost, BasePath+CapNavigate, payload)
	return err
}

func (s *HTTPSource) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s %s: host unavailable: %w", method, path, err)
		}
		return nil, err
	}
	return out.([]byte), nil
}

// DecodePlugins reads a JSON plugin list, keeping each config's key order.
func DecodePlugins(data []byte) ([]model.Plugin, error) {
	v, err := jsonv.Decode(data)
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errors.New("plugins: expected a JSON array")
	}
	plugins := make([]model.Plugin, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(jsonv.Object)
		if !ok {
			return nil, fmt.Errorf("plugins[%d]: expected an object", i)
		}
		var p model.Plugin
		if name, ok := obj.Get("name"); ok {
			p.Name, _ = name.(string)
		}
		p.Config, _ = obj.Get("config")
		plugins = append(plugins, p)
	}
	return plugins, nil
}
