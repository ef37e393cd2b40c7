package bridge

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source supplies a capability set for one kind of host.
type Source interface {
	Name() string
	Capabilities() Capabilities
}

// LocalSource serves capabilities that live in the same process.
type LocalSource struct {
	Caps Capabilities
}

func (s *LocalSource) Name() string {
	return "local"
}

func (s *LocalSource) Capabilities() Capabilities {
	return s.Caps
}

// Detect picks a source for addr: a URL selects the HTTP host bridge,
// anything else is treated as a snapshot directory.
func Detect(ctx context.Context, addr string, opts ...HTTPOption) (Source, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("no source given")
	}
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return NewHTTPSource(ctx, addr, opts...), nil
	}
	info, err := os.Stat(addr)
	if err != nil {
		return nil, fmt.Errorf("snapshot dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot dir: %s is not a directory", addr)
	}
	return NewDirSource(addr), nil
}
