package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"devlens/internal/debug"
	"devlens/internal/model"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/xxh3"
)

// ErrAlreadyWatching is returned when Watch is called twice.
var ErrAlreadyWatching = errors.New("snapshot dir already watched")

// snapshotFiles maps capability names to the file each is read from.
var snapshotFiles = map[string]string{
	CapTree:    "tree.json",
	CapStores:  "stores.json",
	CapSignals: "signals.json",
	CapPlugins: "plugins.json",
	CapRoutes:  "routes.json",
}

// DirSource reads snapshots a host dumped to disk. A capability exists when
// its file existed at construction. Navigation is never available.
type DirSource struct {
	dir     string
	present map[string]bool

	mu       sync.Mutex
	hashes   map[string]uint64
	watching bool
}

// NewDirSource scans dir for snapshot files.
func NewDirSource(dir string) *DirSource {
	s := &DirSource{
		dir:     dir,
		present: make(map[string]bool),
		hashes:  make(map[string]uint64),
	}
	for name, file := range snapshotFiles {
		if _, err := os.Stat(filepath.Join(dir, file)); err == nil {
			s.present[name] = true
		}
	}
	return s
}

func (s *DirSource) Name() string {
	return "dir " + s.dir
}

func (s *DirSource) Capabilities() Capabilities {
	var c Capabilities
	if s.present[CapTree] {
		c.Tree = s.textFn(CapTree)
	}
	if s.present[CapStores] {
		c.Stores = s.textFn(CapStores)
	}
	if s.present[CapSignals] {
		c.Signals = s.textFn(CapSignals)
	}
	if s.present[CapRoutes] {
		c.Routes = s.textFn(CapRoutes)
	}
	if s.present[CapPlugins] {
		c.Plugins = func() ([]model.Plugin, error) {
			data, err := os.ReadFile(filepath.Join(s.dir, snapshotFiles[CapPlugins]))
			if err != nil {
				return nil, err
			}
			return DecodePlugins(data)
		}
	}
	return c
}

func (s *DirSource) textFn(name string) func() (string, error) {
	path := filepath.Join(s.dir, snapshotFiles[name])
	return func() (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// Watch calls onChange with the capability name whenever its snapshot file
// is rewritten with different content. It returns once the watcher is
// running; watching stops when ctx is done.
func (s *DirSource) Watch(ctx context.Context, onChange func(name string)) error {
	s.mu.Lock()
	if s.watching {
		s.mu.Unlock()
		return ErrAlreadyWatching
	}
	s.watching = true
	s.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(s.dir); err != nil {
		fsw.Close()
		return err
	}
	for name := range snapshotFiles {
		s.changed(name)
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.watching = false
				s.mu.Unlock()
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				name := capabilityFor(filepath.Base(ev.Name))
				if name == "" {
					continue
				}
				if s.changed(name) {
					onChange(name)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				debug.Warn("snapshot watch %s: %v", s.dir, err)
			}
		}
	}()
	return nil
}

// changed hashes the snapshot file and reports whether it differs from the
// last seen content.
func (s *DirSource) changed(name string) bool {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFiles[name]))
	if err != nil {
		return false
	}
	sum := xxh3.Hash(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.hashes[name]
	s.hashes[name] = sum
	return !seen || prev != sum
}

func capabilityFor(file string) string {
	for name, f := range snapshotFiles {
		if strings.EqualFold(f, file) {
			return name
		}
	}
	return ""
}
