// Package memory implements an in-memory core.Store for tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/Sternrassler/devdata-fetch/pkg/storage/core"
)

// Store implements core.Store backed by process memory. Intended for tests.
type Store struct {
	mu   sync.RWMutex
	objs map[string][]byte
	dirs map[string]bool
}

// New returns an in-memory store.
func New() *Store {
	return &Store{objs: make(map[string][]byte), dirs: make(map[string]bool)}
}

// Driver returns the storage driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objs[k]
	return ok, nil
}

func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objs[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return bytes.Clone(b), nil
}

func (s *Store) Write(_ context.Context, key string, data []byte) error {
	k, err := core.CleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[k] = bytes.Clone(data)
	s.markParents(k)
	return nil
}

// Create returns a writer whose content replaces key on Close.
func (s *Store) Create(_ context.Context, key string) (io.WriteCloser, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return nil, err
	}
	return &writer{store: s, key: k}, nil
}

// Append returns a writer whose content is appended to key on Close.
func (s *Store) Append(_ context.Context, key string) (io.WriteCloser, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return nil, err
	}
	return &writer{store: s, key: k, append: true}, nil
}

func (s *Store) EnsureDir(_ context.Context, key string) (bool, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[k]; ok {
		return false, fmt.Errorf("%s exists and is not a directory", key)
	}
	if s.dirs[k] {
		return false, nil
	}
	s.dirs[k] = true
	s.markParents(k)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.objs {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// markParents records every ancestor directory of k. Caller holds mu.
func (s *Store) markParents(k string) {
	for i := strings.LastIndex(k, "/"); i > 0; i = strings.LastIndex(k[:i], "/") {
		s.dirs[k[:i]] = true
	}
}

type writer struct {
	store  *Store
	key    string
	append bool
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed writer for %s", w.key)
	}
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.append {
		s.objs[w.key] = append(s.objs[w.key], w.buf.Bytes()...)
	} else {
		s.objs[w.key] = bytes.Clone(w.buf.Bytes())
	}
	s.markParents(w.key)
	return nil
}
