// Package respcache keeps the last successful upstream response per key as a
// JSON file on disk. Entries never expire; a newer Put simply replaces them.
package respcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrMiss is returned by Get when no usable entry exists for a key. Missing,
// unreadable and corrupt files all count as a miss.
var ErrMiss = errors.New("respcache: miss")

// Marker is implemented by records that carry a "served from cache" flag.
type Marker interface {
	MarkCached()
}

type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("respcache: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file that backs key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, sanitize(key)+".json")
}

// Put encodes v and atomically replaces the entry for key.
func (s *Store) Put(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+sanitize(key)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Get decodes the entry for key into dst. If dst implements Marker it is
// flagged as cached.
func (s *Store) Get(key string, dst any) error {
	lock := s.lockFor(key)
	lock.Lock()
	data, err := os.ReadFile(s.Path(key))
	lock.Unlock()
	if err != nil {
		return ErrMiss
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return ErrMiss
	}
	if m, ok := dst.(Marker); ok {
		m.MarkCached()
	}
	return nil
}

func (s *Store) lockFor(key string) *sync.Mutex {
	name := sanitize(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

func sanitize(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
