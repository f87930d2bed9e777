// Package storage holds resolved Git objects beyond the lifetime of a
// single gitpack.ObjectStore. A cache built here is handed to a store via
// gitpack.WithObjectCache, and ToContext/FromContext carry it to code
// that constructs stores deep in a call chain.
package storage

import (
	"sync"

	"github.com/nanogit-labs/protocore/gitpack"
)

// PackfileStorage is the sharing contract: the same Get/Add pair as
// gitpack.ObjectCache, so any implementation plugs straight into a store.
type PackfileStorage interface {
	Get(sha1 string) (*gitpack.ResolvedObject, bool)
	Add(sha1 string, obj *gitpack.ResolvedObject)
}

// InMemoryStorage keeps every object in a process-local map. There is no
// eviction; it suits short-lived tools that touch a bounded object set.
type InMemoryStorage struct {
	mu      sync.Mutex
	objects map[string]*gitpack.ResolvedObject
}

var (
	_ PackfileStorage     = (*InMemoryStorage)(nil)
	_ gitpack.ObjectCache = (*InMemoryStorage)(nil)
)

// NewInMemoryStorage returns an empty cache.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{objects: make(map[string]*gitpack.ResolvedObject)}
}

// Get returns the cached object for sha1, if present.
func (s *InMemoryStorage) Get(sha1 string) (*gitpack.ResolvedObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[sha1]
	return obj, ok
}

// Add stores obj under sha1, replacing any earlier entry.
func (s *InMemoryStorage) Add(sha1 string, obj *gitpack.ResolvedObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[sha1] = obj
}

// Len reports how many objects the cache holds.
func (s *InMemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
