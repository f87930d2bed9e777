package gitpack

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Option configures an ObjectStore.
type Option func(*ObjectStore) error

// WithLazyThreshold sets the uncompressed object size above which pack
// reads are not memoized in memory. The default is DefaultLazyThreshold.
func WithLazyThreshold(n int64) Option {
	return func(s *ObjectStore) error {
		if n <= 0 {
			return fmt.Errorf("lazy threshold must be positive, got %d", n)
		}
		s.lazyThreshold = n
		return nil
	}
}

// ObjectCache is an externally supplied cache of resolved objects, shared
// across stores or persisted between runs. When set, the store consults it
// after its own per-store cache and writes every resolution through to it.
type ObjectCache interface {
	Get(sha1 string) (*ResolvedObject, bool)
	Add(sha1 string, obj *ResolvedObject)
}

// WithObjectCache attaches an external ObjectCache to the store.
func WithObjectCache(c ObjectCache) Option {
	return func(s *ObjectStore) error {
		if c == nil {
			return fmt.Errorf("object cache must not be nil")
		}
		s.external = c
		return nil
	}
}

// WithVerifyHashes makes Get recompute each resolved object's sha1 from
// its decoded header and content and compare it against the requested
// key, failing with ObjectBrokenError on mismatch. Off by default since
// it doubles the cost of every Get (a fresh sha1 hash over the full
// object), but worth enabling wherever content originates from an
// untrusted thin pack.
func WithVerifyHashes() Option {
	return func(s *ObjectStore) error {
		s.verifyHashes = true
		return nil
	}
}

// ObjectStore is a read-only union of every .pack/.idx pair and the loose
// object tree under a repository's objects directory. It is safe for
// concurrent use after construction.
type ObjectStore struct {
	objectsDir    string
	lazyThreshold int64
	verifyHashes  bool

	packs []*PackReader // ascending mtime: packs[len-1] is newest
	loose *LooseReader

	mu       sync.Mutex
	cache    map[string]*ResolvedObject
	external ObjectCache
}

// NewObjectStore opens every pack under <gitDir>/objects/pack and scans the
// loose object tree under <gitDir>/objects. The pack directory scan and the
// loose object scan run concurrently via errgroup; packs are paired and
// opened one after another within the pack directory scan.
func NewObjectStore(gitDir string, opts ...Option) (*ObjectStore, error) {
	objectsDir := filepath.Join(gitDir, "objects")

	s := &ObjectStore{
		objectsDir:    objectsDir,
		lazyThreshold: DefaultLazyThreshold,
		loose:         OpenLooseReader(objectsDir),
		cache:         make(map[string]*ResolvedObject),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var g errgroup.Group
	g.Go(func() error {
		packs, err := ScanPackDir(filepath.Join(objectsDir, "pack"), s.lazyThreshold)
		if err != nil {
			return err
		}
		s.packs = packs
		return nil
	})
	g.Go(func() error {
		return s.loose.Scan()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

// locate finds which source carries sha1 under the store's precedence
// rule: loose objects always win over packs; among packs, the newest by
// mtime wins.
func (s *ObjectStore) locate(sha1 string) (pack *PackReader, offset int64, loose bool, found bool) {
	if s.loose.Has(sha1) {
		return nil, 0, true, true
	}
	for i := len(s.packs) - 1; i >= 0; i-- {
		if off, ok := s.packs[i].Offset(sha1); ok {
			return s.packs[i], off, false, true
		}
	}
	return nil, 0, false, false
}

func (s *ObjectStore) getCached(sha1 string) (*ResolvedObject, bool) {
	if sha1 == "" {
		return nil, false
	}
	s.mu.Lock()
	obj, ok := s.cache[sha1]
	s.mu.Unlock()
	if ok {
		return obj, true
	}
	if s.external != nil {
		return s.external.Get(sha1)
	}
	return nil, false
}

func (s *ObjectStore) putCached(sha1 string, obj *ResolvedObject) {
	if sha1 == "" {
		return
	}
	s.mu.Lock()
	// Two goroutines racing to resolve the same object both produce an
	// equivalent value, so last-writer-wins is harmless here.
	s.cache[sha1] = obj
	s.mu.Unlock()
	if s.external != nil {
		s.external.Add(sha1, obj)
	}
}

// Has reports whether sha1 is present in any pack or the loose tree.
func (s *ObjectStore) Has(sha1 string) bool {
	_, _, _, found := s.locate(sha1)
	return found
}

// Get resolves sha1 to a fully materialized object, walking any delta chain
// required to produce it. If the store was built with WithVerifyHashes,
// the resolved content's sha1 is recomputed and checked against sha1
// before it is returned.
func (s *ObjectStore) Get(sha1 string) (*ResolvedObject, error) {
	obj, err := s.resolve(sha1)
	if err != nil {
		return nil, err
	}
	if s.verifyHashes {
		if err := VerifyHash(sha1, obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Preload resolves a batch of sha1s concurrently, priming the cache ahead
// of sequential reads (e.g. a tree walk about to touch every entry).
// Individual failures are returned in the same order as shas; callers that
// only care about success should filter out errors.
func (s *ObjectStore) Preload(shas []string) []error {
	errs := make([]error, len(shas))
	var g errgroup.Group
	for i, sha := range shas {
		i, sha := i, sha
		g.Go(func() error {
			_, err := s.resolve(sha)
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
