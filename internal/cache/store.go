// Package cache holds introspection snapshots so repeated schema and graph
// requests do not hit the database catalog every time. A snapshot pairs the
// normalized schema with its inferred relationship graph; the two are always
// produced and cached together so they can never drift apart.
package cache

import (
	"context"
	"sync"
	"time"

	"schemap/internal/catalog"
	"schemap/internal/graph"
	"schemap/internal/logger"
)

// Snapshot is one cached introspection result for a connection.
type Snapshot struct {
	Schema    *catalog.SchemaInfo `json:"schema"`
	Graph     *graph.GraphData    `json:"graph"`
	CreatedAt time.Time           `json:"created_at"`
}

// Stale reports whether the snapshot is older than ttl. A zero or negative
// ttl means snapshots never go stale.
func (s *Snapshot) Stale(ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return time.Since(s.CreatedAt) > ttl
}

// Archive persists snapshots outside process memory so a restart does not
// force a cold introspection pass for every connection.
type Archive interface {
	// Save writes the snapshot for the named connection.
	Save(ctx context.Context, name string, snap *Snapshot) error

	// Load reads the most recent snapshot for the named connection.
	// Returns a NotFound error when none was ever saved.
	Load(ctx context.Context, name string) (*Snapshot, error)
}

// Store is an in-memory snapshot cache keyed by connection name, optionally
// backed by an Archive. It is safe for concurrent use.
type Store struct {
	ttl     time.Duration
	archive Archive // nil when no persistence is configured
	log     *logger.Logger

	mu    sync.RWMutex
	snaps map[string]*Snapshot

	// refresh serializes fills per connection so concurrent cache misses
	// trigger a single introspection pass, not one each.
	refreshMu sync.Mutex
	refresh   map[string]*sync.Mutex
}

// NewStore creates a Store. archive may be nil.
func NewStore(ttl time.Duration, archive Archive, log *logger.Logger) *Store {
	return &Store{
		ttl:     ttl,
		archive: archive,
		log:     log,
		snaps:   make(map[string]*Snapshot),
		refresh: make(map[string]*sync.Mutex),
	}
}

// Get returns the cached snapshot for name, fresh or not. ok is false when
// nothing is cached.
func (s *Store) Get(name string) (snap *Snapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok = s.snaps[name]
	return snap, ok
}

// Put caches snap under name and saves it to the archive when one is
// configured. Archive failures are logged, never surfaced: persistence is an
// optimization, not a contract.
func (s *Store) Put(ctx context.Context, name string, snap *Snapshot) {
	s.mu.Lock()
	s.snaps[name] = snap
	s.mu.Unlock()

	if s.archive == nil {
		return
	}
	if err := s.archive.Save(ctx, name, snap); err != nil {
		s.log.WarnWith("snapshot archive save failed", err, map[string]any{
			"connection": name,
		})
	}
}

// Invalidate drops the cached snapshot for name.
func (s *Store) Invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, name)
}

// GetOrFill returns a fresh snapshot for name, calling fill to produce one
// when the cache is empty or stale. Concurrent callers for the same name
// share a single fill; callers for different names do not block each other.
func (s *Store) GetOrFill(ctx context.Context, name string, fill func(context.Context) (*Snapshot, error)) (*Snapshot, error) {
	if snap, ok := s.Get(name); ok && !snap.Stale(s.ttl) {
		return snap, nil
	}

	mu := s.refreshLock(name)
	mu.Lock()
	defer mu.Unlock()

	// A concurrent fill may have completed while waiting for the lock.
	if snap, ok := s.Get(name); ok && !snap.Stale(s.ttl) {
		return snap, nil
	}

	// A cold in-memory cache may still have an archived snapshot.
	if _, ok := s.Get(name); !ok && s.archive != nil {
		if snap, err := s.archive.Load(ctx, name); err == nil && !snap.Stale(s.ttl) {
			s.mu.Lock()
			s.snaps[name] = snap
			s.mu.Unlock()
			return snap, nil
		}
	}

	snap, err := fill(ctx)
	if err != nil {
		return nil, err
	}
	s.Put(ctx, name, snap)
	return snap, nil
}

func (s *Store) refreshLock(name string) *sync.Mutex {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	mu, ok := s.refresh[name]
	if !ok {
		mu = &sync.Mutex{}
		s.refresh[name] = mu
	}
	return mu
}
