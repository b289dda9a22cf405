package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemap/internal/catalog"
	"schemap/internal/errs"
	"schemap/internal/graph"
	"schemap/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Output: io.Discard})
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		Schema:    &catalog.SchemaInfo{},
		Graph:     &graph.GraphData{},
		CreatedAt: time.Now(),
	}
}

// memArchive is an in-memory Archive for tests.
type memArchive struct {
	mu    sync.Mutex
	snaps map[string]*Snapshot
	saves int
}

func newMemArchive() *memArchive {
	return &memArchive{snaps: make(map[string]*Snapshot)}
}

func (m *memArchive) Save(_ context.Context, name string, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[name] = snap
	m.saves++
	return nil
}

func (m *memArchive) Load(_ context.Context, name string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap, ok := m.snaps[name]; ok {
		return snap, nil
	}
	return nil, errs.New(errs.ErrKindNotFound, "no snapshot for "+name)
}

func TestSnapshotStale(t *testing.T) {
	snap := &Snapshot{CreatedAt: time.Now().Add(-time.Hour)}
	assert.True(t, snap.Stale(time.Minute))
	assert.False(t, snap.Stale(2*time.Hour))
	assert.False(t, snap.Stale(0), "zero ttl disables staleness")
}

func TestStorePutGetInvalidate(t *testing.T) {
	s := NewStore(time.Hour, nil, testLogger())
	ctx := context.Background()

	_, ok := s.Get("prod")
	assert.False(t, ok)

	snap := newSnapshot()
	s.Put(ctx, "prod", snap)

	got, ok := s.Get("prod")
	require.True(t, ok)
	assert.Same(t, snap, got)

	s.Invalidate("prod")
	_, ok = s.Get("prod")
	assert.False(t, ok)
}

func TestGetOrFill_CachesResult(t *testing.T) {
	s := NewStore(time.Hour, nil, testLogger())
	ctx := context.Background()

	var calls int32
	fill := func(context.Context) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		return newSnapshot(), nil
	}

	first, err := s.GetOrFill(ctx, "prod", fill)
	require.NoError(t, err)
	second, err := s.GetOrFill(ctx, "prod", fill)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFill_StaleTriggersRefill(t *testing.T) {
	s := NewStore(time.Minute, nil, testLogger())
	ctx := context.Background()

	stale := newSnapshot()
	stale.CreatedAt = time.Now().Add(-time.Hour)
	s.Put(ctx, "prod", stale)

	fresh := newSnapshot()
	got, err := s.GetOrFill(ctx, "prod", func(context.Context) (*Snapshot, error) {
		return fresh, nil
	})
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

func TestGetOrFill_FillErrorNotCached(t *testing.T) {
	s := NewStore(time.Hour, nil, testLogger())
	ctx := context.Background()

	boom := errors.New("catalog unreachable")
	_, err := s.GetOrFill(ctx, "prod", func(context.Context) (*Snapshot, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := s.Get("prod")
	assert.False(t, ok, "failed fills leave the cache empty")
}

func TestGetOrFill_SingleFillUnderConcurrency(t *testing.T) {
	s := NewStore(time.Hour, nil, testLogger())
	ctx := context.Background()

	var calls int32
	fill := func(context.Context) (*Snapshot, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return newSnapshot(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GetOrFill(ctx, "prod", fill)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFill_ColdStartLoadsFromArchive(t *testing.T) {
	archive := newMemArchive()
	ctx := context.Background()

	warm := NewStore(time.Hour, archive, testLogger())
	warm.Put(ctx, "prod", newSnapshot())
	require.Equal(t, 1, archive.saves)

	// A new store simulates a restart: memory is empty, the archive is not.
	cold := NewStore(time.Hour, archive, testLogger())
	snap, err := cold.GetOrFill(ctx, "prod", func(context.Context) (*Snapshot, error) {
		t.Fatal("fill must not run when the archive has a fresh snapshot")
		return nil, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, snap)
}

func TestGetOrFill_StaleArchiveFallsThroughToFill(t *testing.T) {
	archive := newMemArchive()
	ctx := context.Background()

	old := newSnapshot()
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, archive.Save(ctx, "prod", old))

	s := NewStore(time.Minute, archive, testLogger())
	fresh := newSnapshot()
	got, err := s.GetOrFill(ctx, "prod", func(context.Context) (*Snapshot, error) {
		return fresh, nil
	})
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}
