package payload

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/prisk/internal/metrics"
	testingpkg "github.com/aristath/prisk/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHistory struct {
	mu    sync.Mutex
	saved []*Snapshot
	err   error
}

func (h *recordingHistory) Save(s *Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, s)
	return h.err
}

func TestStore_CurrentBeforeLoad(t *testing.T) {
	store := NewStore(nil, nil, nil, zerolog.Nop())

	_, err := store.Current()
	assert.ErrorIs(t, err, ErrNoPayload)

	_, err = store.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoPayload)
	assert.Equal(t, "none", store.SourceName())
}

func TestStore_Refresh(t *testing.T) {
	src := testingpkg.NewMockSource(testingpkg.NewPayloadFixture())
	history := &recordingHistory{}
	reg := metrics.NewRegistry()
	store := NewStore(src, history, reg, zerolog.Nop())

	snap, err := store.Refresh(context.Background())
	require.NoError(t, err)

	cur, err := store.Current()
	require.NoError(t, err)
	assert.Same(t, snap, cur)
	assert.Equal(t, "mock", cur.Source)
	assert.Len(t, history.saved, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.PayloadRefreshes.WithLabelValues("mock", "ok")))

	t.Run("unchanged payload keeps snapshot", func(t *testing.T) {
		again, err := store.Refresh(context.Background())
		require.NoError(t, err)
		assert.Equal(t, snap.ID, again.ID)
		assert.Len(t, history.saved, 1)
	})

	t.Run("changed payload swaps snapshot", func(t *testing.T) {
		p := testingpkg.NewPayloadFixture()
		p.AsOf = "2025-02-28"
		src.SetPayload(p)

		next, err := store.Refresh(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, snap.ID, next.ID)
		assert.Equal(t, "2025-01-31", snap.AsOf(), "old snapshot is untouched")

		cur, _ := store.Current()
		assert.Equal(t, "2025-02-28", cur.AsOf())
	})

	t.Run("fetch error keeps current", func(t *testing.T) {
		before, _ := store.Current()
		src.SetError(errors.New("upstream down"))

		_, err := store.Refresh(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream down")

		cur, _ := store.Current()
		assert.Same(t, before, cur)
		assert.Equal(t, 1.0, testutil.ToFloat64(reg.PayloadRefreshes.WithLabelValues("mock", "error")))
	})
}

func TestStore_LoadRejectsInvalid(t *testing.T) {
	store := NewStore(nil, nil, nil, zerolog.Nop())
	p := testingpkg.NewPayloadFixture()
	p.Version = "0.9"

	_, err := store.Load(p, "publish")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = store.Current()
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestStore_HistoryFailureDoesNotBlockLoad(t *testing.T) {
	history := &recordingHistory{err: errors.New("disk full")}
	store := NewStore(nil, history, nil, zerolog.Nop())

	_, err := store.Load(testingpkg.NewPayloadFixture(), "publish")
	require.NoError(t, err)

	_, err = store.Current()
	assert.NoError(t, err)
}

func TestStore_Restore(t *testing.T) {
	store := NewStore(nil, nil, nil, zerolog.Nop())

	restored, err := NewSnapshot(testingpkg.NewPayloadFixture(), "file", store.now())
	require.NoError(t, err)

	assert.False(t, store.Restore(nil))
	assert.True(t, store.Restore(restored))

	other, err := NewSnapshot(testingpkg.NewPayloadFixture(), "file", store.now())
	require.NoError(t, err)
	assert.False(t, store.Restore(other), "restore never replaces a loaded snapshot")

	cur, _ := store.Current()
	assert.Same(t, restored, cur)
}

func TestStore_ConcurrentReadersDuringLoads(t *testing.T) {
	store := NewStore(nil, nil, nil, zerolog.Nop())
	_, err := store.Load(testingpkg.NewPayloadFixture(), "publish")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := testingpkg.NewPayloadFixture()
			p.AsOf = "2025-03-0" + string(rune('1'+i))
			_, _ = store.Load(p, "publish")
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := store.Current()
			if assert.NoError(t, err) {
				assert.NotEmpty(t, snap.ID)
			}
		}()
	}
	wg.Wait()
}
