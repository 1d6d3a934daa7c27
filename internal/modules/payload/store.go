package payload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/metrics"
	"github.com/rs/zerolog"
)

// HistoryWriter persists loaded snapshots.
type HistoryWriter interface {
	Save(s *Snapshot) error
}

// Store holds the current snapshot. Readers never block; a load swaps the
// pointer and never touches a snapshot already handed out.
type Store struct {
	source  Source
	history HistoryWriter
	metrics *metrics.Registry
	log     zerolog.Logger
	now     func() time.Time

	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
}

// NewStore creates a store. source and history may be nil.
func NewStore(source Source, history HistoryWriter, m *metrics.Registry, log zerolog.Logger) *Store {
	return &Store{
		source:  source,
		history: history,
		metrics: m,
		log:     log.With().Str("component", "payload_store").Logger(),
		now:     time.Now,
	}
}

// Current returns the current snapshot or ErrNoPayload.
func (s *Store) Current() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoPayload
	}
	return snap, nil
}

// SourceName returns the configured source name, or "none".
func (s *Store) SourceName() string {
	if s.source == nil {
		return "none"
	}
	return s.source.Name()
}

// Refresh fetches from the source and loads the result. An unchanged payload
// keeps the current snapshot (and its ID).
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrNoPayload)
	}

	p, err := s.source.Fetch(ctx)
	if err != nil {
		s.metrics.RecordPayloadRefresh(s.source.Name(), err)
		return nil, fmt.Errorf("failed to fetch payload from %s: %w", s.source.Name(), err)
	}

	snap, err := s.Load(p, s.source.Name())
	s.metrics.RecordPayloadRefresh(s.source.Name(), err)
	return snap, err
}

// Load validates, prepares and indexes p, then makes it current.
func (s *Store) Load(p *domain.Payload, source string) (*Snapshot, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	prepared := Prepare(p)
	checksum, err := Checksum(prepared)
	if err != nil {
		return nil, err
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if cur := s.current.Load(); cur != nil && cur.Checksum == checksum {
		s.log.Debug().
			Str("snapshot_id", cur.ID).
			Str("as_of", cur.AsOf()).
			Msg("Payload unchanged, keeping current snapshot")
		return cur, nil
	}

	snap, err := NewSnapshot(prepared, source, s.now())
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.Save(snap); err != nil {
			s.log.Warn().Err(err).Str("snapshot_id", snap.ID).Msg("Failed to record snapshot history")
		}
	}

	s.current.Store(snap)

	s.log.Info().
		Str("snapshot_id", snap.ID).
		Str("as_of", snap.AsOf()).
		Str("source", source).
		Int("universe", len(prepared.Universe)).
		Msg("Payload loaded")

	return snap, nil
}

// Restore makes a snapshot read back from history current, unless one is
// already loaded.
func (s *Store) Restore(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	if !s.current.CompareAndSwap(nil, snap) {
		return false
	}
	s.log.Info().
		Str("snapshot_id", snap.ID).
		Str("as_of", snap.AsOf()).
		Msg("Restored payload snapshot from history")
	return true
}
