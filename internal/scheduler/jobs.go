package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/prisk/internal/database"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/rs/zerolog"
)

// Refresher fetches and loads the latest payload.
type Refresher interface {
	Refresh(ctx context.Context) (*payload.Snapshot, error)
}

// RefreshPayloadJob pulls the payload from its source on a schedule
type RefreshPayloadJob struct {
	store   Refresher
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshPayloadJob creates a new RefreshPayloadJob
func NewRefreshPayloadJob(store Refresher, timeout time.Duration, log zerolog.Logger) *RefreshPayloadJob {
	return &RefreshPayloadJob{
		store:   store,
		timeout: timeout,
		log:     log.With().Str("job", "refresh_payload").Logger(),
	}
}

// Name returns the job name
func (j *RefreshPayloadJob) Name() string {
	return "refresh_payload"
}

// Run executes the refresh. A source with nothing published yet is not a failure.
func (j *RefreshPayloadJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	snap, err := j.store.Refresh(ctx)
	if errors.Is(err, payload.ErrNoPayload) {
		j.log.Warn().Err(err).Msg("No payload available yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to refresh payload: %w", err)
	}

	j.log.Debug().Str("snapshot_id", snap.ID).Str("as_of", snap.AsOf()).Msg("Payload refreshed")
	return nil
}

// Sweeper evicts idle sessions.
type Sweeper interface {
	Sweep(ttl time.Duration) int
}

// SweepSessionsJob removes scenario sessions idle for longer than ttl
type SweepSessionsJob struct {
	sessions Sweeper
	ttl      time.Duration
	log      zerolog.Logger
}

// NewSweepSessionsJob creates a new SweepSessionsJob
func NewSweepSessionsJob(sessions Sweeper, ttl time.Duration, log zerolog.Logger) *SweepSessionsJob {
	return &SweepSessionsJob{
		sessions: sessions,
		ttl:      ttl,
		log:      log.With().Str("job", "sweep_sessions").Logger(),
	}
}

// Name returns the job name
func (j *SweepSessionsJob) Name() string {
	return "sweep_sessions"
}

// Run executes the sweep
func (j *SweepSessionsJob) Run() error {
	if n := j.sessions.Sweep(j.ttl); n > 0 {
		j.log.Info().Int("evicted", n).Dur("ttl", j.ttl).Msg("Evicted idle sessions")
	}
	return nil
}

// Pruner trims stored snapshots.
type Pruner interface {
	Prune(keep int) (int64, error)
}

// MaintainHistoryJob prunes old snapshots and checkpoints the history WAL
type MaintainHistoryJob struct {
	history Pruner
	db      *database.DB
	keep    int
	log     zerolog.Logger
}

// NewMaintainHistoryJob creates a new MaintainHistoryJob. keep <= 0 disables pruning.
func NewMaintainHistoryJob(history Pruner, db *database.DB, keep int, log zerolog.Logger) *MaintainHistoryJob {
	return &MaintainHistoryJob{
		history: history,
		db:      db,
		keep:    keep,
		log:     log.With().Str("job", "maintain_history").Logger(),
	}
}

// Name returns the job name
func (j *MaintainHistoryJob) Name() string {
	return "maintain_history"
}

// Run executes the maintenance
func (j *MaintainHistoryJob) Run() error {
	if j.keep > 0 {
		removed, err := j.history.Prune(j.keep)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		if removed > 0 {
			j.log.Info().Int64("removed", removed).Int("keep", j.keep).Msg("Pruned snapshot history")
		}
	}

	if j.db != nil {
		if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", j.db.Name()).Msg("Failed to checkpoint WAL")
		}
	}

	return nil
}
