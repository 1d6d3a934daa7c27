// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/prisk/internal/database"
	"github.com/aristath/prisk/internal/metrics"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/modules/risk"
	"github.com/aristath/prisk/internal/modules/scenario"
	"github.com/aristath/prisk/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	HistoryDB *database.DB
	Metrics   *metrics.Registry

	SnapshotRepo *payload.Repository
	Source       payload.Source
	Store        *payload.Store
	Publisher    *payload.S3Publisher // nil unless publishing to object storage is enabled

	RiskService     *risk.Service
	ScenarioManager *scenario.Manager

	Scheduler *scheduler.Scheduler
}

// Close releases resources held by the container
func (c *Container) Close() error {
	if c == nil || c.HistoryDB == nil {
		return nil
	}
	return c.HistoryDB.Close()
}

// JobInstances holds the scheduled jobs for manual triggering via API
type JobInstances struct {
	RefreshPayload  *scheduler.RefreshPayloadJob
	SweepSessions   *scheduler.SweepSessionsJob
	MaintainHistory *scheduler.MaintainHistoryJob
}

// All returns every job instance
func (j *JobInstances) All() []scheduler.Job {
	return []scheduler.Job{j.RefreshPayload, j.SweepSessions, j.MaintainHistory}
}
