package di

import (
	"fmt"

	"github.com/aristath/prisk/internal/config"
	"github.com/aristath/prisk/internal/scheduler"
	"github.com/rs/zerolog"
)

// Job schedules
const (
	sweepSessionsSchedule   = "@every 5m"
	maintainHistorySchedule = "0 30 3 * * *" // Daily at 03:30
)

// RegisterJobs creates the background jobs and registers them with the scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		RefreshPayload:  scheduler.NewRefreshPayloadJob(container.Store, cfg.Payload.FetchTimeout, log),
		SweepSessions:   scheduler.NewSweepSessionsJob(container.ScenarioManager, cfg.SessionTTL, log),
		MaintainHistory: scheduler.NewMaintainHistoryJob(container.SnapshotRepo, container.HistoryDB, cfg.HistoryKeep, log),
	}

	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.Payload.RefreshSchedule, instances.RefreshPayload},
		{sweepSessionsSchedule, instances.SweepSessions},
		{maintainHistorySchedule, instances.MaintainHistory},
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", s.job.Name(), err)
		}
	}

	return instances, nil
}
