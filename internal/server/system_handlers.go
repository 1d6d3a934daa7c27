package server

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/prisk/internal/database"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/scheduler"
)

// SystemHandlers handles system status and job trigger requests
type SystemHandlers struct {
	log       zerolog.Logger
	store     *payload.Store
	sessions  SessionCounter
	historyDB *database.DB
	scheduler *scheduler.Scheduler
	jobs      map[string]scheduler.Job
	started   time.Time
}

// NewSystemHandlers creates a new system handlers instance. Any dependency may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	store *payload.Store,
	sessions SessionCounter,
	historyDB *database.DB,
	sched *scheduler.Scheduler,
	jobs []scheduler.Job,
) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name()] = job
	}

	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		store:     store,
		sessions:  sessions,
		historyDB: historyDB,
		scheduler: sched,
		jobs:      byName,
		started:   time.Now(),
	}
}

// PayloadStatus describes the loaded payload
type PayloadStatus struct {
	Loaded     bool      `json:"loaded"`
	Source     string    `json:"source"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	AsOf       string    `json:"as_of,omitempty"`
	FetchedAt  time.Time `json:"fetched_at,omitempty"`
	AgeSeconds float64   `json:"age_seconds,omitempty"`
	Universe   int       `json:"universe,omitempty"`
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status         string        `json:"status"`
	UptimeSeconds  float64       `json:"uptime_seconds"`
	CPUPercent     float64       `json:"cpu_percent"`
	MemoryPercent  float64       `json:"memory_percent"`
	Goroutines     int           `json:"goroutines"`
	ActiveSessions int           `json:"active_sessions"`
	Payload        PayloadStatus `json:"payload"`
	LastChecked    string        `json:"last_checked"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.started).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Payload:       h.payloadStatus(),
		LastChecked:   time.Now().Format(time.RFC3339),
	}
	if h.sessions != nil {
		response.ActiveSessions = h.sessions.Count()
	}
	if !response.Payload.Loaded {
		response.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SystemHandlers) payloadStatus() PayloadStatus {
	if h.store == nil {
		return PayloadStatus{Source: "none"}
	}

	status := PayloadStatus{Source: h.store.SourceName()}
	snap, err := h.store.Current()
	if err != nil {
		return status
	}

	status.Loaded = true
	status.SnapshotID = snap.ID
	status.AsOf = snap.AsOf()
	status.FetchedAt = snap.FetchedAt
	status.AgeSeconds = time.Since(snap.FetchedAt).Seconds()
	status.Universe = len(snap.Payload.Universe)
	return status
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// DatabaseStatsResponse represents history database statistics
type DatabaseStatsResponse struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Healthy     bool            `json:"healthy"`
	Error       string          `json:"error,omitempty"`
	Stats       *database.Stats `json:"stats,omitempty"`
	LastChecked string          `json:"last_checked"`
}

// HandleDatabaseStats handles GET /api/system/database
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.historyDB == nil {
		http.Error(w, "History database not configured", http.StatusNotFound)
		return
	}

	response := DatabaseStatsResponse{
		Name:        h.historyDB.Name(),
		Path:        h.historyDB.Path(),
		Healthy:     true,
		LastChecked: time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.historyDB.HealthCheck(ctx); err != nil {
		h.log.Warn().Err(err).Msg("History database health check failed")
		response.Healthy = false
		response.Error = err.Error()
	}

	stats, err := h.historyDB.GetStats()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get database stats")
	} else {
		response.Stats = stats
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names})
}

// HandleRunJob handles POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		http.Error(w, "Unknown job", http.StatusNotFound)
		return
	}

	var err error
	if h.scheduler != nil {
		err = h.scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"job":    name,
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"job":    name,
	})
}
