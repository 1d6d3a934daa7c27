package scheduler

import (
	"errors"
	"testing"

	"github.com/aristath/prisk/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(nil, zerolog.Nop())

	require.NoError(t, s.AddJob("@every 15m", &countingJob{name: "a"}))
	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{name: "b"}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{name: "c"}))
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	s.Stop()
}

func TestScheduler_RunNowRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	s := New(reg, zerolog.Nop())

	ok := &countingJob{name: "ok"}
	require.NoError(t, s.RunNow(ok))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.JobRuns.WithLabelValues("ok", "ok")))

	failing := &countingJob{name: "failing", err: errors.New("boom")}
	assert.EqualError(t, s.RunNow(failing), "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.JobRuns.WithLabelValues("failing", "error")))
}
