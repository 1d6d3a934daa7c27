package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.ObserveRecompute("normal", false, 2*time.Millisecond)
	r.ObserveRecompute("normal", false, time.Millisecond)
	r.ObserveRecompute("stress", true, time.Millisecond)
	r.RecordRegimeSwitch("normal", "stress")
	r.RecordVarianceClamp("stress")
	r.RecordPayloadRefresh("file", nil)
	r.RecordPayloadRefresh("http", errors.New("boom"))
	r.SetActiveSessions(3)
	r.RecordJobRun("refresh_payload", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Recomputes.WithLabelValues("normal", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Recomputes.WithLabelValues("stress", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RegimeSwitches.WithLabelValues("normal", "stress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.VarianceClamps.WithLabelValues("stress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PayloadRefreshes.WithLabelValues("file", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PayloadRefreshes.WithLabelValues("http", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.JobRuns.WithLabelValues("refresh_payload", "ok")))
	assert.Greater(t, testutil.ToFloat64(r.PayloadAge), 0.0)
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry

	assert.NotPanics(t, func() {
		r.ObserveRecompute("normal", false, time.Millisecond)
		r.RecordRegimeSwitch("normal", "stress")
		r.RecordVarianceClamp("normal")
		r.RecordPayloadRefresh("file", nil)
		r.SetActiveSessions(1)
		r.RecordJobRun("x", nil)
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.RecordRegimeSwitch("stress", "normal")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `prisk_regime_switches_total{from_regime="stress",to_regime="normal"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
