package payload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	testingpkg "github.com/aristath/prisk/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayloadFile(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(testingpkg.NewPayloadFixture())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "risk_payload.json")
	require.NoError(t, os.WriteFile(path, b, 0644))
	return path
}

func TestFileSource(t *testing.T) {
	src := NewFileSource(writePayloadFile(t))
	assert.Equal(t, "file", src.Name())

	p, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", p.AsOf)
	assert.Len(t, p.Regimes.Normal.Metrics.Assets, 5)
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.json"))
	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestFileSource_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileSource(path).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode payload")
}

func newManifestServer(t *testing.T, payloadStatus *atomic.Int32) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(testingpkg.NewPayloadFixture())
	require.NoError(t, err)

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/risk/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Manifest{AsOf: "2025-01-31", LatestURL: srv.URL + "/risk/latest.json"})
	})
	mux.HandleFunc("/risk/latest.json", func(w http.ResponseWriter, r *http.Request) {
		if status := int(payloadStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/empty/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"asOf":"2025-01-31"}`))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_FollowsManifest(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := newManifestServer(t, &status)

	src := NewHTTPSource(srv.URL+"/risk/manifest.json", time.Second, zerolog.Nop())
	assert.Equal(t, "http", src.Name())

	p, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0", p.Version)
	assert.Len(t, p.Regimes.Stress.Metrics.Assets, 5)
}

func TestHTTPSource_NoManifest(t *testing.T) {
	src := NewHTTPSource("", time.Second, zerolog.Nop())
	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestHTTPSource_ManifestWithoutLatest(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := newManifestServer(t, &status)

	src := NewHTTPSource(srv.URL+"/empty/manifest.json", time.Second, zerolog.Nop())
	for i := 0; i < 5; i++ {
		_, err := src.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrNoPayload)
	}
	assert.Equal(t, "closed", src.BreakerState(), "an empty manifest is not an upstream failure")
}

func TestHTTPSource_BreakerOpensAfterFailures(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadGateway)
	srv := newManifestServer(t, &status)

	src := NewHTTPSource(srv.URL+"/risk/manifest.json", time.Second, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := src.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 502")
	}
	assert.Equal(t, "open", src.BreakerState())

	status.Store(http.StatusOK)
	_, err := src.Fetch(context.Background())
	assert.Error(t, err, "open breaker rejects without calling upstream")
}
