package di

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/prisk/internal/config"
	"github.com/aristath/prisk/internal/domain"
	testingpkg "github.com/aristath/prisk/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	b, err := json.Marshal(testingpkg.NewPayloadFixture())
	require.NoError(t, err)
	path := filepath.Join(dir, "latest.json")
	require.NoError(t, os.WriteFile(path, b, 0644))

	return &config.Config{
		DataDir:             dir,
		Port:                8080,
		AnnualizationFactor: 252,
		SessionTTL:          time.Hour,
		HistoryKeep:         10,
		Payload: config.PayloadConfig{
			Source:          config.SourceFile,
			Path:            path,
			RefreshSchedule: "@every 15m",
			FetchTimeout:    time.Second,
		},
		Limits: config.LimitsConfig{TopRiskAssets: 15, TopPairs: 12, TopDeltas: 20, TopContributors: 10, EditorRows: 12},
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.RiskService)
	assert.NotNil(t, container.ScenarioManager)
	assert.Nil(t, container.Publisher)
	assert.Equal(t, "file", container.Source.Name())

	require.Len(t, jobs.All(), 3)
	require.NoError(t, jobs.RefreshPayload.Run())

	view, err := container.RiskService.View(domain.RegimeNormal, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", view.AsOf)
}

func TestWire_RestoresLatestSnapshot(t *testing.T) {
	cfg := testConfig(t)

	first, jobs, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, jobs.RefreshPayload.Run())
	snap, err := first.Store.Current()
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	restored, err := second.Store.Current()
	require.NoError(t, err)
	assert.Equal(t, snap.ID, restored.ID)
	assert.Equal(t, snap.Checksum, restored.Checksum)
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Payload.RefreshSchedule = "whenever"

	_, _, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to register refresh_payload job")
}
