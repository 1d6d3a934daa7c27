package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/prisk/internal/config"
	"github.com/aristath/prisk/internal/metrics"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/modules/risk"
	"github.com/aristath/prisk/internal/modules/scenario"
	"github.com/aristath/prisk/internal/scheduler"
)

// InitializeServices builds the payload store, risk service and scenario manager
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Metrics = metrics.NewRegistry()
	container.SnapshotRepo = payload.NewRepository(container.HistoryDB.Conn(), log)

	var s3Client *s3.Client
	if cfg.NeedsS3() {
		client, err := payload.NewS3Client(ctx, payload.S3Config{
			Bucket:          cfg.Payload.Bucket,
			Endpoint:        cfg.Payload.Endpoint,
			Region:          cfg.Payload.Region,
			AccessKeyID:     cfg.Payload.AccessKeyID,
			SecretAccessKey: cfg.Payload.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s3Client = client
	}

	source, err := newSource(cfg, s3Client, log)
	if err != nil {
		return err
	}
	container.Source = source

	if cfg.Publish.Enabled {
		container.Publisher = payload.NewS3Publisher(s3Client, cfg.Payload.Bucket, cfg.Publish.PublicBaseURL, log)
	}

	container.Store = payload.NewStore(source, container.SnapshotRepo, container.Metrics, log)

	limits := risk.Limits{
		TopRiskAssets:   cfg.Limits.TopRiskAssets,
		TopPairs:        cfg.Limits.TopPairs,
		TopDeltas:       cfg.Limits.TopDeltas,
		TopContributors: cfg.Limits.TopContributors,
		EditorRows:      cfg.Limits.EditorRows,
	}
	container.RiskService = risk.NewService(container.Store, cfg.AnnualizationFactor, limits, container.Metrics, log)
	container.ScenarioManager = scenario.NewManager(container.RiskService, container.Metrics, log)
	container.Scheduler = scheduler.New(container.Metrics, log)

	log.Info().
		Str("source", source.Name()).
		Bool("publish", container.Publisher != nil).
		Int("annualization_factor", cfg.AnnualizationFactor).
		Msg("Services initialized")

	return nil
}

func newSource(cfg *config.Config, s3Client *s3.Client, log zerolog.Logger) (payload.Source, error) {
	switch cfg.Payload.Source {
	case config.SourceFile:
		return payload.NewFileSource(cfg.Payload.Path), nil
	case config.SourceHTTP:
		return payload.NewHTTPSource(cfg.Payload.ManifestURL, cfg.Payload.FetchTimeout, log), nil
	case config.SourceS3:
		return payload.NewS3Source(s3Client, cfg.Payload.Bucket, cfg.Payload.Key), nil
	default:
		return nil, fmt.Errorf("unknown payload source %q", cfg.Payload.Source)
	}
}

// RestoreLatest makes the newest stored snapshot current so views are
// available before the first refresh completes.
func RestoreLatest(container *Container, log zerolog.Logger) {
	snap, err := container.SnapshotRepo.Latest()
	if err != nil {
		log.Info().Err(err).Msg("No stored snapshot to restore")
		return
	}
	if container.Store.Restore(snap) {
		log.Info().
			Str("snapshot_id", snap.ID).
			Str("as_of", snap.AsOf()).
			Msg("Restored snapshot from history")
	}
}
