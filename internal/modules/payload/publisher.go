package payload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	manifestKey   = "risk/manifest.json"
	historyPrefix = "risk/history/"
)

// PublishResult lists the URLs written by a publish.
type PublishResult struct {
	ManifestURL    string `json:"manifestUrl"`
	LatestURL      string `json:"latestUrl"`
	LastHistoryURL string `json:"lastHistoryUrl"`
}

// S3Publisher writes a payload to a bucket: the stable latest object
// (overwritten), a versioned history object (never overwritten) and the manifest.
type S3Publisher struct {
	uploader   objectUploader
	bucket     string
	publicBase string
	now        func() time.Time
	log        zerolog.Logger
}

// NewS3Publisher creates a publisher. publicBase is the public URL prefix of
// the bucket used in the manifest; empty means s3://bucket.
func NewS3Publisher(client *s3.Client, bucket, publicBase string, log zerolog.Logger) *S3Publisher {
	return newS3Publisher(manager.NewUploader(client), bucket, publicBase, log)
}

func newS3Publisher(u objectUploader, bucket, publicBase string, log zerolog.Logger) *S3Publisher {
	if publicBase == "" {
		publicBase = "s3://" + bucket
	}
	return &S3Publisher{
		uploader:   u,
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
		log:        log.With().Str("component", "payload_publisher").Logger(),
	}
}

// Publish uploads latest, history and manifest objects for p.
func (p *S3Publisher) Publish(ctx context.Context, payload *domain.Payload) (*PublishResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	now := p.now().UTC()
	asOf := payload.AsOf
	if asOf == "" {
		asOf = now.Format("2006-01-02")
	}

	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.Format("2006-01-02T15:04:05.000Z"))
	historyKey := historyPrefix + asOf + "/" + ts + ".json"

	if err := p.put(ctx, DefaultLatestKey, body, "no-cache"); err != nil {
		return nil, err
	}
	if err := p.put(ctx, historyKey, body, "public, max-age=31536000, immutable"); err != nil {
		return nil, err
	}

	result := &PublishResult{
		ManifestURL:    p.url(manifestKey),
		LatestURL:      p.url(DefaultLatestKey),
		LastHistoryURL: p.url(historyKey),
	}

	manifest, err := json.Marshal(Manifest{
		AsOf:           asOf,
		LatestURL:      result.LatestURL,
		LastHistoryURL: result.LastHistoryURL,
		UpdatedAt:      now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := p.put(ctx, manifestKey, manifest, "no-cache"); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("as_of", asOf).
		Str("history_key", historyKey).
		Msg("Payload published")

	return result, nil
}

func (p *S3Publisher) put(ctx context.Context, key string, body []byte, cacheControl string) error {
	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (p *S3Publisher) url(key string) string {
	return p.publicBase + "/" + key
}
