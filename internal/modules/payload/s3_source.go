package payload

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultLatestKey is the stable object key of the most recent payload.
const DefaultLatestKey = "risk/latest.json"

// S3Source downloads the latest payload object from a bucket.
type S3Source struct {
	downloader objectDownloader
	bucket     string
	key        string
}

// NewS3Source creates a bucket source. An empty key means DefaultLatestKey.
func NewS3Source(client *s3.Client, bucket, key string) *S3Source {
	return newS3Source(manager.NewDownloader(client), bucket, key)
}

func newS3Source(d objectDownloader, bucket, key string) *S3Source {
	if key == "" {
		key = DefaultLatestKey
	}
	return &S3Source{downloader: d, bucket: bucket, key: key}
}

// Name implements Source
func (s *S3Source) Name() string { return "s3" }

// Fetch implements Source. A missing object yields ErrNoPayload.
func (s *S3Source) Fetch(ctx context.Context) (*domain.Payload, error) {
	buf := manager.NewWriteAtBuffer(nil)

	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNoPayload, s.bucket, s.key)
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key, err)
	}

	return Decode(bytes.NewReader(buf.Bytes()))
}
