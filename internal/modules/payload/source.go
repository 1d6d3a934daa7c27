// Package payload loads, validates, stores and publishes risk payloads.
//
// A payload is produced upstream (covariance estimation, PCA) and is read-only
// here. Every successful load becomes an immutable Snapshot with its symbol
// indexes built once; the Store swaps snapshots atomically.
package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aristath/prisk/internal/domain"
)

var (
	// ErrNoPayload is returned when no payload is available yet.
	ErrNoPayload = errors.New("no payload available")
	// ErrInvalidPayload is returned when a payload fails structural validation.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrSnapshotNotFound is returned when a stored snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Source fetches the latest payload from somewhere.
type Source interface {
	Fetch(ctx context.Context) (*domain.Payload, error)
	Name() string
}

// Manifest is the stable pointer document written next to the payload.
type Manifest struct {
	AsOf           string `json:"asOf"`
	LatestURL      string `json:"latestUrl"`
	LastHistoryURL string `json:"lastHistoryUrl,omitempty"`
	UpdatedAt      string `json:"updatedAt,omitempty"`
}

// Decode reads a JSON payload from r.
func Decode(r io.Reader) (*domain.Payload, error) {
	var p domain.Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &p, nil
}
