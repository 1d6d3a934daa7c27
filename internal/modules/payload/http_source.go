package payload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// HTTPSource resolves a manifest URL to its latestUrl and downloads that payload.
// Both requests run through a circuit breaker so a dead upstream is not hammered
// by the refresh schedule.
type HTTPSource struct {
	manifestURL string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	log         zerolog.Logger
}

// NewHTTPSource creates a manifest-driven HTTP source
func NewHTTPSource(manifestURL string, timeout time.Duration, log zerolog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &HTTPSource{
		manifestURL: manifestURL,
		client:      &http.Client{Timeout: timeout},
		log:         log.With().Str("component", "payload_http_source").Logger(),
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "payload_http",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoPayload)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return s
}

// Name implements Source
func (s *HTTPSource) Name() string { return "http" }

// BreakerState reports the circuit breaker state (closed, half-open, open).
func (s *HTTPSource) BreakerState() string {
	return s.breaker.State().String()
}

// Fetch implements Source. No manifest URL configured yields ErrNoPayload.
func (s *HTTPSource) Fetch(ctx context.Context) (*domain.Payload, error) {
	if s.manifestURL == "" {
		return nil, fmt.Errorf("%w: no manifest URL configured", ErrNoPayload)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		manifest, err := s.FetchManifest(ctx)
		if err != nil {
			return nil, err
		}
		if manifest.LatestURL == "" {
			return nil, fmt.Errorf("%w: manifest has no latestUrl", ErrNoPayload)
		}
		return s.fetchPayload(ctx, manifest.LatestURL)
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.Payload), nil
}

// FetchManifest downloads and decodes the manifest document.
func (s *HTTPSource) FetchManifest(ctx context.Context) (*Manifest, error) {
	resp, err := s.get(ctx, s.manifestURL)
	if err != nil {
		return nil, fmt.Errorf("manifest fetch failed: %w", err)
	}
	defer resp.Body.Close()

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

func (s *HTTPSource) fetchPayload(ctx context.Context, url string) (*domain.Payload, error) {
	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("risk fetch failed: %w", err)
	}
	defer resp.Body.Close()

	return Decode(resp.Body)
}

func (s *HTTPSource) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return resp, nil
}
