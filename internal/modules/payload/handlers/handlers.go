// Package handlers provides HTTP handlers for payload retrieval and publishing.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxPublishBytes caps the publish request body.
const maxPublishBytes = 32 << 20

// History reads stored snapshots.
type History interface {
	List(limit int) ([]payload.SnapshotInfo, error)
	Get(id string) (*payload.Snapshot, error)
}

// Publisher pushes a payload to object storage.
type Publisher interface {
	Publish(ctx context.Context, p *domain.Payload) (*payload.PublishResult, error)
}

// Handler handles payload HTTP requests
type Handler struct {
	store        *payload.Store
	history      History
	publisher    Publisher
	publishToken string
	log          zerolog.Logger
}

// NewHandler creates a payload handler. history and publisher may be nil.
// An empty publishToken disables publishing.
func NewHandler(store *payload.Store, history History, publisher Publisher, publishToken string, log zerolog.Logger) *Handler {
	return &Handler{
		store:        store,
		history:      history,
		publisher:    publisher,
		publishToken: publishToken,
		log:          log.With().Str("handler", "payload").Logger(),
	}
}

// SnapshotResponse describes a loaded snapshot, optionally with its payload.
type SnapshotResponse struct {
	ID        string          `json:"id"`
	AsOf      string          `json:"asOf"`
	Source    string          `json:"source"`
	Checksum  string          `json:"checksum"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Payload   *domain.Payload `json:"payload,omitempty"`
}

func snapshotResponse(s *payload.Snapshot, withPayload bool) SnapshotResponse {
	resp := SnapshotResponse{
		ID:        s.ID,
		AsOf:      s.AsOf(),
		Source:    s.Source,
		Checksum:  s.Checksum,
		FetchedAt: s.FetchedAt,
	}
	if withPayload {
		resp.Payload = s.Payload
	}
	return resp
}

// HandleGetLatest handles GET /api/payload/latest. ?meta=1 omits the payload body.
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Current()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshotResponse(snap, r.URL.Query().Get("meta") == ""))
}

// HandleGetHistory handles GET /api/payload/history?limit=
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeData(w, http.StatusOK, []payload.SnapshotInfo{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	infos, err := h.history.List(limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, infos)
}

// HandleGetSnapshot handles GET /api/payload/history/{id}
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, payload.ErrSnapshotNotFound)
		return
	}

	snap, err := h.history.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshotResponse(snap, true))
}

// HandleRefresh handles POST /api/payload/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Refresh(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, snapshotResponse(snap, false))
}

// PublishResponse is returned by a successful publish.
type PublishResponse struct {
	OK         bool   `json:"ok"`
	SnapshotID string `json:"snapshotId"`
	AsOf       string `json:"asOf"`
	*payload.PublishResult
}

// HandlePublish handles POST /api/publish. The X-Publish-Token header must
// match the configured token. The payload becomes current and, when a
// publisher is configured, is written to object storage.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Publish-Token")
	if h.publishToken == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.publishToken)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var p domain.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPublishBytes)).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if p.AsOf == "" {
		p.AsOf = time.Now().UTC().Format("2006-01-02")
	}

	snap, err := h.store.Load(&p, "publish")
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := PublishResponse{OK: true, SnapshotID: snap.ID, AsOf: snap.AsOf()}
	if h.publisher != nil {
		result, err := h.publisher.Publish(r.Context(), snap.Payload)
		if err != nil {
			h.log.Error().Err(err).Str("snapshot_id", snap.ID).Msg("Failed to publish payload")
			http.Error(w, "Failed to publish payload", http.StatusBadGateway)
			return
		}
		resp.PublishResult = result
	}

	h.log.Info().Str("snapshot_id", snap.ID).Str("as_of", snap.AsOf()).Msg("Payload published")
	h.writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, payload.ErrNoPayload):
		return http.StatusServiceUnavailable
	case errors.Is(err, payload.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, payload.ErrInvalidPayload):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Payload request failed")
		http.Error(w, "Payload request failed", status)
		return
	}
	h.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
