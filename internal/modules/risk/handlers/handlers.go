// Package handlers provides HTTP handlers for risk views.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/modules/risk"
	"github.com/rs/zerolog"
)

// Handler handles risk view HTTP requests
type Handler struct {
	service *risk.Service
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(service *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// ViewRequest is the body of POST /api/risk/view. Weights replaces the
// baseline vector; WeightsBySymbol patches it.
type ViewRequest struct {
	Regime          string             `json:"regime"`
	Weights         []float64          `json:"weights,omitempty"`
	WeightsBySymbol map[string]float64 `json:"weightsBySymbol,omitempty"`
}

// HandleGetView handles GET /api/risk/view?regime=
func (h *Handler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	regime, err := regimeParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.service.View(regime, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeData(w, view)
}

// HandlePostView handles POST /api/risk/view with ad-hoc weights.
func (h *Handler) HandlePostView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	regime := domain.RegimeNormal
	if req.Regime != "" {
		parsed, err := domain.ParseRegime(req.Regime)
		if err != nil {
			h.writeError(w, err)
			return
		}
		regime = parsed
	}

	snap, err := h.service.CurrentSnapshot()
	if err != nil {
		h.writeError(w, err)
		return
	}

	override := req.Weights
	if len(req.WeightsBySymbol) > 0 {
		data, err := snap.Regime(regime)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if override, err = risk.ApplyPatch(data, req.Weights, req.WeightsBySymbol); err != nil {
			h.writeError(w, err)
			return
		}
	}

	view, err := h.service.ViewOf(snap, regime, override)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeData(w, view)
}

// HandleGetDeltas handles GET /api/risk/deltas?top=
func (h *Handler) HandleGetDeltas(w http.ResponseWriter, r *http.Request) {
	top, err := intParam(r, "top", h.service.Limits().TopDeltas)
	if err != nil {
		http.Error(w, "Invalid top parameter", http.StatusBadRequest)
		return
	}

	deltas, err := h.service.Deltas(top)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeData(w, deltas)
}

// HandleGetStructure handles GET /api/risk/structure?regime=&top=&pairs=
func (h *Handler) HandleGetStructure(w http.ResponseWriter, r *http.Request) {
	regime, err := regimeParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	limits := h.service.Limits()
	top, err := intParam(r, "top", limits.TopRiskAssets)
	if err != nil {
		http.Error(w, "Invalid top parameter", http.StatusBadRequest)
		return
	}
	pairs, err := intParam(r, "pairs", limits.TopPairs)
	if err != nil {
		http.Error(w, "Invalid pairs parameter", http.StatusBadRequest)
		return
	}

	structure, err := h.service.Structure(regime, top, pairs)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeData(w, structure)
}

func regimeParam(r *http.Request) (domain.Regime, error) {
	v := r.URL.Query().Get("regime")
	if v == "" {
		return domain.RegimeNormal, nil
	}
	return domain.ParseRegime(v)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, payload.ErrNoPayload):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnknownRegime),
		errors.Is(err, risk.ErrWeightDimension),
		errors.Is(err, risk.ErrUnknownSymbol),
		errors.Is(err, risk.ErrInvalidWeight):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Failed to compute risk view")
		http.Error(w, "Failed to compute risk view", status)
		return
	}
	h.writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
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
