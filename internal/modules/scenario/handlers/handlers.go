// Package handlers provides HTTP and websocket handlers for scenario sessions.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	riskhandlers "github.com/aristath/prisk/internal/modules/risk/handlers"
	"github.com/aristath/prisk/internal/modules/scenario"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles scenario session requests
type Handler struct {
	manager        *scenario.Manager
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates a new scenario handler. originPatterns limits which
// origins may open the websocket stream; empty means same-origin only.
func NewHandler(manager *scenario.Manager, originPatterns []string, log zerolog.Logger) *Handler {
	return &Handler{
		manager:        manager,
		originPatterns: originPatterns,
		log:            log.With().Str("handler", "scenario").Logger(),
	}
}

// HandleCreateSession handles POST /api/scenario/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	info := h.manager.Create()

	res, err := h.manager.View(info.ID)
	if err != nil {
		// The session exists even without a payload; its view follows later.
		if statusFor(err) != http.StatusServiceUnavailable {
			h.writeError(w, err)
			return
		}
		h.writeData(w, http.StatusCreated, scenario.Result{Session: info})
		return
	}

	h.writeData(w, http.StatusCreated, res)
}

// HandleGetSession handles GET /api/scenario/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, info)
}

// HandleDeleteSession handles DELETE /api/scenario/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetView handles GET /api/scenario/sessions/{id}/view
func (h *Handler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.View(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res)
}

// HandleSetRegime handles PUT /api/scenario/sessions/{id}/regime
func (h *Handler) HandleSetRegime(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Regime string `json:"regime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.apply(w, r, scenario.SetRegime(req.Regime))
}

// HandleSetWeights handles PUT /api/scenario/sessions/{id}/weights.
// A body with weightsBySymbol patches; otherwise weights replaces.
func (h *Handler) HandleSetWeights(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weights         []float64          `json:"weights"`
		WeightsBySymbol map[string]float64 `json:"weightsBySymbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.WeightsBySymbol) > 0 {
		h.apply(w, r, scenario.PatchWeights(req.WeightsBySymbol))
		return
	}
	h.apply(w, r, scenario.SetWeights(req.Weights))
}

// HandleReset handles POST /api/scenario/sessions/{id}/reset
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, scenario.Reset())
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, t scenario.Transition) {
	res, err := h.manager.Apply(chi.URLParam(r, "id"), t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scenario.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, scenario.ErrInvalidTransition):
		return http.StatusBadRequest
	default:
		return riskhandlers.StatusFor(err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Scenario request failed")
		http.Error(w, "Scenario request failed", status)
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
