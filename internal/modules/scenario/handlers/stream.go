package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/prisk/internal/modules/scenario"
	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	streamWriteWait = 10 * time.Second
	streamReadLimit = 1 << 20
)

// StreamMessage is sent to stream clients: a result after every transition,
// or an error when a transition is rejected (the session is unchanged).
type StreamMessage struct {
	Type   string           `json:"type"`
	Result *scenario.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Status int              `json:"status,omitempty"`
}

// HandleStream handles GET /api/scenario/stream/{id}.
// The client sends transitions as JSON; each one is answered with the
// recomputed view. Messages are handled in order, one at a time.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.manager.Get(id); err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", id).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")
	conn.SetReadLimit(streamReadLimit)

	ctx := r.Context()
	log := h.log.With().Str("session_id", id).Logger()
	log.Debug().Msg("Scenario stream opened")

	// Initial view so the client renders before its first transition.
	res, err := h.manager.View(id)
	if err := h.send(ctx, conn, h.message(res, err)); err != nil {
		return
	}

	for {
		var t scenario.Transition
		if err := wsjson.Read(ctx, conn, &t); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				log.Debug().Msg("Scenario stream closed")
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			log.Warn().Err(err).Msg("Failed to read transition")
			conn.Close(websocket.StatusUnsupportedData, "invalid transition message")
			return
		}

		res, err := h.manager.Apply(id, t)
		if err := h.send(ctx, conn, h.message(res, err)); err != nil {
			log.Warn().Err(err).Msg("Failed to write stream message")
			return
		}
		if errors.Is(err, scenario.ErrSessionNotFound) {
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		}
	}
}

func (h *Handler) message(res *scenario.Result, err error) StreamMessage {
	if err != nil {
		return StreamMessage{Type: "error", Error: err.Error(), Status: statusFor(err)}
	}
	return StreamMessage{Type: "view", Result: res}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}
