package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/prisk/internal/domain"
	"github.com/aristath/prisk/internal/modules/payload"
	"github.com/aristath/prisk/internal/modules/risk"
	"github.com/aristath/prisk/internal/modules/scenario"
	testingpkg "github.com/aristath/prisk/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func setupRouter(t *testing.T, loaded bool) (*chi.Mux, *scenario.Manager) {
	t.Helper()
	log := zerolog.Nop()

	store := payload.NewStore(nil, nil, nil, log)
	if loaded {
		_, err := store.Load(testingpkg.NewPayloadFixture(), "test")
		require.NoError(t, err)
	}

	manager := scenario.NewManager(risk.NewService(store, 252, risk.DefaultLimits(), nil, log), nil, log)
	handler := NewHandler(manager, nil, log)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
		handler.RegisterStreamRoutes(r)
	})
	return router, manager
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func createSession(t *testing.T, router http.Handler) scenario.Result {
	t.Helper()
	w, env := do(t, router, http.MethodPost, "/api/scenario/sessions/", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res scenario.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestSessionLifecycle(t *testing.T) {
	router, _ := setupRouter(t, true)

	created := createSession(t, router)
	require.NotNil(t, created.View)
	id := created.Session.ID
	base := "/api/scenario/sessions/" + id

	w, env := do(t, router, http.MethodPut, base+"/weights", `{"weights":[1,1,1,1,1]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res scenario.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.View.OverrideActive)

	w, env = do(t, router, http.MethodPut, base+"/regime", `{"regime":"stress"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, domain.RegimeStress, res.Session.Regime)
	assert.False(t, res.Session.OverrideActive)

	w, env = do(t, router, http.MethodPut, base+"/weights", `{"weightsBySymbol":{"BTC":0.5}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Session.OverrideActive)

	w, env = do(t, router, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Session.OverrideActive)

	w, env = do(t, router, http.MethodGet, base+"/view", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, domain.RegimeStress, res.View.Regime)

	w, _ = do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = do(t, router, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, env.Error, "session not found")
}

func TestSessionErrors(t *testing.T) {
	router, _ := setupRouter(t, true)
	base := "/api/scenario/sessions/" + createSession(t, router).Session.ID

	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"bad json", http.MethodPut, "/regime", "{", http.StatusBadRequest},
		{"unknown regime", http.MethodPut, "/regime", `{"regime":"crisis"}`, http.StatusBadRequest},
		{"empty regime", http.MethodPut, "/regime", `{}`, http.StatusBadRequest},
		{"wrong length", http.MethodPut, "/weights", `{"weights":[1,2]}`, http.StatusBadRequest},
		{"no weights", http.MethodPut, "/weights", `{}`, http.StatusBadRequest},
		{"unknown symbol", http.MethodPut, "/weights", `{"weightsBySymbol":{"BTC":1}}`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := do(t, router, tc.method, base+tc.path, tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestCreateSession_WithoutPayload(t *testing.T) {
	router, manager := setupRouter(t, false)

	res := createSession(t, router)
	assert.Nil(t, res.View)
	assert.Equal(t, 1, manager.Count())

	w, _ := do(t, router, http.MethodGet, "/api/scenario/sessions/"+res.Session.ID+"/view", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleStream(t *testing.T) {
	router, manager := setupRouter(t, true)
	srv := httptest.NewServer(router)
	defer srv.Close()

	id := manager.Create().ID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/scenario/stream/" + id
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg StreamMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "view", msg.Type)
	require.NotNil(t, msg.Result)
	assert.Equal(t, domain.RegimeNormal, msg.Result.View.Regime)

	require.NoError(t, wsjson.Write(ctx, conn, scenario.SetRegime("stress")))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "view", msg.Type)
	assert.Equal(t, domain.RegimeStress, msg.Result.View.Regime)

	require.NoError(t, wsjson.Write(ctx, conn, scenario.SetWeights([]float64{1})))
	msg = StreamMessage{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, http.StatusBadRequest, msg.Status)

	info, err := manager.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeStress, info.Regime, "rejected transition leaves the session as it was")
}

func TestHandleStream_UnknownSession(t *testing.T) {
	router, _ := setupRouter(t, true)

	w, _ := do(t, router, http.MethodGet, "/api/scenario/stream/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
