package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tart/internal/config"
	"tart/internal/game"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *game.Registry) {
	t.Helper()
	sims := game.NewRegistry(game.DefaultModels(2, nil), nil, nil)
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()
	cfg := config.APIConfig{DefaultTick: 0.5}
	return New(cfg, nil, sims, hub, nil), sims
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type tryResponse struct {
	OK    bool       `json:"ok"`
	State game.State `json:"state"`
}

func TestHealthAndModels(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	models := decode[map[string][]string](t, rec)
	assert.Equal(t, []string{"example", "port"}, models["models"])

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsMounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	sims := game.NewRegistry(game.DefaultModels(1, nil), nil, nil)
	s := New(config.APIConfig{}, nil, sims, nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndListSimulations(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/v1/simulations", `{"model":0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, created["id"])
	assert.Equal(t, "example", created["model"])

	rec = do(t, h, http.MethodPost, "/v1/simulations", `{"model":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/simulations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]game.SimulationInfo](t, rec)
	assert.Equal(t, []game.SimulationInfo{{ID: 0, Model: "example"}, {ID: 1, Model: "port"}}, list["simulations"])
}

func TestCreateSimulationRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	cases := []struct {
		body string
		code int
	}{
		{`{"model":9}`, http.StatusNotFound},
		{`{"model":-1}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`{"model":0,"extra":true}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := do(t, h, http.MethodPost, "/v1/simulations", tc.body)
		assert.Equal(t, tc.code, rec.Code, tc.body)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestUnknownSimulation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/simulations/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/simulations/-1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/simulations/7", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/simulations/7/tick", "").Code)
}

func TestPurchaseFlow(t *testing.T) {
	s, sims := newTestServer(t)
	h := s.Handler()
	id, err := sims.Create(0)
	require.NoError(t, err)
	base := "/v1/simulations/0"
	require.Zero(t, id)

	rec := do(t, h, http.MethodPatch, base+"/curves/0", `{"prices":{"0":5},"values":{"0":10,"1":20}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[game.CurveView](t, rec)
	assert.Equal(t, "speed", view.Name)
	assert.Equal(t, 5.0, view.Prices[0])
	assert.Len(t, view.Prices, 10)
	assert.Len(t, view.Values, 11)

	rec = do(t, h, http.MethodPatch, base+"/curves/1", `{"values":{"0":100}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/choices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	choices := decode[map[string][]game.Choice](t, rec)["choices"]
	require.Len(t, choices, 2)
	assert.Equal(t, 5.0, choices[0].Price)

	raw, err := json.Marshal(choices[0])
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, base+"/choices/try", string(raw))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[tryResponse](t, rec).OK, "unaffordable choice applied")

	rec = do(t, h, http.MethodPost, base+"/tick", `{"delta":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[game.State](t, rec)
	assert.InDelta(t, 10.0, st.Money, 1e-9)
	assert.InDelta(t, 10.0, st.Time, 1e-9)

	rec = do(t, h, http.MethodGet, base+"/choices/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	choice := decode[game.Choice](t, rec)
	raw, err = json.Marshal(choice)
	require.NoError(t, err)

	rec = do(t, h, http.MethodPost, base+"/choices/try", string(raw), "Idempotency-Key", "buy-1")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[tryResponse](t, rec)
	assert.True(t, res.OK)
	assert.InDelta(t, 5.0, res.State.Money, 1e-9)
	assert.InDelta(t, -5.0, res.State.MoneyDec, 1e-9)
	assert.Equal(t, []int{1, 0}, res.State.Levels)

	rec = do(t, h, http.MethodPost, base+"/choices/try", string(raw), "Idempotency-Key", "buy-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[map[string][]game.Choice](t, rec)["history"]
	require.Len(t, history, 1)
	assert.Equal(t, "speed", history[0].KindName)

	rec = do(t, h, http.MethodGet, base+"/choices/1/kind", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "money", decode[map[string]any](t, rec)["kind"])

	rec = do(t, h, http.MethodGet, base+"/kinds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"speed", "money"}, decode[map[string][]string](t, rec)["kinds"])
}

func TestTickDefaultsAndValidation(t *testing.T) {
	s, sims := newTestServer(t)
	h := s.Handler()
	_, err := sims.Create(0)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/v1/simulations/0/tick", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 0.5, decode[game.State](t, rec).Time, 1e-9)

	rec = do(t, h, http.MethodPost, "/v1/simulations/0/tick?delta=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 2.5, decode[game.State](t, rec).Time, 1e-9)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/simulations/0/tick", `{"delta":-1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/simulations/0/tick?delta=soon", "").Code)

	rec = do(t, h, http.MethodGet, "/v1/simulations/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 2.5, decode[game.State](t, rec).Time, 1e-9)
}

func TestTickOverflowIsRejected(t *testing.T) {
	s, sims := newTestServer(t)
	h := s.Handler()
	_, err := sims.Create(0)
	require.NoError(t, err)
	base := "/v1/simulations/0"

	for _, path := range []string{base + "/curves/0", base + "/curves/1"} {
		rec := do(t, h, http.MethodPatch, path, `{"values":{"0":1e200}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, h, http.MethodPost, base+"/tick", `{"delta":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "overflows")

	rec = do(t, h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[game.State](t, rec)
	assert.Zero(t, st.Time)
	assert.Zero(t, st.Money)
	assert.Nil(t, st.Stats)

	// Lowering a value makes the simulation playable again.
	rec = do(t, h, http.MethodPatch, base+"/curves/1", `{"values":{"0":1}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, base+"/tick", `{"delta":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 1e197, decode[game.State](t, rec).Money, 1e185)
}

func TestWriteJSONUnencodablePayload(t *testing.T) {
	var logs bytes.Buffer
	sims := game.NewRegistry(game.DefaultModels(1, nil), nil, nil)
	s := New(config.APIConfig{}, slog.New(slog.NewTextHandler(&logs, nil)), sims, nil, nil)

	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusOK, map[string]float64{"rate": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "internal error", decode[map[string]string](t, rec)["error"])
	assert.Contains(t, logs.String(), "encode response")
}

func TestPurchaseWithoutIdempotencyKey(t *testing.T) {
	s, sims := newTestServer(t)
	h := s.Handler()
	_, err := sims.Create(0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/v1/simulations/0/choices/0", "")
		require.Equal(t, http.StatusOK, rec.Code)
		raw, err := json.Marshal(decode[game.Choice](t, rec))
		require.NoError(t, err)

		rec = do(t, h, http.MethodPost, "/v1/simulations/0/choices/try", string(raw))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decode[tryResponse](t, rec).OK, "purchase %d", i)
	}

	rec := do(t, h, http.MethodGet, "/v1/simulations/0/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]game.Choice](t, rec)["history"], 2)
}

func TestIndexErrors(t *testing.T) {
	s, sims := newTestServer(t)
	h := s.Handler()
	_, err := sims.Create(0)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/simulations/0/choices/5", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/simulations/0/choices/x", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/simulations/0/curves/99", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPatch, "/v1/simulations/0/curves/99", `{"max_level":3}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/simulations/0/choices/try", `{"kind":7}`).Code)
}

func TestPortModelIsNotImplemented(t *testing.T) {
	s, sims := newTestServer(t)
	h := s.Handler()
	_, err := sims.Create(1)
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/v1/simulations/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[game.State](t, rec)
	assert.Nil(t, st.Stats)
	assert.Len(t, st.Levels, 2*25)

	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/v1/simulations/0/choices", "").Code)
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodPost, "/v1/simulations/0/tick", `{"delta":1}`).Code)

	rec = do(t, h, http.MethodGet, "/v1/simulations/0/curves", "")
	require.Equal(t, http.StatusOK, rec.Code)
	curves := decode[map[string][]game.CurveView](t, rec)["curves"]
	require.Len(t, curves, 50)
	assert.Equal(t, "lane1.buy_lane", curves[25].Name)
}

func TestStreamPublishesState(t *testing.T) {
	s, sims := newTestServer(t)
	_, err := sims.Create(0)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/simulations/0/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg struct {
		Type    string     `json:"type"`
		Payload game.State `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	assert.Zero(t, msg.Payload.Time)

	resp, err := http.Post(ts.URL+"/v1/simulations/0/tick", "application/json", bytes.NewBufferString(`{"delta":3}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	assert.InDelta(t, 3.0, msg.Payload.Time, 1e-9)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/v1/simulations/0/curves/0", strings.NewReader(`{"values":{"0":7}}`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
	assert.InDelta(t, 3.0, msg.Payload.Time, 1e-9)
	require.NotNil(t, msg.Payload.Stats)
	assert.Equal(t, 0, msg.Payload.Stats.Levels["speed"])
}
