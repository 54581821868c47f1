package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"labeler_server/adapter/out/persistence"
	"labeler_server/core/domain"
	"labeler_server/core/service/training"
	"labeler_server/infra/middleware"
	"labeler_server/pkg/apperr"
	"labeler_server/pkg/metrics"
	"labeler_server/pkg/resilience"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app   *fiber.App
	store *persistence.FileStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := persistence.NewFileStore(filepath.Join(t.TempDir(), "model.json"), persistence.NewCodec(domain.DefaultSettings()))
	svc := training.NewService(context.Background(), store, training.DefaultConfig())

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Use(middleware.RequestID())
	NewClassifierHandler(svc, 0.2, 3).Register(app)
	return &testServer{app: app, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestRoot(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, "GET", "/", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "Server is running", body["status"])
	assert.Equal(t, apiMessage, body["message"])
}

func TestPredictLiveness(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, "POST", "/predict", `{"text":"test"}`)
	assert.Equal(t, 200, status)
	assert.Equal(t, map[string]any{"status": "Server is running"}, body)
}

func TestPredictValidation(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/predict", `{}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeMissingField, errorCode(body))

	status, body = s.do(t, "POST", "/predict", `{"text":`)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeBadRequest, errorCode(body))
}

func TestPredictUntrained(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, "POST", "/predict", `{"text":"hello there, how are you doing"}`)
	assert.Equal(t, 200, status)
	assert.Equal(t, string(domain.ReasonInsufficientLabels), body["reason"])
	assert.Equal(t, 0.0, body["confidence"])
	assert.Nil(t, body["label"])
}

func TestTrainPredictFlow(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/train", `{"text":"win free money now","label":"spam"}`)
	require.Equal(t, 200, status)
	assert.Equal(t, "partial", body["status"])
	assert.Equal(t, false, body["is_trained"])

	status, body = s.do(t, "POST", "/train", `{"text":"quarterly report attached","label":"work"}`)
	require.Equal(t, 200, status)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["is_trained"])

	status, body = s.do(t, "POST", "/predict", `{"text":"free money offer for you today"}`)
	require.Equal(t, 200, status)
	assert.Equal(t, "spam", body["candidate"])
	assert.Contains(t, body, "confidence")

	status, body = s.do(t, "GET", "/status", "")
	require.Equal(t, 200, status)
	assert.Equal(t, 2.0, body["example_count"])
	assert.Equal(t, "file", body["store"])

	status, body = s.do(t, "GET", "/examples?limit=1", "")
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 1)
	meta, _ := body["meta"].(map[string]any)
	assert.Equal(t, 2.0, meta["total"])
	assert.Equal(t, true, meta["has_more"])

	status, body = s.do(t, "GET", "/examples?offset=-1", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeValidationFailed, errorCode(body))

	status, body = s.do(t, "POST", "/reset", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "success", body["status"])

	_, body = s.do(t, "GET", "/status", "")
	assert.Equal(t, 0.0, body["example_count"])
}

func TestTrainValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing text", `{"label":"spam"}`, apperr.CodeMissingField},
		{"missing label", `{"text":"hi"}`, apperr.CodeMissingField},
		{"blank text", `{"text":"  ","label":"spam"}`, apperr.CodeMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, "POST", "/train", tt.body)
			assert.Equal(t, 400, status)
			assert.Equal(t, tt.code, errorCode(body))
		})
	}

	_, body := s.do(t, "GET", "/status", "")
	assert.Equal(t, 0.0, body["example_count"])
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "GET", "/evaluate?test_fraction=1.5", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeEvaluationParameter, errorCode(body))

	status, body = s.do(t, "GET", "/evaluate?folds=abc", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeBadRequest, errorCode(body))

	status, body = s.do(t, "GET", "/evaluate", "")
	assert.Equal(t, 409, status)
	assert.Equal(t, apperr.CodeInsufficientData, errorCode(body))

	for _, ex := range []string{
		`{"text":"win free money now","label":"spam"}`,
		`{"text":"free prize money claim","label":"spam"}`,
		`{"text":"cheap money offer free","label":"spam"}`,
		`{"text":"quarterly report attached","label":"work"}`,
		`{"text":"meeting agenda and report","label":"work"}`,
		`{"text":"project report review meeting","label":"work"}`,
	} {
		status, _ := s.do(t, "POST", "/train", ex)
		require.Equal(t, 200, status)
	}

	status, body = s.do(t, "GET", "/evaluate?test_fraction=0.34&folds=3", "")
	require.Equal(t, 200, status)
	assert.Contains(t, body, "test_accuracy")
	assert.Contains(t, body, "cross_val_scores")
}

func TestUpdateSettings(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "PUT", "/settings", `{"confidence_threshold":0.6}`)
	require.Equal(t, 200, status)
	assert.Equal(t, 0.6, body["confidence_threshold"])
	assert.Equal(t, float64(domain.DefaultMinTextLength), body["min_text_length"])

	status, body = s.do(t, "PUT", "/settings", `{"confidence_threshold":0}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, apperr.CodeValidationFailed, errorCode(body))
}

type fakeChecker struct{ err error }

func (f fakeChecker) Ping(context.Context) error { return f.err }

func TestReady(t *testing.T) {
	app := fiber.New()
	NewHealthHandler().
		AddCheck("store", fakeChecker{}).
		AddBreaker(resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("store"))).
		Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	app = fiber.New()
	NewHealthHandler().AddCheck("store", fakeChecker{err: errors.New("connection refused")}).Register(app)
	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestReadyReportsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	app := fiber.New()
	NewHealthHandler().AddRedis("redis", client).Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Checks map[string]string         `json:"checks"`
		Redis  map[string]map[string]any `json:"redis"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "healthy", body.Checks["redis"])
	assert.Contains(t, body.Redis["redis"], "total_conns")

	mr.Close()
	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestMetricsEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, nil)
	collector.ObserveClassify(domain.ReasonAccepted, 0.9, 0)

	app := fiber.New()
	NewMetricsHandler(reg, collector.Latency()).Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(raw), "labeler_predictions_total")

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics/latency", nil))
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), `"classify"`)
}
