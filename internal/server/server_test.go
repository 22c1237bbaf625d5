package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/config"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/logging"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/metrics"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/optimization"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/record"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/study"
)

const scenePath = "../../configs/ikhana/Ikhana_scene_input.json"

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	cfg, err := config.LoadFrom(map[string]string{
		"ENV":              "test",
		"OPT_WORKER_COUNT": "2",
	})
	require.NoError(t, err)
	return cfg
}

// testLogger creates a test logger
func testLogger() *logging.Logger {
	return logging.New(logging.DebugLevel, io.Discard)
}

// fixedPoint returns its starting point unchanged.
var fixedPoint = optimization.MinimizerFunc(func(_ context.Context, _ optimization.ConstrainedProblem, x0 []float64) (*optimization.OptimizationResult, error) {
	return &optimization.OptimizationResult{
		BestSolution: &optimization.Solution{Parameters: append([]float64(nil), x0...)},
		Iterations:   1,
		Converged:    true,
		Message:      "fixed point",
	}, nil
})

// blocking waits for cancellation.
func blocking(started chan<- struct{}) optimization.Minimizer {
	var once sync.Once
	return optimization.MinimizerFunc(func(ctx context.Context, _ optimization.ConstrainedProblem, _ []float64) (*optimization.OptimizationResult, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func newTestServer(t *testing.T, opts ...Option) (*Server, chi.Router) {
	t.Helper()
	srv, err := NewServer(testConfig(t), testLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))

	var out map[string]interface{}
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	}
	return rr.Code, out
}

func rpc(t *testing.T, r http.Handler, method string, params ...interface{}) map[string]interface{} {
	t.Helper()
	_, out := do(t, r, http.MethodPost, "/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	return out
}

func waitStatus(t *testing.T, r http.Handler, id, want string) map[string]interface{} {
	t.Helper()
	var last map[string]interface{}
	require.Eventually(t, func() bool {
		_, last = do(t, r, http.MethodGet, "/api/v1/status/"+id, nil)
		return last["status"] == want
	}, 30*time.Second, 10*time.Millisecond, "study %s never reached %s", id, want)
	return last
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger())
	require.NoError(t, err)
	assert.NotNil(t, srv.minimizer)

	cfg := testConfig(t)
	cfg.Optimization.Method = "cobyla"
	_, err = NewServer(cfg, testLogger())
	assert.Error(t, err)
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newTestServer(t, WithMinimizer(fixedPoint))

	// Test if routes are registered
	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/trim", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/study/123", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false},     // Not registered by server package
		{"GET", "/nonexistent", false}, // Should not exist
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			// Unknown ids also answer 404, so only chi's plain-text 404 marks a missing route
			missing := rr.Code == http.StatusNotFound && rr.Header().Get("Content-Type") != "application/json"
			assert.Equal(t, !tt.shouldExist, missing)
		})
	}
}

func TestTrimJob(t *testing.T) {
	store, err := record.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	dir := t.TempDir()

	_, r := newTestServer(t,
		WithMinimizer(fixedPoint),
		WithStore(store),
		WithWriter(record.NewWriter(dir, false)),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)

	code, out := do(t, r, http.MethodPost, "/api/v1/trim", map[string]interface{}{
		"scene":          scenePath,
		"control_points": 2,
		"target_cl":      0.5,
		"refine":         false,
	})
	require.Equal(t, http.StatusAccepted, code)
	id, _ := out["study_id"].(string)
	require.NotEmpty(t, id)

	status := waitStatus(t, r, id, StatusCompleted)
	assert.Equal(t, KindTrim, status["kind"])
	assert.Equal(t, 1.0, status["progress"])
	assert.NotEmpty(t, status["end_time"])

	results, ok := status["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 1)
	res := results[0].(map[string]interface{})
	assert.Equal(t, 0.5, res["target_cl"])
	assert.Len(t, res["x"], 4)

	runs, err := store.Runs(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].ControlPoints)

	files, err := filepath.Glob(filepath.Join(dir, id, "F_M_*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSweepJobOverRPC(t *testing.T) {
	dir := t.TempDir()
	_, r := newTestServer(t, WithMinimizer(fixedPoint), WithWriter(record.NewWriter(dir, false)))

	out := rpc(t, r, "study.start", map[string]interface{}{
		"scene":          scenePath,
		"control_points": 0,
		"refine":         false,
		"cl":             map[string]float64{"start": 0.3, "stop": 0.5, "step": 0.1},
	})
	require.Nil(t, out["error"])
	result := out["result"].(map[string]interface{})
	id := result["study_id"].(string)
	assert.Equal(t, StatusPending, result["status"])

	var status map[string]interface{}
	require.Eventually(t, func() bool {
		status = rpc(t, r, "study.status", map[string]string{"study_id": id})["result"].(map[string]interface{})
		return status["status"] == StatusCompleted
	}, 30*time.Second, 10*time.Millisecond)

	assert.Equal(t, KindSweep, status["kind"])
	// three up runs and two down runs
	assert.Equal(t, 5.0, status["total"])
	assert.Equal(t, 5.0, status["completed"])
	assert.Len(t, status["results"], 3)

	for _, name := range []string{record.ResultsTable, record.ChangedTable, record.UpName(record.ResultsTable)} {
		_, err := os.Stat(filepath.Join(dir, id, name))
		assert.NoError(t, err, name)
	}

	out = rpc(t, r, "study.cancel", map[string]string{"study_id": id})
	errObj := out["error"].(map[string]interface{})
	assert.Equal(t, -32000.0, errObj["code"])
	assert.Contains(t, errObj["message"], "completed")
}

func TestCancelStudy(t *testing.T) {
	started := make(chan struct{})
	_, r := newTestServer(t, WithMinimizer(blocking(started)))

	code, out := do(t, r, http.MethodPost, "/api/v1/trim", map[string]interface{}{
		"scene":     scenePath,
		"target_cl": 0.4,
	})
	require.Equal(t, http.StatusAccepted, code)
	id := out["study_id"].(string)

	select {
	case <-started:
	case <-time.After(30 * time.Second):
		t.Fatal("minimizer never started")
	}
	waitStatus(t, r, id, StatusRunning)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/study/"+id, nil)
	assert.Equal(t, http.StatusOK, code)

	status := waitStatus(t, r, id, StatusCancelled)
	assert.NotEmpty(t, status["end_time"])

	code, _ = do(t, r, http.MethodDelete, "/api/v1/study/"+id, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, r, http.MethodDelete, "/api/v1/study/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStartValidation(t *testing.T) {
	_, r := newTestServer(t, WithMinimizer(fixedPoint))

	tests := map[string]map[string]interface{}{
		"missing scene": {"target_cl": 0.5},
		"unknown field": {"scene": scenePath, "flaps": 3},
		"bad drag type": {"scene": scenePath, "target_cl": 0.5, "drag_type": "Form"},
		"bad guess":     {"scene": scenePath, "target_cl": 0.5, "initial_guess": []float64{1}},
		"bad range":     {"scene": scenePath, "cl": map[string]float64{"start": 0.5, "stop": 0.1, "step": 0.1}},
		"no scene file": {"scene": "missing.json", "target_cl": 0.5},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			code, out := do(t, r, http.MethodPost, "/api/v1/trim", body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := newTestServer(t, WithMinimizer(fixedPoint))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString("{")))
	var parse map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &parse))
	assert.Equal(t, -32700.0, parse["error"].(map[string]interface{})["code"])

	tests := []struct {
		name string
		body map[string]interface{}
		code float64
	}{
		{"version", map[string]interface{}{"jsonrpc": "1.0", "id": 1, "method": "study.status"}, -32600},
		{"no params", map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "study.status"}, -32602},
		{"unknown method", map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "study.pause", "params": []interface{}{map[string]string{}}}, -32601},
		{"unknown study", map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "study.status", "params": []interface{}{map[string]string{"study_id": "nope"}}}, -32000},
		{"missing id", map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "study.cancel", "params": []interface{}{map[string]string{}}}, -32000},
		{"params not object", map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": "study.status", "params": []interface{}{42}}, -32000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, r, http.MethodPost, "/rpc", tt.body)
			assert.Equal(t, http.StatusOK, code)
			errObj, ok := out["error"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tt.code, errObj["code"])
		})
	}
}

func TestClose(t *testing.T) {
	started := make(chan struct{})
	srv, err := NewServer(testConfig(t), testLogger(), WithMinimizer(blocking(started)))
	require.NoError(t, err)

	req := StudyRequest{Config: study.DefaultConfig()}
	req.Scene = scenePath
	cl := 0.3
	req.TargetCL = &cl
	_, err = srv.startStudy(req)
	require.NoError(t, err)
	<-started

	done := make(chan error)
	go func() { done <- srv.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err, "Close should not return an error")
	case <-time.After(30 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestRespondWithError(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger())
	require.NoError(t, err)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{"valid error response", -32000, "invalid input", "123", "123"},
		{"nil id", -32700, "Parse error", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			// respondWithError writes 200 with the error in the body
			assert.Equal(t, http.StatusOK, rr.Code)

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, "2.0", response["jsonrpc"])
			assert.Equal(t, tt.expectedID, response["id"])
		})
	}
}
