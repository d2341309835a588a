package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feasopt/feasopt/internal/config"
	"github.com/feasopt/feasopt/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Optimization.InitialDesignSize = 4
	cfg.Optimization.MaxIterations = 5
	cfg.Optimization.MaxDuration = time.Minute
	cfg.Optimization.SampleAttempts = 1000
	cfg.Optimization.AcqSeeds = 32
	return cfg
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(logging.ErrorLevel, io.Discard)
}

func newTestServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()

	srv := NewServer(testConfig(t), testLogger(t))
	t.Cleanup(func() { _ = srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	assert.NotNil(t, srv)
	assert.NoError(t, srv.Close())
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"GET", "/api/v1/objectives", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // mounted by main, not this package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if tt.shouldExist && rr.Code == http.StatusNotFound {
				t.Errorf("route %s %s should exist but returned 404", tt.method, tt.path)
			}
			if !tt.shouldExist && rr.Code != http.StatusNotFound {
				t.Errorf("route %s %s should not exist, got %d", tt.method, tt.path, rr.Code)
			}
		})
	}
}

func TestListObjectives(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/objectives", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Objectives []string `json:"objectives"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Objectives, "sphere")
	assert.Contains(t, resp.Objectives, "six_hump_camel")
}

func TestOptimizeRejectsBadRequests(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"objective": `},
		{"unknown objective", `{"objective": "nope", "variables": [{"name": "x", "type": "continuous", "min": 0, "max": 1}]}`},
		{
			"wrong dimensionality",
			`{"objective": "six_hump_camel", "variables": [{"name": "x", "type": "continuous", "min": 0, "max": 1}]}`,
		},
		{
			"constraint references missing dimension",
			`{"objective": "sphere",
			  "variables": [{"name": "x", "type": "continuous", "min": 0, "max": 1}],
			  "constraints": [{"name": "bad", "expr": {"op": "var", "index": 7}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var resp map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func startSphereJob(t *testing.T, r chi.Router) string {
	t.Helper()

	body := `{
		"objective": "sphere",
		"variables": [
			{"name": "x1", "type": "continuous", "min": -1, "max": 1},
			{"name": "x2", "type": "continuous", "min": -1, "max": 1}
		],
		"initial_design_size": 3,
		"max_iterations": 2,
		"seed": 7
	}`
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp struct {
		ID     string `json:"optimization_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	return resp.ID
}

func pollStatus(t *testing.T, r chi.Router, id string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest("GET", "/api/v1/status/"+id, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))

		switch resp["status"] {
		case "completed", "failed", "cancelled":
			return resp
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("job did not finish before deadline")
	return nil
}

func TestOptimizeJobLifecycle(t *testing.T) {
	_, r := newTestServer(t)

	id := startSphereJob(t, r)
	resp := pollStatus(t, r, id)

	require.Equal(t, "completed", resp["status"])
	assert.NotNil(t, resp["best_solution"])
	assert.NotNil(t, resp["end_time"])
	assert.Equal(t, float64(2), resp["iterations"])

	history, ok := resp["history"].([]interface{})
	require.True(t, ok, "status must include the evaluation history")
	assert.Len(t, history, 3+2)
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/status/opt_missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelLifecycle(t *testing.T) {
	_, r := newTestServer(t)

	t.Run("unknown job", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/v1/optimization/opt_missing", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("finished job cannot be cancelled", func(t *testing.T) {
		id := startSphereJob(t, r)
		pollStatus(t, r, id)

		req := httptest.NewRequest("DELETE", "/api/v1/optimization/"+id, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestJSONRPC(t *testing.T) {
	_, r := newTestServer(t)

	call := func(body string) map[string]interface{} {
		req := httptest.NewRequest("POST", "/rpc", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp map[string]interface{}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		return resp
	}

	rpcErrorCode := func(resp map[string]interface{}) float64 {
		errObj, ok := resp["error"].(map[string]interface{})
		require.True(t, ok, "expected a JSON-RPC error object, got %v", resp)
		return errObj["code"].(float64)
	}

	t.Run("parse error", func(t *testing.T) {
		resp := call(`{"jsonrpc": `)
		assert.Equal(t, float64(-32700), rpcErrorCode(resp))
	})

	t.Run("invalid version", func(t *testing.T) {
		resp := call(`{"jsonrpc": "1.0", "id": 1, "method": "optimization.start"}`)
		assert.Equal(t, float64(-32600), rpcErrorCode(resp))
	})

	t.Run("method not found", func(t *testing.T) {
		resp := call(`{"jsonrpc": "2.0", "id": 1, "method": "optimization.explode"}`)
		assert.Equal(t, float64(-32601), rpcErrorCode(resp))
	})

	t.Run("status of unknown job", func(t *testing.T) {
		resp := call(`{"jsonrpc": "2.0", "id": 2, "method": "optimization.status",
			"params": {"optimization_id": "opt_missing"}}`)
		assert.Equal(t, float64(-32000), rpcErrorCode(resp))
	})

	t.Run("start and status", func(t *testing.T) {
		resp := call(`{"jsonrpc": "2.0", "id": 3, "method": "optimization.start", "params": {
			"objective": "sphere",
			"variables": [{"name": "x", "type": "continuous", "min": -1, "max": 1}],
			"initial_design_size": 2,
			"max_iterations": 1,
			"seed": 5
		}}`)
		result, ok := resp["result"].(map[string]interface{})
		require.True(t, ok, "expected a result, got %v", resp)
		id, _ := result["optimization_id"].(string)
		require.NotEmpty(t, id)

		final := pollStatus(t, r, id)
		assert.Equal(t, "completed", final["status"])
	})
}

func TestRespondWithError(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		code    int
		message string
		id      interface{}
	}{
		{"string id", -32602, "Invalid params", "123"},
		{"nil id", -32000, "server error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, http.StatusOK, rr.Code, "JSON-RPC errors ride on HTTP 200")

			var response map[string]interface{}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))

			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain an error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.Equal(t, tt.id, response["id"])
		})
	}
}
