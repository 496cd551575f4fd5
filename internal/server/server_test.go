package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/crfsearch/internal/config"
	"github.com/copyleftdev/crfsearch/internal/explore"
	"github.com/copyleftdev/crfsearch/internal/logging"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.Search.MinParam = 10
	cfg.Search.MaxParam = 51
	cfg.Search.InitialParam = 18
	return cfg
}

func testLogger() *logging.Logger {
	return logging.New(logging.ErrorLevel, io.Discard)
}

// blockingEngine completes when released, so tests control the job's
// lifecycle deterministically.
type blockingEngine struct {
	release chan struct{}
	result  *explore.Result
	err     error
}

func (e *blockingEngine) Run(ctx context.Context, _ Request) (*explore.Result, error) {
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.result, e.err
}

func newTestServer(t *testing.T, engine Engine) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(testConfig(t), testLogger(), engine)
	r := chi.NewRouter()
	s.RegisterRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { s.Close() })
	return s, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func waitForStatus(t *testing.T, ts *httptest.Server, id, want string) map[string]interface{} {
	t.Helper()
	var last map[string]interface{}
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/v1/status/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		last = body
		return last["status"] == want
	}, 2*time.Second, 10*time.Millisecond, "exploration never reached status %q, last: %v", want, last)
	return last
}

func TestExploreEndpoint(t *testing.T) {
	engine := &blockingEngine{
		result: &explore.Result{
			OptimalParam: 21.5,
			OutputSize:   800,
			Pass:         true,
			Confidence:   0.87,
		},
	}
	_, ts := newTestServer(t, engine)

	resp := postJSON(t, ts.URL+"/api/v1/explore", Request{
		Input:    "/videos/clip.mkv",
		Strategy: "precise_quality_match_compress",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody(t, resp)
	id, _ := body["exploration_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "pending", body["status"])

	status := waitForStatus(t, ts, id, "completed")
	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 21.5, result["optimal_param"], 1e-9)
	assert.Equal(t, true, result["pass"])
}

func TestExploreValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing input", req: Request{Strategy: "compress_only"}},
		{name: "missing strategy", req: Request{Input: "/videos/clip.mkv"}},
		{name: "unknown strategy", req: Request{Input: "/videos/clip.mkv", Strategy: "binary-chop"}},
	}

	_, ts := newTestServer(t, &blockingEngine{result: &explore.Result{}})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/v1/explore", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestStatusNotFound(t *testing.T) {
	_, ts := newTestServer(t, &blockingEngine{})

	resp, err := http.Get(ts.URL + "/api/v1/status/no-such-id")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestExplorationFailure(t *testing.T) {
	engine := &blockingEngine{err: fmt.Errorf("encoder exploded")}
	_, ts := newTestServer(t, engine)

	resp := postJSON(t, ts.URL+"/api/v1/explore", Request{
		Input: "/videos/clip.mkv", Strategy: "compress_only",
	})
	body := decodeBody(t, resp)
	id := body["exploration_id"].(string)

	status := waitForStatus(t, ts, id, "failed")
	assert.Contains(t, status["error"], "encoder exploded")
}

func TestCancelExploration(t *testing.T) {
	engine := &blockingEngine{release: make(chan struct{}), result: &explore.Result{Pass: true}}
	_, ts := newTestServer(t, engine)

	resp := postJSON(t, ts.URL+"/api/v1/explore", Request{
		Input: "/videos/clip.mkv", Strategy: "compress_only",
	})
	id := decodeBody(t, resp)["exploration_id"].(string)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/exploration/"+id, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, delResp.StatusCode)
	delResp.Body.Close()

	status := waitForStatus(t, ts, id, "cancelled")

	// A late completion must not overwrite the cancelled state.
	close(engine.release)
	time.Sleep(50 * time.Millisecond)
	status = waitForStatus(t, ts, id, "cancelled")
	_, hasResult := status["result"]
	assert.False(t, hasResult)

	// Terminal states cannot be cancelled again.
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/exploration/"+id, nil)
	require.NoError(t, err)
	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, delResp.StatusCode)
	delResp.Body.Close()
}

func TestJSONRPCStart(t *testing.T) {
	engine := &blockingEngine{result: &explore.Result{Pass: true}}
	_, ts := newTestServer(t, engine)

	resp := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "exploration.start",
		"params": []interface{}{map[string]interface{}{
			"input":    "/videos/clip.mkv",
			"strategy": "size_only",
		}},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "2.0", body["jsonrpc"])
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, result["exploration_id"])
}

func TestJSONRPCErrors(t *testing.T) {
	_, ts := newTestServer(t, &blockingEngine{})

	t.Run("wrong version", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
			"jsonrpc": "1.0", "id": 1, "method": "exploration.start",
		})
		body := decodeBody(t, resp)
		rpcErr, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.InDelta(t, -32600, rpcErr["code"], 1e-9)
	})

	t.Run("unknown method", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
			"jsonrpc": "2.0", "id": 2, "method": "exploration.optimize",
		})
		body := decodeBody(t, resp)
		rpcErr, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.InDelta(t, -32601, rpcErr["code"], 1e-9)
	})

	t.Run("missing params", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/rpc", map[string]interface{}{
			"jsonrpc": "2.0", "id": 3, "method": "exploration.status",
		})
		body := decodeBody(t, resp)
		rpcErr, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.InDelta(t, -32000, rpcErr["code"], 1e-9)
	})
}
