package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lawnchairsociety/wfcgen/internal/config"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.RequestsPerMinute = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, withStore bool) *Server {
	t.Helper()
	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}
	s := New(cfg, st, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func assertCheckerboard(t *testing.T, tiles []string) {
	t.Helper()
	for r, row := range tiles {
		for c := range row {
			if c+1 < len(row) {
				assert.NotEqual(t, row[c], row[c+1], "row %d col %d", r, c)
			}
			if r+1 < len(tiles) {
				assert.NotEqual(t, row[c], tiles[r+1][c], "row %d col %d", r, c)
			}
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	w := doJSON(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","store":false}`, w.Body.String())
}

func TestGenerateCheckerboard(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", GenerateRequest{
		Sample: []string{"AB", "BA"},
		Rows:   4,
		Cols:   5,
		Seed:   42,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(42), resp.Seed)
	assert.Equal(t, 20, resp.Steps)
	assert.Empty(t, resp.ID)
	require.Len(t, resp.Tiles, 4)
	assertCheckerboard(t, resp.Tiles)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxCells = 100
	s := newTestServer(t, cfg, false)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing rows", map[string]any{"sample": []string{"AB"}, "cols": 3}, "INVALID_REQUEST"},
		{"empty sample row", GenerateRequest{Sample: []string{""}, Rows: 2, Cols: 2}, "INVALID_REQUEST"},
		{"ragged sample", GenerateRequest{Sample: []string{"AB", "A"}, Rows: 2, Cols: 2}, "INVALID_SAMPLE"},
		{"too large", GenerateRequest{Sample: []string{"AB"}, Rows: 20, Cols: 20}, "GRID_TOO_LARGE"},
		{"side over bound", GenerateRequest{Sample: []string{"AB"}, Rows: 5000, Cols: 1}, "INVALID_REQUEST"},
		{"bad propagation", GenerateRequest{Sample: []string{"AB"}, Rows: 2, Cols: 2, Propagation: "deep"}, "INVALID_OPTION"},
		{"malformed seed", GenerateRequest{Sample: []string{"AB"}, Rows: 2, Cols: 2, Seeds: []string{"0,0"}}, "INVALID_SEED"},
		{"seed out of bounds", GenerateRequest{Sample: []string{"AB"}, Rows: 2, Cols: 2, Seeds: []string{"9,9,A"}}, "INVALID_SEED"},
		{"seed unknown tile", GenerateRequest{Sample: []string{"AB"}, Rows: 2, Cols: 2, Seeds: []string{"0,0,Z"}}, "INVALID_SEED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/v1/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestPrepareRejectsOverflowingGrid(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	// rows*cols wraps around int; the cell limit must still reject it
	for _, dims := range [][2]int{
		{math.MaxInt/2 + 1, 2},
		{math.MaxInt, math.MaxInt},
		{math.MaxInt / 1000, 3000},
	} {
		_, err := s.prepare(&GenerateRequest{Sample: []string{"AB"}, Rows: dims[0], Cols: dims[1]})
		require.Error(t, err, "%dx%d", dims[0], dims[1])
		_, code := classify(err)
		assert.Equal(t, "GRID_TOO_LARGE", code, "%dx%d", dims[0], dims[1])
	}
}

func TestGenerateSeedContradiction(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", GenerateRequest{
		Sample: []string{"AB", "BA"},
		Rows:   2,
		Cols:   2,
		Seeds:  []string{"0,0,A", "0,1,A"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "CONTRADICTION", resp.Code)
	assert.Nil(t, resp.Result)
}

func TestGenerateNoSolution(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	// A lone tile has no adjacency rules, so any neighbor empties out
	w := doJSON(t, s, http.MethodPost, "/v1/generate", GenerateRequest{
		Sample:      []string{"A"},
		Rows:        1,
		Cols:        2,
		Seed:        5,
		MaxAttempts: 2,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, "NO_SOLUTION", resp.Code)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.Attempts)
	assert.False(t, resp.Result.Success)
	require.Len(t, resp.Result.Conflicts, 1)
	assert.Contains(t, []string{"left", "right"}, resp.Result.Conflicts[0].Dir)
	assert.Contains(t, resp.Result.Tiles[0], "?")
}

func TestGenerateStepBound(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", GenerateRequest{
		Sample:   []string{"AA", "AA"},
		Rows:     3,
		Cols:     3,
		MaxSteps: 2,
	})
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "TIMEOUT", resp.Code)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 2, resp.Result.Steps)
}

func TestGenerateSaveAndListRuns(t *testing.T) {
	s := newTestServer(t, testConfig(), true)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", GenerateRequest{
		Name:   "checker",
		Sample: []string{"A B", "B A"},
		Rows:   3,
		Cols:   3,
		Seed:   7,
		Save:   true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var gen GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))
	require.NotEmpty(t, gen.ID)

	w = doJSON(t, s, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []RunResponse `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, gen.ID, list.Runs[0].ID)
	assert.Equal(t, "checker", list.Runs[0].SampleName)
	assert.Equal(t, store.Fingerprint([]string{"AB", "BA"}), list.Runs[0].SampleHash)
	assert.Empty(t, list.Runs[0].Tiles)

	w = doJSON(t, s, http.MethodGet, "/v1/runs/"+gen.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, gen.Tiles, run.Tiles)
	assert.Equal(t, int64(7), run.Seed)
	assert.Equal(t, "single", run.Propagation)

	w = doJSON(t, s, http.MethodGet, "/v1/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)

	w = doJSON(t, s, http.MethodGet, "/v1/runs?limit=9999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunsWithoutStore(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	for _, path := range []string{"/v1/runs", "/v1/runs/abc"} {
		w := doJSON(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	w := doJSON(t, s, http.MethodPost, "/v1/generate", GenerateRequest{Sample: []string{"AB"}, Rows: 1, Cols: 2, Save: true})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "STORE_DISABLED", decodeError(t, w).Code)
}

func TestGenerateRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RequestsPerMinute = 1
	s := newTestServer(t, cfg, false)

	body := GenerateRequest{Sample: []string{"AB", "BA"}, Rows: 2, Cols: 2, Seed: 1}
	assert.Equal(t, http.StatusOK, doJSON(t, s, http.MethodPost, "/v1/generate", body).Code)

	w := doJSON(t, s, http.MethodPost, "/v1/generate", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, w).Code)

	// Read endpoints are not limited
	assert.Equal(t, http.StatusOK, doJSON(t, s, http.MethodGet, "/healthz", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testConfig(), false)

	doJSON(t, s, http.MethodGet, "/healthz", nil)
	w := doJSON(t, s, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "wfc_http_requests_total"))
}
