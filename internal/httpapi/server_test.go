package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plughost/plughost/internal/manager"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	mgr, _, err := manager.Init(path, nil)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	return New(mgr, nil, "127.0.0.1:0", nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doRequest(t *testing.T, s *Server, method, path string) (*http.Response, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Result(), env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, env := doRequest(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	resp, env = doRequest(t, s, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestListPlugins_EmptyByDefault(t *testing.T) {
	s := newTestServer(t)
	resp, env := doRequest(t, s, http.MethodGet, "/api/v1/plugins")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	var plugins []pluginView
	require.NoError(t, json.Unmarshal(env.Data, &plugins))
	assert.Empty(t, plugins)
}

func TestExecutePlugin_UnknownReturns404(t *testing.T) {
	s := newTestServer(t)
	resp, env := doRequest(t, s, http.MethodPost, "/api/v1/plugins/ghost/execute")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestEnablePlugin_UnknownReturns404(t *testing.T) {
	s := newTestServer(t)
	resp, _ := doRequest(t, s, http.MethodPut, "/api/v1/plugins/ghost/enable")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRescan(t *testing.T) {
	s := newTestServer(t)
	resp, env := doRequest(t, s, http.MethodPost, "/api/v1/rescan")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
}

func TestHistory_DisabledReturnsEmptyList(t *testing.T) {
	s := newTestServer(t)
	resp, env := doRequest(t, s, http.MethodGet, "/api/v1/history")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var records []interface{}
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Empty(t, records)
}
