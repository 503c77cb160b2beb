package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/smartsupply/agent/internal/api"
	"github.com/smartsupply/agent/internal/app"
	"github.com/smartsupply/agent/internal/handlers/testutil"
	"github.com/smartsupply/agent/internal/search"
)

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := api.NewRouter(api.Dependencies{})
	require.Error(t, err)

	_, err = api.NewRouter(api.Dependencies{Config: &app.Config{}})
	require.Error(t, err)
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), "checks")

	for _, path := range []string{"/api/customers", "/api/bottle-prices", "/api/customers/sync/status", "/api/monitoring/summary"} {
		resp = env.Request(http.MethodGet, path, nil)
		require.Equal(t, http.StatusUnauthorized, resp.Code, path)
	}

	resp = env.Request(http.MethodGet, "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	env.Login()

	resp = env.Request(http.MethodGet, "/api/monitoring/summary", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	metrics := env.Request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(),
		`smartsupply_api_latency_seconds_count{method="GET",path="/health",status="200"}`)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil)
	require.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, resp.Header().Get("X-Request-ID"))
}

func TestRouter_SearchStream(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Upstream.SetCustomers(map[string]any{"id": "c1", "name": "Ahmed Khan", "phone": "03001234567"})

	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/customer-search"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	env.Login()
	require.Eventually(t, func() bool {
		count, err := env.Store.Count(t.Context())
		return err == nil && count == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "query", "query": "khan"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var frame struct {
		Event string        `json:"event"`
		Data  search.Update `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "results", frame.Event)
	require.Equal(t, search.SourceLocal, frame.Data.Source)
	require.Len(t, frame.Data.Customers, 1)

	// plain HTTP on the stream path is refused
	plain := env.Request(http.MethodGet, "/ws/customer-search", nil)
	require.Equal(t, http.StatusBadRequest, plain.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(plain.Body.Bytes(), &body))
	require.Equal(t, false, body["success"])
}
