package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/api"
	"github.com/smartsupply/agent/internal/app"
	"github.com/smartsupply/agent/internal/auth"
	"github.com/smartsupply/agent/internal/cache"
	"github.com/smartsupply/agent/internal/customersync"
	dbtestutil "github.com/smartsupply/agent/internal/database/testutil"
	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/internal/realtime"
	"github.com/smartsupply/agent/internal/remote"
	"github.com/smartsupply/agent/internal/search"
	"github.com/smartsupply/agent/pkg/response"
)

// Upstream is a stand-in for the Smart Supply API.
type Upstream struct {
	Server *httptest.Server

	mu         sync.Mutex
	role       string
	customers  []map[string]any
	categories []map[string]any
	failing    bool
	hits       map[string]int
}

func newUpstream(t *testing.T) *Upstream {
	t.Helper()

	u := &Upstream{role: "ADMIN", hits: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		if r.Header.Get("Authorization") == "" {
			writeEnvelope(w, http.StatusUnauthorized, false, "missing token", nil)
			return
		}
		u.mu.Lock()
		role := u.role
		u.mu.Unlock()
		writeEnvelope(w, http.StatusOK, true, "", map[string]any{
			"user": map[string]any{"id": "user-1", "name": "Counter", "email": "counter@smartsupply.pk", "role": role},
		})
	})
	mux.HandleFunc("/api/customers", func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		u.mu.Lock()
		defer u.mu.Unlock()
		if u.failing {
			writeEnvelope(w, http.StatusBadRequest, false, "upstream rejected the request", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, true, "", u.customers)
	})
	mux.HandleFunc("/api/customers/search", func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		q := strings.ToLower(r.URL.Query().Get("q"))
		u.mu.Lock()
		defer u.mu.Unlock()
		out := []map[string]any{}
		for _, c := range u.customers {
			if name, _ := c["name"].(string); strings.Contains(strings.ToLower(name), q) {
				out = append(out, c)
			}
		}
		writeEnvelope(w, http.StatusOK, true, "", out)
	})
	mux.HandleFunc("/api/company-setup", func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		writeEnvelope(w, http.StatusOK, true, "", map[string]any{"id": "co-1", "companyName": "Aqua Pure"})
	})
	mux.HandleFunc("/api/bottle-categories", func(w http.ResponseWriter, r *http.Request) {
		u.hit(r.URL.Path)
		u.mu.Lock()
		defer u.mu.Unlock()
		writeEnvelope(w, http.StatusOK, true, "", u.categories)
	})

	u.Server = httptest.NewServer(mux)
	t.Cleanup(u.Server.Close)
	return u
}

// SetRole changes the role reported for the logged-in user.
func (u *Upstream) SetRole(role string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.role = role
}

// SetCustomers replaces the customer directory served upstream.
func (u *Upstream) SetCustomers(customers ...map[string]any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.customers = customers
}

// SetCategories replaces the bottle categories served upstream.
func (u *Upstream) SetCategories(categories ...map[string]any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.categories = categories
}

// SetFailing makes the customer endpoint reject requests.
func (u *Upstream) SetFailing(failing bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failing = failing
}

// Hits returns how often path was requested.
func (u *Upstream) Hits(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func (u *Upstream) hit(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hits[path]++
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": success,
		"message": message,
		"data":    data,
	})
}

// Env encapsulates a fully-wired agent backed by an in-memory cache and a fake upstream API.
type Env struct {
	T        *testing.T
	Config   *app.Config
	Upstream *Upstream
	Store    *cache.CustomerStore
	Syncer   *customersync.Orchestrator
	Sessions *auth.SessionManager
	Streams  *realtime.Hub
	Router   *gin.Engine
}

// NewEnv provisions a fresh handler test environment.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	upstream := newUpstream(t)

	cfg := &app.Config{
		Server: app.ServerConfig{Host: "127.0.0.1", Port: 8765},
		Remote: app.RemoteConfig{
			BaseURL:    upstream.Server.URL + "/api",
			Timeout:    5 * time.Second,
			RetryDelay: time.Millisecond,
		},
		Sync: app.SyncConfig{Interval: 6 * time.Hour, EnabledRoles: []string{"ADMIN"}},
		Search: app.SearchConfig{
			SettleDelay:   time.Millisecond,
			FallbackDelay: 20 * time.Millisecond,
		},
		Phone: app.PhoneConfig{DefaultRegion: "PK"},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, ProbeTimeout: time.Second},
		},
	}

	mon, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mon)

	store := cache.NewCustomerStore(dbtestutil.MemoryConfig(),
		cache.WithLogger(zap.NewNop()),
		cache.WithPhoneRegion(cfg.Phone.DefaultRegion),
	)

	clientCfg := cfg.Remote.ClientConfig()
	clientCfg.Logger = zap.NewNop()
	client, err := remote.NewClient(clientCfg)
	require.NoError(t, err)

	syncer := customersync.NewOrchestrator(store, client,
		append(cfg.Sync.OrchestratorOptions(), customersync.WithLogger(zap.NewNop()))...)

	searcher := search.NewSearcher(store, client,
		append(cfg.Search.SearcherOptions(), search.WithLogger(zap.NewNop()))...)

	managerCfg := cfg.Sync.SessionManagerConfig()
	managerCfg.Logger = zap.NewNop()
	sessions := auth.NewSessionManager(client, syncer, store, managerCfg)

	streams := realtime.NewHub(searcher, store, nil)

	router, err := api.NewRouter(api.Dependencies{
		Config:     cfg,
		Store:      store,
		Syncer:     syncer,
		Searcher:   searcher,
		Sessions:   sessions,
		Streams:    streams,
		Monitoring: mon,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		streams.Close()
		sessions.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = syncer.Shutdown(ctx)
		_ = store.Close()
	})

	return &Env{
		T:        t,
		Config:   cfg,
		Upstream: upstream,
		Store:    store,
		Syncer:   syncer,
		Sessions: sessions,
		Streams:  streams,
		Router:   router,
	}
}

// Token returns a bearer token the session manager accepts.
func (e *Env) Token() string {
	e.T.Helper()
	claims := auth.Claims{
		Role: "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	require.NoError(e.T, err)
	return signed
}

// Login starts a session through the HTTP surface.
func (e *Env) Login() auth.Session {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/session/login", map[string]string{"token": e.Token()})
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var session auth.Session
	DecodeInto(e.T, resp.Data, &session)
	require.Equal(e.T, "user-1", session.User.ID)
	return session
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON-encoding body when given.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
