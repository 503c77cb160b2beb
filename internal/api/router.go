package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/app"
	"github.com/smartsupply/agent/internal/handlers"
	"github.com/smartsupply/agent/internal/middleware"
	"github.com/smartsupply/agent/internal/monitoring"
)

// Store is the local cache as seen by the HTTP surface.
type Store interface {
	handlers.CustomerStore
	handlers.PriceStore
}

// Dependencies carries the components the router serves.
type Dependencies struct {
	Config     *app.Config
	Store      Store
	Syncer     handlers.Syncer
	Searcher   handlers.LocalSearcher
	Sessions   handlers.SessionService
	Streams    handlers.StreamServer
	Monitoring *monitoring.Module
}

func (d Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Store == nil:
		return fmt.Errorf("customer store must be provided")
	case d.Syncer == nil:
		return fmt.Errorf("customer syncer must be provided")
	case d.Searcher == nil:
		return fmt.Errorf("searcher must be provided")
	case d.Sessions == nil:
		return fmt.Errorf("session manager must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the agent's routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	if cfg.Server.RateLimit.PerSecond > 0 {
		r.Use(middleware.RateLimit(cfg.Server.RateLimit.PerSecond, cfg.Server.RateLimit.Burst))
	}

	registerHealthRoutes(r, cfg, deps.Monitoring)
	registerMetricsRoute(r, cfg, deps.Monitoring)

	requireSession := middleware.RequireSession(deps.Sessions)

	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	session := r.Group("/api/session")
	{
		session.GET("", sessionHandler.Current)
		session.POST("/login", sessionHandler.Login)
		session.POST("/logout", sessionHandler.Logout)
	}

	api := r.Group("/api")
	api.Use(requireSession)

	registerCustomerRoutes(api, handlers.NewCustomerHandler(deps.Store, deps.Syncer, deps.Searcher))
	registerPriceRoutes(api, handlers.NewPriceHandler(deps.Store))
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, cfg))

	if deps.Streams != nil {
		streamHandler := handlers.NewSearchStreamHandler(deps.Streams)
		r.GET("/ws/customer-search", requireSession, streamHandler.Stream)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if mon == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(mon.Handler()))
}
