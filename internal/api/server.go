package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/eventbus"
	"github.com/nerrad567/input-dock-core/internal/focus"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/config"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/database"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/logging"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/input-dock-core/internal/journal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Manager  *controller.Manager
	Tracker  *focus.Tracker
	Journal  journal.Repository
	Bus      *eventbus.Bus
	MQTT     *mqtt.Client       // optional, reported in /metrics
	DB       *database.DB // optional, reported in /metrics
	Version  string
}

// Server is the HTTP API server for Input Dock Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	manager     *controller.Manager
	tracker     *focus.Tracker
	journalRepo journal.Repository
	bus         *eventbus.Bus
	mqtt        *mqtt.Client
	db          *database.DB
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	busSubs     []eventbus.Subscription
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("device manager is required")
	}
	// Journal, tracker, MQTT, and DB are optional; their endpoints degrade.

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		manager:     deps.Manager,
		tracker:     deps.Tracker,
		journalRepo: deps.Journal,
		bus:         deps.Bus,
		mqtt:        deps.MQTT,
		db:          deps.DB,
		version:     deps.Version,
		startTime:   time.Now(),
		tickets:     newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to bus events
// for real-time WebSocket broadcast, and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Start periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	// Relay device and focus events to WebSocket clients
	s.subscribeBusEvents()

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	for _, sub := range s.busSubs {
		sub.Cancel()
	}
	s.busSubs = nil

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
