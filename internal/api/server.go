package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openhab/openhab-addons-sub192/internal/audit"
	"github.com/openhab/openhab-addons-sub192/internal/bridges/nobo"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/config"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/database"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/logging"
	"github.com/openhab/openhab-addons-sub192/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HubBridge is the part of *nobo.Bridge the API reads and commands through.
type HubBridge interface {
	State() *nobo.State
	Execute(ctx context.Context, cmd nobo.CommandMessage) (string, error)
	GetMetrics() nobo.BridgeMetrics
}

// StateSource delivers the bridge's MQTT state publications for the
// WebSocket relay. *mqtt.Client implements it.
type StateSource interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
	SubscriptionCount() int
}

// CommandLog records commands and lists them back. *audit.SQLiteRepository
// implements it.
type CommandLog interface {
	Create(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// DatabaseInfo reports pool statistics and the applied schema.
// *database.DB implements it.
type DatabaseInfo interface {
	Stats() sql.DBStats
	SchemaStatus(ctx context.Context) (database.SchemaStatus, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Bridge   HubBridge
	MQTT     StateSource     // Optional: enables the WebSocket relay
	DB       DatabaseInfo    // Optional: adds pool and schema stats to /metrics
	Commands CommandLog      // Optional: enables command history
	Version  string

	// Location is the time zone used to evaluate zone status. Default: time.Local.
	Location *time.Location
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	bridge    HubBridge
	mqtt      StateSource
	db        DatabaseInfo
	commands  CommandLog
	version   string
	location  *time.Location
	now       func() time.Time
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("hub bridge is required")
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		commands:  deps.Commands,
		version:   deps.Version,
		location:  deps.Location,
		now:       time.Now,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to the bridge's state topics for
// the WebSocket relay, and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be created (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for WebSocket", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
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
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
