package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/weddingcue-core/internal/audit"
	"github.com/nerrad567/weddingcue-core/internal/engine"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/config"
	"github.com/nerrad567/weddingcue-core/internal/infrastructure/logging"
	"github.com/nerrad567/weddingcue-core/internal/rehearsal"
	"github.com/nerrad567/weddingcue-core/internal/sweep"
	"github.com/nerrad567/weddingcue-core/internal/tracker"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionChecker reports whether an optional transport is up.
// Satisfied by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// DBStatsProvider exposes connection pool statistics.
// Satisfied by *database.DB.
type DBStatsProvider interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Engine    *engine.Engine
	Tracker   *tracker.Tracker      // nil builds one on Engine
	Rehearsal *rehearsal.Controller // nil builds one on Engine
	Sweeper   *sweep.Sweeper        // nil builds one with an in-process locker
	AuditRepo audit.Repository      // nil disables the audit trail
	Hub       *Hub                  // If set, the server uses this hub instead of creating its own
	MQTT      ConnectionChecker     // optional, reported by /metrics
	DB        DBStatsProvider       // optional, reported by /metrics
	Version   string
}

// Server is the HTTP API server for WeddingCue.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	engine    *engine.Engine
	tracker   *tracker.Tracker
	rehearsal *rehearsal.Controller
	sweeper   *sweep.Sweeper
	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog
	mqtt      ConnectionChecker
	db        DBStatsProvider
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
	drained     chan struct{}      // closed when the audit drain exits
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, engine)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		engine:    deps.Engine,
		tracker:   deps.Tracker,
		rehearsal: deps.Rehearsal,
		sweeper:   deps.Sweeper,
		auditRepo: deps.AuditRepo,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}

	apiLog := deps.Logger.Component("api")
	if s.tracker == nil {
		s.tracker = tracker.New(deps.Engine, apiLog)
	}
	if s.rehearsal == nil {
		s.rehearsal = rehearsal.NewController(deps.Engine, apiLog)
	}
	if s.sweeper == nil {
		s.sweeper = sweep.New(deps.Engine, nil, 0, 0, apiLog)
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	// Use the externally-provided hub when the engine already publishes to it.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub, for wiring into the engine's notify fan-out.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wired router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the audit writer, then launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	s.startBackground(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBackground runs the hub (unless injected) and the audit drain.
func (s *Server) startBackground(ctx context.Context) {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	if s.auditCh != nil {
		s.drained = make(chan struct{})
		go func() {
			defer close(s.drained)
			s.drainAuditLog(srvCtx)
		}()
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then flushes queued audit entries.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil && s.cancel == nil {
		return nil
	}

	var shutdownErr error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutting down API server: %w", err)
		}
	}

	// Stop hub and audit drain after handlers are done enqueueing.
	if s.cancel != nil {
		s.cancel()
	}
	if s.drained != nil {
		<-s.drained
	}
	return shutdownErr
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
