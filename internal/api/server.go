package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/greenhouse-catalog/internal/catalog"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/logging"
	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Listener timeouts used when Deps leaves them zero.
const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Deps holds the dependencies required by the API server.
//
// Config supplies the bind address; the timeouts come from the caller
// (config.Config.GetReadTimeout and friends in the catalog binary).
type Deps struct {
	Config       config.APIConfig
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Logger       *logging.Logger
	Store        *catalog.Store
	MQTT         *mqtt.Client // optional, only reported in /metrics
	Version      string
}

// Server is the HTTP registry.
//
// It manages the HTTP listener, routes and middleware. The server is created
// with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	read      time.Duration
	write     time.Duration
	idle      time.Duration
	logger    *logging.Logger
	store     *catalog.Store
	mqtt      *mqtt.Client
	version   string
	startTime time.Time
	server    *http.Server
	addr      net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, store)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}

	return &Server{
		cfg:       deps.Config,
		read:      orDefault(deps.ReadTimeout, defaultReadTimeout),
		write:     orDefault(deps.WriteTimeout, defaultWriteTimeout),
		idle:      orDefault(deps.IdleTimeout, defaultIdleTimeout),
		logger:    deps.Logger,
		store:     deps.Store,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Start binds the listener and serves requests in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.read,
		ReadHeaderTimeout: s.read,
		WriteTimeout:      s.write,
		IdleTimeout:       s.idle,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		s.server = nil
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.addr = ln.Addr()

	s.logger.Info("API server starting", "address", s.addr.String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Handler returns the registry routes with middleware, for embedding the
// registry in another server or in httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
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
