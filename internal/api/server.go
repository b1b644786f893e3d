package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/nmos-dashboard/internal/eventbridge"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/config"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/database"
	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/logging"
	"github.com/nerrad567/nmos-dashboard/internal/notify"
	"github.com/nerrad567/nmos-dashboard/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the control surface of the live event bridge.
type Bridge interface {
	Status() eventbridge.Status

	// Reconnect starts a connection attempt now. It connects from scratch
	// when the bridge is idle or failed.
	Reconnect(ctx context.Context) error

	Disconnect()
}

// Sessions manages the registry login used by the bridge.
type Sessions interface {
	Login(ctx context.Context, username, password string) (session.User, error)
	Logout(ctx context.Context) error
	User() (session.User, bool)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Logger        *logging.Logger
	Notifications *notify.Channel
	Bridge        Bridge        // optional
	Sessions      Sessions      // optional
	DB            *database.DB  // optional, reported in metrics
	Hub           *Hub          // If set, the server uses this hub instead of creating its own
	Version       string
}

// Server is the HTTP relay between browsers and the dashboard core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	logger        *logging.Logger
	notifications *notify.Channel
	bridge        Bridge
	sessions      Sessions
	db            *database.DB
	version       string
	startTime     time.Time
	server        *http.Server
	hub           *Hub
	cancel        context.CancelFunc // stops the hub this server created
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
	if deps.Notifications == nil {
		return nil, fmt.Errorf("notification channel is required")
	}

	s := &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		logger:        deps.Logger,
		notifications: deps.Notifications,
		bridge:        deps.Bridge,
		sessions:      deps.Sessions,
		db:            deps.DB,
		version:       deps.Version,
		startTime:     time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
	}

	return s, nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}
	s.registerSnapshots()

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

// registerSnapshots lets new subscribers see current values at once.
func (s *Server) registerSnapshots() {
	s.hub.SetSnapshot(ChannelNotifications, func() any {
		return s.notifications.List()
	})
	if s.bridge != nil {
		s.hub.SetSnapshot(ChannelBridgeState, func() any {
			return s.bridge.Status()
		})
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

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
