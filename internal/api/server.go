// Package api provides the HTTP REST API and WebSocket server for
// HomeWatt.
//
// It exposes device control, power aggregates, billing and settings
// endpoints to user interfaces, and broadcasts device state changes to
// WebSocket subscribers.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nvqhuy/homewatt/internal/engine"
	"github.com/nvqhuy/homewatt/internal/infrastructure/config"
	"github.com/nvqhuy/homewatt/internal/infrastructure/logging"
	"github.com/nvqhuy/homewatt/internal/topology"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Timeouts struct {
		Read  time.Duration
		Write time.Duration
		Idle  time.Duration
	}
	Logger   *logging.Logger
	Engine   *engine.Engine
	Registry *topology.Registry
	Version  string
}

// Server is the HTTP API server for HomeWatt.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	engine  *engine.Engine
	reg     *topology.Registry
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("topology registry is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		engine:  deps.Engine,
		reg:     deps.Registry,
		version: deps.Version,
		hub:     NewHub(deps.Logger),
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(deps.Config.Host, fmt.Sprintf("%d", deps.Config.Port)),
		Handler:      s.buildRouter(),
		ReadTimeout:  deps.Timeouts.Read,
		WriteTimeout: deps.Timeouts.Write,
		IdleTimeout:  deps.Timeouts.Idle,
	}

	// Every effective device change fans out to WebSocket subscribers.
	deps.Engine.RegisterChangeListener(func(ref topology.DeviceRef, st engine.DeviceState) {
		s.hub.Broadcast("device_state", deviceStateBody(ref.RoomID, ref.DeviceID, st))
	})

	return s, nil
}

// Start begins serving in a background goroutine.
func (s *Server) Start(ctx context.Context) {
	hubCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.hub.Run(hubCtx)

	go func() {
		s.logger.Info("api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", "error", err)
		}
	}()
}

// Close shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
