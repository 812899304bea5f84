// Package httpapi is the thin HTTP/WebSocket caller surface in front of
// internal/taskservice (spec §1 Non-goals: "HTTP API surface,
// authentication handlers, invite codes, user CRUD — treated as 'a caller
// that creates tasks and reads their status'"). It exposes the
// create/list/get/cancel/retry/delete entry points the Task Service
// already implements, per-task download and log routes, a health route,
// a Prometheus /metrics route, and a WebSocket endpoint for Progress
// Events — nothing resembling a full product API.
//
// Grounded on
// _examples/codeready-toolchain-tarsy/pkg/api/{server,handler_health,
// handler_ws,middleware,errors}.go for routing shape, health-check
// aggregation, and the WebSocket upgrade handoff, re-expressed over
// gin-gonic/gin in place of the teacher's echo/v5 (SPEC_FULL's dependency
// table names gin as this project's HTTP framework).
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkotake/ojoagent/internal/bus"
	"github.com/inkotake/ojoagent/internal/db"
	"github.com/inkotake/ojoagent/internal/problemid"
	"github.com/inkotake/ojoagent/internal/taskservice"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	tasks            *taskservice.Service
	dbClient         *db.Client
	fanout           *bus.Fanout
	resolver         *problemid.Resolver
	workspaceRoot    string
	allowedWSOrigins []string
}

// Config wires the Server's dependencies.
type Config struct {
	Tasks            *taskservice.Service
	DBClient         *db.Client
	Fanout           *bus.Fanout
	Resolver         *problemid.Resolver
	WorkspaceRoot    string
	AllowedWSOrigins []string // spec §6.4 CORS/origin allowlist; empty means "allow any origin"
}

// NewServer builds a Server and registers every route.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		engine:           engine,
		tasks:            cfg.Tasks,
		dbClient:         cfg.DBClient,
		fanout:           cfg.Fanout,
		resolver:         cfg.Resolver,
		workspaceRoot:    cfg.WorkspaceRoot,
		allowedWSOrigins: cfg.AllowedWSOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.Use(userContext())

	v1.POST("/tasks", s.createTasksHandler)
	v1.GET("/tasks", s.listTasksHandler)
	v1.GET("/tasks/:id", s.getTaskHandler)
	v1.POST("/tasks/:id/cancel", s.cancelTaskHandler)
	v1.POST("/tasks/:id/retry", s.retryTaskHandler)
	v1.DELETE("/tasks/:id", s.deleteTaskHandler)
	v1.GET("/tasks/:id/download", s.downloadTaskHandler)
	v1.GET("/tasks/:id/logs", s.getTaskLogsHandler)

	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
