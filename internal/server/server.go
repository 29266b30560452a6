// Package server exposes deployment status over HTTP: JSON snapshots
// for scripted polling, Prometheus metrics, and a websocket stream of
// live status reports for dashboards.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fieldmarshal/brigade/internal/logging"
	"github.com/fieldmarshal/brigade/internal/metrics"
	"github.com/fieldmarshal/brigade/pkg/models"
)

// Snapshotter produces a fresh status report for a plan.
type Snapshotter interface {
	Snapshot(ctx context.Context, plan *models.DeploymentPlan) (*models.StatusReport, error)
}

// Config carries everything the server needs. Plan and Monitor may be
// nil when no plan exists yet; the API then answers 404.
type Config struct {
	Addr     string
	Plan     *models.DeploymentPlan
	Monitor  Snapshotter
	Registry *prometheus.Registry
}

// Server serves the status API and fans live reports out to websocket
// clients.
type Server struct {
	cfg        Config
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu    sync.RWMutex
	conns map[*websocket.Conn]bool
	last  *models.StatusReport
}

// New builds a server; call Run to start it.
func New(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: logging.Component("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[*websocket.Conn]bool),
	}
	gin.SetMode(gin.ReleaseMode)
	router := s.routes()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/plan", s.handlePlan)
	router.GET("/api/status", s.handleStatus)
	router.GET("/api/agents/:id", s.handleAgent)
	router.GET("/ws/status", s.handleWebsocket)

	if s.cfg.Registry != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(s.cfg.Registry)))
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.log.Info().Str("addr", s.cfg.Addr).Msg("status server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.closeConns()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Broadcast pushes each report to every connected websocket client and
// keeps the latest one for new subscribers. Returns when ch closes.
func (s *Server) Broadcast(ch <-chan *models.StatusReport) {
	for report := range ch {
		s.mu.Lock()
		s.last = report
		for conn := range s.conns {
			if err := conn.WriteJSON(report); err != nil {
				conn.Close()
				delete(s.conns, conn)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePlan(c *gin.Context) {
	if s.cfg.Plan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no plan loaded"})
		return
	}
	c.JSON(http.StatusOK, s.cfg.Plan)
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.cfg.Plan == nil || s.cfg.Monitor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no plan loaded"})
		return
	}
	report, err := s.cfg.Monitor.Snapshot(c.Request.Context(), s.cfg.Plan)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAgent(c *gin.Context) {
	if s.cfg.Plan == nil || s.cfg.Monitor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no plan loaded"})
		return
	}
	report, err := s.cfg.Monitor.Snapshot(c.Request.Context(), s.cfg.Plan)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	for i := range report.Agents {
		if report.Agents[i].AgentID == id {
			c.JSON(http.StatusOK, report.Agents[i])
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent " + id})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The lock serializes this write against Broadcast. The latest
	// report goes out immediately so new clients do not wait a full
	// poll interval for their first frame.
	s.mu.Lock()
	if s.last != nil {
		if err := conn.WriteJSON(s.last); err != nil {
			s.mu.Unlock()
			conn.Close()
			return
		}
	}
	s.conns[conn] = true
	s.mu.Unlock()

	// Read loop exists only to notice the client going away.
	go func() {
		defer s.removeConn(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[conn] {
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}
