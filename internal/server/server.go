package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jpalmerr/finboard/forecast"
	"github.com/jpalmerr/finboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	defaultHorizon = 1
	maxHorizon     = 120
)

var (
	// ErrNotReady is returned by a [Backend] when the forecast input has not
	// arrived yet.
	ErrNotReady = errors.New("kpi data not ready")

	// ErrUnknownResource is returned by a [Backend] for a refetch of a name it
	// does not manage.
	ErrUnknownResource = errors.New("unknown resource")
)

// Backend is the synchronizer surface the API drives.
type Backend interface {
	Refetch(name string) error
	Forecast(horizon int) (forecast.Result, error)
}

// Event is one SSE payload.
type Event struct {
	Resource       store.ResourceStatus `json:"resource"`
	OverallWarming bool                 `json:"overall_warming"`
}

// Dashboard is the /api/dashboard payload.
type Dashboard struct {
	SessionID      string                 `json:"session_id"`
	OverallWarming bool                   `json:"overall_warming"`
	Resources      []store.ResourceStatus `json:"resources"`
}

// Server handles HTTP requests for the status API.
type Server struct {
	store     store.Store
	backend   Backend
	addr      string
	sessionID string
	logger    *slog.Logger
	startTime time.Time

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the latest resource statuses
//   - backend: Refetch and forecast operations
//   - addr: TCP address to listen on (":0" picks a free port)
//   - sessionID: Identifier reported by /api/health and /api/dashboard
//   - logger: Logger for server events
//
// The server is not listening until [Server.Listen] is called.
func NewServer(st store.Store, backend Backend, addr, sessionID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:     st,
		backend:   backend,
		addr:      addr,
		sessionID: sessionID,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/forecast", s.handleForecast)
	api.POST("/refetch/:resource", s.handleRefetch)
	api.GET("/sse", s.handleSSE)

	return r
}

// Listen binds the configured address. Binding happens before [Server.Serve]
// so port conflicts surface synchronously.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before [Server.Listen].
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve answers requests until ctx is cancelled, then shuts down gracefully.
// Listen is called first if it has not been.
//
// Returns nil on graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	httpServer := &http.Server{
		Handler: s.Handler(),
		// request contexts derive from ctx so SSE handlers exit on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	s.logger.Info("status api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"session_id": s.sessionID,
		"uptime":     time.Since(s.startTime).String(),
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.JSON(http.StatusOK, Dashboard{
		SessionID:      s.sessionID,
		OverallWarming: s.store.OverallWarming(),
		Resources:      s.store.GetAll(),
	})
}

func (s *Server) handleForecast(c *gin.Context) {
	horizon := defaultHorizon
	if raw := c.Query("horizon"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h < 0 || h > maxHorizon {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("horizon must be an integer between 0 and %d", maxHorizon),
			})
			return
		}
		horizon = h
	}

	result, err := s.backend.Forecast(horizon)
	if err != nil {
		var insufficient *forecast.InsufficientDataError
		switch {
		case errors.Is(err, ErrNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &insufficient):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, forecast.ErrNegativeHorizon):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.logger.Error("forecast failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "forecast failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRefetch(c *gin.Context) {
	name := c.Param("resource")
	if err := s.backend.Refetch(name); err != nil {
		if errors.Is(err, ErrUnknownResource) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"resource": name, "refetch": "scheduled"})
}

// handleSSE streams resource updates via Server-Sent Events.
//
// Writes carry a deadline so a stalled client cannot pin the handler past
// shutdown.
func (s *Server) handleSSE(c *gin.Context) {
	w := c.Writer
	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	send := func(status store.ResourceStatus) error {
		data, err := json.Marshal(Event{Resource: status, OverallWarming: s.store.OverallWarming()})
		if err != nil {
			s.logger.Error("failed to encode sse event", "resource", status.Name, "error", err)
			return nil
		}
		return writeAndFlush(data)
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, status := range s.store.GetAll() {
		if err := send(status); err != nil {
			return
		}
	}

	ctx := c.Request.Context()
	for {
		select {
		case status, ok := <-ch:
			if !ok {
				return
			}
			if err := send(status); err != nil {
				return
			}

		case <-ctx.Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}
