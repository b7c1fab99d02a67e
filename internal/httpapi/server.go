// Package httpapi exposes the message pipeline as a JSON API over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/flowchat/internal/api"
	"github.com/matheus3301/flowchat/internal/bus"
	"go.uber.org/zap"
)

// UserHeader carries the acting user id. Requests without it act as the tenant.
const UserHeader = "X-User-ID"

// Services are the gRPC service implementations the handlers delegate to.
type Services struct {
	Messages *api.MessageService
	Settings *api.SettingsService
	Contacts *api.ContactService
	Bus      *bus.Bus
}

// Server is the HTTP front end of the daemon.
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

// New builds the router. Nothing listens until Listen.
func New(svc Services, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	h := &handlers{svc: svc}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t := router.Group("/v1/tenants/:tenant")
	{
		t.POST("/contacts", h.upsertContact)
		t.GET("/contacts/:contact", h.getContact)
		t.PUT("/contacts/:contact", h.upsertContact)

		t.POST("/contacts/:contact/messages", h.sendMessage)
		t.GET("/contacts/:contact/messages", h.listMessages)
		t.GET("/contacts/:contact/unread", h.unreadCount)
		t.POST("/contacts/:contact/read", h.markContactRead)
		t.POST("/messages/:message/read", h.markRead)
		t.GET("/unread", h.listUnread)
		t.POST("/inbound", h.recordInbound)
		t.GET("/events", h.watchEvents)

		t.GET("/settings", h.getSettings)
		t.PUT("/settings", h.saveSettings)
		t.GET("/settings/resolved", h.resolveSettings)
		t.POST("/settings/test", h.testConnection)
	}

	return &Server{router: router, logger: logger}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds addr and serves in the background. Returns the bound address.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("HTTP API starting", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP API error", zap.Error(err))
		}
	}()
	return ln.Addr(), nil
}

// Stop shuts the listener down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("HTTP API stopping")
	return s.http.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
