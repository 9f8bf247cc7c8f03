package mcp

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const maxBodySize = 8 << 20

// HTTPServer exposes a Server at /mcp, plus /health and optionally /metrics.
type HTTPServer struct {
	server  *Server
	addr    string
	apiKey  string
	metrics http.Handler
	logger  *slog.Logger
	http    *http.Server
}

type HTTPConfig struct {
	Addr    string
	APIKey  string       // empty disables auth
	Metrics http.Handler // nil disables /metrics
	Logger  *slog.Logger
}

func NewHTTPServer(s *Server, cfg HTTPConfig) *HTTPServer {
	return &HTTPServer{server: s, addr: cfg.Addr, apiKey: cfg.APIKey, metrics: cfg.Metrics, logger: cfg.Logger}
}

// Handler builds the gin router. /mcp is the SDK's streamable HTTP
// transport in stateless mode, so every POST stands alone.
func (h *HTTPServer) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "server": h.server.registry.Name()})
	})
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	streamable := mcpserver.NewStreamableHTTPServer(h.server.mcp,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithStateLess(true),
	)
	r.Any("/mcp", bearerAuth(h.apiKey), gin.WrapH(http.MaxBytesHandler(streamable, maxBodySize)))
	return r
}

func bearerAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (h *HTTPServer) ListenAndServe(ctx context.Context) error {
	h.http = &http.Server{
		Addr:              h.addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	h.logger.Info("mcp server started", "server", h.server.registry.Name(), "transport", "http", "addr", h.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.http.Shutdown(shutdownCtx)
	}()

	if err := h.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
