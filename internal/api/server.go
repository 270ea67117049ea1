// Package api is the REST façade over a connection to the task peer.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/gin-gonic/gin"

	"github.com/thellimist/mcphost/internal/mcp"
)

const maxBodySize = 1 << 20 // 1MB

var jsonMediaType = contenttype.NewMediaType("application/json")

// Host is the connection the façade translates requests into.
// *mcp.Manager implements it.
type Host interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error)
	ReadResource(ctx context.Context, uri string) (string, error)
	Refresh(ctx context.Context) error
	Capabilities() mcp.Capabilities
	Status() mcp.Status
}

// Server is the REST façade.
type Server struct {
	host   Host
	logger *slog.Logger
	router *gin.Engine
}

// NewServer builds the router. Set gin's mode before calling it.
func NewServer(host Host, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		host:   host,
		logger: logger,
		router: router,
	}

	router.GET("/health", s.handleHealth)

	system := router.Group("/api/system")
	{
		system.GET("/status", s.handleStatus)
		system.GET("/capabilities", s.handleCapabilities)
		system.POST("/refresh", s.handleRefresh)
	}

	api := router.Group("/api", requireJSON)
	{
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/statistics", s.handleStatistics)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/resources", s.handleReadResource)
		api.POST("/tools/:name", s.handleInvokeTool)
	}

	return s
}

// Handler returns the façade as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// requireJSON rejects request bodies that are not application/json.
func requireJSON(c *gin.Context) {
	if c.Request.ContentLength == 0 {
		c.Next()
		return
	}
	ctype, err := contenttype.GetMediaType(c.Request)
	if err != nil || !ctype.Matches(jsonMediaType) {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
			"success": false,
			"error":   "content-type must be application/json",
		})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
	c.Next()
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
