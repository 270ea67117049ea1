package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thellimist/mcphost/internal/mcp"
)

func (s *Server) handleHealth(c *gin.Context) {
	st := s.host.Status()
	health := "healthy"
	code := http.StatusOK
	switch {
	case !st.Connected:
		health = "unhealthy"
		code = http.StatusServiceUnavailable
	case st.Degraded || !st.PeerAlive:
		health = "degraded"
	}
	c.JSON(code, gin.H{
		"status":        health,
		"state":         st.State,
		"peer_alive":    st.PeerAlive,
		"last_activity": st.LastActivity,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.host.Status())
}

func (s *Server) handleCapabilities(c *gin.Context) {
	if !s.host.Status().Connected {
		s.writeError(c, mcp.ErrNotInitialized)
		return
	}
	c.JSON(http.StatusOK, s.host.Capabilities())
}

func (s *Server) handleRefresh(c *gin.Context) {
	if err := s.host.Refresh(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.host.Capabilities())
}

// Task routes

func (s *Server) handleCreateTask(c *gin.Context) {
	args, ok := s.bindArgs(c, true)
	if !ok {
		return
	}
	s.invoke(c, http.StatusCreated, "create_task", args)
}

func (s *Server) handleListTasks(c *gin.Context) {
	args := map[string]any{}
	if status := c.Query("status"); status != "" {
		args["status"] = status
	}
	s.invoke(c, http.StatusOK, "list_tasks", args)
}

func (s *Server) handleStatistics(c *gin.Context) {
	s.invoke(c, http.StatusOK, "get_statistics", nil)
}

func (s *Server) handleGetTask(c *gin.Context) {
	s.invoke(c, http.StatusOK, "get_task", map[string]any{"task_id": c.Param("id")})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	args, ok := s.bindArgs(c, true)
	if !ok {
		return
	}
	args["task_id"] = c.Param("id")
	s.invoke(c, http.StatusOK, "update_task", args)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	s.invoke(c, http.StatusOK, "delete_task", map[string]any{"task_id": c.Param("id")})
}

// Generic routes

func (s *Server) handleReadResource(c *gin.Context) {
	uri := c.Query("uri")
	if uri == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "uri query parameter required",
		})
		return
	}
	text, err := s.host.ReadResource(c.Request.Context(), uri)
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeText(c, http.StatusOK, text)
}

func (s *Server) handleInvokeTool(c *gin.Context) {
	args, ok := s.bindArgs(c, false)
	if !ok {
		return
	}
	s.invoke(c, http.StatusOK, c.Param("name"), args)
}

// invoke calls tool and writes its text. A result the peer flagged isError
// is answered as an error carrying that text.
func (s *Server) invoke(c *gin.Context, status int, tool string, args map[string]any) {
	res, err := s.host.CallTool(c.Request.Context(), tool, args)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeText(c, status, res.Text)
}

// bindArgs decodes the request body into tool arguments. An empty body is
// an error only when required is set.
func (s *Server) bindArgs(c *gin.Context, required bool) (map[string]any, bool) {
	args := map[string]any{}
	err := json.NewDecoder(c.Request.Body).Decode(&args)
	switch {
	case errors.Is(err, io.EOF) && !required:
		return args, true
	case errors.Is(err, io.EOF):
		err = errors.New("request body required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid JSON body: " + err.Error(),
		})
		return nil, false
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, true
}

// writeText responds with the peer's text, passed through unchanged when
// it is already JSON.
func writeText(c *gin.Context, status int, text string) {
	if json.Valid([]byte(text)) {
		c.Data(status, "application/json; charset=utf-8", []byte(text))
		return
	}
	c.JSON(status, gin.H{"result": text})
}

func (s *Server) writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "status", code, "error", err)
	}
	c.JSON(code, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// statusFor maps call errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mcp.ErrNotInitialized), errors.Is(err, mcp.ErrChannelClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, mcp.ErrUnknownTool), mcp.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, mcp.ErrToolRejected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
