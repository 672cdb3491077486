package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// connectRequest is the body for POST /api/connect {platform, path?}.
type connectRequest struct {
	Platform string `json:"platform" binding:"required"`
	Path     string `json:"path"`
}

// handleListConnections serves GET /api/connect.
func (s *Server) handleListConnections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": s.rt.Platforms.List()})
}

// handleConnect serves POST /api/connect {platform, path?}: connects a
// named adapter platform, using its default path when path is omitted.
func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path := req.Path
	if path == "" {
		adapter, ok := s.rt.Adapters.Get(req.Platform)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform"})
			return
		}
		path = adapter.DefaultPath()
	}

	s.rt.Platforms.Add(req.Platform, path)
	if err := s.rt.Platforms.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"platform": req.Platform, "source_path": path})
}
