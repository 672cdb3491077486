package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/project"
)

type projectAddRequest struct {
	Path string `json:"path" binding:"required"`
}

type projectRemoveRequest struct {
	Name string `json:"name" binding:"required"`
}

// handleProjectAdd serves POST /api/project/add {path}.
func (s *Server) handleProjectAdd(c *gin.Context) {
	var req projectAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, err := project.Add(s.rt.Projects, req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.rt.Projects.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "path": req.Path})
}

// handleProjectRemove serves POST /api/project/remove {name}.
func (s *Server) handleProjectRemove(c *gin.Context) {
	var req projectRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.rt.Projects.Remove(req.Name)
	if err := s.rt.Projects.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": req.Name, "removed": true})
}
