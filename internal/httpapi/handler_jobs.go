package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/maintainpipeline"
	"github.com/lerim-dev/lerim/internal/syncpipeline"
)

type syncRequest struct {
	Agent       string `json:"agent"`
	Window      string `json:"window"`
	MaxSessions int    `json:"max_sessions"`
	Force       bool   `json:"force"`
	DryRun      bool   `json:"dry_run"`
}

// handleSync serves POST /api/sync — spawns the sync cycle on a background
// worker and returns immediately (§5 "handlers never block on LLM calls").
func (s *Server) handleSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var agentNames []string
	if req.Agent != "" {
		agentNames = []string{req.Agent}
	}

	pipeline := s.rt.SyncPipeline()
	job := s.jobs.start("sync", func(ctx context.Context) error {
		_, err := pipeline.Run(ctx, syncpipeline.Options{
			AgentNames:  agentNames,
			Window:      req.Window,
			MaxSessions: req.MaxSessions,
			Force:       req.Force,
			DryRun:      req.DryRun,
			Trigger:     "http",
		})
		return err
	})

	c.JSON(http.StatusOK, gin.H{"status": "started", "job_id": job.ID})
}

// maintainRequest mirrors §6's documented body shape; Force is accepted
// but currently unused, since maintainpipeline.Options has no force-lock
// concept the way sync's IgnoreLock does.
type maintainRequest struct {
	Force  bool `json:"force"`
	DryRun bool `json:"dry_run"`
}

// handleMaintain serves POST /api/maintain — same background-worker
// pattern as handleSync (§6).
func (s *Server) handleMaintain(c *gin.Context) {
	var req maintainRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pipeline := s.rt.MaintainPipeline()
	job := s.jobs.start("maintain", func(ctx context.Context) error {
		_, err := pipeline.Run(ctx, maintainpipeline.Options{DryRun: req.DryRun, Trigger: "http"})
		return err
	})

	c.JSON(http.StatusOK, gin.H{"status": "started", "job_id": job.ID})
}

// handleJobStatus serves GET /api/jobs/:id, polling a background sync or
// maintain invocation's terminal status.
func (s *Server) handleJobStatus(c *gin.Context) {
	job, ok := s.jobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}
