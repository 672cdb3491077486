package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthResponse is the GET /api/health payload, named after the
// teacher's HealthResponse (pkg/api/responses.go) but trimmed to the
// spec's {status, version} shape — no per-component checks map, since this
// process has no worker pool to report on the way tarsy's does.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: Version})
}

// statusResponse is the GET /api/status payload (§6).
type statusResponse struct {
	ConnectedAgents       []string       `json:"connected_agents"`
	Platforms             map[string]any `json:"platforms"`
	MemoryCount           int            `json:"memory_count"`
	SessionsIndexedCount  int            `json:"sessions_indexed_count"`
	QueueCounts           map[string]int `json:"queue_counts"`
	LatestSync            *runInfo       `json:"latest_sync"`
	LatestMaintain        *runInfo       `json:"latest_maintain"`
	Timestamp             string         `json:"timestamp"`
}

type runInfo struct {
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
	Trigger     string  `json:"trigger"`
}

func (s *Server) handleStatus(c *gin.Context) {
	platforms := s.rt.Platforms.List()
	platformsOut := make(map[string]any, len(platforms))
	for name, entry := range platforms {
		platformsOut[name] = gin.H{"source_path": entry.SourcePath, "connected_at": entry.ConnectedAt}
	}

	entries, err := memoryList(s.rt)
	if err != nil {
		writeError(c, err)
		return
	}

	queueCounts, err := s.rt.Catalog.CountJobsByStatus()
	if err != nil {
		writeError(c, err)
		return
	}

	window, err := s.rt.Catalog.ListWindow(catalogAllWindowParams())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := statusResponse{
		ConnectedAgents:      s.rt.Platforms.Names(),
		Platforms:            platformsOut,
		MemoryCount:          len(entries),
		SessionsIndexedCount: window.Total,
		QueueCounts:          queueCounts,
		LatestSync:           toRunInfo(lookupLatestRun(s.rt, "sync")),
		LatestMaintain:       toRunInfo(lookupLatestRun(s.rt, "maintain")),
		Timestamp:            time.Now().UTC().Format(time.RFC3339),
	}
	c.JSON(http.StatusOK, resp)
}
