package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/syncpipeline"
)

// runDoc is the JSON shape for one listed/searched session (§6 "GET
// /api/runs", "GET /api/search"), trimmed from catalog.SessionDoc's
// storage columns to what a dashboard client needs.
type runDoc struct {
	RunID         string `json:"run_id"`
	AgentType     string `json:"agent_type"`
	RepoName      string `json:"repo_name"`
	StartTime     string `json:"start_time,omitempty"`
	Status        string `json:"status"`
	DurationMS    int64  `json:"duration_ms"`
	MessageCount  int    `json:"message_count"`
	ToolCallCount int    `json:"tool_call_count"`
	ErrorCount    int    `json:"error_count"`
	TotalTokens   int    `json:"total_tokens"`
	SummaryText   string `json:"summary_text,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
}

func toRunDoc(doc catalog.SessionDoc) runDoc {
	out := runDoc{
		RunID:         doc.RunID,
		AgentType:     doc.AgentType,
		RepoName:      doc.RepoName,
		Status:        doc.Status,
		DurationMS:    doc.DurationMS,
		MessageCount:  doc.MessageCount,
		ToolCallCount: doc.ToolCallCount,
		ErrorCount:    doc.ErrorCount,
		TotalTokens:   doc.TotalTokens,
		SummaryText:   doc.SummaryText,
		Outcome:       doc.Outcome,
	}
	if doc.StartTime != nil {
		out.StartTime = doc.StartTime.UTC().Format(time.RFC3339)
	}
	return out
}

// handleListRuns serves GET /api/runs?scope&agent_type&limit&offset.
func (s *Server) handleListRuns(c *gin.Context) {
	scope := c.Query("scope")
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	var agentTypes []string
	if at := c.Query("agent_type"); at != "" {
		agentTypes = strings.Split(at, ",")
	}

	since, until := "", ""
	if scope != "" {
		start, end, err := syncpipeline.ResolveWindow(scopeToWindow(scope), "", "", s.rt.Catalog.MinStartTime, time.Now().UTC())
		if err != nil {
			writeError(c, err)
			return
		}
		if start != nil {
			since = start.UTC().Format(time.RFC3339)
		}
		if end != nil {
			until = end.UTC().Format(time.RFC3339)
		}
	}

	result, err := s.rt.Catalog.ListWindow(catalog.ListWindowParams{
		Limit: limit, Offset: offset, AgentTypes: agentTypes, Since: since, Until: until,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	docs := make([]runDoc, 0, len(result.Rows))
	for _, d := range result.Rows {
		docs = append(docs, toRunDoc(d))
	}
	c.JSON(http.StatusOK, gin.H{"runs": docs, "total": result.Total})
}

// handleRunStats serves GET /api/runs/stats?scope&agent_type — the same
// window as handleListRuns but aggregated into per-status counters
// instead of individual rows.
func (s *Server) handleRunStats(c *gin.Context) {
	scope := c.Query("scope")
	since, until := "", ""
	if scope != "" {
		start, end, err := syncpipeline.ResolveWindow(scopeToWindow(scope), "", "", s.rt.Catalog.MinStartTime, time.Now().UTC())
		if err != nil {
			writeError(c, err)
			return
		}
		if start != nil {
			since = start.UTC().Format(time.RFC3339)
		}
		if end != nil {
			until = end.UTC().Format(time.RFC3339)
		}
	}

	var agentTypes []string
	if at := c.Query("agent_type"); at != "" {
		agentTypes = strings.Split(at, ",")
	}

	result, err := s.rt.Catalog.ListWindow(catalog.ListWindowParams{
		Limit: 100000, AgentTypes: agentTypes, Since: since, Until: until,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	byStatus := map[string]int{}
	var totalTokens, totalErrors int
	for _, d := range result.Rows {
		byStatus[d.Status]++
		totalTokens += d.TotalTokens
		totalErrors += d.ErrorCount
	}

	c.JSON(http.StatusOK, gin.H{
		"total":        result.Total,
		"by_status":    byStatus,
		"total_tokens": totalTokens,
		"total_errors": totalErrors,
	})
}

// handleRunMessages serves GET /api/runs/:id/messages, loading the full
// normalized transcript via the session's own adapter.
func (s *Server) handleRunMessages(c *gin.Context) {
	runID := c.Param("id")

	doc, err := s.rt.Catalog.Fetch(runID)
	if err != nil {
		writeError(c, err)
		return
	}

	adapter, ok := s.rt.Adapters.Get(doc.AgentType)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent_type for this run"})
		return
	}

	viewer, err := adapter.ReadSession(doc.SessionPath, runID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewer)
}
