package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/catalog"
	"github.com/lerim-dev/lerim/internal/memory"
	"github.com/lerim-dev/lerim/internal/runtime"
)

// memoryList lists every memory entry under rt's primary data root.
func memoryList(rt *runtime.Runtime) ([]memory.Entry, error) {
	return memory.List(rt.PrimaryLayout.Memory)
}

// catalogAllWindowParams builds a ListWindowParams whose Total reflects
// the full session_docs table; Limit is kept small since only the count
// is used.
func catalogAllWindowParams() catalog.ListWindowParams {
	return catalog.ListWindowParams{Limit: 1}
}

func lookupLatestRun(rt *runtime.Runtime, jobType string) *catalog.ServiceRun {
	run, err := rt.Catalog.LatestServiceRun(jobType)
	if err != nil {
		return nil
	}
	return run
}

func toRunInfo(run *catalog.ServiceRun) *runInfo {
	if run == nil {
		return nil
	}
	out := &runInfo{
		Status:    run.Status,
		StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		Trigger:   run.Trigger,
	}
	if run.CompletedAt != nil {
		s := run.CompletedAt.UTC().Format(time.RFC3339)
		out.CompletedAt = &s
	}
	return out
}

// queryInt parses a query-string integer parameter, falling back to def
// when absent or malformed.
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// scopeToWindow translates the HTTP API's scope=today|week|month|all
// vocabulary (§6 "GET /api/runs") into the CLI/pipeline's <n>{s|m|h|d}|all
// window grammar.
func scopeToWindow(scope string) string {
	switch scope {
	case "today":
		return "1d"
	case "week":
		return "7d"
	case "month":
		return "30d"
	case "all", "":
		return "all"
	default:
		return scope
	}
}
