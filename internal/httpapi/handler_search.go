package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/catalog"
)

// handleSearch serves GET /api/search?query&scope&agent_type&status&repo&
// limit&offset: FTS mode via catalog.Search when query is present, a plain
// windowed listing with the same filters otherwise (§6).
func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("query")
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	status := c.Query("status")
	repo := c.Query("repo")

	var docs []catalog.SessionDoc
	var total int
	var err error

	if query != "" {
		docs, err = s.rt.Catalog.Search(query, limit+offset)
		if err != nil {
			writeError(c, err)
			return
		}
		if offset < len(docs) {
			docs = docs[offset:]
		} else {
			docs = nil
		}
		total = len(docs)
	} else {
		var agentTypes []string
		if at := c.Query("agent_type"); at != "" {
			agentTypes = strings.Split(at, ",")
		}
		result, lErr := s.rt.Catalog.ListWindow(catalog.ListWindowParams{
			Limit: limit, Offset: offset, AgentTypes: agentTypes,
		})
		if lErr != nil {
			writeError(c, lErr)
			return
		}
		docs = result.Rows
		total = result.Total
	}

	results := make([]runDoc, 0, len(docs))
	for _, d := range docs {
		if status != "" && d.Status != status {
			continue
		}
		if repo != "" && d.RepoName != repo {
			continue
		}
		rd := toRunDoc(d)
		if query != "" {
			rd.Snippet = highlightSnippet(d.Content, query)
		}
		results = append(results, rd)
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "total": total})
}

// highlightSnippet extracts ~160 characters of text around the first
// case-insensitive match of query in content and wraps the match in
// ** markers, falling back to a leading excerpt when there is no match.
func highlightSnippet(content, query string) string {
	const radius = 80
	lowerContent := strings.ToLower(content)
	lowerQuery := strings.ToLower(query)

	idx := strings.Index(lowerContent, lowerQuery)
	if idx < 0 {
		if len(content) > radius*2 {
			return content[:radius*2] + "..."
		}
		return content
	}

	start := idx - radius
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + radius
	if end > len(content) {
		end = len(content)
	}

	prefix := ""
	if start > 0 {
		prefix = "..."
	}
	suffix := ""
	if end < len(content) {
		suffix = "..."
	}

	matched := content[idx : idx+len(query)]
	return prefix + content[start:idx] + "**" + matched + "**" + content[idx+len(query):end] + suffix
}
