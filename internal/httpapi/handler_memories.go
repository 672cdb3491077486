package httpapi

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/memory"
	"github.com/lerim-dev/lerim/internal/pathlayout"
)

// memoryDoc is the JSON shape for one listed/searched memory (§6 "GET
// /api/memories").
type memoryDoc struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Created    string   `json:"created"`
	Updated    string   `json:"updated,omitempty"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	State      string   `json:"state"`
}

func toMemoryDoc(e memory.Entry) memoryDoc {
	return memoryDoc{
		ID:         e.Frontmatter.ID,
		Kind:       string(e.Kind),
		Title:      e.Frontmatter.Title,
		Body:       e.Body,
		Created:    e.Frontmatter.Created,
		Updated:    e.Frontmatter.Updated,
		Source:     e.Frontmatter.Source,
		Confidence: e.Frontmatter.Confidence,
		Tags:       e.Frontmatter.Tags,
		State:      string(e.State),
	}
}

// memoryRootFor resolves which memory root to list: the named project's
// root when `project` names one registered via `lerim project add`, else
// the current process's primary data root.
func (s *Server) memoryRootFor(projectName string) (string, error) {
	if projectName == "" {
		return s.rt.PrimaryLayout.Memory, nil
	}
	entry, ok := s.rt.Projects.Get(projectName)
	if !ok {
		return s.rt.PrimaryLayout.Memory, nil
	}
	return pathlayout.New(filepath.Join(entry.Path, ".lerim"), pathlayout.ScopeProject).Memory, nil
}

// handleListMemories serves GET /api/memories?query&type&state&project.
func (s *Server) handleListMemories(c *gin.Context) {
	root, err := s.memoryRootFor(c.Query("project"))
	if err != nil {
		writeError(c, err)
		return
	}

	entries, err := memory.List(root)
	if err != nil {
		writeError(c, err)
		return
	}

	kind := memory.Kind(c.Query("type"))
	state := memory.State(c.Query("state"))
	hits := memory.Search(entries, c.Query("query"), kind, state)

	docs := make([]memoryDoc, 0, len(hits))
	for _, e := range hits {
		docs = append(docs, toMemoryDoc(e))
	}
	c.JSON(http.StatusOK, gin.H{"memories": docs, "total": len(docs)})
}

// handleGetMemory serves GET /api/memories/:id.
func (s *Server) handleGetMemory(c *gin.Context) {
	id := c.Param("id")
	root, err := s.memoryRootFor(c.Query("project"))
	if err != nil {
		writeError(c, err)
		return
	}

	entries, err := memory.List(root)
	if err != nil {
		writeError(c, err)
		return
	}

	for _, e := range entries {
		if e.Frontmatter.ID == id {
			c.JSON(http.StatusOK, toMemoryDoc(e))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "memory not found"})
}
