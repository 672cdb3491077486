package httpapi

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/config"
)

// handleGetConfig serves GET /api/config, returning the fully resolved,
// layered configuration (§6).
func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config":       s.rt.Config,
		"source_files": s.rt.Config.SourceFiles(),
	})
}

type configPatchRequest struct {
	Patch map[string]any `json:"patch" binding:"required"`
}

// userConfigPath returns the user-level config.toml path that PATCH
// /api/config writes to, regardless of which layers the current process
// actually loaded (§6 "config layering": user config is always present,
// project config only exists in project scope).
func (s *Server) userConfigPath() string {
	return filepath.Join(s.rt.Config.GlobalRoot, "config.toml")
}

// handlePatchConfig serves PATCH /api/config {patch}: deep-merges patch
// into the user's config.toml, rewrites it, and reloads the runtime's
// resolved Config so subsequent requests see the change (§6 "PATCH
// /api/config").
func (s *Server) handlePatchConfig(c *gin.Context) {
	var req configPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path := s.userConfigPath()
	base := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &base); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "existing config.toml is malformed: " + err.Error()})
			return
		}
	} else if !os.IsNotExist(err) {
		writeError(c, err)
		return
	}

	merged := config.DeepMergePatch(base, req.Patch)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		writeError(c, err)
		return
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := toml.NewEncoder(f).Encode(merged); err != nil {
		f.Close()
		writeError(c, err)
		return
	}
	if err := f.Close(); err != nil {
		writeError(c, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		writeError(c, err)
		return
	}

	cfg, err := config.Load("")
	if err != nil {
		writeError(c, err)
		return
	}
	s.rt.Config = cfg

	c.JSON(http.StatusOK, gin.H{"config": cfg, "source_files": cfg.SourceFiles()})
}
