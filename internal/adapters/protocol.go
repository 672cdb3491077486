// Package adapters defines the per-platform session-source plug-in
// interface (§4.2) and the registry that discovers sessions across all
// connected platforms. Grounded on the teacher's string-keyed dispatch
// idiom in pkg/mcp/router.go, generalized from a single dispatch table to
// an interface-satisfying registry (§9 "dynamic dispatch over adapter
// modules ... replace with a registry mapping platform name → adapter
// implementation").
package adapters

import "time"

// ViewerMessage is the normalized message shape returned by ReadSession,
// recovered from original_source/src/lerim/adapters/base.py's
// ViewerMessage dataclass.
type ViewerMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Model      string         `json:"model,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolInput  any            `json:"tool_input,omitempty"`
	ToolOutput any            `json:"tool_output,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ViewerSession is the normalized per-session payload returned by
// ReadSession, recovered from base.py's ViewerSession dataclass.
type ViewerSession struct {
	SessionID        string          `json:"session_id"`
	CWD              string          `json:"cwd,omitempty"`
	GitBranch        string          `json:"git_branch,omitempty"`
	Messages         []ViewerMessage `json:"messages"`
	TotalInputTokens int             `json:"total_input_tokens"`
	TotalOutputTokens int            `json:"total_output_tokens"`
	Meta             map[string]any  `json:"meta,omitempty"`
}

// SessionRecord is the summary record an adapter returns from IterSessions
// for catalog indexing (§3 "SessionRecord", §4.2).
type SessionRecord struct {
	RunID         string
	AgentType     string
	SessionPath   string
	StartTime     *time.Time
	RepoName      string
	Status        string
	DurationMS    int64
	MessageCount  int
	ToolCallCount int
	ErrorCount    int
	TotalTokens   int
	Summaries     []string
	ContentHash   string // 64-char hex SHA-256, always populated (§4.2)
	Changed       bool   // true when ContentHash differs from known_run_hashes
}

// Adapter is the per-platform session-source plug-in interface (§4.2).
// Implementations must be safe for concurrent use by multiple goroutines —
// discovery may enumerate several adapters concurrently during sync.
type Adapter interface {
	// Name returns the adapter's platform identifier (e.g. "claude",
	// "codex", "cursor", "opencode"). Used as the agent_type namespace so
	// run_id collisions across adapters are avoided (§3 SessionRecord
	// invariants).
	Name() string

	// DefaultPath returns this platform's default traces directory, or ""
	// if the platform has no well-known default.
	DefaultPath() string

	// CountSessions returns the total session count under path, for
	// `lerim status` reporting.
	CountSessions(path string) (int, error)

	// IterSessions enumerates sessions in [start, end] (nil bounds are
	// open-ended) under tracesDir (DefaultPath() when empty), skipping any
	// run_id whose known content hash matches knownRunHashes. Every
	// returned record must carry its computed content hash; records with a
	// changed hash must still be returned, with Changed set true (§4.2
	// "Incremental contract").
	IterSessions(tracesDir string, start, end *time.Time, knownRunHashes map[string]string) ([]SessionRecord, error)

	// FindSessionPath resolves one session's file path by id.
	FindSessionPath(sessionID string, tracesDir string) (string, error)

	// ReadSession loads and normalizes one session file.
	ReadSession(path string, sessionID string) (*ViewerSession, error)
}
