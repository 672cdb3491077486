// Package config resolves Lerim's layered settings: built-in defaults,
// overridden by the user config file, overridden by the project config
// file, overridden by the LERIM_CONFIG environment override (§6 "Config
// layering"). It follows the teacher's pkg/config/loader.go shape (load →
// merge → apply-defaults → validate) but merges TOML documents with
// dario.cat/mergo instead of ent-style struct composition.
package config

import "time"

// MemoryScope controls which data roots participate in a run.
type MemoryScope string

const (
	// ScopeAuto uses the project root when a git repository is detected,
	// else falls back to the global root only.
	ScopeAuto MemoryScope = "auto"
	// ScopeProjectOnly restricts all state to the project data root.
	ScopeProjectOnly MemoryScope = "project_only"
	// ScopeGlobalOnly restricts all state to the global data root.
	ScopeGlobalOnly MemoryScope = "global_only"
)

// Defaults holds top-level behavioral defaults.
type Defaults struct {
	MemoryScope MemoryScope `toml:"memory_scope"`
}

// DecayConfig holds the parameters consumed by the maintain prompt's decay
// computation (§4.7). The computation itself lives in package access; this
// struct only carries the tunables.
type DecayConfig struct {
	// DecayDays is the number of days over which confidence decays linearly
	// to MinFloor once a memory stops being accessed.
	DecayDays float64 `toml:"decay_days"`
	// MinFloor is the minimum multiplier effective_confidence can reach.
	MinFloor float64 `toml:"min_floor"`
	// GraceDays is the window after last access during which a memory must
	// not be archived regardless of confidence.
	GraceDays float64 `toml:"grace_days"`
}

// DefaultDecayConfig returns the built-in decay tunables.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{DecayDays: 90, MinFloor: 0.2, GraceDays: 14}
}

// LLMRoleConfig names the provider/model used for one LLM role. Recovered
// from original_source/src/lerim/runtime/providers.py, which multiplexes
// calls by role (extract, summarize, chat, lead).
type LLMRoleConfig struct {
	Provider string `toml:"provider"` // "openrouter" | "openai" | "anthropic" | "zai"
	Model    string `toml:"model"`
}

// LLMConfig groups per-role provider/model selection plus the fixed
// provider → env var map (§6 "Environment variables" — API keys are read
// only from environment variables, never TOML).
type LLMConfig struct {
	Extract   LLMRoleConfig `toml:"extract"`
	Summarize LLMRoleConfig `toml:"summarize"`
	Chat      LLMRoleConfig `toml:"chat"`
	Lead      LLMRoleConfig `toml:"lead"`
}

// ProviderAPIKeyEnv is the fixed mapping of provider name to environment
// variable, per §6.
var ProviderAPIKeyEnv = map[string]string{
	"openrouter": "OPENROUTER_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"zai":        "ZAI_API_KEY",
}

// DefaultLLMConfig returns the built-in role → provider/model assignment.
func DefaultLLMConfig() LLMConfig {
	role := LLMRoleConfig{Provider: "anthropic", Model: "claude-sonnet-4"}
	return LLMConfig{Extract: role, Summarize: role, Chat: role, Lead: role}
}

// QueueConfig controls the session job queue's claim/retry/lease behavior
// (§3 "Queue job", §4.1), named analogously to the teacher's
// pkg/config/queue.go QueueConfig.
type QueueConfig struct {
	MaxAttempts       int           `toml:"max_attempts"`
	ClaimTimeout      time.Duration `toml:"claim_timeout"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	BackoffBase       time.Duration `toml:"backoff_base"`
	BackoffCap        time.Duration `toml:"backoff_cap"`
}

// DefaultQueueConfig returns the built-in queue defaults (§3).
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxAttempts:       3,
		ClaimTimeout:      300 * time.Second,
		HeartbeatInterval: 15 * time.Second,
		BackoffBase:       30 * time.Second,
		BackoffCap:        3600 * time.Second,
	}
}

// DaemonConfig controls the scheduler's independent sync/maintain intervals
// (§4.4). SyncCron/MaintainCron, when set, replace the corresponding fixed
// interval with a standard five-field cron expression evaluated by
// adhocore/gronx, for hosts that want e.g. "only sync on the hour".
type DaemonConfig struct {
	SyncIntervalMinutes     int `toml:"sync_interval_minutes"`
	MaintainIntervalMinutes int `toml:"maintain_interval_minutes"`
	SyncCron                string `toml:"sync_cron"`
	MaintainCron            string `toml:"maintain_cron"`
}

// DefaultDaemonConfig returns the built-in daemon defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{SyncIntervalMinutes: 15, MaintainIntervalMinutes: 360}
}

// LockConfig controls the writer lock's staleness threshold (§4.3).
type LockConfig struct {
	StaleSeconds int `toml:"stale_seconds"`
}

// DefaultLockConfig returns the built-in lock defaults.
func DefaultLockConfig() LockConfig { return LockConfig{StaleSeconds: 60} }

// HTTPConfig controls the local API server bind address (§6).
type HTTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DefaultHTTPConfig returns the built-in HTTP bind defaults.
func DefaultHTTPConfig() HTTPConfig { return HTTPConfig{Host: "127.0.0.1", Port: 8765} }

// NormalizePort collapses an out-of-range port to the default, per §8
// "Port parsing: > 65535 collapses to 8765."
func NormalizePort(port int) int {
	if port <= 0 || port > 65535 {
		return 8765
	}
	return port
}

// FileConfig is the shape of one TOML config file (user or project). Every
// field is optional; absent fields do not participate in the merge.
type FileConfig struct {
	Defaults *Defaults    `toml:"defaults"`
	Decay    *DecayConfig `toml:"decay"`
	LLM      *LLMConfig   `toml:"llm"`
	Queue    *QueueConfig `toml:"queue"`
	Daemon   *DaemonConfig `toml:"daemon"`
	Lock     *LockConfig  `toml:"lock"`
	HTTP     *HTTPConfig  `toml:"http"`
}

// Config is the fully resolved, ready-to-use configuration, analogous to
// the teacher's *config.Config returned from Initialize().
type Config struct {
	// GlobalRoot is ~/.lerim (or LERIM_HOME if set).
	GlobalRoot string
	// ProjectRoot is <git-root>/.lerim, empty when no project scope applies.
	ProjectRoot string

	Defaults Defaults
	Decay    DecayConfig
	LLM      LLMConfig
	Queue    *QueueConfig
	Daemon   DaemonConfig
	Lock     LockConfig
	HTTP     HTTPConfig

	// sourceFiles records which files contributed, for `status`/diagnostics.
	sourceFiles []string
}

// SourceFiles returns the config files that were successfully read, in
// precedence order (lowest first).
func (c *Config) SourceFiles() []string { return append([]string(nil), c.sourceFiles...) }

// APIKeyFor returns the environment variable value for a role's configured
// provider, and whether it was set. Never reads TOML for secrets (§6).
func (c *Config) APIKeyFor(role LLMRoleConfig) (string, bool) {
	envVar, ok := ProviderAPIKeyEnv[role.Provider]
	if !ok {
		return "", false
	}
	return lookupEnv(envVar)
}
