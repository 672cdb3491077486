package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/adhocore/gronx"
)

// Load resolves the full layered configuration: built-in defaults, then
// ~/.lerim/config.toml, then <git-root>/.lerim/config.toml (unless
// memory.scope is global_only), then the file named by LERIM_CONFIG if
// set. This mirrors the teacher's config.Initialize entry point: load,
// then validate, return ready-to-use Config.
//
// cwd is the directory to search upward from for a git root; pass "" to
// use the process working directory.
func Load(cwd string) (*Config, error) {
	cfg, err := load(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func load(cwd string) (*Config, error) {
	globalRoot, err := GlobalRoot()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		GlobalRoot: globalRoot,
		Defaults:   Defaults{MemoryScope: ScopeAuto},
		Decay:      DefaultDecayConfig(),
		LLM:        DefaultLLMConfig(),
		Queue:      DefaultQueueConfig(),
		Daemon:     DefaultDaemonConfig(),
		Lock:       DefaultLockConfig(),
		HTTP:       DefaultHTTPConfig(),
	}

	// 1. User config (~/.lerim/config.toml).
	userPath := filepath.Join(globalRoot, "config.toml")
	userFC, err := loadFileConfig(userPath)
	if err != nil {
		return nil, NewLoadError(userPath, err)
	}
	if userFC != nil {
		if err := applyFileConfig(cfg, userFC); err != nil {
			return nil, NewLoadError(userPath, err)
		}
		cfg.sourceFiles = append(cfg.sourceFiles, userPath)
	}

	// 2. Project config, unless scope is global_only.
	if cfg.Defaults.MemoryScope != ScopeGlobalOnly {
		if gitRoot, ok := findGitRoot(cwd); ok {
			cfg.ProjectRoot = filepath.Join(gitRoot, ".lerim")
			projPath := filepath.Join(cfg.ProjectRoot, "config.toml")
			projFC, err := loadFileConfig(projPath)
			if err != nil {
				return nil, NewLoadError(projPath, err)
			}
			if projFC != nil {
				if err := applyFileConfig(cfg, projFC); err != nil {
					return nil, NewLoadError(projPath, err)
				}
				cfg.sourceFiles = append(cfg.sourceFiles, projPath)
			}
		}
	}

	// 3. Explicit override via LERIM_CONFIG.
	if overridePath := os.Getenv("LERIM_CONFIG"); overridePath != "" {
		overrideFC, err := loadFileConfig(overridePath)
		if err != nil {
			return nil, NewLoadError(overridePath, err)
		}
		if overrideFC == nil {
			return nil, NewLoadError(overridePath, ErrConfigNotFound)
		}
		if err := applyFileConfig(cfg, overrideFC); err != nil {
			return nil, NewLoadError(overridePath, err)
		}
		cfg.sourceFiles = append(cfg.sourceFiles, overridePath)
	}

	// Port is always normalized, regardless of which layer set it (§8).
	cfg.HTTP.Port = NormalizePort(cfg.HTTP.Port)

	return cfg, nil
}

// loadFileConfig reads and parses one TOML layer. A missing file is not an
// error — it returns (nil, nil) so the caller simply skips that layer.
func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var fc FileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	return &fc, nil
}

// GlobalRoot returns the global data root, honoring LERIM_HOME if set,
// defaulting to ~/.lerim.
func GlobalRoot() (string, error) {
	if home := os.Getenv("LERIM_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(userHome, ".lerim"), nil
}

// findGitRoot walks upward from start (or the cwd if start is "") looking
// for a .git directory, returning the containing directory.
func findGitRoot(start string) (string, bool) {
	dir := start
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", false
		}
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info != nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Validate performs field-level checks and folds invalid values to typed
// defaults, logging a warning rather than failing the whole load, matching
// §7 "ConfigError ... each helper folds to a typed default."
func Validate(cfg *Config) error {
	if cfg.HTTP.Port != NormalizePort(cfg.HTTP.Port) {
		slog.Warn("invalid http.port, resetting to default", "value", cfg.HTTP.Port)
		cfg.HTTP.Port = NormalizePort(cfg.HTTP.Port)
	}
	if cfg.Decay.DecayDays <= 0 {
		slog.Warn("invalid decay.decay_days, resetting to default", "value", cfg.Decay.DecayDays)
		cfg.Decay.DecayDays = DefaultDecayConfig().DecayDays
	}
	if cfg.Decay.MinFloor < 0 || cfg.Decay.MinFloor > 1 {
		slog.Warn("invalid decay.min_floor, resetting to default", "value", cfg.Decay.MinFloor)
		cfg.Decay.MinFloor = DefaultDecayConfig().MinFloor
	}
	if cfg.Queue.MaxAttempts < 1 {
		slog.Warn("invalid queue.max_attempts, resetting to default", "value", cfg.Queue.MaxAttempts)
		cfg.Queue.MaxAttempts = DefaultQueueConfig().MaxAttempts
	}
	if cfg.Daemon.SyncIntervalMinutes < 1 {
		cfg.Daemon.SyncIntervalMinutes = DefaultDaemonConfig().SyncIntervalMinutes
	}
	if cfg.Daemon.MaintainIntervalMinutes < 1 {
		cfg.Daemon.MaintainIntervalMinutes = DefaultDaemonConfig().MaintainIntervalMinutes
	}
	if cfg.Daemon.SyncCron != "" && !gronx.IsValid(cfg.Daemon.SyncCron) {
		slog.Warn("invalid daemon.sync_cron, ignoring", "value", cfg.Daemon.SyncCron)
		cfg.Daemon.SyncCron = ""
	}
	if cfg.Daemon.MaintainCron != "" && !gronx.IsValid(cfg.Daemon.MaintainCron) {
		slog.Warn("invalid daemon.maintain_cron, ignoring", "value", cfg.Daemon.MaintainCron)
		cfg.Daemon.MaintainCron = ""
	}
	if cfg.Lock.StaleSeconds < 1 {
		cfg.Lock.StaleSeconds = DefaultLockConfig().StaleSeconds
	}
	return nil
}

// DataRoots returns the data roots this config's scope selects, highest
// precedence first. ScopeProjectOnly/ScopeGlobalOnly return exactly one
// root; ScopeAuto returns both when a project root was found (project
// shadows global for memory writes, but both are read for search).
func (c *Config) DataRoots() []string {
	switch c.Defaults.MemoryScope {
	case ScopeGlobalOnly:
		return []string{c.GlobalRoot}
	case ScopeProjectOnly:
		if c.ProjectRoot != "" {
			return []string{c.ProjectRoot}
		}
		return []string{c.GlobalRoot}
	default: // ScopeAuto
		if c.ProjectRoot != "" {
			return []string{c.ProjectRoot, c.GlobalRoot}
		}
		return []string{c.GlobalRoot}
	}
}

// PrimaryDataRoot returns the data root that sync/maintain write to: the
// first entry of DataRoots().
func (c *Config) PrimaryDataRoot() string {
	return c.DataRoots()[0]
}
