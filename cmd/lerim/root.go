// Command lerim implements the CLI's cobra command tree, mirroring §6's
// verb list one-to-one. Grounded on vanducng-goclaw/cmd/root.go's
// persistent-flags-plus-AddCommand shape, adapted from goclaw's own JSON
// config file to Lerim's layered TOML config, and kept in one cmd/lerim
// binary package the way the teacher's cmd/tarsy/main.go is one package
// rather than split into a separate cmd library package.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/config"
	"github.com/lerim-dev/lerim/internal/runtime"
	"github.com/lerim-dev/lerim/internal/version"
)

// Version reports the build's git commit, derived from embedded VCS info
// rather than -ldflags (see internal/version).
var Version = version.Full()

// Exit codes, per §6: "0 OK, 1 fatal, 2 usage, 3 partial, 4 lock busy".
const (
	ExitOK        = 0
	ExitFatal     = 1
	ExitUsage     = 2
	ExitPartial   = 3
	ExitLockBusy  = 4
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:     "lerim",
	Short:   "Lerim — continual-learning memory for coding-agent sessions",
	Long:    "Lerim indexes coding-agent sessions, extracts durable decisions and learnings, and serves them back as evidence for future sessions.",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "place structured output on stdout")
	rootCmd.SetVersionTemplate("lerim {{.Version}}\n")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(maintainCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(downCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(dashboardCmd())
}

// Execute runs the root cobra command, translating a returned error into
// the appropriate process exit code (§6).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if ce, ok := err.(*cliError); ok {
			fmt.Fprintln(os.Stderr, ce.Error())
			return ce.code
		}
		fmt.Fprintln(os.Stderr, err)
		return ExitFatal
	}
	return ExitOK
}

// cliError pairs an error message with the process exit code it should
// produce, letting a single Execute() call site translate every command's
// failure uniformly (§6's 0/1/2/3/4 exit code contract).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func fatalf(format string, args ...any) error {
	return &cliError{code: ExitFatal, err: fmt.Errorf(format, args...)}
}

func usagef(format string, args ...any) error {
	return &cliError{code: ExitUsage, err: fmt.Errorf(format, args...)}
}

func partialf(format string, args ...any) error {
	return &cliError{code: ExitPartial, err: fmt.Errorf(format, args...)}
}

func lockBusyf(format string, args ...any) error {
	return &cliError{code: ExitLockBusy, err: fmt.Errorf(format, args...)}
}

// loadDotEnv loads a .env file into the process environment before
// configuration resolution, so LERIM_CONFIG/LERIM_HOME overrides and
// ${VAR}-expanded TOML values (API keys, model names) can come from a
// .env file instead of the shell. A missing .env in either location is
// not an error; a variable already set in the environment always wins.
func loadDotEnv() {
	home, err := config.GlobalRoot()
	if err == nil {
		if loadErr := godotenv.Load(filepath.Join(home, ".env")); loadErr != nil && !os.IsNotExist(loadErr) {
			slog.Debug("could not load .env", "path", filepath.Join(home, ".env"), "error", loadErr)
		}
	}
	if loadErr := godotenv.Load(".env"); loadErr != nil && !os.IsNotExist(loadErr) {
		slog.Debug("could not load .env", "path", ".env", "error", loadErr)
	}
}

// loadConfig resolves the layered configuration once per command
// invocation (§6 "Config layering").
func loadConfig() (*config.Config, error) {
	loadDotEnv()
	cfg, err := config.Load("")
	if err != nil {
		return nil, fatalf("loading configuration: %w", err)
	}
	return cfg, nil
}

// openRuntime loads config and builds a fully wired Runtime, closing it is
// the caller's responsibility (defer rt.Close()).
func openRuntime() (*runtime.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := runtime.New(cfg)
	if err != nil {
		return nil, fatalf("initializing runtime: %w", err)
	}
	return rt, nil
}

// apiBaseURL returns the local HTTP API's base URL per the resolved
// config's host/port (§6 "HTTP API (default 127.0.0.1:8765)").
func apiBaseURL(cfg *config.Config) string {
	host := cfg.HTTP.Host
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.HTTP.Port)
}
