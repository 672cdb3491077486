package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/httpapi"
)

// serveCmd implements `serve [--host H] [--port P]` (§6): runs the HTTP
// API in the foreground until interrupted.
func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if host == "" {
				host = rt.Config.HTTP.Host
			}
			if port == 0 {
				port = rt.Config.HTTP.Port
			}

			server := httpapi.NewServer(rt)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("listening on http://%s:%d\n", host, port)
			if err := server.Start(ctx, host, port); err != nil {
				return fatalf("serve: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind host (default: config http.host)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (default: config http.port)")
	return cmd
}

func pidFilePath(globalRoot string) string { return filepath.Join(globalRoot, "lerim.pid") }
func logFilePath(globalRoot string) string { return filepath.Join(globalRoot, "lerim.log") }

// upCmd implements `up` (§6): spawns `lerim serve` as a detached background
// process and records its pid for `down`/`logs` to find.
func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start the HTTP API in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			pidPath := pidFilePath(cfg.GlobalRoot)
			if pid, ok := runningPid(pidPath); ok {
				return usagef("up: already running (pid %d)", pid)
			}

			exePath, err := os.Executable()
			if err != nil {
				return fatalf("up: %w", err)
			}

			logPath := logFilePath(cfg.GlobalRoot)
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fatalf("up: opening log file: %w", err)
			}
			defer logFile.Close()

			proc := exec.Command(exePath, "serve")
			proc.Stdout = logFile
			proc.Stderr = logFile
			proc.Stdin = nil
			if err := proc.Start(); err != nil {
				return fatalf("up: %w", err)
			}

			if err := os.WriteFile(pidPath, []byte(strconv.Itoa(proc.Process.Pid)), 0o644); err != nil {
				return fatalf("up: writing pid file: %w", err)
			}

			fmt.Printf("started, pid=%d log=%s\n", proc.Process.Pid, logPath)
			return nil
		},
	}
}

// downCmd implements `down` (§6): signals the pid recorded by `up` to
// shut down gracefully.
func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Stop the background HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			pidPath := pidFilePath(cfg.GlobalRoot)
			pid, ok := runningPid(pidPath)
			if !ok {
				return usagef("down: not running")
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				return fatalf("down: %w", err)
			}
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				return fatalf("down: %w", err)
			}

			for i := 0; i < 50; i++ {
				if !processAlive(pid) {
					break
				}
				time.Sleep(100 * time.Millisecond)
			}
			os.Remove(pidPath)
			fmt.Println("stopped")
			return nil
		},
	}
}

// logsCmd implements `logs [-f]` (§6): prints the background process's log
// file, optionally following it.
func logsCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the background HTTP API's log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := logFilePath(cfg.GlobalRoot)

			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return usagef("logs: no log file yet, has `lerim up` been run?")
				}
				return fatalf("logs: %w", err)
			}
			fmt.Print(string(data))

			if !follow {
				return nil
			}

			offset := int64(len(data))
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(500 * time.Millisecond):
				}
				f, err := os.Open(path)
				if err != nil {
					continue
				}
				info, err := f.Stat()
				if err != nil {
					f.Close()
					continue
				}
				if info.Size() > offset {
					buf := make([]byte, info.Size()-offset)
					if _, err := f.ReadAt(buf, offset); err == nil {
						fmt.Print(string(buf))
						offset = info.Size()
					}
				}
				f.Close()
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream new log lines as they are written")
	return cmd
}

// dashboardCmd implements `dashboard` (§6): opens the default browser to
// the running HTTP API's base URL.
func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Open the dashboard in the default browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url := apiBaseURL(cfg)
			if err := openBrowser(url); err != nil {
				return fatalf("dashboard: %w", err)
			}
			fmt.Printf("opened %s\n", url)
			return nil
		},
	}
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

func runningPid(pidPath string) (int, bool) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	if !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
