package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/memory"
)

// statusCmd implements `status` (§6): forwards to the running gateway's
// GET /api/status when one is reachable, otherwise falls back to querying
// standalone state directly through a fresh runtime.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report connected platforms, memory counts, and the latest sync/maintain runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fatalf("status: %w", err)
	}
	base := apiBaseURL(cfg)

	if addr := hostPort(base); addr != "" && gatewayRunning(addr) {
		resp, err := http.Get(base + "/api/status")
		if err != nil {
			return fatalf("status: %w", err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fatalf("status: %w", err)
		}
		if jsonOutput {
			fmt.Println(string(body))
			return nil
		}
		return printStatusHuman(body)
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entries, err := memory.List(rt.PrimaryLayout.Memory)
	if err != nil {
		return fatalf("status: %w", err)
	}

	if jsonOutput {
		enc, _ := json.MarshalIndent(map[string]any{
			"connected_agents": rt.Platforms.Names(),
			"memory_count":     len(entries),
		}, "", "  ")
		fmt.Println(string(enc))
		return nil
	}

	fmt.Printf("platforms: %v\n", rt.Platforms.Names())
	fmt.Printf("memory_count: %d\n", len(entries))
	return nil
}

func printStatusHuman(body []byte) error {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		fmt.Println(string(body))
		return nil
	}
	for _, key := range []string{"connected_agents", "memory_count", "sessions_indexed_count", "queue_counts", "latest_sync", "latest_maintain", "timestamp"} {
		if v, ok := out[key]; ok {
			fmt.Printf("%s: %v\n", key, v)
		}
	}
	return nil
}
