package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// chatCmd implements `chat <Q> [--limit N]` (§6). It tries the running
// gateway first and falls back to standalone (in-process) mode if nothing
// is listening, the same way goclaw's agent chat command does.
func chatCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "chat <question>",
		Short: "Ask a question answered with relevant memory as evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "maximum memory primitives to use as evidence")
	return cmd
}

func runChat(ctx context.Context, question string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fatalf("chat: %w", err)
	}
	base := apiBaseURL(cfg)

	if addr := hostPort(base); addr != "" && gatewayRunning(addr) {
		answer, err := chatOverHTTP(ctx, base, question, limit)
		if err != nil {
			return fatalf("chat: %w", err)
		}
		fmt.Println(answer)
		return nil
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	answer, err := rt.Chat(ctx, question, limit)
	if err != nil {
		return fatalf("chat: %w", err)
	}
	fmt.Println(answer)
	return nil
}

func hostPort(baseURL string) string {
	addr := strings.TrimPrefix(baseURL, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	return strings.TrimSuffix(addr, "/")
}

func gatewayRunning(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func chatOverHTTP(ctx context.Context, base, question string, limit int) (string, error) {
	body, _ := json.Marshal(map[string]any{"question": question, "limit": limit})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Answer string `json:"answer"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway: %s", out.Error)
	}
	return out.Answer, nil
}
