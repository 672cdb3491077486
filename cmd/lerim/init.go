package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/config"
)

// providerEnvPriority lists the providers init auto-detects from
// environment variables, in preference order, grounded on
// vanducng-goclaw/cmd/onboard_auto.go's providerPriority/canAutoOnboard
// first-match-wins scan.
var providerEnvPriority = []string{"anthropic", "openai", "openrouter", "zai"}

func detectProvider() (provider string, ok bool) {
	for _, p := range providerEnvPriority {
		envVar, known := config.ProviderAPIKeyEnv[p]
		if !known {
			continue
		}
		if os.Getenv(envVar) != "" {
			return p, true
		}
	}
	return "", false
}

func initCmd() *cobra.Command {
	var nonInteractive bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive wizard that writes the user config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(nonInteractive)
		},
	}
	cmd.Flags().BoolVar(&nonInteractive, "yes", false, "skip prompts, auto-detect provider from environment")
	return cmd
}

func runInit(nonInteractive bool) error {
	globalRoot, err := config.GlobalRoot()
	if err != nil {
		return fatalf("resolving global root: %w", err)
	}
	if err := os.MkdirAll(globalRoot, 0o755); err != nil {
		return fatalf("creating %s: %w", globalRoot, err)
	}

	provider, detected := detectProvider()
	model := config.DefaultLLMConfig().Lead.Model
	scope := string(config.ScopeAuto)
	port := config.DefaultHTTPConfig().Port

	if !nonInteractive {
		reader := bufio.NewReader(os.Stdin)

		if detected {
			fmt.Printf("Detected provider %q from environment.\n", provider)
		} else {
			fmt.Print("LLM provider (openrouter, openai, anthropic, zai): ")
			if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
				provider = strings.TrimSpace(line)
			} else {
				provider = "anthropic"
			}
		}

		fmt.Printf("Model [%s]: ", model)
		if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
			model = strings.TrimSpace(line)
		}

		fmt.Printf("Memory scope (auto, project_only, global_only) [%s]: ", scope)
		if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
			scope = strings.TrimSpace(line)
		}
	} else if !detected {
		provider = "anthropic"
	}

	role := config.LLMRoleConfig{Provider: provider, Model: model}
	fc := config.FileConfig{
		Defaults: &config.Defaults{MemoryScope: config.MemoryScope(scope)},
		LLM: &config.LLMConfig{
			Extract:   role,
			Summarize: role,
			Chat:      role,
			Lead:      role,
		},
		HTTP: &config.HTTPConfig{Host: "127.0.0.1", Port: port},
	}

	path := filepath.Join(globalRoot, "config.toml")
	f, err := os.Create(path)
	if err != nil {
		return fatalf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(fc); err != nil {
		return fatalf("writing %s: %w", path, err)
	}

	if envVar, ok := config.ProviderAPIKeyEnv[provider]; ok {
		if os.Getenv(envVar) == "" {
			fmt.Printf("Wrote %s. Set %s before running sync/maintain/chat.\n", path, envVar)
			return nil
		}
	}
	fmt.Printf("Wrote %s.\n", path)
	return nil
}
