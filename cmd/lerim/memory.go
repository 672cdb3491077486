package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/memory"
)

// memoryCmd implements `memory {search Q [--limit N]|list [--limit N]|add
// ...|export ...|reset ...}` (§6).
func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Search, list, add, export, or reset memory primitives",
	}
	cmd.AddCommand(memorySearchCmd(), memoryListCmd(), memoryAddCmd(), memoryExportCmd(), memoryResetCmd())
	return cmd
}

func memorySearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search decisions, learnings, and summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryList(args[0], limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

func memoryListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every memory primitive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryList("", limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func runMemoryList(query string, limit int) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	entries, err := memory.List(rt.PrimaryLayout.Memory)
	if err != nil {
		return fatalf("memory: list: %w", err)
	}
	hits := memory.Search(entries, query, "", memory.StateActive)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	if jsonOutput {
		enc, _ := json.MarshalIndent(hits, "", "  ")
		fmt.Println(string(enc))
		return nil
	}
	for _, e := range hits {
		fmt.Printf("%-9s %-40s %s\n", e.Kind, e.Frontmatter.Title, e.Frontmatter.ID)
	}
	return nil
}

func memoryAddCmd() *cobra.Command {
	var (
		title      string
		body       string
		primitive  string
		kind       string
		confidence float64
		tags       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Manually author a decision or learning",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			var tagList []string
			if tags != "" {
				tagList = strings.Split(tags, ",")
			}

			p, err := memory.Add(rt.PrimaryLayout.Memory, memory.AddOptions{
				Primitive:  memory.Kind(primitive),
				Title:      title,
				Body:       body,
				Learning:   memory.LearningKind(kind),
				Confidence: confidence,
				Tags:       tagList,
				Source:     "manual",
			}, time.Now())
			if err != nil {
				return usagef("memory add: %w", err)
			}
			fmt.Printf("wrote %s\n", p.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "memory title (required)")
	cmd.Flags().StringVar(&body, "body", "", "memory body")
	cmd.Flags().StringVar(&primitive, "primitive", "decision", "decision or learning")
	cmd.Flags().StringVar(&kind, "kind", "", "learning kind: insight, procedure, friction, pitfall, preference")
	cmd.Flags().Float64Var(&confidence, "confidence", 1, "initial confidence in [0,1]")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	return cmd
}

func memoryExportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every memory primitive to a single file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := memory.List(rt.PrimaryLayout.Memory)
			if err != nil {
				return fatalf("memory export: %w", err)
			}

			var data []byte
			switch format {
			case "json":
				data, err = json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return fatalf("memory export: %w", err)
				}
			case "markdown", "":
				var b strings.Builder
				for _, e := range entries {
					fmt.Fprintf(&b, "## %s (%s)\n\n%s\n\n", e.Frontmatter.Title, e.Kind, e.Body)
				}
				data = []byte(b.String())
			default:
				return usagef("memory export: unknown format %q", format)
			}

			if output == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fatalf("memory export: write %s: %w", output, err)
			}
			fmt.Printf("wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "json or markdown")
	cmd.Flags().StringVar(&output, "output", "", "output path (default: stdout)")
	return cmd
}

func memoryResetCmd() *cobra.Command {
	var (
		scope string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe every memory primitive under the given scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usagef("memory reset: requires --yes to confirm")
			}
			if scope != "project" && scope != "global" && scope != "both" {
				return usagef("memory reset: --scope must be project, global, or both")
			}

			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			var roots []string
			switch scope {
			case "project":
				roots = []string{rt.PrimaryLayout.Memory}
			case "global":
				roots = []string{rt.GlobalLayout.Memory}
			case "both":
				roots = []string{rt.PrimaryLayout.Memory, rt.GlobalLayout.Memory}
			}

			for _, root := range uniqueStrings(roots) {
				if err := os.RemoveAll(root); err != nil {
					return fatalf("memory reset: remove %s: %w", root, err)
				}
				if err := os.MkdirAll(root, 0o755); err != nil {
					return fatalf("memory reset: recreate %s: %w", root, err)
				}
				if err := rt.Tracker.ResetRoot(root); err != nil {
					return fatalf("memory reset: %w", err)
				}
			}
			fmt.Printf("reset %s memory\n", scope)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "project, global, or both (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive reset")
	return cmd
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
