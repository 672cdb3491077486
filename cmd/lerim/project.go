package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lerim-dev/lerim/internal/project"
)

// projectCmd implements `project {add <path>|list|remove <name>}` (§6).
func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project {add <path>|list|remove <name>}",
		Short: "Manage project membership",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "list":
				return runProjectList()
			case "add":
				if len(args) < 2 {
					return usagef("project add: requires a path")
				}
				return runProjectAdd(args[1])
			case "remove":
				if len(args) < 2 {
					return usagef("project remove: requires a name")
				}
				return runProjectRemove(args[1])
			default:
				return usagef("project: unknown subcommand %q", args[0])
			}
		},
	}
	return cmd
}

func runProjectList() error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, name := range rt.Projects.Names() {
		entry, _ := rt.Projects.Get(name)
		fmt.Printf("%-20s %s\n", name, entry.Path)
	}
	return nil
}

func runProjectAdd(path string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	name, err := project.Add(rt.Projects, path)
	if err != nil {
		return fatalf("adding project: %w", err)
	}
	if err := rt.Projects.Save(); err != nil {
		return fatalf("saving project registry: %w", err)
	}
	fmt.Printf("registered %s -> %s\n", name, path)
	return nil
}

func runProjectRemove(name string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Projects.Remove(name)
	if err := rt.Projects.Save(); err != nil {
		return fatalf("saving project registry: %w", err)
	}
	fmt.Printf("removed %s\n", name)
	return nil
}
