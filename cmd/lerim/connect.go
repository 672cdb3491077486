package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// connectCmd implements `connect [list|auto|remove <name>|<platform>
// [--path P]]` (§6).
func connectCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "connect [list|auto|remove <name>|<platform>]",
		Short: "Manage the connected-platform registry",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("connect: requires a subcommand or platform name")
			}
			switch args[0] {
			case "list":
				return runConnectList()
			case "auto":
				return runConnectAuto()
			case "remove":
				if len(args) < 2 {
					return usagef("connect remove: requires a name")
				}
				return runConnectRemove(args[1])
			default:
				return runConnectOne(args[0], path)
			}
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "override the platform's default traces directory")
	return cmd
}

func runConnectList() error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, name := range rt.Platforms.Names() {
		entry, _ := rt.Platforms.Get(name)
		fmt.Printf("%-10s %s (connected %s)\n", name, entry.SourcePath, entry.ConnectedAt.Format("2006-01-02"))
	}
	return nil
}

func runConnectAuto() error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	added := rt.Platforms.AutoSeed(rt.Adapters)
	if err := rt.Platforms.Save(); err != nil {
		return fatalf("saving platform registry: %w", err)
	}
	if len(added) == 0 {
		fmt.Println("no new platforms detected")
		return nil
	}
	for _, name := range added {
		fmt.Printf("connected %s\n", name)
	}
	return nil
}

func runConnectRemove(name string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Platforms.Remove(name)
	if err := rt.Platforms.Save(); err != nil {
		return fatalf("saving platform registry: %w", err)
	}
	fmt.Printf("removed %s\n", name)
	return nil
}

func runConnectOne(platform, path string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if path == "" {
		adapter, ok := rt.Adapters.Get(platform)
		if !ok {
			return usagef("connect: unknown platform %q", platform)
		}
		path = adapter.DefaultPath()
		if path == "" {
			return usagef("connect: %s has no default path, pass --path", platform)
		}
	}

	rt.Platforms.Add(platform, path)
	if err := rt.Platforms.Save(); err != nil {
		return fatalf("saving platform registry: %w", err)
	}
	fmt.Printf("connected %s at %s\n", platform, path)
	return nil
}
