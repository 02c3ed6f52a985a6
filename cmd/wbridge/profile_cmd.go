package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbridge/wbridge/internal/profile"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Short:   "Install curated configuration presets",
		GroupID: "setup",
	}

	cmd.AddCommand(profileListCmd())
	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileInstallCmd())
	return cmd
}

func profileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List available profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := profile.List()
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Printf("%-15s %s\n", info.Name, info.Description)
			}
			return nil
		},
	}
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the files a profile would install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := profile.Files(args[0])
			if err != nil {
				return err
			}
			for _, name := range slices.Sorted(maps.Keys(files)) {
				fmt.Printf("# %s\n%s\n", name, files[name])
			}
			return nil
		},
	}
}

func profileInstallCmd() *cobra.Command {
	var overwrite bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "install <name>",
		Short: "Merge a profile into the config directory",
		Long: `Merge a profile's settings and actions into the config directory.

Your existing values win on collisions unless --overwrite is given;
any file about to change is first backed up next to itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := profile.Install(args[0], configDir(), profile.Options{
				Overwrite: overwrite,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintln(os.Stderr, "dry run, nothing written")
			}
			for _, b := range report.Backups {
				fmt.Fprintf(os.Stderr, "backed up %s\n", b)
			}
			for _, w := range report.Written {
				fmt.Fprintf(os.Stderr, "wrote %s\n", w)
			}
			printOutcome("settings", report.Settings)
			printOutcome("actions", report.Actions)
			printOutcome("triggers", report.Triggers)
			if len(report.Written) == 0 {
				fmt.Fprintln(os.Stderr, "nothing to change")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "let the profile replace your existing values")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

func printOutcome(label string, o profile.MergeOutcome) {
	if len(o.Added) > 0 {
		fmt.Fprintf(os.Stderr, "%s added: %s\n", label, strings.Join(o.Added, ", "))
	}
	if len(o.Replaced) > 0 {
		fmt.Fprintf(os.Stderr, "%s replaced: %s\n", label, strings.Join(o.Replaced, ", "))
	}
	if len(o.Skipped) > 0 {
		fmt.Fprintf(os.Stderr, "%s kept existing: %s\n", label, strings.Join(o.Skipped, ", "))
	}
}
