package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/profile"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Manage the wbridge configuration files",
		GroupID: "setup",
	}

	cmd.AddCommand(cfgPathCmd())
	cmd.AddCommand(cfgInitCmd())
	cmd.AddCommand(cfgValidateCmd())
	cmd.AddCommand(cfgEditCmd())
	return cmd
}

func cfgPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := configDir()
			fmt.Println(config.SettingsPath(dir))
			fmt.Println(config.ActionsPath(dir))
			return nil
		},
	}
}

func cfgInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create commented starter config files",
		Long: `Write commented starter settings.toml and actions.toml into the
config directory. Existing files are left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := profile.Install("default", configDir(), profile.Options{})
			if err != nil {
				return err
			}
			if len(report.Written) == 0 {
				fmt.Fprintln(os.Stderr, "config files already exist, nothing to do")
				return nil
			}
			for _, path := range report.Written {
				fmt.Fprintf(os.Stderr, "created %s\n", path)
			}
			return nil
		},
	}
}

func cfgValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config files without starting the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := configDir()
			var errs []error

			if _, err := config.LoadSettings(config.SettingsPath(dir)); err != nil {
				errs = append(errs, err)
			} else {
				fmt.Fprintln(os.Stderr, "settings: ok")
			}

			if af, err := config.LoadActions(config.ActionsPath(dir)); err != nil {
				errs = append(errs, err)
			} else {
				fmt.Fprintf(os.Stderr, "actions: ok (%d actions, %d triggers)\n",
					len(af.Actions), len(af.Triggers))
			}

			if len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintf(os.Stderr, "error: %v\n", e)
				}
				return fmt.Errorf("%d validation error(s)", len(errs))
			}

			fmt.Fprintln(os.Stderr, "all configs valid")
			return nil
		},
	}
}

func cfgEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "edit [settings|actions]",
		Short:     "Open a config file in $EDITOR",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"settings", "actions"},
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = os.Getenv("VISUAL")
			}
			if editor == "" {
				return fmt.Errorf("$EDITOR is not set")
			}

			dir := configDir()
			target := config.SettingsPath(dir)
			if len(args) == 1 && args[0] == "actions" {
				target = config.ActionsPath(dir)
			}

			c := exec.Command(editor, target)
			c.Stdin = os.Stdin
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			return c.Run()
		},
	}
}
