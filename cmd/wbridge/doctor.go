package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wbridge/wbridge/internal/cipher"
	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/control"
	"github.com/wbridge/wbridge/internal/selection"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"dr"},
		Short:   "Diagnose common issues",
		GroupID: "setup",
		Long: `Run a series of checks to diagnose common issues:

  - Settings and actions file validity
  - History cipher initialization
  - Selection backend availability and session type
  - Daemon status (PID file, control socket)
  - Integration endpoint health (when enabled)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var issues int
			dir := configDir()

			// 1. Config files.
			settings, err := config.LoadSettings(config.SettingsPath(dir))
			if err != nil {
				printCheck(false, "settings: %v", err)
				issues++
				settings = config.DefaultSettings()
			} else {
				printCheck(true, "settings loaded from %s", dir)
			}

			actions, err := config.LoadActions(config.ActionsPath(dir))
			if err != nil {
				printCheck(false, "actions: %v", err)
				issues++
			} else {
				printCheck(true, "actions loaded (%d actions, %d triggers)",
					len(actions.Actions), len(actions.Triggers))
			}

			// 2. History cipher.
			if c, err := cipher.New(settings.HistoryCipher()); err != nil {
				printCheck(false, "history cipher: %v", err)
				issues++
			} else {
				printCheck(true, "history cipher %q ready", c.Name())
			}

			// 3. Selection backend and session.
			if selection.SystemAvailable() {
				printCheck(true, "selection utilities found")
			} else {
				printCheck(false, "no selection utilities (install xclip, xsel, or wl-clipboard)")
				issues++
			}

			session := os.Getenv("XDG_SESSION_TYPE")
			switch {
			case session == "wayland" || os.Getenv("WAYLAND_DISPLAY") != "":
				printCheck(true, "wayland session")
			case session == "x11" || os.Getenv("DISPLAY") != "":
				printCheck(true, "x11 session")
			default:
				printCheck(false, "no graphical session detected (XDG_SESSION_TYPE, WAYLAND_DISPLAY, and DISPLAY unset)")
				issues++
			}

			// 4. Daemon status. Not running is not counted as an issue.
			if pid, err := readPID(); err != nil {
				printCheck(true, "daemon not running (no PID file at %s)", pidFilePath())
			} else if proc, ferr := os.FindProcess(pid); ferr != nil || proc.Signal(syscall.Signal(0)) != nil {
				printCheck(false, "stale PID file at %s (pid %d not alive)", pidFilePath(), pid)
				issues++
			} else {
				printCheck(true, "daemon running (pid %d)", pid)
				c := control.NewClient(socketPath)
				if c.Ping() {
					printCheck(true, "control socket responding at %s", c.SocketPath())
				} else {
					printCheck(false, "control socket not responding at %s", c.SocketPath())
					issues++
				}
			}

			// 5. Integration endpoint.
			if settings.HTTPTriggerEnabled() {
				url := settings.IntegrationBaseURL() + settings.IntegrationHealthPath()
				hc := &http.Client{Timeout: 2 * time.Second}
				resp, err := hc.Get(url)
				switch {
				case err != nil:
					printCheck(false, "integration %s: %v", url, err)
					issues++
				case resp.StatusCode/100 == 2:
					resp.Body.Close()
					printCheck(true, "integration %s: %s", url, resp.Status)
				default:
					resp.Body.Close()
					printCheck(false, "integration %s: %s", url, resp.Status)
					issues++
				}
			}

			return printSummary(issues)
		},
	}
}

func printCheck(ok bool, format string, args ...any) {
	prefix := "ok"
	if !ok {
		prefix = "!!"
	}
	msg := fmt.Sprintf(format, args...)
	// Indent continuation lines.
	msg = strings.ReplaceAll(msg, "\n", "\n      ")
	fmt.Fprintf(os.Stderr, "  [%s] %s\n", prefix, msg)
}

func printSummary(issues int) error {
	fmt.Fprintln(os.Stderr)
	if issues == 0 {
		fmt.Fprintln(os.Stderr, "No issues found.")
		return nil
	}
	return fmt.Errorf("%d issue(s) found", issues)
}
