package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wbridge/wbridge/internal/agent"
	"github.com/wbridge/wbridge/internal/control"
	"github.com/wbridge/wbridge/internal/selection"
)

func runCmd() *cobra.Command {
	var backendKind string

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the wbridge daemon in the foreground",
		GroupID: "daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := acquirePIDLock()
			if err != nil {
				return err
			}
			defer func() {
				lock.Close()
				os.Remove(pidFilePath())
			}()

			var backend selection.Backend
			if backendKind != "" {
				backend, err = selection.NewBackend(backendKind)
				if err != nil {
					return err
				}
			}

			a, err := agent.New(agent.Options{
				ConfigDir:  configDir(),
				SocketPath: socketPath,
				Backend:    backend,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				slog.Info("received signal, shutting down", "signal", sig)
				cancel()
			}()

			return a.Run(ctx)
		},
	}

	cmd.Flags().
		StringVar(&backendKind, "backend", "", `selection backend: "system" or "memory" (default: system)`)
	return cmd
}

func startCmd() *cobra.Command {
	var backendKind string

	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the wbridge daemon in the background",
		GroupID: "daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemonizeStart(backendKind)
		},
	}

	cmd.Flags().
		StringVar(&backendKind, "backend", "", `selection backend: "system" or "memory" (default: system)`)
	return cmd
}

// daemonizeStart re-execs "wbridge run" detached from the terminal,
// with stdout/stderr appended to the state-dir log file.
func daemonizeStart(backendKind string) error {
	if pid, err := readPID(); err == nil {
		if proc, ferr := os.FindProcess(pid); ferr == nil {
			if proc.Signal(syscall.Signal(0)) == nil {
				return fmt.Errorf("wbridge is already running (pid %d)", pid)
			}
		}
	}

	if err := os.MkdirAll(stateDir(), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	logF, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logF.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	args := []string{"run"}
	if cfgDir != "" {
		args = append(args, "--config", cfgDir)
	}
	if socketPath != "" {
		args = append(args, "--socket", socketPath)
	}
	if backendKind != "" {
		args = append(args, "--backend", backendKind)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logF
	child.Stderr = logF
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}

	fmt.Fprintf(os.Stderr, "wbridge started (pid %d), logging to %s\n", child.Process.Pid, logFilePath())
	return child.Process.Release()
}

func stopCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:     "stop",
		Short:   "Stop the running wbridge daemon",
		GroupID: "daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(grace)
		},
	}

	cmd.Flags().
		DurationVar(&grace, "grace", 5*time.Second, "how long to wait after SIGTERM before SIGKILL")
	return cmd
}

func stopDaemon(grace time.Duration) error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("reading PID file: %w (is the daemon running?)", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			os.Remove(pidFilePath())
			fmt.Fprintln(os.Stderr, "wbridge was not running, removed stale PID file")
			return nil
		}
		return fmt.Errorf("sending SIGTERM to %d: %w", pid, err)
	}
	fmt.Fprintf(os.Stderr, "sent SIGTERM to wbridge (pid %d)\n", pid)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if proc.Signal(syscall.Signal(0)) != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := proc.Signal(syscall.SIGKILL); err == nil {
		fmt.Fprintf(os.Stderr, "daemon did not exit within %s, sent SIGKILL\n", grace)
	}
	return nil
}

func restartCmd() *cobra.Command {
	var backendKind string

	cmd := &cobra.Command{
		Use:     "restart",
		Short:   "Restart the wbridge daemon",
		GroupID: "daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readPID(); err == nil {
				if err := stopDaemon(5 * time.Second); err != nil {
					return err
				}
			}
			return daemonizeStart(backendKind)
		},
	}

	cmd.Flags().
		StringVar(&backendKind, "backend", "", `selection backend: "system" or "memory" (default: system)`)
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show daemon status",
		GroupID: "daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := readPID()
			if err != nil {
				fmt.Println("wbridge is not running")
				return nil
			}

			proc, err := os.FindProcess(pid)
			if err != nil {
				fmt.Println("wbridge is not running")
				return nil
			}

			// On Unix, FindProcess always succeeds; signal 0 checks liveness.
			if err := proc.Signal(syscall.Signal(0)); err != nil {
				fmt.Println("wbridge is not running (stale PID file)")
				return nil
			}

			fmt.Printf("wbridge is running (pid %d)\n", pid)

			c := control.NewClient(socketPath)
			if c.Ping() {
				fmt.Printf("control socket responding at %s\n", c.SocketPath())
			} else {
				fmt.Printf("control socket not responding at %s\n", c.SocketPath())
			}
			return nil
		},
	}
}
