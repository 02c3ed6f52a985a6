package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/wbridge/wbridge/internal/config"
)

// runShell executes one local process. With use_shell the command line
// runs through sh -c, with each arg quoted and appended; otherwise the
// command is resolved on PATH and invoked directly with args as argv.
func (r *Runner) runShell(ctx context.Context, a *config.Action, actx Context) (bool, string) {
	command := strings.TrimSpace(Expand(a.Command, actx))
	if command == "" {
		return false, "shell action missing command"
	}
	args := make([]string, 0, len(a.Args))
	for _, arg := range a.Args {
		args = append(args, Expand(arg, actx))
	}

	ctx, cancel := context.WithTimeout(ctx, r.shellTimeout)
	defer cancel()

	var cmd *exec.Cmd
	if a.UseShell {
		line := command
		if len(args) > 0 {
			parts := make([]string, 0, len(args)+1)
			parts = append(parts, command)
			for _, arg := range args {
				quoted, err := syntax.Quote(arg, syntax.LangPOSIX)
				if err != nil {
					return false, fmt.Sprintf("quote argument %q: %v", arg, err)
				}
				parts = append(parts, quoted)
			}
			line = strings.Join(parts, " ")
		}
		cmd = exec.CommandContext(ctx, "sh", "-c", line)
	} else {
		path, err := resolveCommand(command)
		if err != nil {
			return false, err.Error()
		}
		cmd = exec.CommandContext(ctx, path, args...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the whole process group so children go down too.
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err == unix.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return false, fmt.Sprintf("timeout after %s", r.shellTimeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return false, msg
			}
			return false, fmt.Sprintf("exit %d", exitErr.ExitCode())
		}
		return false, err.Error()
	}
	if msg := strings.TrimSpace(stdout.String()); msg != "" {
		return true, msg
	}
	return true, "ok"
}

func resolveCommand(name string) (string, error) {
	env := os.Environ()
	cwd, _ := os.Getwd()
	return interp.LookPathDir(cwd, expand.ListEnviron(env...), name)
}
