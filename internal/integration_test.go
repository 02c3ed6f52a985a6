package internal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wbridge/wbridge/internal/agent"
	"github.com/wbridge/wbridge/internal/control"
	"github.com/wbridge/wbridge/internal/protocol"
	"github.com/wbridge/wbridge/internal/selection"
)

// TestAgentLifecycleIntegration wires config -> agent -> control socket
// and drives the full cycle a user would: set a selection, watch the
// monitor record it, replay and swap history, fire a trigger, and
// reload settings from disk.
func TestAgentLifecycleIntegration(t *testing.T) {
	cfgDir := t.TempDir()

	settings := `[general]
history_max = "5"
poll_interval_ms = "60"

[history]
cipher = "none"
`
	if err := os.WriteFile(filepath.Join(cfgDir, "settings.toml"), []byte(settings), 0o600); err != nil {
		t.Fatal(err)
	}

	actions := `[[actions]]
name = "echo"
type = "shell"
command = "/bin/echo"
args = ["-n", "{text}"]

[triggers]
shout = "echo"
`
	if err := os.WriteFile(filepath.Join(cfgDir, "actions.toml"), []byte(actions), 0o600); err != nil {
		t.Fatal(err)
	}

	backend, err := selection.NewBackend("memory")
	if err != nil {
		t.Fatal(err)
	}

	socket := filepath.Join(t.TempDir(), "control.sock")
	a, err := agent.New(agent.Options{
		ConfigDir:  cfgDir,
		SocketPath: socket,
		Backend:    backend,
	})
	if err != nil {
		t.Fatalf("agent.New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.Run(ctx); err != nil {
			t.Errorf("Run() error: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c := control.NewClient(socket)
	waitUntil(t, 3*time.Second, "daemon ready", c.Ping)

	// Set and read back a selection through the wire.
	text := "alpha"
	ok, resp := c.Do(protocol.Request{Op: protocol.OpSelectionSet, Which: "clipboard", Text: &text})
	if !ok {
		t.Fatalf("selection.set failed: %+v", resp)
	}
	if got := resp.Data["len"]; got != float64(len(text)) {
		t.Errorf("selection.set len = %v, want %d", got, len(text))
	}

	ok, resp = c.Do(protocol.Request{Op: protocol.OpSelectionGet, Which: "clipboard"})
	if !ok || resp.Data["text"] != "alpha" {
		t.Fatalf("selection.get = %+v, want alpha", resp)
	}

	// The monitor records the new value into history.
	waitUntil(t, 2*time.Second, "alpha in history", func() bool {
		return historyEquals(c, "alpha")
	})

	text = "beta"
	if ok, resp := c.Do(protocol.Request{Op: protocol.OpSelectionSet, Which: "clipboard", Text: &text}); !ok {
		t.Fatalf("selection.set failed: %+v", resp)
	}
	waitUntil(t, 2*time.Second, "beta on top of history", func() bool {
		return historyEquals(c, "beta", "alpha")
	})

	// Swap promotes the previous entry and re-applies it.
	ok, resp = c.Do(protocol.Request{Op: protocol.OpHistorySwap, Which: "clipboard"})
	if !ok {
		t.Fatalf("history.swap failed: %+v", resp)
	}
	if resp.Data["applied"] != "alpha" {
		t.Errorf("history.swap applied = %v, want alpha", resp.Data["applied"])
	}
	waitUntil(t, 2*time.Second, "swap applied to selection", func() bool {
		ok, resp := c.Do(protocol.Request{Op: protocol.OpSelectionGet, Which: "clipboard"})
		return ok && resp.Data["text"] == "alpha"
	})

	// A trigger resolves its alias and runs the action.
	text = "hello from wire"
	ok, resp = c.Do(protocol.Request{
		Op:     protocol.OpTrigger,
		Cmd:    "shout",
		Text:   &text,
		Source: &protocol.Source{From: protocol.SourceText},
	})
	if !ok {
		t.Fatalf("trigger failed: %+v", resp)
	}
	if resp.Data["result"] != "hello from wire" {
		t.Errorf("trigger result = %v, want the echoed text", resp.Data["result"])
	}
	if resp.Data["name"] != "echo" {
		t.Errorf("trigger name = %v, want echo", resp.Data["name"])
	}

	ok, resp = c.Do(protocol.Request{Op: protocol.OpTrigger, Cmd: "missing"})
	if ok || resp.Code != protocol.CodeNotFound {
		t.Errorf("unknown trigger = %+v, want NOT_FOUND", resp)
	}
	if got := control.ExitCode(ok, resp); got != 3 {
		t.Errorf("ExitCode for NOT_FOUND = %d, want 3", got)
	}

	// Editing settings on disk shrinks the history after the watcher
	// reloads.
	resized := `[general]
history_max = "1"
poll_interval_ms = "60"

[history]
cipher = "none"
`
	if err := os.WriteFile(filepath.Join(cfgDir, "settings.toml"), []byte(resized), 0o600); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, 4*time.Second, "history trimmed after reload", func() bool {
		ok, resp := c.Do(protocol.Request{Op: protocol.OpHistoryList, Which: "clipboard"})
		if !ok {
			return false
		}
		items, _ := resp.Data["items"].([]any)
		return len(items) == 1
	})
}

// waitUntil polls cond every 25 ms and fails the test if it does not
// hold within d.
func waitUntil(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func historyEquals(c *control.Client, want ...string) bool {
	ok, resp := c.Do(protocol.Request{Op: protocol.OpHistoryList, Which: "clipboard"})
	if !ok {
		return false
	}
	items, _ := resp.Data["items"].([]any)
	if len(items) != len(want) {
		return false
	}
	for i, it := range items {
		if it != want[i] {
			return false
		}
	}
	return true
}
