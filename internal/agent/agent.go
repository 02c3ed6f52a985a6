// Package agent assembles and runs the wbridge daemon: config snapshot,
// history store, selection monitor, run loop, control server, and the
// reload rules that keep them in line with settings changes.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wbridge/wbridge/internal/action"
	"github.com/wbridge/wbridge/internal/bridge"
	"github.com/wbridge/wbridge/internal/cipher"
	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/control"
	"github.com/wbridge/wbridge/internal/fsutil"
	"github.com/wbridge/wbridge/internal/history"
	"github.com/wbridge/wbridge/internal/reload"
	"github.com/wbridge/wbridge/internal/runloop"
	"github.com/wbridge/wbridge/internal/selection"
)

// Options configure New.
type Options struct {
	// ConfigDir holds settings.toml and actions.toml. Empty means
	// config.DefaultDir().
	ConfigDir string
	// SocketPath overrides server.socket_path when non-empty.
	SocketPath string
	// Backend overrides the selection backend (tests, --backend memory).
	Backend selection.Backend
	// Frontend receives ui.show. Defaults to LogFrontend.
	Frontend Frontend
}

// Agent owns the daemon's long-lived state.
type Agent struct {
	cfgDir   string
	snapshot atomic.Pointer[config.Snapshot]

	loop       *runloop.Loop
	history    *history.Store
	backend    selection.Backend
	monitor    *Monitor
	dispatcher *bridge.Dispatcher
	server     *control.Server
	frontend   Frontend
	rules      *reload.Dispatcher
}

func New(opts Options) (*Agent, error) {
	cfgDir := opts.ConfigDir
	if cfgDir == "" {
		cfgDir = config.DefaultDir()
	}
	if err := fsutil.EnsureDir(cfgDir, 0o700); err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	a := &Agent{cfgDir: cfgDir}
	a.snapshot.Store(loadSnapshotLenient(cfgDir))
	settings := a.Snapshot().Settings

	c, err := cipher.New(settings.HistoryCipher())
	if err != nil {
		return nil, fmt.Errorf("history cipher: %w", err)
	}
	a.history = history.New(c, settings.HistoryMax())

	a.backend = opts.Backend
	if a.backend == nil {
		backend, err := selection.NewBackend("")
		if err != nil {
			return nil, err
		}
		a.backend = backend
	}

	a.frontend = opts.Frontend
	if a.frontend == nil {
		a.frontend = LogFrontend{}
	}

	a.loop = runloop.New()
	a.monitor = NewMonitor(a.loop, a.backend, a.history, settings.PollInterval())
	a.dispatcher = bridge.New(bridge.Deps{
		Loop:     a.loop,
		History:  a.history,
		Backend:  a.backend,
		Runner:   action.NewRunner(),
		Snapshot: a.Snapshot,
		Present:  func() { a.frontend.Present() },
	})

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = settings.SocketPath()
	}
	a.server = control.NewServer(socketPath, a.dispatcher.Dispatch)

	a.rules = reload.New()
	a.rules.OnAlways(func(_, new *config.Snapshot) {
		a.snapshot.Store(new)
	})
	a.rules.Register(reload.Rule{
		Name: "resize history",
		Key:  "general.history_max",
		Kind: reload.Callback,
		Handle: func(_, new *config.Snapshot) {
			a.history.Resize(new.Settings.HistoryMax())
		},
	})
	a.rules.Register(reload.Rule{
		Name: "retune poll interval",
		Key:  "general.poll_interval_ms",
		Kind: reload.Callback,
		Handle: func(_, new *config.Snapshot) {
			a.monitor.SetInterval(new.Settings.PollInterval())
		},
	})
	a.rules.Register(reload.Rule{Name: "socket path", Key: "server.socket_path", Kind: reload.Warn})
	a.rules.Register(reload.Rule{Name: "history cipher", Key: "history.cipher", Kind: reload.Warn})

	return a, nil
}

// Snapshot returns the current config snapshot.
func (a *Agent) Snapshot() *config.Snapshot {
	return a.snapshot.Load()
}

// SocketPath returns the control socket the agent serves on.
func (a *Agent) SocketPath() string {
	return a.server.SocketPath()
}

// Run blocks until ctx is cancelled. A control socket bind failure is
// logged and the daemon keeps running without its control plane, so a
// second instance degrades instead of crashing the desktop session.
func (a *Agent) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.loop.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()

	watcher, err := config.NewWatcher(a.cfgDir, a.Snapshot(), a.rules.Dispatch)
	if err != nil {
		slog.Warn("config watcher unavailable", "dir", a.cfgDir, "error", err)
	} else {
		go watcher.Run()
		defer watcher.Close()
	}

	if err := a.server.Listen(); err != nil {
		slog.Error("control socket unavailable, continuing without control plane", "error", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.server.Serve(ctx); err != nil {
				slog.Error("control server stopped", "error", err)
			}
		}()
	}

	slog.Info("wbridge agent running",
		"config_dir", a.cfgDir,
		"socket", a.server.SocketPath(),
		"backend", a.backend.Name(),
		"history_cipher", a.history.CipherName(),
	)

	<-ctx.Done()
	wg.Wait()
	return nil
}

// loadSnapshotLenient loads the config dir, degrading per file: a
// malformed settings.toml falls back to the defaults, a malformed
// actions.toml to no actions. The daemon comes up regardless.
func loadSnapshotLenient(dir string) *config.Snapshot {
	settings, err := config.LoadSettings(config.SettingsPath(dir))
	if err != nil {
		slog.Error("loading settings failed, using defaults", "path", config.SettingsPath(dir), "error", err)
		settings = config.DefaultSettings()
	}
	actions, err := config.LoadActions(config.ActionsPath(dir))
	if err != nil {
		slog.Error("loading actions failed, starting with none", "path", config.ActionsPath(dir), "error", err)
		actions = &config.ActionsFile{}
	}
	return config.NewSnapshot(settings, actions)
}
