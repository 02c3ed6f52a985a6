// Package config loads and watches the wbridge configuration: a
// settings.toml of stringly-typed sections and an actions.toml of
// action definitions and trigger aliases. The daemon holds the loaded
// state as an immutable Snapshot behind an atomic pointer; reloads
// build a fresh snapshot and swap the reference.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Settings is the [section] -> key -> value view of settings.toml.
// Values stay strings so {config.section.key} placeholder lookups are
// lossless; the typed accessors parse on demand and fall back to the
// defaults on bad input.
type Settings map[string]map[string]string

// DefaultSettings returns the built-in settings. Loaded files overlay
// these, so every key always resolves.
func DefaultSettings() Settings {
	return Settings{
		"general": {
			"history_max":      "50",
			"poll_interval_ms": "300",
		},
		"integration": {
			"http_trigger_enabled": "false",
			"base_url":             "http://127.0.0.1:18081",
			"health_path":          "/health",
			"trigger_path":         "/trigger",
		},
		"server": {
			"socket_path": "",
		},
		"history": {
			"cipher": "age",
		},
	}
}

// Get returns a settings value, or "" when the section or key is
// absent.
func (s Settings) Get(section, key string) string {
	if sec, ok := s[section]; ok {
		return sec[key]
	}
	return ""
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for sec, kv := range s {
		m := make(map[string]string, len(kv))
		for k, v := range kv {
			m[k] = v
		}
		out[sec] = m
	}
	return out
}

func (s Settings) intValue(section, key string, fallback int) int {
	v := strings.TrimSpace(s.Get(section, key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s Settings) boolValue(section, key string) bool {
	switch strings.ToLower(strings.TrimSpace(s.Get(section, key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// HistoryMax returns general.history_max, at least 1.
func (s Settings) HistoryMax() int {
	n := s.intValue("general", "history_max", 50)
	if n < 1 {
		return 1
	}
	return n
}

// PollInterval returns general.poll_interval_ms as a duration with a
// 50 ms floor.
func (s Settings) PollInterval() time.Duration {
	ms := s.intValue("general", "poll_interval_ms", 300)
	if ms < 50 {
		ms = 50
	}
	return time.Duration(ms) * time.Millisecond
}

// HistoryCipher returns history.cipher ("age" or "none").
func (s Settings) HistoryCipher() string {
	if v := s.Get("history", "cipher"); v != "" {
		return v
	}
	return "age"
}

// SocketPath returns server.socket_path, or the runtime default when
// unset.
func (s Settings) SocketPath() string {
	if v := s.Get("server", "socket_path"); v != "" {
		return ExpandPath(v)
	}
	return DefaultSocketPath()
}

func (s Settings) HTTPTriggerEnabled() bool {
	return s.boolValue("integration", "http_trigger_enabled")
}

func (s Settings) IntegrationBaseURL() string {
	return s.Get("integration", "base_url")
}

func (s Settings) IntegrationHealthPath() string {
	return s.Get("integration", "health_path")
}

func (s Settings) IntegrationTriggerPath() string {
	return s.Get("integration", "trigger_path")
}

// LoadSettings reads a settings.toml and overlays it onto the
// defaults. A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	loaded := Settings{}
	if _, err := toml.DecodeFile(path, &loaded); err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("parsing settings: %w", err)
	}

	out := DefaultSettings()
	for sec, kv := range loaded {
		if out[sec] == nil {
			out[sec] = make(map[string]string, len(kv))
		}
		for k, v := range kv {
			out[sec][k] = v
		}
	}
	return out, nil
}

// Snapshot is one immutable view of the loaded configuration.
type Snapshot struct {
	Settings   Settings
	Actions    map[string]*Action
	ActionList []*Action
	Triggers   map[string]string
}

// NewSnapshot assembles a snapshot from loaded parts.
func NewSnapshot(settings Settings, actions *ActionsFile) *Snapshot {
	if settings == nil {
		settings = DefaultSettings()
	}
	if actions == nil {
		actions = &ActionsFile{}
	}
	byName := make(map[string]*Action, len(actions.Actions))
	for _, a := range actions.Actions {
		byName[a.Name] = a
	}
	triggers := actions.Triggers
	if triggers == nil {
		triggers = map[string]string{}
	}
	return &Snapshot{
		Settings:   settings,
		Actions:    byName,
		ActionList: actions.Actions,
		Triggers:   triggers,
	}
}

// LoadSnapshot loads settings.toml and actions.toml from dir.
func LoadSnapshot(dir string) (*Snapshot, error) {
	settings, err := LoadSettings(SettingsPath(dir))
	if err != nil {
		return nil, err
	}
	actions, err := LoadActions(ActionsPath(dir))
	if err != nil {
		return nil, err
	}
	return NewSnapshot(settings, actions), nil
}

// Action returns a configured action by name.
func (sn *Snapshot) Action(name string) (*Action, bool) {
	a, ok := sn.Actions[name]
	return a, ok
}

// Trigger returns the action name behind a trigger alias.
func (sn *Snapshot) Trigger(alias string) (string, bool) {
	name, ok := sn.Triggers[alias]
	return name, ok
}

// DiffResult describes what changed between two snapshots.
type DiffResult struct {
	Old *Snapshot
	New *Snapshot
}

func Diff(old, new *Snapshot) *DiffResult {
	return &DiffResult{Old: old, New: new}
}

// ChangedKeys returns the "section.key" settings keys whose values
// differ, sorted.
func (d *DiffResult) ChangedKeys() []string {
	seen := map[string]bool{}
	for sec, kv := range d.Old.Settings {
		for k, v := range kv {
			if d.New.Settings.Get(sec, k) != v {
				seen[sec+"."+k] = true
			}
		}
	}
	for sec, kv := range d.New.Settings {
		for k, v := range kv {
			if d.Old.Settings.Get(sec, k) != v {
				seen[sec+"."+k] = true
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *DiffResult) SettingsChanged() bool {
	return !reflect.DeepEqual(d.Old.Settings, d.New.Settings)
}

func (d *DiffResult) ActionsChanged() bool {
	return !reflect.DeepEqual(d.Old.ActionList, d.New.ActionList) ||
		!reflect.DeepEqual(d.Old.Triggers, d.New.Triggers)
}

func (d *DiffResult) HasChanges() bool {
	return d.SettingsChanged() || d.ActionsChanged()
}

// ExpandPath expands a leading ~/ and environment variables.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// DefaultDir returns the config directory,
// $XDG_CONFIG_HOME/wbridge or ~/.config/wbridge.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wbridge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "wbridge")
}

func SettingsPath(dir string) string {
	return filepath.Join(dir, "settings.toml")
}

func ActionsPath(dir string) string {
	return filepath.Join(dir, "actions.toml")
}

// DefaultSocketPath returns the control socket path:
// $XDG_RUNTIME_DIR/wbridge.sock, or /tmp/wbridge.sock when the
// runtime dir is unset.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "wbridge.sock")
	}
	return filepath.Join(os.TempDir(), "wbridge.sock")
}
