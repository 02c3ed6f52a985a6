// Package profile ships curated configuration presets and installs them
// into a config directory, merging with whatever the user already has.
package profile

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/fsutil"
)

//go:embed profiles
var profilesFS embed.FS

const profilesRoot = "profiles"

// Info describes one shipped profile.
type Info struct {
	Name        string
	Description string
}

// List returns the shipped profiles, sorted by name.
func List() ([]Info, error) {
	entries, err := fs.ReadDir(profilesFS, profilesRoot)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info := Info{Name: e.Name()}
		var meta struct {
			Description string `toml:"description"`
		}
		if data, err := fs.ReadFile(profilesFS, path.Join(profilesRoot, e.Name(), "profile.toml")); err == nil {
			if err := toml.Unmarshal(data, &meta); err == nil {
				info.Description = meta.Description
			}
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b Info) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

// Files returns the installable files of a profile, keyed by file name.
// Profiles may ship settings.toml, actions.toml, or both.
func Files(name string) (map[string]string, error) {
	dir := path.Join(profilesRoot, name)
	if _, err := fs.Stat(profilesFS, dir); err != nil {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}
	out := map[string]string{}
	for _, file := range []string{"settings.toml", "actions.toml"} {
		data, err := fs.ReadFile(profilesFS, path.Join(dir, file))
		if err != nil {
			continue
		}
		out[file] = string(data)
	}
	return out, nil
}

// Options tune Install.
type Options struct {
	// Overwrite lets profile values replace the user's on collisions.
	Overwrite bool
	// DryRun computes the report without touching the directory.
	DryRun bool
}

// MergeOutcome records per-item merge decisions.
type MergeOutcome struct {
	Added    []string
	Replaced []string
	Skipped  []string
}

// Report summarizes one install.
type Report struct {
	Profile  string
	Written  []string
	Backups  []string
	Settings MergeOutcome
	Actions  MergeOutcome
	Triggers MergeOutcome
}

// Install merges a profile into dir. The user's existing values win
// unless opts.Overwrite; a file about to change is first copied to a
// timestamped .bak sibling, and all writes go through a temp file.
func Install(name, dir string, opts Options) (*Report, error) {
	files, err := Files(name)
	if err != nil {
		return nil, err
	}
	if !opts.DryRun {
		if err := fsutil.EnsureDir(dir, 0o700); err != nil {
			return nil, err
		}
	}

	report := &Report{Profile: name}
	stamp := time.Now().Format("20060102-150405")

	if content, ok := files["settings.toml"]; ok {
		if err := installSettings(dir, content, opts, stamp, report); err != nil {
			return nil, err
		}
	}
	if content, ok := files["actions.toml"]; ok {
		if err := installActions(dir, content, opts, stamp, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func installSettings(dir, content string, opts Options, stamp string, report *Report) error {
	target := config.SettingsPath(dir)
	incoming := config.Settings{}
	if err := toml.Unmarshal([]byte(content), &incoming); err != nil {
		return fmt.Errorf("parsing profile settings: %w", err)
	}

	if !fsutil.Exists(target) {
		for _, sec := range slices.Sorted(maps.Keys(incoming)) {
			for _, key := range slices.Sorted(maps.Keys(incoming[sec])) {
				report.Settings.Added = append(report.Settings.Added, sec+"."+key)
			}
		}
		if !opts.DryRun {
			if err := fsutil.WriteFileAtomic(target, []byte(content), 0o600); err != nil {
				return err
			}
		}
		report.Written = append(report.Written, target)
		return nil
	}

	// Decode the raw user file, not the defaults-overlaid view, so the
	// merge never bakes built-in defaults into the user's file.
	user := config.Settings{}
	if _, err := toml.DecodeFile(target, &user); err != nil {
		return fmt.Errorf("parsing %s: %w", target, err)
	}

	changed := false
	for _, sec := range slices.Sorted(maps.Keys(incoming)) {
		for _, key := range slices.Sorted(maps.Keys(incoming[sec])) {
			val := incoming[sec][key]
			full := sec + "." + key
			cur, exists := user[sec][key]
			switch {
			case !exists:
				if user[sec] == nil {
					user[sec] = map[string]string{}
				}
				user[sec][key] = val
				report.Settings.Added = append(report.Settings.Added, full)
				changed = true
			case cur == val || !opts.Overwrite:
				report.Settings.Skipped = append(report.Settings.Skipped, full)
			default:
				user[sec][key] = val
				report.Settings.Replaced = append(report.Settings.Replaced, full)
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}

	data, err := toml.Marshal(user)
	if err != nil {
		return err
	}
	return commit(target, data, opts, stamp, report)
}

func installActions(dir, content string, opts Options, stamp string, report *Report) error {
	target := config.ActionsPath(dir)
	incoming := &config.ActionsFile{}
	if err := toml.Unmarshal([]byte(content), incoming); err != nil {
		return fmt.Errorf("parsing profile actions: %w", err)
	}

	if !fsutil.Exists(target) {
		for _, a := range incoming.Actions {
			report.Actions.Added = append(report.Actions.Added, a.Name)
		}
		report.Triggers.Added = slices.Sorted(maps.Keys(incoming.Triggers))
		if !opts.DryRun {
			if err := fsutil.WriteFileAtomic(target, []byte(content), 0o600); err != nil {
				return err
			}
		}
		report.Written = append(report.Written, target)
		return nil
	}

	user := &config.ActionsFile{}
	if _, err := toml.DecodeFile(target, user); err != nil {
		return fmt.Errorf("parsing %s: %w", target, err)
	}

	byName := map[string]int{}
	for i, a := range user.Actions {
		byName[a.Name] = i
	}

	changed := false
	for _, a := range incoming.Actions {
		idx, exists := byName[a.Name]
		switch {
		case !exists:
			user.Actions = append(user.Actions, a)
			report.Actions.Added = append(report.Actions.Added, a.Name)
			changed = true
		case opts.Overwrite:
			user.Actions[idx] = a
			report.Actions.Replaced = append(report.Actions.Replaced, a.Name)
			changed = true
		default:
			report.Actions.Skipped = append(report.Actions.Skipped, a.Name)
		}
	}

	if user.Triggers == nil {
		user.Triggers = map[string]string{}
	}
	for _, cmd := range slices.Sorted(maps.Keys(incoming.Triggers)) {
		name := incoming.Triggers[cmd]
		cur, exists := user.Triggers[cmd]
		switch {
		case !exists:
			user.Triggers[cmd] = name
			report.Triggers.Added = append(report.Triggers.Added, cmd)
			changed = true
		case cur == name || !opts.Overwrite:
			report.Triggers.Skipped = append(report.Triggers.Skipped, cmd)
		default:
			user.Triggers[cmd] = name
			report.Triggers.Replaced = append(report.Triggers.Replaced, cmd)
			changed = true
		}
	}

	if !changed {
		return nil
	}
	if err := user.Validate(); err != nil {
		return fmt.Errorf("merged actions invalid: %w", err)
	}

	data, err := toml.Marshal(user)
	if err != nil {
		return err
	}
	return commit(target, data, opts, stamp, report)
}

// commit backs the target up and writes the new content, unless this
// is a dry run.
func commit(target string, data []byte, opts Options, stamp string, report *Report) error {
	if opts.DryRun {
		report.Written = append(report.Written, target)
		return nil
	}
	backup := target + ".bak-" + stamp
	if err := fsutil.CopyFile(target, backup); err != nil {
		return err
	}
	report.Backups = append(report.Backups, backup)
	if err := fsutil.WriteFileAtomic(target, data, 0o600); err != nil {
		return err
	}
	report.Written = append(report.Written, target)
	return nil
}
