// Package reload provides a per-key settings reload dispatcher.
// Instead of a monolithic if/else chain in the host's config watcher
// callback, each changed settings key is mapped to a classified action:
// Swap (the snapshot swap already covers it), Callback (custom handler),
// or Warn (takes effect only after a restart).
package reload

import (
	"log/slog"

	"github.com/wbridge/wbridge/internal/config"
)

// ActionKind classifies how a matching rule is handled.
type ActionKind int

const (
	// Swap logs at debug; the snapshot swap already applied the change.
	Swap ActionKind = iota
	// Callback invokes the rule's Handle function.
	Callback
	// Warn logs that the new value is picked up on the next start.
	Warn
)

// Rule describes the reaction to one settings key changing.
type Rule struct {
	Name   string
	Key    string // "section.key" settings key
	Kind   ActionKind
	Handle func(old, new *config.Snapshot) // Callback only
}

// Dispatcher evaluates registered rules against snapshot diffs.
type Dispatcher struct {
	prologue []func(old, new *config.Snapshot) // unconditional pre-rule hooks
	rules    []Rule                            // evaluated in registration order
}

func New() *Dispatcher {
	return &Dispatcher{}
}

// OnAlways registers an unconditional prologue hook that runs before any
// rules are evaluated. Prologues execute in registration order.
func (d *Dispatcher) OnAlways(fn func(old, new *config.Snapshot)) {
	d.prologue = append(d.prologue, fn)
}

// Register appends a rule. Rules are evaluated in registration order.
func (d *Dispatcher) Register(rule Rule) {
	d.rules = append(d.rules, rule)
}

// Dispatch runs all prologues, then fires the rules whose keys changed in
// the diff. Changed keys no rule claims are covered by the snapshot swap
// alone. This signature matches the config watcher callback exactly.
func (d *Dispatcher) Dispatch(old, new *config.Snapshot, diff *config.DiffResult) {
	for _, fn := range d.prologue {
		fn(old, new)
	}
	if diff == nil {
		return
	}

	changed := map[string]bool{}
	for _, key := range diff.ChangedKeys() {
		changed[key] = true
	}

	claimed := map[string]bool{}
	for _, r := range d.rules {
		if !changed[r.Key] {
			continue
		}
		claimed[r.Key] = true

		switch r.Kind {
		case Swap:
			slog.Debug("setting applied via snapshot swap", "rule", r.Name, "key", r.Key)
		case Callback:
			if r.Handle != nil {
				r.Handle(old, new)
			}
		case Warn:
			slog.Info("setting change takes effect after restart", "rule", r.Name, "key", r.Key)
		}
	}

	for key := range changed {
		if !claimed[key] {
			slog.Debug("setting applied via snapshot swap", "key", key)
		}
	}
}
