package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Action types.
const (
	ActionHTTP  = "http"
	ActionShell = "shell"
)

// Action is one declarative action from actions.toml. Type selects
// which field group applies; JSON and Data stay untyped because TOML
// allows tables, arrays, and strings there and the expansion engine
// walks whatever shape was written.
type Action struct {
	Name string `toml:"name"`
	Type string `toml:"type"`

	// http
	Method     string            `toml:"method,omitempty"`
	URL        string            `toml:"url,omitempty"`
	Headers    map[string]string `toml:"headers,omitempty"`
	Params     map[string]string `toml:"params,omitempty"`
	JSON       any               `toml:"json,omitempty"`
	Data       any               `toml:"data,omitempty"`
	BodyIsText bool              `toml:"body_is_text,omitempty"`

	// shell
	Command  string   `toml:"command,omitempty"`
	Args     []string `toml:"args,omitempty"`
	UseShell bool     `toml:"use_shell,omitempty"`
}

// ActionsFile is the shape of actions.toml.
type ActionsFile struct {
	Actions  []*Action         `toml:"actions"`
	Triggers map[string]string `toml:"triggers"`
}

// LoadActions reads an actions.toml. A missing file is an empty set;
// a malformed or invalid file is an error, so the caller can keep its
// previous snapshot.
func LoadActions(path string) (*ActionsFile, error) {
	var af ActionsFile
	if _, err := toml.DecodeFile(path, &af); err != nil {
		if os.IsNotExist(err) {
			return &ActionsFile{}, nil
		}
		return nil, fmt.Errorf("parsing actions: %w", err)
	}
	if err := af.Validate(); err != nil {
		return nil, err
	}
	return &af, nil
}

// Validate checks action definitions and trigger targets.
func (af *ActionsFile) Validate() error {
	seen := make(map[string]bool, len(af.Actions))
	for i, a := range af.Actions {
		if a.Name == "" {
			return fmt.Errorf("action #%d: name is required", i+1)
		}
		if seen[a.Name] {
			return fmt.Errorf("action %q: duplicate name", a.Name)
		}
		seen[a.Name] = true

		switch a.Type {
		case ActionHTTP:
			if a.URL == "" {
				return fmt.Errorf("action %q: http actions require 'url'", a.Name)
			}
		case ActionShell:
			if a.Command == "" {
				return fmt.Errorf("action %q: shell actions require 'command'", a.Name)
			}
		default:
			return fmt.Errorf("action %q: unsupported type: %q", a.Name, a.Type)
		}
	}

	for alias, target := range af.Triggers {
		if !seen[target] {
			return fmt.Errorf("trigger %q: unknown action %q", alias, target)
		}
	}
	return nil
}
