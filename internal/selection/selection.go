// Package selection abstracts the desktop selection channels: the
// clipboard and, on X11, the primary selection.
package selection

import (
	"fmt"
	"strings"
)

// Channel names used on the wire and throughout the daemon.
const (
	Clipboard = "clipboard"
	Primary   = "primary"
)

// Resolve maps a wire `which` value to a channel name. Unknown values
// fall back to the clipboard; this is never an error.
func Resolve(which string) string {
	if strings.ToLower(which) == Primary {
		return Primary
	}
	return Clipboard
}

// Backend reads and writes selection text. Implementations are not
// required to be safe for concurrent use; the daemon serializes all
// access through its run loop.
type Backend interface {
	Read(which string) (string, error)
	Write(which, text string) error
	Name() string
}

// NewBackend creates a selection backend for the given settings value.
func NewBackend(kind string) (Backend, error) {
	switch kind {
	case "", "system":
		return NewSystem(), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported selection backend: %q", kind)
	}
}
