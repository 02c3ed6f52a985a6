package selection

import (
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// The clipboard package targets the primary selection through a
// package-level variable, so every call toggles shared state. One
// process-wide mutex covers all System values.
var systemMu sync.Mutex

// System is the real desktop backend, shelling out to the platform
// clipboard utilities via github.com/atotto/clipboard.
type System struct{}

func NewSystem() *System {
	return &System{}
}

func (s *System) Read(which string) (string, error) {
	ch := Resolve(which)

	systemMu.Lock()
	defer systemMu.Unlock()
	defer func(prev bool) { clipboard.Primary = prev }(clipboard.Primary)
	clipboard.Primary = ch == Primary

	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("reading %s selection: %w", ch, err)
	}
	return text, nil
}

func (s *System) Write(which, text string) error {
	ch := Resolve(which)

	systemMu.Lock()
	defer systemMu.Unlock()
	defer func(prev bool) { clipboard.Primary = prev }(clipboard.Primary)
	clipboard.Primary = ch == Primary

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("writing %s selection: %w", ch, err)
	}
	return nil
}

func (s *System) Name() string {
	return "system"
}

// SystemAvailable reports whether the platform clipboard utilities
// were found. Used by doctor; Read/Write on an unsupported system
// return errors either way.
func SystemAvailable() bool {
	return !clipboard.Unsupported
}
