package selection

import "sync"

// Memory is an in-process backend for tests and headless runs
// (--backend memory).
type Memory struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Read(which string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[Resolve(which)], nil
}

func (m *Memory) Write(which, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[Resolve(which)] = text
	return nil
}

func (m *Memory) Name() string {
	return "memory"
}
