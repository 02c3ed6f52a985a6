package agent

import "log/slog"

// Frontend is the seam a selection UI plugs into. ui.show is the only
// operation that touches it, always from the run loop.
type Frontend interface {
	Present()
}

// LogFrontend is the headless default: presenting just logs.
type LogFrontend struct{}

func (LogFrontend) Present() {
	slog.Info("ui.show requested; no frontend attached")
}
