// Package action executes the declarative actions configured in
// actions.toml: outbound HTTP calls and local process execution, after
// placeholder expansion against the invoking context.
package action

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wbridge/wbridge/internal/config"
)

const (
	// HTTPTimeout bounds one HTTP action call.
	HTTPTimeout = 5 * time.Second
	// ShellTimeout bounds one shell action, after which the process
	// is killed.
	ShellTimeout = 30 * time.Second
)

// Context carries the values available to placeholder expansion for
// one action invocation.
type Context struct {
	// Text is the resolved source text substituted for {text}.
	Text string
	// SelectionType tags where Text came from, "clipboard" or
	// "primary". Literal text is tagged "clipboard".
	SelectionType string
	// Settings backs {config.section.key} lookups.
	Settings config.Settings
	// Extras backs {key} lookups for caller-supplied values.
	Extras map[string]any
}

// Runner executes actions.
type Runner struct {
	client       *http.Client
	shellTimeout time.Duration
}

func NewRunner() *Runner {
	return &Runner{
		client:       &http.Client{Timeout: HTTPTimeout},
		shellTimeout: ShellTimeout,
	}
}

// Run executes one action and reports business success plus a
// human-readable message. Failures are values, never errors or
// panics: the message goes straight into the response envelope.
func (r *Runner) Run(ctx context.Context, a *config.Action, actx Context) (bool, string) {
	switch strings.ToLower(a.Type) {
	case config.ActionHTTP:
		return r.runHTTP(ctx, a, actx)
	case config.ActionShell:
		return r.runShell(ctx, a, actx)
	default:
		typ := strings.ToLower(a.Type)
		if typ == "" {
			typ = "missing"
		}
		return false, fmt.Sprintf("unsupported action type: %s", typ)
	}
}
