// Package protocol defines the wire types for the wbridge control
// protocol: newline-delimited JSON requests and responses exchanged with
// the daemon over its Unix control socket.
package protocol

import "fmt"

// Op names understood by the dispatcher.
const (
	OpUIShow       = "ui.show"
	OpSelectionGet = "selection.get"
	OpSelectionSet = "selection.set"
	OpHistoryList  = "history.list"
	OpHistoryApply = "history.apply"
	OpHistorySwap  = "history.swap"
	OpActionRun    = "action.run"
	OpTrigger      = "trigger"
)

// Error codes reported by the server.
const (
	CodeInvalidArg   = "INVALID_ARG"
	CodeInvalidOp    = "INVALID_OP"
	CodeNotFound     = "NOT_FOUND"
	CodeActionFailed = "ACTION_FAILED"
)

// Error codes synthesized by the client when no server response exists.
const (
	CodeNotRunning = "NOT_RUNNING"
	CodeTimeout    = "TIMEOUT"
)

// Source values for trigger-style ops.
const (
	SourceClipboard = "clipboard"
	SourcePrimary   = "primary"
	SourceText      = "text"
)

// Source selects where an action takes its input text from.
type Source struct {
	From string `json:"from"`
}

// Request is one control-plane message. Op selects the operation; the
// remaining fields are op-specific and ignored elsewhere. Text is a
// pointer so an absent field and an empty string stay distinguishable.
// Limit and Index stay untyped so handlers can report a non-integer
// value as INVALID_ARG instead of failing the whole line parse.
type Request struct {
	Op     string  `json:"op"`
	Which  string  `json:"which,omitempty"`
	Text   *string `json:"text,omitempty"`
	Limit  any     `json:"limit,omitempty"`
	Index  any     `json:"index,omitempty"`
	Name   string  `json:"name,omitempty"`
	Cmd    string  `json:"cmd,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// TextValue returns the request text, or "" when the field was absent.
func (r Request) TextValue() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// SourceFrom returns the requested source, defaulting to the clipboard
// when the source object is absent or empty.
func (r Request) SourceFrom() string {
	if r.Source == nil || r.Source.From == "" {
		return SourceClipboard
	}
	return r.Source.From
}

// Response is the reply envelope. Data is present only on success;
// Error and Code only on failure. Socket is filled in by the client
// when it synthesizes a NOT_RUNNING failure.
type Response struct {
	OK     bool           `json:"ok"`
	Data   map[string]any `json:"data,omitempty"`
	Error  string         `json:"error,omitempty"`
	Code   string         `json:"code,omitempty"`
	Socket string         `json:"socket,omitempty"`
}

// OK returns a success envelope carrying data.
func OK(data map[string]any) Response {
	return Response{OK: true, Data: data}
}

// Errorf returns a failure envelope with the given code.
func Errorf(code, format string, args ...any) Response {
	return Response{Error: fmt.Sprintf(format, args...), Code: code}
}
