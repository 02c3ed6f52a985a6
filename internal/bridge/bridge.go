// Package bridge wires the control protocol to the daemon core. The
// Dispatcher owns the op registry and translates requests into history
// reads, run loop tasks, and action invocations, producing the response
// envelopes the control server writes back.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wbridge/wbridge/internal/action"
	"github.com/wbridge/wbridge/internal/config"
	"github.com/wbridge/wbridge/internal/history"
	"github.com/wbridge/wbridge/internal/protocol"
	"github.com/wbridge/wbridge/internal/runloop"
	"github.com/wbridge/wbridge/internal/selection"
)

// DefaultWaitTimeout bounds selection reads issued on behalf of control
// clients. Past it the read yields "" instead of stalling the request.
const DefaultWaitTimeout = time.Second

// DefaultListLimit applies when history.list carries no limit field.
const DefaultListLimit = 10

// Deps are the collaborators a Dispatcher drives.
type Deps struct {
	Loop    *runloop.Loop
	History *history.Store
	Backend selection.Backend
	Runner  *action.Runner
	// Snapshot returns the current config snapshot.
	Snapshot func() *config.Snapshot
	// Present raises the frontend; it is invoked on the run loop.
	Present func()
	// WaitTimeout overrides DefaultWaitTimeout when positive.
	WaitTimeout time.Duration
}

type handlerFunc func(protocol.Request) protocol.Response

// Dispatcher routes ops to their handlers.
type Dispatcher struct {
	deps     Deps
	wait     time.Duration
	handlers map[string]handlerFunc
}

func New(deps Deps) *Dispatcher {
	d := &Dispatcher{deps: deps, wait: deps.WaitTimeout}
	if d.wait <= 0 {
		d.wait = DefaultWaitTimeout
	}
	d.handlers = make(map[string]handlerFunc)
	d.handle(protocol.OpUIShow, d.handleUIShow)
	d.handle(protocol.OpSelectionGet, d.handleSelectionGet)
	d.handle(protocol.OpSelectionSet, d.handleSelectionSet)
	d.handle(protocol.OpHistoryList, d.handleHistoryList)
	d.handle(protocol.OpHistoryApply, d.handleHistoryApply)
	d.handle(protocol.OpHistorySwap, d.handleHistorySwap)
	d.handle(protocol.OpActionRun, d.handleActionRun)
	d.handle(protocol.OpTrigger, d.handleTrigger)
	return d
}

func (d *Dispatcher) handle(op string, fn handlerFunc) {
	d.handlers[op] = fn
}

// Dispatch executes one request and always returns an envelope. A panic
// in a handler becomes an ACTION_FAILED response so one bad request
// cannot take the server down.
func (d *Dispatcher) Dispatch(req protocol.Request) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panicked", "op", req.Op, "panic", r)
			resp = protocol.Errorf(protocol.CodeActionFailed, "%v", r)
		}
	}()

	if req.Op == "" {
		return protocol.Errorf(protocol.CodeInvalidArg, "op missing")
	}
	h, ok := d.handlers[req.Op]
	if !ok {
		return protocol.Errorf(protocol.CodeInvalidOp, "unsupported op: %s", req.Op)
	}
	return h(req)
}

func (d *Dispatcher) handleUIShow(protocol.Request) protocol.Response {
	d.deps.Loop.Enqueue(func() {
		if d.deps.Present != nil {
			d.deps.Present()
		}
	})
	return protocol.OK(map[string]any{"op": protocol.OpUIShow})
}

// readSelection reads one channel on the run loop, waiting at most the
// configured bound. Timeouts and read errors both yield "".
func (d *Dispatcher) readSelection(which string) string {
	var text string
	completed := d.deps.Loop.Do(func() {
		t, err := d.deps.Backend.Read(which)
		if err != nil {
			slog.Debug("selection read failed", "which", which, "error", err)
			return
		}
		text = t
	}, d.wait)
	if !completed {
		slog.Warn("selection read timed out", "which", which)
		return ""
	}
	return text
}

// applySelection hands the backend write to the run loop and records
// the text in history. Fire and forget; the response does not wait.
func (d *Dispatcher) applySelection(which, text string) {
	d.deps.Loop.Enqueue(func() {
		if err := d.deps.Backend.Write(which, text); err != nil {
			slog.Warn("selection write failed", "which", which, "error", err)
		}
		d.deps.History.Add(which, text)
	})
}

func (d *Dispatcher) handleSelectionGet(req protocol.Request) protocol.Response {
	which := selection.Resolve(req.Which)
	text := d.readSelection(which)
	return protocol.OK(map[string]any{
		"op":    protocol.OpSelectionGet,
		"which": which,
		"text":  text,
	})
}

func (d *Dispatcher) handleSelectionSet(req protocol.Request) protocol.Response {
	which := selection.Resolve(req.Which)
	text := req.TextValue()
	d.applySelection(which, text)
	return protocol.OK(map[string]any{
		"op":    protocol.OpSelectionSet,
		"which": which,
		"len":   len(text),
	})
}

func (d *Dispatcher) handleHistoryList(req protocol.Request) protocol.Response {
	which := selection.Resolve(req.Which)
	limit := DefaultListLimit
	if req.Limit != nil {
		n, err := intArg(req.Limit)
		if err != nil {
			return protocol.Errorf(protocol.CodeInvalidArg, "limit must be an integer")
		}
		limit = n
	}
	return protocol.OK(map[string]any{
		"op":    protocol.OpHistoryList,
		"which": which,
		"items": d.deps.History.List(which, limit),
	})
}

func (d *Dispatcher) handleHistoryApply(req protocol.Request) protocol.Response {
	which := selection.Resolve(req.Which)
	if req.Index == nil {
		return protocol.Errorf(protocol.CodeInvalidArg, "index missing")
	}
	index, err := intArg(req.Index)
	if err != nil {
		return protocol.Errorf(protocol.CodeInvalidArg, "index must be an integer")
	}
	text, ok := d.deps.History.Get(which, index)
	if !ok {
		return protocol.Errorf(protocol.CodeNotFound, "no history entry at index %d", index)
	}
	d.applySelection(which, text)
	return protocol.OK(map[string]any{
		"op":    protocol.OpHistoryApply,
		"which": which,
		"index": index,
		"len":   len(text),
	})
}

func (d *Dispatcher) handleHistorySwap(req protocol.Request) protocol.Response {
	which := selection.Resolve(req.Which)
	if !d.deps.History.SwapLastTwo(which) {
		return protocol.Errorf(protocol.CodeNotFound, "not enough history entries to swap")
	}
	text, _ := d.deps.History.Get(which, 0)
	d.applySelection(which, text)
	return protocol.OK(map[string]any{
		"op":      protocol.OpHistorySwap,
		"which":   which,
		"applied": text,
		"len":     len(text),
	})
}

func (d *Dispatcher) handleActionRun(req protocol.Request) protocol.Response {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return protocol.Errorf(protocol.CodeInvalidArg, "action name missing")
	}
	snap := d.deps.Snapshot()
	a, ok := snap.Action(name)
	if !ok {
		return protocol.Errorf(protocol.CodeNotFound, "unknown action: %s", name)
	}

	var text, selType string
	switch req.SourceFrom() {
	case protocol.SourceText:
		text = req.TextValue()
		selType = selection.Clipboard
	case protocol.SourcePrimary:
		text = d.readSelection(selection.Primary)
		selType = selection.Primary
	default:
		text = d.readSelection(selection.Clipboard)
		selType = selection.Clipboard
	}

	ran, msg := d.deps.Runner.Run(context.Background(), a, action.Context{
		Text:          text,
		SelectionType: selType,
		Settings:      snap.Settings,
		Extras:        map[string]any{"selection.type": selType},
	})
	if !ran {
		return protocol.Errorf(protocol.CodeActionFailed, "%s", msg)
	}
	return protocol.OK(map[string]any{
		"op":     protocol.OpActionRun,
		"name":   name,
		"result": msg,
	})
}

func (d *Dispatcher) handleTrigger(req protocol.Request) protocol.Response {
	cmd := strings.TrimSpace(req.Cmd)
	if cmd == "" {
		return protocol.Errorf(protocol.CodeInvalidArg, "cmd missing")
	}
	name, ok := d.deps.Snapshot().Trigger(cmd)
	if !ok {
		return protocol.Errorf(protocol.CodeNotFound, "unknown trigger: %s", cmd)
	}
	// Re-enter the dispatcher so trigger and action.run stay identical.
	return d.Dispatch(protocol.Request{
		Op:     protocol.OpActionRun,
		Name:   name,
		Text:   req.Text,
		Source: req.Source,
	})
}

// intArg coerces a decoded JSON value into an int. The wire carries
// numbers as float64; tolerant clients may send decimal strings.
func intArg(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}
