package action

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wbridge/wbridge/internal/config"
)

func TestExpand(t *testing.T) {
	actx := Context{
		Text: "hello",
		Settings: config.Settings{
			"integration": {"base_url": "http://localhost:9"},
		},
		Extras: map[string]any{"selection.type": "primary", "n": 3},
	}
	tests := []struct {
		in   string
		want string
	}{
		{"{text}", "hello"},
		{"say {text} and {text}", "say hello and hello"},
		{"{config.integration.base_url}/trigger", "http://localhost:9/trigger"},
		{"{selection.type}", "primary"},
		{"{n}", "3"},
		{"{unknown} stays", "{unknown} stays"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		if got := Expand(tt.in, actx); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandValue(t *testing.T) {
	actx := Context{Text: "x"}
	in := map[string]any{
		"cmd":  "prompt",
		"text": "{text}",
		"list": []any{"{text}", int64(7)},
	}
	got, ok := ExpandValue(in, actx).(map[string]any)
	if !ok {
		t.Fatalf("ExpandValue() = %T, want map[string]any", ExpandValue(in, actx))
	}
	if got["cmd"] != "prompt" {
		t.Errorf("cmd = %v, want prompt", got["cmd"])
	}
	if got["text"] != "x" {
		t.Errorf("text = %v, want x", got["text"])
	}
	list, ok := got["list"].([]any)
	if !ok {
		t.Fatalf("list = %T, want []any", got["list"])
	}
	if list[0] != "x" {
		t.Errorf("list[0] = %v, want x", list[0])
	}
	if list[1] != int64(7) {
		t.Errorf("list[1] = %v, want 7", list[1])
	}
	if in["text"] != "{text}" {
		t.Error("ExpandValue() mutated its input")
	}
}

func TestRunnerHTTPGet(t *testing.T) {
	var gotMethod, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query().Get("q")
	}))
	defer srv.Close()

	r := NewRunner()
	a := &config.Action{Name: "probe", Type: "http", URL: srv.URL, Params: map[string]string{"q": "{text}"}}
	ok, msg := r.Run(context.Background(), a, Context{Text: "needle"})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
	if gotQuery != "needle" {
		t.Errorf("query q = %q, want needle", gotQuery)
	}
	if want := fmt.Sprintf("http GET %s -> 200", srv.URL); msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestRunnerHTTPJSONBody(t *testing.T) {
	var gotCT string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer srv.Close()

	r := NewRunner()
	a := &config.Action{
		Name:   "send",
		Type:   "http",
		Method: "post",
		URL:    srv.URL,
		JSON:   map[string]any{"cmd": "prompt", "text": "{text}"},
	}
	ok, msg := r.Run(context.Background(), a, Context{Text: "payload"})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if gotCT != "application/json" {
		t.Errorf("content type = %q, want application/json", gotCT)
	}
	if gotBody["cmd"] != "prompt" || gotBody["text"] != "payload" {
		t.Errorf("body = %v, want cmd=prompt text=payload", gotBody)
	}
	if !strings.HasPrefix(msg, "http POST ") {
		t.Errorf("message = %q, want http POST prefix", msg)
	}
}

func TestRunnerHTTPFormBody(t *testing.T) {
	var gotCT, gotValue string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		r.ParseForm()
		gotValue = r.PostFormValue("v")
	}))
	defer srv.Close()

	r := NewRunner()
	a := &config.Action{
		Name:   "form",
		Type:   "http",
		Method: "POST",
		URL:    srv.URL,
		Data:   map[string]any{"v": "{text}"},
	}
	ok, msg := r.Run(context.Background(), a, Context{Text: "a b"})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q, want form encoding", gotCT)
	}
	if gotValue != "a b" {
		t.Errorf("form v = %q, want %q", gotValue, "a b")
	}
}

func TestRunnerHTTPTextBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	r := NewRunner()
	a := &config.Action{Name: "raw", Type: "http", Method: "POST", URL: srv.URL, BodyIsText: true}
	ok, msg := r.Run(context.Background(), a, Context{Text: "raw text body"})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if gotBody != "raw text body" {
		t.Errorf("body = %q, want raw text", gotBody)
	}
}

func TestRunnerHTTPFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRunner()
	a := &config.Action{Name: "fail", Type: "http", Method: "POST", URL: srv.URL, BodyIsText: true}
	ok, msg := r.Run(context.Background(), a, Context{Text: "x"})
	if ok {
		t.Fatal("Run() = true for 500 response")
	}
	if want := fmt.Sprintf("http POST %s -> 500", srv.URL); msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestRunnerHTTPMissingURL(t *testing.T) {
	r := NewRunner()
	ok, msg := r.Run(context.Background(), &config.Action{Name: "nourl", Type: "http"}, Context{})
	if ok {
		t.Fatal("Run() = true without url")
	}
	if msg != "http action missing url" {
		t.Errorf("message = %q", msg)
	}
}

func TestRunnerShellStdout(t *testing.T) {
	r := NewRunner()
	a := &config.Action{Name: "echo", Type: "shell", Command: "echo", Args: []string{"{text}"}}
	ok, msg := r.Run(context.Background(), a, Context{Text: "selection text"})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if msg != "selection text" {
		t.Errorf("message = %q, want selection text", msg)
	}
}

func TestRunnerShellQuietSuccess(t *testing.T) {
	r := NewRunner()
	a := &config.Action{Name: "quiet", Type: "shell", Command: "true"}
	ok, msg := r.Run(context.Background(), a, Context{})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if msg != "ok" {
		t.Errorf("message = %q, want ok", msg)
	}
}

func TestRunnerShellExitCode(t *testing.T) {
	r := NewRunner()
	a := &config.Action{Name: "failing", Type: "shell", Command: "sh", Args: []string{"-c", "exit 3"}}
	ok, msg := r.Run(context.Background(), a, Context{})
	if ok {
		t.Fatal("Run() = true for exit 3")
	}
	if msg != "exit 3" {
		t.Errorf("message = %q, want exit 3", msg)
	}
}

func TestRunnerShellStderr(t *testing.T) {
	r := NewRunner()
	a := &config.Action{Name: "noisy", Type: "shell", Command: "sh", Args: []string{"-c", "echo bad >&2; exit 1"}}
	ok, msg := r.Run(context.Background(), a, Context{})
	if ok {
		t.Fatal("Run() = true for exit 1")
	}
	if msg != "bad" {
		t.Errorf("message = %q, want bad", msg)
	}
}

func TestRunnerShellUseShell(t *testing.T) {
	r := NewRunner()
	a := &config.Action{
		Name:     "join",
		Type:     "shell",
		Command:  "printf %s-%s",
		Args:     []string{"a b", "{text}"},
		UseShell: true,
	}
	ok, msg := r.Run(context.Background(), a, Context{Text: "c"})
	if !ok {
		t.Fatalf("Run() = false, %q", msg)
	}
	if msg != "a b-c" {
		t.Errorf("message = %q, want a b-c", msg)
	}
}

func TestRunnerShellMissingCommand(t *testing.T) {
	r := NewRunner()
	ok, msg := r.Run(context.Background(), &config.Action{Name: "none", Type: "shell"}, Context{})
	if ok {
		t.Fatal("Run() = true without command")
	}
	if msg != "shell action missing command" {
		t.Errorf("message = %q", msg)
	}
}

func TestRunnerShellCommandNotFound(t *testing.T) {
	r := NewRunner()
	a := &config.Action{Name: "ghost", Type: "shell", Command: "wbridge-no-such-binary"}
	ok, msg := r.Run(context.Background(), a, Context{})
	if ok {
		t.Fatal("Run() = true for unresolvable command")
	}
	if !strings.Contains(msg, "wbridge-no-such-binary") {
		t.Errorf("message = %q, want command name in it", msg)
	}
}

func TestRunnerShellTimeout(t *testing.T) {
	r := &Runner{
		client:       &http.Client{Timeout: HTTPTimeout},
		shellTimeout: 100 * time.Millisecond,
	}
	a := &config.Action{Name: "slow", Type: "shell", Command: "sleep", Args: []string{"10"}}
	start := time.Now()
	ok, msg := r.Run(context.Background(), a, Context{})
	if ok {
		t.Fatal("Run() = true for timed-out command")
	}
	if !strings.HasPrefix(msg, "timeout after") {
		t.Errorf("message = %q, want timeout prefix", msg)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("kill took %v", elapsed)
	}
}

func TestRunnerUnsupportedType(t *testing.T) {
	r := NewRunner()
	ok, msg := r.Run(context.Background(), &config.Action{Name: "odd", Type: "carrier-pigeon"}, Context{})
	if ok {
		t.Fatal("Run() = true for unknown type")
	}
	if msg != "unsupported action type: carrier-pigeon" {
		t.Errorf("message = %q", msg)
	}

	ok, msg = r.Run(context.Background(), &config.Action{Name: "untyped"}, Context{})
	if ok {
		t.Fatal("Run() = true for empty type")
	}
	if msg != "unsupported action type: missing" {
		t.Errorf("message = %q", msg)
	}
}
