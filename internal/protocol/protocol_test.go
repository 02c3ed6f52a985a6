package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResponseOmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(Errorf(CodeNotFound, "unknown action: %s", "x"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	if strings.Contains(got, "data") {
		t.Errorf("failure envelope contains data field: %s", got)
	}
	want := `{"ok":false,"error":"unknown action: x","code":"NOT_FOUND"}`
	if got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}

	b, err = json.Marshal(OK(map[string]any{"op": OpUIShow}))
	if err != nil {
		t.Fatal(err)
	}
	got = string(b)
	if strings.Contains(got, "error") || strings.Contains(got, "code") {
		t.Errorf("success envelope contains error fields: %s", got)
	}
}

func TestRequestTextAbsentVsEmpty(t *testing.T) {
	var absent Request
	if err := json.Unmarshal([]byte(`{"op":"trigger","cmd":"prompt"}`), &absent); err != nil {
		t.Fatal(err)
	}
	if absent.Text != nil {
		t.Errorf("absent text decoded as %q, want nil", *absent.Text)
	}

	var empty Request
	if err := json.Unmarshal([]byte(`{"op":"trigger","cmd":"prompt","text":""}`), &empty); err != nil {
		t.Fatal(err)
	}
	if empty.Text == nil || *empty.Text != "" {
		t.Error("empty text not preserved")
	}
	if empty.TextValue() != "" || absent.TextValue() != "" {
		t.Error("TextValue() should be empty for both absent and empty text")
	}
}

func TestSourceFrom(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"absent", Request{}, SourceClipboard},
		{"empty", Request{Source: &Source{}}, SourceClipboard},
		{"primary", Request{Source: &Source{From: "primary"}}, SourcePrimary},
		{"text", Request{Source: &Source{From: "text"}}, SourceText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.SourceFrom(); got != tt.want {
				t.Errorf("SourceFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestIgnoresUnknownFields(t *testing.T) {
	var req Request
	line := `{"op":"selection.get","which":"primary","nonce":12345}`
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.Op != OpSelectionGet || req.Which != "primary" {
		t.Errorf("Unmarshal() = %+v", req)
	}
}
