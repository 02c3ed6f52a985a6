package selection

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clipboard", Clipboard},
		{"primary", Primary},
		{"Primary", Primary},
		{"", Clipboard},
		{"selection", Clipboard},
	}
	for _, tt := range tests {
		if got := Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	if err := m.Write(Clipboard, "clip text"); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := m.Write(Primary, "prim text"); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	got, err := m.Read(Clipboard)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if got != "clip text" {
		t.Errorf("Read(clipboard) = %q, want %q", got, "clip text")
	}

	got, err = m.Read(Primary)
	if err != nil {
		t.Fatal(err)
	}
	if got != "prim text" {
		t.Errorf("Read(primary) = %q, want %q", got, "prim text")
	}
}

func TestMemoryUnknownWhichIsClipboard(t *testing.T) {
	m := NewMemory()
	if err := m.Write("bogus", "text"); err != nil {
		t.Fatal(err)
	}
	got, err := m.Read(Clipboard)
	if err != nil {
		t.Fatal(err)
	}
	if got != "text" {
		t.Errorf("Read(clipboard) = %q, want %q", got, "text")
	}
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		kind     string
		wantName string
		wantErr  bool
	}{
		{"", "system", false},
		{"system", "system", false},
		{"memory", "memory", false},
		{"wayland", "", true},
	}
	for _, tt := range tests {
		b, err := NewBackend(tt.kind)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewBackend(%q) error = nil, want error", tt.kind)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewBackend(%q) error = %v", tt.kind, err)
			continue
		}
		if b.Name() != tt.wantName {
			t.Errorf("NewBackend(%q).Name() = %q, want %q", tt.kind, b.Name(), tt.wantName)
		}
	}
}
