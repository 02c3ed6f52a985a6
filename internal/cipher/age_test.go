package cipher

import (
	"bytes"
	"testing"
)

func TestAgeEphemeralRoundTrip(t *testing.T) {
	c, err := NewAgeEphemeral()
	if err != nil {
		t.Fatalf("NewAgeEphemeral() error: %v", err)
	}

	plaintext := []byte("copied password: hunter2")

	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if bytes.Equal(ciphertext, plaintext) {
		t.Error("ciphertext should not equal plaintext")
	}

	decrypted, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestAgeEphemeralCrossInstanceFails(t *testing.T) {
	c1, err := NewAgeEphemeral()
	if err != nil {
		t.Fatal(err)
	}
	c2, err := NewAgeEphemeral()
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("cross instance test")
	ciphertext, err := c1.Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c2.Decrypt(ciphertext)
	if err == nil {
		t.Error("expected error when decrypting with different cipher instance")
	}
}

func TestAgeEphemeralEmptyPlaintext(t *testing.T) {
	c, err := NewAgeEphemeral()
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := c.Encrypt([]byte{})
	if err != nil {
		t.Fatal(err)
	}

	decrypted, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatal(err)
	}

	if len(decrypted) != 0 {
		t.Errorf("expected empty decrypted content, got %d bytes", len(decrypted))
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		cipherType string
		wantName   string
		wantErr    bool
	}{
		{"age", "age-ephemeral", false},
		{"", "age-ephemeral", false},
		{"none", "plain", false},
		{"rot13", "", true},
	}
	for _, tt := range tests {
		c, err := New(tt.cipherType)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q) error = nil, want error", tt.cipherType)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q) error = %v", tt.cipherType, err)
			continue
		}
		if c.Name() != tt.wantName {
			t.Errorf("New(%q).Name() = %q, want %q", tt.cipherType, c.Name(), tt.wantName)
		}
	}
}

func TestPlainRoundTrip(t *testing.T) {
	c := Plain{}
	in := []byte("primary selection text")
	sealed, err := c.Encrypt(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("round trip = %q, want %q", out, in)
	}
}
