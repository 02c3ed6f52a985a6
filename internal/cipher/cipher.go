// Package cipher seals selection history entries held in daemon
// memory. The default cipher is an ephemeral age identity, so entry
// texts never sit in the heap as plaintext and become irrecoverable
// the moment the process exits.
package cipher

import "fmt"

// Cipher encrypts and decrypts history entry texts.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
	Name() string
}

// New creates a Cipher for the given settings value.
func New(cipherType string) (Cipher, error) {
	switch cipherType {
	case "", "age":
		return NewAgeEphemeral()
	case "none":
		return Plain{}, nil
	default:
		return nil, fmt.Errorf("unsupported cipher type: %q", cipherType)
	}
}
