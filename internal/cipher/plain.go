package cipher

// Plain is a pass-through Cipher for tests and for users who disable
// sealing with history.cipher = "none".
type Plain struct{}

func (Plain) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return out, nil
}

func (Plain) Decrypt(ciphertext []byte) ([]byte, error) {
	out := make([]byte, len(ciphertext))
	copy(out, ciphertext)
	return out, nil
}

func (Plain) Name() string {
	return "plain"
}
