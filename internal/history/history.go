// Package history keeps bounded per-channel selection history. Entry
// texts are sealed with the configured cipher so plaintext never rests
// in daemon memory; a digest of the plaintext supports adjacent
// duplicate suppression without decryption.
package history

import (
	"crypto/sha256"
	"log/slog"
	"sync"

	"github.com/wbridge/wbridge/internal/cipher"
	"github.com/wbridge/wbridge/internal/selection"
)

// DefaultMax is the per-channel entry cap when general.history_max is
// not configured.
const DefaultMax = 50

type entry struct {
	sealed []byte
	digest [sha256.Size]byte
}

// Store holds the two history rings, newest entry first. Reads come
// from control server goroutines while the run loop and the selection
// monitor write, so every access goes through the lock.
type Store struct {
	mu     sync.RWMutex
	max    int
	cipher cipher.Cipher
	rings  map[string][]*entry
}

func New(c cipher.Cipher, max int) *Store {
	if max < 1 {
		max = 1
	}
	return &Store{
		max:    max,
		cipher: c,
		rings:  map[string][]*entry{selection.Clipboard: nil, selection.Primary: nil},
	}
}

// Add records text at the front of a channel. Empty text is ignored,
// as is text equal to the current front entry; older duplicates are
// allowed and produce a fresh front entry.
func (s *Store) Add(which, text string) {
	if text == "" {
		return
	}
	ch := selection.Resolve(which)
	digest := sha256.Sum256([]byte(text))

	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.rings[ch]
	if len(ring) > 0 && ring[0].digest == digest {
		return
	}
	sealed, err := s.cipher.Encrypt([]byte(text))
	if err != nil {
		slog.Error("sealing history entry failed", "channel", ch, "error", err)
		return
	}
	ring = append([]*entry{{sealed: sealed, digest: digest}}, ring...)
	if len(ring) > s.max {
		for _, e := range ring[s.max:] {
			clear(e.sealed)
		}
		ring = ring[:s.max]
	}
	s.rings[ch] = ring
}

// Get returns the plaintext at index, 0 being the newest entry.
func (s *Store) Get(which string, index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.rings[selection.Resolve(which)]
	if index < 0 || index >= len(ring) {
		return "", false
	}
	text, err := s.cipher.Decrypt(ring[index].sealed)
	if err != nil {
		slog.Warn("unsealing history entry failed", "channel", selection.Resolve(which), "index", index, "error", err)
		return "", false
	}
	return string(text), true
}

// List returns up to limit entry texts, newest first. Entries that
// fail to unseal are skipped.
func (s *Store) List(which string, limit int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.rings[selection.Resolve(which)]
	if limit < 0 {
		limit = 0
	}
	if limit > len(ring) {
		limit = len(ring)
	}
	out := make([]string, 0, limit)
	for _, e := range ring[:limit] {
		text, err := s.cipher.Decrypt(e.sealed)
		if err != nil {
			slog.Warn("unsealing history entry failed", "channel", selection.Resolve(which), "error", err)
			continue
		}
		out = append(out, string(text))
	}
	return out
}

// SwapLastTwo exchanges the two newest entries of a channel. It
// reports false when fewer than two entries exist.
func (s *Store) SwapLastTwo(which string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring := s.rings[selection.Resolve(which)]
	if len(ring) < 2 {
		return false
	}
	ring[0], ring[1] = ring[1], ring[0]
	return true
}

func (s *Store) Len(which string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rings[selection.Resolve(which)])
}

// Resize changes the per-channel cap, trimming existing tails.
func (s *Store) Resize(max int) {
	if max < 1 {
		max = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.max = max
	for ch, ring := range s.rings {
		if len(ring) > max {
			for _, e := range ring[max:] {
				clear(e.sealed)
			}
			s.rings[ch] = ring[:max]
		}
	}
}

func (s *Store) Max() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.max
}

// CipherName returns the name of the cipher sealing the entries.
func (s *Store) CipherName() string {
	return s.cipher.Name()
}
