// Package seeded derives reproducible random sources from audit seed strings.
//
// A seed is recorded next to every round outcome and lottery draw so the result can be recomputed
// later. It is not a commitment scheme: whoever controls the nonce controls the outcome.
package seeded

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
)

const maxNonce = 1_000_000

// NewNonce returns a random nonce in [1, 1_000_000] read from crypto/rand.
func NewNonce() (int64, error) {
	var buffer [8]byte
	if _, err := crand.Read(buffer[:]); err != nil {
		return 0, fmt.Errorf("read random nonce: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buffer[:])%maxNonce) + 1, nil
}

// Format builds "{prefix}-{subject}-{unix}-{nonce}".
func Format(prefix string, subject string, atUnixUTC int64, nonce int64) string {
	return fmt.Sprintf("%s-%s-%d-%d", prefix, subject, atUnixUTC, nonce)
}

// Source returns a math/rand generator seeded with the FNV-64a hash of seed.
func Source(seed string) *rand.Rand {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(seed))
	return rand.New(rand.NewSource(int64(hasher.Sum64())))
}

// Generator produces audit seeds; tests replace it to force outcomes.
type Generator func(prefix string, subject string, atUnixUTC int64) (string, error)

// RandomGenerator formats seeds with a crypto/rand nonce.
func RandomGenerator(prefix string, subject string, atUnixUTC int64) (string, error) {
	nonce, err := NewNonce()
	if err != nil {
		return "", err
	}
	return Format(prefix, subject, atUnixUTC, nonce), nil
}
