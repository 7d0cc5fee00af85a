package seeded

import (
	"strings"
	"testing"
)

func TestSourceIsDeterministic(test *testing.T) {
	test.Parallel()
	first := Source("ROUL-abc-100-7")
	second := Source("ROUL-abc-100-7")
	for index := 0; index < 20; index++ {
		if first.Intn(37) != second.Intn(37) {
			test.Fatalf("sequence diverged at %d", index)
		}
	}
}

func TestNewNonceRange(test *testing.T) {
	test.Parallel()
	for index := 0; index < 100; index++ {
		nonce, err := NewNonce()
		if err != nil {
			test.Fatalf("nonce: %v", err)
		}
		if nonce < 1 || nonce > maxNonce {
			test.Fatalf("nonce %d out of range", nonce)
		}
	}
}

func TestRandomGeneratorFormat(test *testing.T) {
	test.Parallel()
	seed, err := RandomGenerator("LOTTO", "2025-02", 1700000000)
	if err != nil {
		test.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(seed, "LOTTO-2025-02-1700000000-") {
		test.Fatalf("unexpected seed %q", seed)
	}
}
