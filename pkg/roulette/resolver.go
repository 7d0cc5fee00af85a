package roulette

import (
	"github.com/MarkoPoloResearchLab/haus/pkg/seeded"
)

const (
	wheelPositions = 37
	seedPrefix     = "ROUL"
)

var redPositions = map[int]struct{}{
	1: {}, 3: {}, 5: {}, 7: {}, 9: {}, 12: {}, 14: {}, 16: {}, 18: {},
	19: {}, 21: {}, 23: {}, 25: {}, 27: {}, 30: {}, 32: {}, 34: {}, 36: {},
}

// Resolver picks the outcome of a round.
type Resolver interface {
	Resolve(roundID string, atUnixUTC int64) (Outcome, error)
}

// SeededResolver draws a wheel position from a recorded seed "ROUL-{round}-{unix}-{nonce}".
type SeededResolver struct {
	seeds seeded.Generator
}

// NewSeededResolver returns a resolver using crypto/rand nonces.
func NewSeededResolver() SeededResolver {
	return SeededResolver{seeds: seeded.RandomGenerator}
}

// Resolve generates a fresh seed for the round and derives the outcome from it.
func (resolver SeededResolver) Resolve(roundID string, atUnixUTC int64) (Outcome, error) {
	generate := resolver.seeds
	if generate == nil {
		generate = seeded.RandomGenerator
	}
	seed, err := generate(seedPrefix, roundID, atUnixUTC)
	if err != nil {
		return Outcome{}, err
	}
	return OutcomeFromSeed(seed), nil
}

// OutcomeFromSeed recomputes the outcome recorded with seed. Position 0 is green; the 18 red
// positions of a single-zero wheel are red; the rest are black.
func OutcomeFromSeed(seed string) Outcome {
	position := seeded.Source(seed).Intn(wheelPositions)
	return Outcome{Position: position, Choice: ChoiceForPosition(position), Seed: seed}
}

// ChoiceForPosition maps a wheel position to its color.
func ChoiceForPosition(position int) Choice {
	if position == 0 {
		return ChoiceGreen
	}
	if _, ok := redPositions[position]; ok {
		return ChoiceRed
	}
	return ChoiceBlack
}
