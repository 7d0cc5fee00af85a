package reels

import (
	"math/rand"
	"sync"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/shopspring/decimal"
)

// SymbolSource draws one reel face.
type SymbolSource interface {
	Draw(symbols []Symbol) Symbol
}

// RandomSource draws faces uniformly from a math/rand generator.
type RandomSource struct {
	mutex     sync.Mutex
	generator *rand.Rand
}

// NewRandomSource returns a RandomSource over generator.
func NewRandomSource(generator *rand.Rand) *RandomSource {
	return &RandomSource{generator: generator}
}

// Draw returns a uniformly chosen face.
func (source *RandomSource) Draw(symbols []Symbol) Symbol {
	source.mutex.Lock()
	defer source.mutex.Unlock()
	return symbols[source.generator.Intn(len(symbols))]
}

// Evaluate computes the payout of one play given the pot after the entry fee was added.
// Three equal faces pay floor(triplePercent × available); exactly two pay min(doublePayout, available).
func Evaluate(config Config, symbols [3]Symbol, potBefore ledger.Coins) ledger.Coins {
	available := Pot{Amount: potBefore, Floor: config.Floor}.Available()
	switch matchCount(symbols) {
	case 3:
		return ledger.Coins(decimal.NewFromInt(available.Int64()).Mul(config.TriplePercent).Floor().IntPart())
	case 2:
		if config.DoublePayout < available {
			return config.DoublePayout
		}
		return available
	default:
		return 0
	}
}

func matchCount(symbols [3]Symbol) int {
	if symbols[0] == symbols[1] && symbols[1] == symbols[2] {
		return 3
	}
	if symbols[0] == symbols[1] || symbols[1] == symbols[2] || symbols[0] == symbols[2] {
		return 2
	}
	return 1
}
