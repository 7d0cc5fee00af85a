package roulette

import (
	"testing"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/shopspring/decimal"
)

func TestChoiceForPositionCoversWheel(test *testing.T) {
	test.Parallel()
	counts := map[Choice]int{}
	for position := 0; position < wheelPositions; position++ {
		counts[ChoiceForPosition(position)]++
	}
	if counts[ChoiceGreen] != 1 || counts[ChoiceRed] != 18 || counts[ChoiceBlack] != 18 {
		test.Fatalf("unexpected wheel layout: %v", counts)
	}
}

func TestOutcomeFromSeedIsReproducible(test *testing.T) {
	test.Parallel()
	first := OutcomeFromSeed("ROUL-round-1736150400-42")
	second := OutcomeFromSeed("ROUL-round-1736150400-42")
	if first != second {
		test.Fatalf("expected identical outcomes, got %+v and %+v", first, second)
	}
	if first.Position < 0 || first.Position >= wheelPositions {
		test.Fatalf("position out of range: %d", first.Position)
	}
	if first.Choice != ChoiceForPosition(first.Position) {
		test.Fatalf("choice %s does not match position %d", first.Choice, first.Position)
	}
}

func TestSeededResolverRecordsSeed(test *testing.T) {
	test.Parallel()
	resolver := SeededResolver{seeds: func(prefix string, subject string, atUnixUTC int64) (string, error) {
		return prefix + "-" + subject + "-fixed", nil
	}}
	outcome, err := resolver.Resolve("round-7", 100)
	if err != nil {
		test.Fatalf("resolve failed: %v", err)
	}
	if outcome.Seed != "ROUL-round-7-fixed" {
		test.Fatalf("unexpected seed %q", outcome.Seed)
	}
	if outcome != OutcomeFromSeed(outcome.Seed) {
		test.Fatalf("outcome not recomputable from seed")
	}
}

func TestOutcomeDistributionRoughlyUniform(test *testing.T) {
	test.Parallel()
	const draws = 37_000
	counts := map[Choice]int{}
	resolver := NewSeededResolver()
	for draw := 0; draw < draws; draw++ {
		outcome, err := resolver.Resolve("round", int64(draw))
		if err != nil {
			test.Fatalf("resolve failed: %v", err)
		}
		counts[outcome.Choice]++
	}
	if counts[ChoiceGreen] < 700 || counts[ChoiceGreen] > 1300 {
		test.Fatalf("green frequency out of range: %d", counts[ChoiceGreen])
	}
	if counts[ChoiceRed] < 17_000 || counts[ChoiceRed] > 19_000 {
		test.Fatalf("red frequency out of range: %d", counts[ChoiceRed])
	}
}

func TestWinningAmountFloors(test *testing.T) {
	test.Parallel()
	config := DefaultConfig()
	if got := config.WinningAmount(ChoiceRed, 1000); got != 2000 {
		test.Fatalf("expected 2000, got %d", got)
	}
	if got := config.WinningAmount(ChoiceGreen, 100); got != 1400 {
		test.Fatalf("expected 1400, got %d", got)
	}
	config.RedBlackMultiplier = decimal.RequireFromString("1.95")
	if got := config.WinningAmount(ChoiceBlack, ledger.Coins(333)); got != 649 {
		test.Fatalf("expected 649, got %d", got)
	}
}

func TestConfigValidate(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero minimum", mutate: func(config *Config) { config.MinDurationSeconds = 0 }},
		{name: "default above max", mutate: func(config *Config) { config.DefaultDurationSeconds = 601 }},
		{name: "no stake", mutate: func(config *Config) { config.MaxStake = 0 }},
		{name: "even money", mutate: func(config *Config) { config.RedBlackMultiplier = decimal.NewFromInt(1) }},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			config := DefaultConfig()
			testCase.mutate(&config)
			if config.Validate() == nil {
				test.Fatalf("expected validation error")
			}
		})
	}
}

func TestClampDuration(test *testing.T) {
	test.Parallel()
	config := DefaultConfig()
	for requested, expected := range map[int64]int64{0: 120, 5: 10, 45: 45, 9000: 600} {
		if got := config.clampDuration(requested); got != expected {
			test.Fatalf("clamp(%d): expected %d, got %d", requested, expected, got)
		}
	}
}
