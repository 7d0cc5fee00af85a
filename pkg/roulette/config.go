package roulette

import (
	"fmt"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/shopspring/decimal"
)

// Config holds the fixed-odds table and round limits.
type Config struct {
	MinDurationSeconds     int64
	MaxDurationSeconds     int64
	DefaultDurationSeconds int64
	MaxStake               ledger.Coins
	OneBetPerRound         bool
	RedBlackMultiplier     decimal.Decimal
	GreenMultiplier        decimal.Decimal
}

// DefaultConfig returns a 120s round, 50000 max stake, one bet per round, red/black x2 and green x14.
func DefaultConfig() Config {
	return Config{
		MinDurationSeconds:     10,
		MaxDurationSeconds:     600,
		DefaultDurationSeconds: 120,
		MaxStake:               50_000,
		OneBetPerRound:         true,
		RedBlackMultiplier:     decimal.NewFromInt(2),
		GreenMultiplier:        decimal.NewFromInt(14),
	}
}

// Validate checks limits and multipliers.
func (config Config) Validate() error {
	if config.MinDurationSeconds <= 0 || config.MaxDurationSeconds < config.MinDurationSeconds {
		return fmt.Errorf("%w: duration bounds [%d, %d]", ErrInvalidConfig, config.MinDurationSeconds, config.MaxDurationSeconds)
	}
	if config.DefaultDurationSeconds < config.MinDurationSeconds || config.DefaultDurationSeconds > config.MaxDurationSeconds {
		return fmt.Errorf("%w: default duration %d outside bounds", ErrInvalidConfig, config.DefaultDurationSeconds)
	}
	if config.MaxStake <= 0 {
		return fmt.Errorf("%w: max stake must be positive", ErrInvalidConfig)
	}
	if config.RedBlackMultiplier.LessThanOrEqual(decimal.NewFromInt(1)) || config.GreenMultiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: multipliers must exceed 1", ErrInvalidConfig)
	}
	return nil
}

// Multiplier returns the payout multiple for a winning choice.
func (config Config) Multiplier(choice Choice) decimal.Decimal {
	if choice == ChoiceGreen {
		return config.GreenMultiplier
	}
	return config.RedBlackMultiplier
}

// WinningAmount is floor(stake × multiplier).
func (config Config) WinningAmount(choice Choice, stake ledger.Coins) ledger.Coins {
	return ledger.Coins(decimal.NewFromInt(stake.Int64()).Mul(config.Multiplier(choice)).Floor().IntPart())
}

func (config Config) clampDuration(requestedSeconds int64) int64 {
	if requestedSeconds <= 0 {
		return config.DefaultDurationSeconds
	}
	if requestedSeconds < config.MinDurationSeconds {
		return config.MinDurationSeconds
	}
	if requestedSeconds > config.MaxDurationSeconds {
		return config.MaxDurationSeconds
	}
	return requestedSeconds
}
