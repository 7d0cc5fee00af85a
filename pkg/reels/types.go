package reels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/shopspring/decimal"
)

// Domain-level error values returned by the reel game.
var (
	ErrInvalidSpinCount = errors.New("invalid spin count")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrUnknownPot       = errors.New("unknown pot")
	ErrInvalidConfig    = errors.New("invalid reel config")
)

// Symbol is one reel face.
type Symbol string

const (
	SymbolCherry  Symbol = "cherry"
	SymbolLemon   Symbol = "lemon"
	SymbolBell    Symbol = "bell"
	SymbolStar    Symbol = "star"
	SymbolSeven   Symbol = "seven"
	SymbolDiamond Symbol = "diamond"
)

// DefaultSymbols is the fixed face set every reel draws from.
var DefaultSymbols = []Symbol{SymbolCherry, SymbolLemon, SymbolBell, SymbolStar, SymbolSeven, SymbolDiamond}

// Pot is the shared prize pool of a scope.
type Pot struct {
	Scope          string
	Amount         ledger.Coins
	Floor          ledger.Coins
	UpdatedUnixUTC int64
}

// Available is the part of the pot above the floor.
func (pot Pot) Available() ledger.Coins {
	if pot.Amount <= pot.Floor {
		return 0
	}
	return pot.Amount - pot.Floor
}

// Spin is the append-only audit record of one play.
type Spin struct {
	ID             string
	Scope          string
	AccountID      ledger.AccountID
	Symbols        [3]Symbol
	Payout         ledger.Coins
	PotBefore      ledger.Coins
	CreatedUnixUTC int64
}

// SpinResult summarizes one batch of plays.
type SpinResult struct {
	Spins       []Spin
	TotalStake  ledger.Coins
	TotalPayout ledger.Coins
	Balance     ledger.Coins
	Pot         Pot
}

// Config sets the pot economics.
type Config struct {
	EntryFee      ledger.Coins
	Floor         ledger.Coins
	DoublePayout  ledger.Coins
	TriplePercent decimal.Decimal
	MaxSpins      int
	Symbols       []Symbol
}

// DefaultConfig returns floor 1000, fee 500, double 2000, triple 80%, up to 10 plays per batch.
func DefaultConfig() Config {
	return Config{
		EntryFee:      500,
		Floor:         1000,
		DoublePayout:  2000,
		TriplePercent: decimal.NewFromFloat(0.8),
		MaxSpins:      10,
		Symbols:       DefaultSymbols,
	}
}

// Validate checks the pot economics.
func (config Config) Validate() error {
	if config.EntryFee <= 0 {
		return fmt.Errorf("%w: entry fee must be positive", ErrInvalidConfig)
	}
	if config.Floor < 0 || config.DoublePayout < 0 {
		return fmt.Errorf("%w: floor and double payout must not be negative", ErrInvalidConfig)
	}
	if config.TriplePercent.LessThanOrEqual(decimal.Zero) || config.TriplePercent.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: triple percentage must be in (0, 1]", ErrInvalidConfig)
	}
	if config.MaxSpins <= 0 {
		return fmt.Errorf("%w: max spins must be positive", ErrInvalidConfig)
	}
	if len(config.Symbols) < 2 {
		return fmt.Errorf("%w: at least two symbols are required", ErrInvalidConfig)
	}
	return nil
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Ledger() ledger.Store
	// GetOrCreatePot returns the scope's pot, creating it at initial when missing.
	GetOrCreatePot(ctx context.Context, scope string, initial Pot) (Pot, error)
	GetPot(ctx context.Context, scope string) (Pot, error)
	SavePot(ctx context.Context, pot Pot) error
	InsertSpin(ctx context.Context, spin Spin) (Spin, error)
	ListSpins(ctx context.Context, scope string, limit int) ([]Spin, error)
}

func normalizeScope(raw string) (string, error) {
	scope := strings.TrimSpace(raw)
	if scope == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidScope)
	}
	return scope, nil
}
