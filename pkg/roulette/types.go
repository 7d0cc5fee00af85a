package roulette

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
)

// RoundStatus is the round lifecycle state. OPEN is the only non-terminal state.
type RoundStatus string

const (
	RoundOpen      RoundStatus = "OPEN"
	RoundResolved  RoundStatus = "RESOLVED"
	RoundCancelled RoundStatus = "CANCELLED"
)

// Choice is a bettable color.
type Choice string

const (
	ChoiceRed   Choice = "red"
	ChoiceBlack Choice = "black"
	ChoiceGreen Choice = "green"
)

// Round is one timed betting window in a scope (a chat channel).
type Round struct {
	ID              string
	Scope           string
	Number          int64
	Status          RoundStatus
	OpenedBy        ledger.AccountID
	OpenedUnixUTC   int64
	ExpiresUnixUTC  int64
	Outcome         Choice
	OutcomePosition int
	Seed            string
	ClosedUnixUTC   int64
}

// Label renders the per-scope round number for display ("#0042").
func (round Round) Label() string {
	return fmt.Sprintf("#%04d", round.Number)
}

// Bet is a stake placed on one color in one round.
type Bet struct {
	ID             string
	RoundID        string
	AccountID      ledger.AccountID
	Choice         Choice
	Stake          ledger.Coins
	CreatedUnixUTC int64

	// Exclusive asks the store to reject a second bet by the same account in the round.
	Exclusive bool
}

// Outcome is the resolver's result for a round.
type Outcome struct {
	Position int
	Choice   Choice
	Seed     string
}

// Payout is one credit issued when a round settles (winnings or a refund).
type Payout struct {
	BetID     string
	AccountID ledger.AccountID
	Stake     ledger.Coins
	Amount    ledger.Coins
}

// Settlement summarizes a resolved or cancelled round.
type Settlement struct {
	Round    Round
	BetCount int
	Pool     ledger.Coins
	Payouts  []Payout
}

// StatusView is the display snapshot of the open round in a scope.
type StatusView struct {
	Round       Round
	BetCount    int
	Pool        ledger.Coins
	SecondsLeft int64
}

// ParseChoice validates a bet choice.
func ParseChoice(raw string) (Choice, error) {
	choice := Choice(strings.ToLower(strings.TrimSpace(raw)))
	if !choice.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidChoice, raw)
	}
	return choice, nil
}

// Valid reports whether the choice is bettable.
func (choice Choice) Valid() bool {
	switch choice {
	case ChoiceRed, ChoiceBlack, ChoiceGreen:
		return true
	default:
		return false
	}
}

// String returns the stored representation.
func (choice Choice) String() string {
	return string(choice)
}

// ParseRoundStatus validates a stored status.
func ParseRoundStatus(raw string) (RoundStatus, error) {
	status := RoundStatus(strings.TrimSpace(raw))
	switch status {
	case RoundOpen, RoundResolved, RoundCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrUnknownRound, raw)
	}
}

// String returns the stored representation.
func (status RoundStatus) String() string {
	return string(status)
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Ledger() ledger.Store
	CreateRound(ctx context.Context, round Round) (Round, error)
	GetRound(ctx context.Context, roundID string) (Round, error)
	// FindOpenRound fails with ErrNoOpenRound when the scope is idle.
	FindOpenRound(ctx context.Context, scope string) (Round, error)
	ListOpenRounds(ctx context.Context) ([]Round, error)
	NextRoundNumber(ctx context.Context, scope string) (int64, error)
	// CloseRound persists the terminal fields of round, only if the stored round is still OPEN;
	// otherwise it fails with ErrRoundNotOpen.
	CloseRound(ctx context.Context, round Round) error
	InsertBet(ctx context.Context, bet Bet) (Bet, error)
	ListBets(ctx context.Context, roundID string) ([]Bet, error)
	CountAccountBets(ctx context.Context, roundID string, accountID ledger.AccountID) (int64, error)
}
