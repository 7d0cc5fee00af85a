package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Coins is a signed integer amount of the virtual currency.
type Coins int64

// AccountID identifies a wallet owner (the chat platform user id).
type AccountID struct {
	value string
}

// TransactionID identifies a ledger transaction.
type TransactionID struct {
	value string
}

// MetadataJSON stores arbitrary transaction metadata.
type MetadataJSON struct {
	value string
}

// TransactionKind enumerates what caused a balance change.
type TransactionKind string

const (
	KindStarterGrant    TransactionKind = "starter_grant"
	KindPeriodicClaim   TransactionKind = "periodic_claim"
	KindBetStake        TransactionKind = "bet_stake"
	KindPayout          TransactionKind = "payout"
	KindManualAdjust    TransactionKind = "manual_adjust"
	KindTicketPurchase  TransactionKind = "ticket_purchase"
	KindPrizeConversion TransactionKind = "prize_conversion"
)

// ClaimKind names a once-per-period grant tracked on the account.
type ClaimKind string

const (
	ClaimDaily   ClaimKind = "daily"
	ClaimWeekly  ClaimKind = "weekly"
	ClaimStarter ClaimKind = "starter"
)

// Account is the wallet row.
type Account struct {
	ID                      AccountID
	Balance                 Coins
	LastDailyClaimUnixUTC   int64
	LastWeeklyClaimUnixUTC  int64
	StarterGrantedUnixUTC   int64
	CreatedUnixUTC          int64
}

// Transaction is a single immutable line in the ledger.
type Transaction struct {
	ID             TransactionID
	AccountID      AccountID
	Kind           TransactionKind
	Amount         Coins
	Metadata       MetadataJSON
	CreatedUnixUTC int64
}

// ApplyRequest describes one balance change.
type ApplyRequest struct {
	AccountID AccountID
	Delta     Coins
	Kind      TransactionKind
	Metadata  MetadataJSON
}

// Reconciliation compares the stored balance with the sum of the transaction log.
type Reconciliation struct {
	AccountID      AccountID
	Balance        Coins
	TransactionSum Coins
	Consistent     bool
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id AccountID) IsZero() bool {
	return id.value == ""
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// MetadataFrom encodes fields as a metadata blob. Values must be JSON-encodable.
func MetadataFrom(fields map[string]any) MetadataJSON {
	if len(fields) == 0 {
		return MetadataJSON{value: "{}"}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return MetadataJSON{value: "{}"}
	}
	return MetadataJSON{value: string(encoded)}
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// NewPositiveCoins validates an amount and ensures it is strictly positive.
func NewPositiveCoins(raw int64) (Coins, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Coins(raw), nil
}

// Int64 returns the raw amount.
func (coins Coins) Int64() int64 {
	return int64(coins)
}

// ParseTransactionKind validates a stored or requested kind.
func ParseTransactionKind(raw string) (TransactionKind, error) {
	kind := TransactionKind(strings.TrimSpace(raw))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionKind, raw)
	}
	return kind, nil
}

// Valid reports whether the kind is one of the closed set.
func (kind TransactionKind) Valid() bool {
	switch kind {
	case KindStarterGrant, KindPeriodicClaim, KindBetStake, KindPayout, KindManualAdjust, KindTicketPurchase, KindPrizeConversion:
		return true
	default:
		return false
	}
}

// String returns the stored representation.
func (kind TransactionKind) String() string {
	return string(kind)
}

// ParseClaimKind validates a claim kind.
func ParseClaimKind(raw string) (ClaimKind, error) {
	claim := ClaimKind(strings.TrimSpace(raw))
	switch claim {
	case ClaimDaily, ClaimWeekly, ClaimStarter:
		return claim, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidClaimKind, raw)
	}
}

// String returns the stored representation.
func (claim ClaimKind) String() string {
	return string(claim)
}

func (request ApplyRequest) validate() error {
	if request.AccountID.IsZero() {
		return fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	if !request.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTransactionKind, request.Kind)
	}
	if request.Delta == 0 {
		return fmt.Errorf("%w: delta must be non-zero", ErrInvalidAmount)
	}
	return nil
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	EnsureAccount(ctx context.Context, accountID AccountID, atUnixUTC int64) (Account, error)
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)
	// AdjustBalance applies delta only when the resulting balance stays non-negative and returns it.
	AdjustBalance(ctx context.Context, accountID AccountID, delta Coins) (Coins, error)
	InsertTransaction(ctx context.Context, transaction Transaction) error
	ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error)
	SumTransactions(ctx context.Context, accountID AccountID) (Coins, error)
	MarkClaim(ctx context.Context, accountID AccountID, claim ClaimKind, atUnixUTC int64) error
}
