package prizes

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
)

// Domain-level error values returned by the prize pipeline.
var (
	ErrNotFound           = errors.New("not found")
	ErrNotWinner          = errors.New("not the prize winner")
	ErrAlreadyClaimed     = errors.New("prize already claimed")
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrAlreadyReviewed    = errors.New("withdrawal already reviewed")
	ErrEntryClosed        = errors.New("claim entry already closed")
	ErrClaimTokenExpired  = errors.New("claim token expired")
	ErrQueueEmpty         = errors.New("claim queue empty")
	ErrPrizeStateConflict = errors.New("prize state conflict")
	ErrInvalidConfig      = errors.New("invalid prize config")
)

// PrizeKind names what is delivered.
type PrizeKind string

// KindWishlistGift is a number of gifts bought from the winner's external wishlist.
const KindWishlistGift PrizeKind = "wishlist_gift"

// PrizeStatus is the prize lifecycle: pending → claimed → fulfilled | failed for lottery prizes,
// ready → fulfilled | failed for converted coins.
type PrizeStatus string

const (
	PrizePending   PrizeStatus = "pending"
	PrizeClaimed   PrizeStatus = "claimed"
	PrizeReady     PrizeStatus = "ready"
	PrizeFulfilled PrizeStatus = "fulfilled"
	PrizeFailed    PrizeStatus = "failed"
)

// EntryStatus is the claim queue entry lifecycle.
type EntryStatus string

const (
	EntryReady     EntryStatus = "ready"
	EntryFulfilled EntryStatus = "fulfilled"
	EntryFailed    EntryStatus = "failed"
)

// WithdrawStatus is the withdrawal request lifecycle.
type WithdrawStatus string

const (
	WithdrawPending  WithdrawStatus = "pending"
	WithdrawApproved WithdrawStatus = "approved"
	WithdrawRejected WithdrawStatus = "rejected"
)

// Identity is the winner's external storefront identity.
type Identity struct {
	Username    string
	ProfileURL  string
	WishlistURL string
}

// Prize is an entitlement awaiting fulfillment.
type Prize struct {
	ID              string
	WinnerAccountID ledger.AccountID
	Kind            PrizeKind
	Quantity        int
	Metadata        ledger.MetadataJSON
	Status          PrizeStatus
	CreatedUnixUTC  int64
	UpdatedUnixUTC  int64
}

// ClaimEntry is the staff-facing fulfillment ticket of a prize. At most one exists per prize.
type ClaimEntry struct {
	ID              string
	PrizeID         string
	WinnerAccountID ledger.AccountID
	Identity        Identity
	Note            string
	StaffNote       string
	Status          EntryStatus
	CreatedUnixUTC  int64
	UpdatedUnixUTC  int64
}

// WithdrawRequest asks to convert coins into wishlist gifts.
type WithdrawRequest struct {
	ID                string
	AccountID         ledger.AccountID
	Coins             ledger.Coins
	Quantity          int
	Identity          Identity
	Note              string
	Status            WithdrawStatus
	ReviewerAccountID ledger.AccountID
	ReviewNote        string
	PrizeID           string
	CreatedUnixUTC    int64
	ReviewedUnixUTC   int64
}

// ClaimToken authorizes one identity submission for a prize within a time window.
type ClaimToken struct {
	Token          string
	PrizeID        string
	AccountID      ledger.AccountID
	ExpiresUnixUTC int64
}

// Config sets the conversion rate and claim window.
type Config struct {
	CoinsPerGift         ledger.Coins
	MinGifts             int
	MaxGifts             int
	ClaimTokenTTLSeconds int64
}

// DefaultConfig converts 10000 coins per gift, 1 to 10 gifts per request, with a 10 minute claim window.
func DefaultConfig() Config {
	return Config{
		CoinsPerGift:         10_000,
		MinGifts:             1,
		MaxGifts:             10,
		ClaimTokenTTLSeconds: 600,
	}
}

// Validate checks the conversion settings.
func (config Config) Validate() error {
	if config.CoinsPerGift <= 0 {
		return fmt.Errorf("%w: coins per gift must be positive", ErrInvalidConfig)
	}
	if config.MinGifts < 1 || config.MaxGifts < config.MinGifts {
		return fmt.Errorf("%w: gift bounds [%d, %d]", ErrInvalidConfig, config.MinGifts, config.MaxGifts)
	}
	if config.ClaimTokenTTLSeconds <= 0 {
		return fmt.Errorf("%w: claim token ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// GiftQuantity converts coins into a gift count, failing with ledger.ErrInvalidAmount unless coins is a
// positive multiple of the rate whose quotient lies within the configured bounds.
func (config Config) GiftQuantity(coins ledger.Coins) (int, error) {
	if coins <= 0 || coins%config.CoinsPerGift != 0 {
		return 0, fmt.Errorf("%w: must be a positive multiple of %d", ledger.ErrInvalidAmount, config.CoinsPerGift)
	}
	quantity := int(coins / config.CoinsPerGift)
	if quantity < config.MinGifts || quantity > config.MaxGifts {
		return 0, fmt.Errorf("%w: gift quantity %d outside %d..%d", ledger.ErrInvalidAmount, quantity, config.MinGifts, config.MaxGifts)
	}
	return quantity, nil
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Ledger() ledger.Store
	CreatePrize(ctx context.Context, prize Prize) (Prize, error)
	GetPrize(ctx context.Context, prizeID string) (Prize, error)
	ListPrizes(ctx context.Context, winner ledger.AccountID) ([]Prize, error)
	// TransitionPrize moves a prize to status when its current status is one of from, else ErrPrizeStateConflict.
	TransitionPrize(ctx context.Context, prizeID string, to PrizeStatus, atUnixUTC int64, from ...PrizeStatus) error
	// CreateClaimEntry fails with ErrAlreadyClaimed when the prize already has an entry.
	CreateClaimEntry(ctx context.Context, entry ClaimEntry) (ClaimEntry, error)
	GetClaimEntry(ctx context.Context, entryID string) (ClaimEntry, error)
	FindClaimEntryByPrize(ctx context.Context, prizeID string) (ClaimEntry, error)
	// NextReadyEntry returns the oldest ready entry or ErrQueueEmpty.
	NextReadyEntry(ctx context.Context) (ClaimEntry, error)
	// CloseClaimEntry moves a ready entry to status, else ErrEntryClosed.
	CloseClaimEntry(ctx context.Context, entryID string, to EntryStatus, staffNote string, atUnixUTC int64) error
	CreateWithdrawRequest(ctx context.Context, request WithdrawRequest) (WithdrawRequest, error)
	GetWithdrawRequest(ctx context.Context, requestID string) (WithdrawRequest, error)
	ListWithdrawRequests(ctx context.Context, status WithdrawStatus, limit int) ([]WithdrawRequest, error)
	// ReviewWithdrawRequest persists the review fields of a pending request, else ErrAlreadyReviewed.
	ReviewWithdrawRequest(ctx context.Context, request WithdrawRequest) error
}
