package gormstore

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account mirrors the accounts table; balance is denormalized from transactions.
type Account struct {
	AccountID              string `gorm:"primaryKey"`
	Balance                int64  `gorm:"not null;default:0"`
	LastDailyClaimUnixUTC  int64  `gorm:"not null;default:0"`
	LastWeeklyClaimUnixUTC int64  `gorm:"not null;default:0"`
	StarterGrantedUnixUTC  int64  `gorm:"not null;default:0"`
	CreatedUnixUTC         int64  `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// Transaction mirrors the append-only transactions table.
type Transaction struct {
	TransactionID  string         `gorm:"primaryKey"`
	AccountID      string         `gorm:"not null;index:idx_transactions_account_created,priority:1"`
	Kind           string         `gorm:"not null"`
	Amount         int64          `gorm:"not null"`
	Metadata       datatypes.JSON `gorm:"not null"`
	CreatedUnixUTC int64          `gorm:"not null;index:idx_transactions_account_created,priority:2"`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// Round mirrors the roulette_rounds table.
type Round struct {
	RoundID         string `gorm:"primaryKey"`
	Scope           string `gorm:"not null;index:idx_rounds_scope_number,unique,priority:1;index:idx_rounds_scope_status,priority:1"`
	Number          int64  `gorm:"not null;index:idx_rounds_scope_number,unique,priority:2"`
	Status          string `gorm:"not null;index:idx_rounds_scope_status,priority:2"`
	OpenedBy        string `gorm:"not null;default:''"`
	OpenedUnixUTC   int64  `gorm:"not null"`
	ExpiresUnixUTC  int64  `gorm:"not null"`
	Outcome         string `gorm:"not null;default:''"`
	OutcomePosition int    `gorm:"not null;default:0"`
	Seed            string `gorm:"not null;default:''"`
	ClosedUnixUTC   int64  `gorm:"not null;default:0"`
}

func (Round) TableName() string { return "roulette_rounds" }

func (round *Round) BeforeCreate(tx *gorm.DB) error {
	if round.RoundID == "" {
		round.RoundID = uuid.NewString()
	}
	return nil
}

// Bet mirrors the roulette_bets table.
type Bet struct {
	BetID          string `gorm:"primaryKey"`
	RoundID        string `gorm:"not null;index:idx_bets_round_account,priority:1"`
	AccountID      string `gorm:"not null;index:idx_bets_round_account,priority:2"`
	Choice         string `gorm:"not null"`
	Stake          int64  `gorm:"not null"`
	CreatedUnixUTC int64  `gorm:"not null"`

	// ExclusiveKey is set only for single-bet rounds; NULLs never collide in the unique index.
	ExclusiveKey *string `gorm:"uniqueIndex:idx_bets_exclusive"`
}

func (Bet) TableName() string { return "roulette_bets" }

func (bet *Bet) BeforeCreate(tx *gorm.DB) error {
	if bet.BetID == "" {
		bet.BetID = uuid.NewString()
	}
	return nil
}

// Pot mirrors the reel_pots table, one row per scope.
type Pot struct {
	Scope          string `gorm:"primaryKey"`
	Amount         int64  `gorm:"not null"`
	Floor          int64  `gorm:"not null"`
	UpdatedUnixUTC int64  `gorm:"not null"`
}

func (Pot) TableName() string { return "reel_pots" }

// Spin mirrors the reel_spins table.
type Spin struct {
	SpinID         string                      `gorm:"primaryKey"`
	Scope          string                      `gorm:"not null;index:idx_spins_scope_created,priority:1"`
	AccountID      string                      `gorm:"not null"`
	Symbols        datatypes.JSONSlice[string] `gorm:"not null"`
	Payout         int64                       `gorm:"not null"`
	PotBefore      int64                       `gorm:"not null"`
	CreatedUnixUTC int64                       `gorm:"not null;index:idx_spins_scope_created,priority:2"`
}

func (Spin) TableName() string { return "reel_spins" }

func (spin *Spin) BeforeCreate(tx *gorm.DB) error {
	if spin.SpinID == "" {
		spin.SpinID = uuid.NewString()
	}
	return nil
}

// Ticket mirrors the lottery_tickets table.
type Ticket struct {
	TicketID         string `gorm:"primaryKey"`
	Period           string `gorm:"not null;index:idx_tickets_period_account,priority:1"`
	AccountID        string `gorm:"not null;index:idx_tickets_period_account,priority:2"`
	PurchasedUnixUTC int64  `gorm:"not null"`
}

func (Ticket) TableName() string { return "lottery_tickets" }

func (ticket *Ticket) BeforeCreate(tx *gorm.DB) error {
	if ticket.TicketID == "" {
		ticket.TicketID = uuid.NewString()
	}
	return nil
}

// Draw mirrors the lottery_draws table; the unique period index makes redraws fail.
type Draw struct {
	DrawID          string `gorm:"primaryKey"`
	Period          string `gorm:"not null;uniqueIndex:uniq_draws_period"`
	WinnerAccountID string `gorm:"not null"`
	TicketID        string `gorm:"not null"`
	TicketCount     int    `gorm:"not null"`
	Seed            string `gorm:"not null"`
	Status          string `gorm:"not null"`
	PrizeID         string `gorm:"not null"`
	RunUnixUTC      int64  `gorm:"not null"`
}

func (Draw) TableName() string { return "lottery_draws" }

func (draw *Draw) BeforeCreate(tx *gorm.DB) error {
	if draw.DrawID == "" {
		draw.DrawID = uuid.NewString()
	}
	return nil
}

// Prize mirrors the prizes table.
type Prize struct {
	PrizeID         string         `gorm:"primaryKey"`
	WinnerAccountID string         `gorm:"not null;index:idx_prizes_winner"`
	Kind            string         `gorm:"not null"`
	Quantity        int            `gorm:"not null"`
	Metadata        datatypes.JSON `gorm:"not null"`
	Status          string         `gorm:"not null"`
	CreatedUnixUTC  int64          `gorm:"not null"`
	UpdatedUnixUTC  int64          `gorm:"not null"`
}

func (Prize) TableName() string { return "prizes" }

func (prize *Prize) BeforeCreate(tx *gorm.DB) error {
	if prize.PrizeID == "" {
		prize.PrizeID = uuid.NewString()
	}
	return nil
}

// ClaimEntry mirrors the claim_entries table; one entry per prize.
type ClaimEntry struct {
	EntryID         string `gorm:"primaryKey"`
	PrizeID         string `gorm:"not null;uniqueIndex:uniq_claim_entries_prize"`
	WinnerAccountID string `gorm:"not null"`
	Username        string `gorm:"not null"`
	ProfileURL      string `gorm:"not null"`
	WishlistURL     string `gorm:"not null"`
	Note            string `gorm:"not null;default:''"`
	StaffNote       string `gorm:"not null;default:''"`
	Status          string `gorm:"not null;index:idx_claim_entries_status_created,priority:1"`
	CreatedUnixUTC  int64  `gorm:"not null;index:idx_claim_entries_status_created,priority:2"`
	UpdatedUnixUTC  int64  `gorm:"not null"`
}

func (ClaimEntry) TableName() string { return "claim_entries" }

func (entry *ClaimEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// WithdrawRequest mirrors the withdraw_requests table.
type WithdrawRequest struct {
	RequestID         string `gorm:"primaryKey"`
	AccountID         string `gorm:"not null;index:idx_withdraw_requests_account"`
	Coins             int64  `gorm:"not null"`
	Quantity          int    `gorm:"not null"`
	Username          string `gorm:"not null"`
	ProfileURL        string `gorm:"not null"`
	WishlistURL       string `gorm:"not null"`
	Note              string `gorm:"not null;default:''"`
	Status            string `gorm:"not null;index:idx_withdraw_requests_status_created,priority:1"`
	ReviewerAccountID string `gorm:"not null;default:''"`
	ReviewNote        string `gorm:"not null;default:''"`
	PrizeID           string `gorm:"not null;default:''"`
	CreatedUnixUTC    int64  `gorm:"not null;index:idx_withdraw_requests_status_created,priority:2"`
	ReviewedUnixUTC   int64  `gorm:"not null;default:0"`
}

func (WithdrawRequest) TableName() string { return "withdraw_requests" }

func (request *WithdrawRequest) BeforeCreate(tx *gorm.DB) error {
	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}
	return nil
}

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&Account{},
		&Transaction{},
		&Round{},
		&Bet{},
		&Pot{},
		&Spin{},
		&Ticket{},
		&Draw{},
		&Prize{},
		&ClaimEntry{},
		&WithdrawRequest{},
	}
}
