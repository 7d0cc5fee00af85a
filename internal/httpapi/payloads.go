package httpapi

import (
	"encoding/json"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
)

type accountRequest struct {
	Account string `json:"account"`
}

type adjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

type openRoundRequest struct {
	DurationSeconds int64  `json:"duration_seconds"`
	Opener          string `json:"opener"`
}

type betRequest struct {
	Account string `json:"account"`
	Choice  string `json:"choice"`
	Stake   int64  `json:"stake"`
}

type spinRequest struct {
	Account string `json:"account"`
	Count   int    `json:"count"`
}

type ticketRequest struct {
	Account string `json:"account"`
	Count   int    `json:"count"`
}

type submitClaimRequest struct {
	Account  string `json:"account"`
	Identity string `json:"identity"`
	Note     string `json:"note"`
}

type completeClaimRequest struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
	Note     string `json:"note"`
}

type staffNoteRequest struct {
	StaffNote string `json:"staff_note"`
}

type withdrawRequest struct {
	Account  string `json:"account"`
	Coins    int64  `json:"coins"`
	Identity string `json:"identity"`
	Note     string `json:"note"`
}

type approveRequest struct {
	Coins int64 `json:"coins"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type balancePayload struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type transactionPayload struct {
	TransactionID  string          `json:"transaction_id"`
	Account        string          `json:"account"`
	Kind           string          `json:"kind"`
	Amount         int64           `json:"amount"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
}

type reconciliationPayload struct {
	Account        string `json:"account"`
	Balance        int64  `json:"balance"`
	TransactionSum int64  `json:"transaction_sum"`
	Consistent     bool   `json:"consistent"`
}

type roundPayload struct {
	RoundID         string `json:"round_id"`
	Scope           string `json:"scope"`
	Label           string `json:"label"`
	Status          string `json:"status"`
	OpenedBy        string `json:"opened_by"`
	OpenedUnixUTC   int64  `json:"opened_unix_utc"`
	ExpiresUnixUTC  int64  `json:"expires_unix_utc"`
	Outcome         string `json:"outcome,omitempty"`
	OutcomePosition int    `json:"outcome_position"`
	Seed            string `json:"seed,omitempty"`
	ClosedUnixUTC   int64  `json:"closed_unix_utc,omitempty"`
}

type roundStatusPayload struct {
	Round       roundPayload `json:"round"`
	BetCount    int          `json:"bet_count"`
	Pool        int64        `json:"pool"`
	SecondsLeft int64        `json:"seconds_left"`
}

type betPayload struct {
	BetID          string `json:"bet_id"`
	RoundID        string `json:"round_id"`
	Account        string `json:"account"`
	Choice         string `json:"choice"`
	Stake          int64  `json:"stake"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

type payoutPayload struct {
	BetID   string `json:"bet_id"`
	Account string `json:"account"`
	Stake   int64  `json:"stake"`
	Amount  int64  `json:"amount"`
}

type settlementPayload struct {
	Round    roundPayload    `json:"round"`
	BetCount int             `json:"bet_count"`
	Pool     int64           `json:"pool"`
	Payouts  []payoutPayload `json:"payouts"`
}

type potPayload struct {
	Scope     string `json:"scope"`
	Amount    int64  `json:"amount"`
	Floor     int64  `json:"floor"`
	Available int64  `json:"available"`
}

type spinPayload struct {
	Symbols   []string `json:"symbols"`
	Payout    int64    `json:"payout"`
	PotBefore int64    `json:"pot_before"`
}

type spinResultPayload struct {
	Spins       []spinPayload `json:"spins"`
	TotalStake  int64         `json:"total_stake"`
	TotalPayout int64         `json:"total_payout"`
	Balance     int64         `json:"balance"`
	Pot         potPayload    `json:"pot"`
}

type drawPayload struct {
	Period      string `json:"period"`
	Winner      string `json:"winner"`
	TicketID    string `json:"ticket_id"`
	TicketCount int    `json:"ticket_count"`
	Seed        string `json:"seed"`
	PrizeID     string `json:"prize_id"`
	RunUnixUTC  int64  `json:"run_unix_utc"`
}

type purchasePayload struct {
	Period  string `json:"period"`
	Tickets int    `json:"tickets"`
	Cost    int64  `json:"cost"`
	Balance int64  `json:"balance"`
}

type lotteryStatusPayload struct {
	Period          string       `json:"period"`
	TicketPrice     int64        `json:"ticket_price"`
	TotalTickets    int64        `json:"total_tickets"`
	AccountTickets  int64        `json:"account_tickets"`
	Draw            *drawPayload `json:"draw,omitempty"`
	NextDrawUnixUTC int64        `json:"next_draw_unix_utc"`
}

type identityPayload struct {
	Username    string `json:"username"`
	ProfileURL  string `json:"profile_url"`
	WishlistURL string `json:"wishlist_url"`
}

type prizePayload struct {
	PrizeID        string          `json:"prize_id"`
	Winner         string          `json:"winner"`
	Kind           string          `json:"kind"`
	Quantity       int             `json:"quantity"`
	Metadata       json.RawMessage `json:"metadata"`
	Status         string          `json:"status"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
}

type claimTokenPayload struct {
	Token          string `json:"token"`
	PrizeID        string `json:"prize_id"`
	ExpiresUnixUTC int64  `json:"expires_unix_utc"`
}

type claimEntryPayload struct {
	EntryID   string          `json:"entry_id"`
	PrizeID   string          `json:"prize_id"`
	Winner    string          `json:"winner"`
	Identity  identityPayload `json:"identity"`
	Note      string          `json:"note,omitempty"`
	StaffNote string          `json:"staff_note,omitempty"`
	Status    string          `json:"status"`
	Created   bool            `json:"created"`
}

type withdrawPayload struct {
	RequestID  string          `json:"request_id"`
	Account    string          `json:"account"`
	Coins      int64           `json:"coins"`
	Quantity   int             `json:"quantity"`
	Identity   identityPayload `json:"identity"`
	Note       string          `json:"note,omitempty"`
	Status     string          `json:"status"`
	Reviewer   string          `json:"reviewer,omitempty"`
	ReviewNote string          `json:"review_note,omitempty"`
	PrizeID    string          `json:"prize_id,omitempty"`
}

func newTransactionPayload(transaction ledger.Transaction) transactionPayload {
	return transactionPayload{
		TransactionID:  transaction.ID.String(),
		Account:        transaction.AccountID.String(),
		Kind:           transaction.Kind.String(),
		Amount:         transaction.Amount.Int64(),
		Metadata:       json.RawMessage(transaction.Metadata.String()),
		CreatedUnixUTC: transaction.CreatedUnixUTC,
	}
}

func newRoundPayload(round roulette.Round) roundPayload {
	return roundPayload{
		RoundID:         round.ID,
		Scope:           round.Scope,
		Label:           round.Label(),
		Status:          round.Status.String(),
		OpenedBy:        round.OpenedBy.String(),
		OpenedUnixUTC:   round.OpenedUnixUTC,
		ExpiresUnixUTC:  round.ExpiresUnixUTC,
		Outcome:         round.Outcome.String(),
		OutcomePosition: round.OutcomePosition,
		Seed:            round.Seed,
		ClosedUnixUTC:   round.ClosedUnixUTC,
	}
}

func newBetPayload(bet roulette.Bet) betPayload {
	return betPayload{
		BetID:          bet.ID,
		RoundID:        bet.RoundID,
		Account:        bet.AccountID.String(),
		Choice:         bet.Choice.String(),
		Stake:          bet.Stake.Int64(),
		CreatedUnixUTC: bet.CreatedUnixUTC,
	}
}

func newSettlementPayload(settlement roulette.Settlement) settlementPayload {
	payouts := make([]payoutPayload, 0, len(settlement.Payouts))
	for _, payout := range settlement.Payouts {
		payouts = append(payouts, payoutPayload{
			BetID:   payout.BetID,
			Account: payout.AccountID.String(),
			Stake:   payout.Stake.Int64(),
			Amount:  payout.Amount.Int64(),
		})
	}
	return settlementPayload{
		Round:    newRoundPayload(settlement.Round),
		BetCount: settlement.BetCount,
		Pool:     settlement.Pool.Int64(),
		Payouts:  payouts,
	}
}

func newPotPayload(pot reels.Pot) potPayload {
	return potPayload{
		Scope:     pot.Scope,
		Amount:    pot.Amount.Int64(),
		Floor:     pot.Floor.Int64(),
		Available: pot.Available().Int64(),
	}
}

func newSpinResultPayload(result reels.SpinResult) spinResultPayload {
	spins := make([]spinPayload, 0, len(result.Spins))
	for _, spin := range result.Spins {
		symbols := make([]string, 0, len(spin.Symbols))
		for _, symbol := range spin.Symbols {
			symbols = append(symbols, string(symbol))
		}
		spins = append(spins, spinPayload{Symbols: symbols, Payout: spin.Payout.Int64(), PotBefore: spin.PotBefore.Int64()})
	}
	return spinResultPayload{
		Spins:       spins,
		TotalStake:  result.TotalStake.Int64(),
		TotalPayout: result.TotalPayout.Int64(),
		Balance:     result.Balance.Int64(),
		Pot:         newPotPayload(result.Pot),
	}
}

func newDrawPayload(draw lottery.Draw) drawPayload {
	return drawPayload{
		Period:      draw.Period,
		Winner:      draw.WinnerAccountID.String(),
		TicketID:    draw.TicketID,
		TicketCount: draw.TicketCount,
		Seed:        draw.Seed,
		PrizeID:     draw.PrizeID,
		RunUnixUTC:  draw.RunUnixUTC,
	}
}

func newLotteryStatusPayload(status lottery.Status) lotteryStatusPayload {
	payload := lotteryStatusPayload{
		Period:          status.Period,
		TicketPrice:     status.TicketPrice.Int64(),
		TotalTickets:    status.TotalTickets,
		AccountTickets:  status.AccountTickets,
		NextDrawUnixUTC: status.NextDrawUnixUTC,
	}
	if status.Draw != nil {
		draw := newDrawPayload(*status.Draw)
		payload.Draw = &draw
	}
	return payload
}

func newIdentityPayload(identity prizes.Identity) identityPayload {
	return identityPayload{Username: identity.Username, ProfileURL: identity.ProfileURL, WishlistURL: identity.WishlistURL}
}

func newPrizePayload(prize prizes.Prize) prizePayload {
	return prizePayload{
		PrizeID:        prize.ID,
		Winner:         prize.WinnerAccountID.String(),
		Kind:           string(prize.Kind),
		Quantity:       prize.Quantity,
		Metadata:       json.RawMessage(prize.Metadata.String()),
		Status:         string(prize.Status),
		CreatedUnixUTC: prize.CreatedUnixUTC,
	}
}

func newClaimEntryPayload(entry prizes.ClaimEntry, created bool) claimEntryPayload {
	return claimEntryPayload{
		EntryID:   entry.ID,
		PrizeID:   entry.PrizeID,
		Winner:    entry.WinnerAccountID.String(),
		Identity:  newIdentityPayload(entry.Identity),
		Note:      entry.Note,
		StaffNote: entry.StaffNote,
		Status:    string(entry.Status),
		Created:   created,
	}
}

func newWithdrawPayload(request prizes.WithdrawRequest) withdrawPayload {
	return withdrawPayload{
		RequestID:  request.ID,
		Account:    request.AccountID.String(),
		Coins:      request.Coins.Int64(),
		Quantity:   request.Quantity,
		Identity:   newIdentityPayload(request.Identity),
		Note:       request.Note,
		Status:     string(request.Status),
		Reviewer:   request.ReviewerAccountID.String(),
		ReviewNote: request.ReviewNote,
		PrizeID:    request.PrizeID,
	}
}
