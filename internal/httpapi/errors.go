package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{ledger.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
	{ledger.ErrUnknownAccount, http.StatusNotFound, "unknown_account"},
	{ledger.ErrClaimCooldown, http.StatusTooManyRequests, "claim_cooldown"},
	{ledger.ErrStarterAlreadyGranted, http.StatusConflict, "starter_already_granted"},
	{ledger.ErrInvalidAccountID, http.StatusBadRequest, "invalid_account"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrInvalidClaimKind, http.StatusBadRequest, "invalid_claim_kind"},
	{ledger.ErrInvalidListLimit, http.StatusBadRequest, "invalid_limit"},
	{ledger.ErrInvalidMetadataJSON, http.StatusBadRequest, "invalid_metadata"},
	{ledger.ErrInvalidTransactionKind, http.StatusBadRequest, "invalid_transaction_kind"},
	{ledger.ErrInvalidServiceConfig, http.StatusInternalServerError, "invalid_config"},

	{roulette.ErrRoundAlreadyOpen, http.StatusConflict, "round_already_open"},
	{roulette.ErrRoundClosed, http.StatusConflict, "round_closed"},
	{roulette.ErrRoundNotOpen, http.StatusConflict, "round_not_open"},
	{roulette.ErrUnknownRound, http.StatusNotFound, "unknown_round"},
	{roulette.ErrNoOpenRound, http.StatusNotFound, "no_open_round"},
	{roulette.ErrDuplicateBet, http.StatusConflict, "duplicate_bet"},
	{roulette.ErrInvalidStake, http.StatusBadRequest, "invalid_stake"},
	{roulette.ErrInvalidChoice, http.StatusBadRequest, "invalid_choice"},
	{roulette.ErrInvalidScope, http.StatusBadRequest, "invalid_scope"},

	{reels.ErrInvalidSpinCount, http.StatusBadRequest, "invalid_spin_count"},
	{reels.ErrInvalidScope, http.StatusBadRequest, "invalid_scope"},
	{reels.ErrUnknownPot, http.StatusNotFound, "unknown_pot"},

	{lottery.ErrNoEntries, http.StatusConflict, "no_entries"},
	{lottery.ErrAlreadyDrawn, http.StatusConflict, "already_drawn"},
	{lottery.ErrNoDraw, http.StatusNotFound, "no_draw"},
	{lottery.ErrInvalidTicketCount, http.StatusBadRequest, "invalid_ticket_count"},
	{lottery.ErrInvalidPeriod, http.StatusBadRequest, "invalid_period"},

	{prizes.ErrNotFound, http.StatusNotFound, "not_found"},
	{prizes.ErrNotWinner, http.StatusForbidden, "not_winner"},
	{prizes.ErrAlreadyClaimed, http.StatusConflict, "already_claimed"},
	{prizes.ErrAlreadyReviewed, http.StatusConflict, "already_reviewed"},
	{prizes.ErrEntryClosed, http.StatusConflict, "entry_closed"},
	{prizes.ErrClaimTokenExpired, http.StatusGone, "claim_token_expired"},
	{prizes.ErrQueueEmpty, http.StatusNotFound, "queue_empty"},
	{prizes.ErrPrizeStateConflict, http.StatusConflict, "prize_state_conflict"},
	{prizes.ErrInvalidIdentity, http.StatusBadRequest, "invalid_identity"},
}

// mapToHTTPError picks the status and code for a domain error; unknown errors are internal.
func mapToHTTPError(err error) (int, string) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, mapping.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
