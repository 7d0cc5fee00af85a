package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentPeriodAlias = "current"

type httpHandler struct {
	logger   *zap.Logger
	services Services
	timeout  time.Duration
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	accountID, ok := handler.accountParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	balance, err := handler.services.Wallet.Balance(requestCtx, accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, balancePayload{Account: accountID.String(), Balance: balance.Int64()})
}

func (handler *httpHandler) handleTransactions(ctx *gin.Context) {
	accountID, ok := handler.accountParam(ctx)
	if !ok {
		return
	}
	before, err := parseOptionalInt(ctx.Query("before"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", "before must be a unix timestamp"))
		return
	}
	limit, err := parseOptionalInt(ctx.Query("limit"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", "limit must be an integer"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	transactions, err := handler.services.Wallet.ListTransactions(requestCtx, accountID, before, int(limit))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payload = append(payload, newTransactionPayload(transaction))
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": payload})
}

func (handler *httpHandler) handleClaim(ctx *gin.Context) {
	accountID, ok := handler.accountParam(ctx)
	if !ok {
		return
	}
	kind, err := ledger.ParseClaimKind(ctx.Param("kind"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	var balance ledger.Coins
	switch kind {
	case ledger.ClaimDaily:
		balance, err = handler.services.Wallet.ClaimDaily(requestCtx, accountID)
	case ledger.ClaimWeekly:
		balance, err = handler.services.Wallet.ClaimWeekly(requestCtx, accountID)
	default:
		balance, err = handler.services.Wallet.GrantStarter(requestCtx, accountID)
	}
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, balancePayload{Account: accountID.String(), Balance: balance.Int64()})
}

func (handler *httpHandler) handleAdjust(ctx *gin.Context) {
	accountID, ok := handler.accountParam(ctx)
	if !ok {
		return
	}
	actor, ok := handler.actor(ctx)
	if !ok {
		return
	}
	var request adjustRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	balance, err := handler.services.Wallet.Adjust(requestCtx, accountID, ledger.Coins(request.Delta), actor, request.Reason)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, balancePayload{Account: accountID.String(), Balance: balance.Int64()})
}

func (handler *httpHandler) handleReconcile(ctx *gin.Context) {
	accountID, ok := handler.accountParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reconciliation, err := handler.services.Wallet.Reconcile(requestCtx, accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, reconciliationPayload{
		Account:        reconciliation.AccountID.String(),
		Balance:        reconciliation.Balance.Int64(),
		TransactionSum: reconciliation.TransactionSum.Int64(),
		Consistent:     reconciliation.Consistent,
	})
}

func (handler *httpHandler) handleRoundStatus(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	status, err := handler.services.Roulette.Status(requestCtx, ctx.Param("scope"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, roundStatusPayload{
		Round:       newRoundPayload(status.Round),
		BetCount:    status.BetCount,
		Pool:        status.Pool.Int64(),
		SecondsLeft: status.SecondsLeft,
	})
}

func (handler *httpHandler) handleOpenRound(ctx *gin.Context) {
	var request openRoundRequest
	if !bindJSON(ctx, &request) {
		return
	}
	opener, err := ledger.NewAccountID(request.Opener)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	round, err := handler.services.Roulette.Open(requestCtx, ctx.Param("scope"), request.DurationSeconds, opener)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newRoundPayload(round))
}

func (handler *httpHandler) handlePlaceBet(ctx *gin.Context) {
	var request betRequest
	if !bindJSON(ctx, &request) {
		return
	}
	accountID, err := ledger.NewAccountID(request.Account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	choice, err := roulette.ParseChoice(request.Choice)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	bet, err := handler.services.Roulette.PlaceBet(requestCtx, ctx.Param("round"), accountID, choice, ledger.Coins(request.Stake))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newBetPayload(bet))
}

func (handler *httpHandler) handleResolveRound(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	settlement, err := handler.services.Roulette.Resolve(requestCtx, ctx.Param("round"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSettlementPayload(settlement))
}

func (handler *httpHandler) handleCancelRound(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	settlement, err := handler.services.Roulette.Cancel(requestCtx, ctx.Param("round"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSettlementPayload(settlement))
}

func (handler *httpHandler) handlePot(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	pot, err := handler.services.Reels.PotStatus(requestCtx, ctx.Param("scope"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newPotPayload(pot))
}

func (handler *httpHandler) handleSpin(ctx *gin.Context) {
	var request spinRequest
	if !bindJSON(ctx, &request) {
		return
	}
	accountID, err := ledger.NewAccountID(request.Account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if request.Count == 0 {
		request.Count = 1
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	result, err := handler.services.Reels.Spin(requestCtx, ctx.Param("scope"), accountID, request.Count)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newSpinResultPayload(result))
}

func (handler *httpHandler) handleLotteryStatus(ctx *gin.Context) {
	var accountID ledger.AccountID
	if raw := ctx.Query("account"); raw != "" {
		parsed, err := ledger.NewAccountID(raw)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		accountID = parsed
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	status, err := handler.services.Lottery.Status(requestCtx, periodParam(ctx), accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newLotteryStatusPayload(status))
}

func (handler *httpHandler) handleBuyTickets(ctx *gin.Context) {
	var request ticketRequest
	if !bindJSON(ctx, &request) {
		return
	}
	accountID, err := ledger.NewAccountID(request.Account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	purchase, err := handler.services.Lottery.BuyTickets(requestCtx, accountID, request.Count, periodParam(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, purchasePayload{
		Period:  purchase.Period,
		Tickets: len(purchase.Tickets),
		Cost:    purchase.Cost.Int64(),
		Balance: purchase.Balance.Int64(),
	})
}

func (handler *httpHandler) handleDraw(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	draw, err := handler.services.Lottery.Draw(requestCtx, periodParam(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newDrawPayload(draw))
}

func (handler *httpHandler) handlePrizes(ctx *gin.Context) {
	accountID, ok := handler.accountParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	owned, err := handler.services.Prizes.Prizes(requestCtx, accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]prizePayload, 0, len(owned))
	for _, prize := range owned {
		payload = append(payload, newPrizePayload(prize))
	}
	ctx.JSON(http.StatusOK, gin.H{"prizes": payload})
}

func (handler *httpHandler) handleClaimToken(ctx *gin.Context) {
	var request accountRequest
	if !bindJSON(ctx, &request) {
		return
	}
	accountID, err := ledger.NewAccountID(request.Account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	token, err := handler.services.Prizes.InitiateClaim(requestCtx, ctx.Param("prize"), accountID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, claimTokenPayload{Token: token.Token, PrizeID: token.PrizeID, ExpiresUnixUTC: token.ExpiresUnixUTC})
}

func (handler *httpHandler) handleSubmitClaim(ctx *gin.Context) {
	var request submitClaimRequest
	if !bindJSON(ctx, &request) {
		return
	}
	accountID, err := ledger.NewAccountID(request.Account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	identity, err := prizes.ParseIdentity(request.Identity)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	entry, created, err := handler.services.Prizes.SubmitClaim(requestCtx, ctx.Param("prize"), accountID, identity, request.Note)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(claimStatus(created), newClaimEntryPayload(entry, created))
}

func (handler *httpHandler) handleCompleteClaim(ctx *gin.Context) {
	var request completeClaimRequest
	if !bindJSON(ctx, &request) {
		return
	}
	identity, err := prizes.ParseIdentity(request.Identity)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	entry, created, err := handler.services.Prizes.CompleteClaim(requestCtx, request.Token, identity, request.Note)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(claimStatus(created), newClaimEntryPayload(entry, created))
}

func (handler *httpHandler) handleNextClaim(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	entry, err := handler.services.Prizes.NextReady(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newClaimEntryPayload(entry, false))
}

func (handler *httpHandler) handleFulfill(ctx *gin.Context) {
	handler.closeClaim(ctx, handler.services.Prizes.Fulfill)
}

func (handler *httpHandler) handleFail(ctx *gin.Context) {
	handler.closeClaim(ctx, handler.services.Prizes.Fail)
}

func (handler *httpHandler) closeClaim(ctx *gin.Context, closeEntry func(context.Context, string, string) (prizes.ClaimEntry, error)) {
	var request staffNoteRequest
	if !bindOptionalJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	entry, err := closeEntry(requestCtx, ctx.Param("entry"), request.StaffNote)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newClaimEntryPayload(entry, false))
}

func (handler *httpHandler) handleRequestWithdrawal(ctx *gin.Context) {
	var request withdrawRequest
	if !bindJSON(ctx, &request) {
		return
	}
	accountID, err := ledger.NewAccountID(request.Account)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	identity, err := prizes.ParseIdentity(request.Identity)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	created, err := handler.services.Prizes.RequestWithdrawal(requestCtx, accountID, ledger.Coins(request.Coins), identity, request.Note)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, newWithdrawPayload(created))
}

func (handler *httpHandler) handlePendingWithdrawals(ctx *gin.Context) {
	limit, err := parseOptionalInt(ctx.Query("limit"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", "limit must be an integer"))
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	pending, err := handler.services.Prizes.PendingWithdrawals(requestCtx, int(limit))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := make([]withdrawPayload, 0, len(pending))
	for _, request := range pending {
		payload = append(payload, newWithdrawPayload(request))
	}
	ctx.JSON(http.StatusOK, gin.H{"withdrawals": payload})
}

func (handler *httpHandler) handleApproveWithdrawal(ctx *gin.Context) {
	reviewer, ok := handler.actor(ctx)
	if !ok {
		return
	}
	var request approveRequest
	if !bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	approved, err := handler.services.Prizes.ApproveWithdrawal(requestCtx, ctx.Param("request"), reviewer, ledger.Coins(request.Coins))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newWithdrawPayload(approved))
}

func (handler *httpHandler) handleRejectWithdrawal(ctx *gin.Context) {
	reviewer, ok := handler.actor(ctx)
	if !ok {
		return
	}
	var request rejectRequest
	if !bindOptionalJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	rejected, err := handler.services.Prizes.RejectWithdrawal(requestCtx, ctx.Param("request"), reviewer, request.Reason)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, newWithdrawPayload(rejected))
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := mapToHTTPError(err)
	if status == http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, errorResponse(code, "internal error"))
		return
	}
	response := errorResponse(code, err.Error())
	var cooldown ledger.CooldownError
	if errors.As(err, &cooldown) {
		response["next_eligible_unix_utc"] = cooldown.NextEligibleUnixUTC
	}
	ctx.JSON(status, response)
}

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.timeout)
}

func (handler *httpHandler) accountParam(ctx *gin.Context) (ledger.AccountID, bool) {
	accountID, err := ledger.NewAccountID(ctx.Param("account"))
	if err != nil {
		handler.respondError(ctx, err)
		return ledger.AccountID{}, false
	}
	return accountID, true
}

// actor is the account named by the bearer token subject.
func (handler *httpHandler) actor(ctx *gin.Context) (ledger.AccountID, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return ledger.AccountID{}, false
	}
	actor, err := ledger.NewAccountID(claims.Subject)
	if err != nil {
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", "token subject is not an account"))
		return ledger.AccountID{}, false
	}
	return actor, true
}

func bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return false
	}
	return true
}

func bindOptionalJSON(ctx *gin.Context, target any) bool {
	if ctx.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(ctx, target)
}

func periodParam(ctx *gin.Context) string {
	period := ctx.Param("period")
	if period == currentPeriodAlias {
		return ""
	}
	return period
}

func parseOptionalInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func claimStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
