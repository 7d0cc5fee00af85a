package prizes_test

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/haus/internal/testkit"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/stretchr/testify/require"
)

func mustNewService(test *testing.T, harness *testkit.Harness) *prizes.Service {
	test.Helper()
	service, err := prizes.NewService(harness.Store.Prizes(), harness.Wallet)
	require.NoError(test, err)
	return service
}

func mustPendingPrize(test *testing.T, harness *testkit.Harness, winner ledger.AccountID) prizes.Prize {
	test.Helper()
	prize, err := harness.Store.Prizes().CreatePrize(context.Background(), prizes.Prize{
		WinnerAccountID: winner,
		Kind:            prizes.KindWishlistGift,
		Quantity:        10,
		Status:          prizes.PrizePending,
		CreatedUnixUTC:  harness.Clock.Now(),
		UpdatedUnixUTC:  harness.Clock.Now(),
	})
	require.NoError(test, err)
	return prize
}

func mustIdentity(test *testing.T, raw string) prizes.Identity {
	test.Helper()
	identity, err := prizes.ParseIdentity(raw)
	require.NoError(test, err)
	return identity
}

func TestClaimFlowThroughToken(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	prize := mustPendingPrize(test, harness, alice)

	_, err := service.InitiateClaim(ctx, prize.ID, testkit.Account(test, "mallory"))
	require.ErrorIs(test, err, prizes.ErrNotWinner)

	token, err := service.InitiateClaim(ctx, prize.ID, alice)
	require.NoError(test, err)
	require.Equal(test, harness.Clock.Now()+600, token.ExpiresUnixUTC)

	entry, created, err := service.CompleteClaim(ctx, token.Token, mustIdentity(test, "AliceIMVU"), " size M ")
	require.NoError(test, err)
	require.True(test, created)
	require.Equal(test, prizes.EntryReady, entry.Status)
	require.Equal(test, "size M", entry.Note)

	_, _, err = service.CompleteClaim(ctx, token.Token, mustIdentity(test, "AliceIMVU"), "")
	require.ErrorIs(test, err, prizes.ErrClaimTokenExpired)

	stored, err := service.Prize(ctx, prize.ID)
	require.NoError(test, err)
	require.Equal(test, prizes.PrizeClaimed, stored.Status)

	_, err = service.InitiateClaim(ctx, prize.ID, alice)
	require.ErrorIs(test, err, prizes.ErrAlreadyClaimed)
}

func TestClaimTokenExpires(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	prize := mustPendingPrize(test, harness, alice)

	token, err := service.InitiateClaim(ctx, prize.ID, alice)
	require.NoError(test, err)
	harness.Clock.Advance(601)
	_, _, err = service.CompleteClaim(ctx, token.Token, mustIdentity(test, "alice"), "")
	require.ErrorIs(test, err, prizes.ErrClaimTokenExpired)
}

func TestCompleteClaimKeepsTokenOnInvalidIdentity(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	prize := mustPendingPrize(test, harness, alice)

	token, err := service.InitiateClaim(ctx, prize.ID, alice)
	require.NoError(test, err)

	_, _, err = service.CompleteClaim(ctx, token.Token, prizes.Identity{}, "")
	require.ErrorIs(test, err, prizes.ErrInvalidIdentity)

	entry, created, err := service.CompleteClaim(ctx, token.Token, mustIdentity(test, "alice"), "")
	require.NoError(test, err)
	require.True(test, created)
	require.Equal(test, prize.ID, entry.PrizeID)
}

func TestSubmitClaimIsIdempotent(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	prize := mustPendingPrize(test, harness, alice)

	_, _, err := service.SubmitClaim(ctx, prize.ID, alice, prizes.Identity{}, "")
	require.ErrorIs(test, err, prizes.ErrInvalidIdentity)
	_, _, err = service.SubmitClaim(ctx, "missing", alice, mustIdentity(test, "alice"), "")
	require.ErrorIs(test, err, prizes.ErrNotFound)
	_, _, err = service.SubmitClaim(ctx, prize.ID, testkit.Account(test, "bob"), mustIdentity(test, "bob"), "")
	require.ErrorIs(test, err, prizes.ErrNotWinner)

	first, created, err := service.SubmitClaim(ctx, prize.ID, alice, mustIdentity(test, "alice"), "first")
	require.NoError(test, err)
	require.True(test, created)

	second, created, err := service.SubmitClaim(ctx, prize.ID, alice, mustIdentity(test, "someone-else"), "second")
	require.NoError(test, err)
	require.False(test, created)
	require.Equal(test, first.ID, second.ID)
	require.Equal(test, "alice", second.Identity.Username)
	require.Equal(test, "first", second.Note)
}

func TestFulfillQueueInOrder(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	bob := testkit.Account(test, "bob")
	alicePrize := mustPendingPrize(test, harness, alice)
	bobPrize := mustPendingPrize(test, harness, bob)

	_, err := service.NextReady(ctx)
	require.ErrorIs(test, err, prizes.ErrQueueEmpty)

	_, _, err = service.SubmitClaim(ctx, alicePrize.ID, alice, mustIdentity(test, "alice"), "")
	require.NoError(test, err)
	harness.Clock.Advance(10)
	_, _, err = service.SubmitClaim(ctx, bobPrize.ID, bob, mustIdentity(test, "bob"), "")
	require.NoError(test, err)

	next, err := service.NextReady(ctx)
	require.NoError(test, err)
	require.Equal(test, alicePrize.ID, next.PrizeID)

	fulfilled, err := service.Fulfill(ctx, next.ID, " sent 10 gifts ")
	require.NoError(test, err)
	require.Equal(test, prizes.EntryFulfilled, fulfilled.Status)
	require.Equal(test, "sent 10 gifts", fulfilled.StaffNote)
	_, err = service.Fail(ctx, next.ID, "")
	require.ErrorIs(test, err, prizes.ErrEntryClosed)

	next, err = service.NextReady(ctx)
	require.NoError(test, err)
	require.Equal(test, bobPrize.ID, next.PrizeID)
	_, err = service.Fail(ctx, next.ID, "wishlist private")
	require.NoError(test, err)

	stored, err := service.Prize(ctx, bobPrize.ID)
	require.NoError(test, err)
	require.Equal(test, prizes.PrizeFailed, stored.Status)
	stored, err = service.Prize(ctx, alicePrize.ID)
	require.NoError(test, err)
	require.Equal(test, prizes.PrizeFulfilled, stored.Status)

	_, err = service.Fulfill(ctx, "missing", "")
	require.ErrorIs(test, err, prizes.ErrNotFound)
}

func TestApproveWithdrawalRejectsAmountOutsideRequest(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	reviewer := testkit.Account(test, "staff")
	harness.Fund(test, alice, 100_000)

	request, err := service.RequestWithdrawal(ctx, alice, 20_000, mustIdentity(test, "alice"), "")
	require.NoError(test, err)

	for _, confirmed := range []ledger.Coins{90_000, 30_000, -10_000} {
		_, err = service.ApproveWithdrawal(ctx, request.ID, reviewer, confirmed)
		require.ErrorIs(test, err, ledger.ErrInvalidAmount)
	}

	balance, err := harness.Wallet.Balance(ctx, alice)
	require.NoError(test, err)
	require.Equal(test, ledger.Coins(100_000), balance)
	pending, err := service.PendingWithdrawals(ctx, 0)
	require.NoError(test, err)
	require.Len(test, pending, 1)
	require.Equal(test, prizes.WithdrawPending, pending[0].Status)

	approved, err := service.ApproveWithdrawal(ctx, request.ID, reviewer, 0)
	require.NoError(test, err)
	require.Equal(test, 2, approved.Quantity)
	balance, err = harness.Wallet.Balance(ctx, alice)
	require.NoError(test, err)
	require.Equal(test, ledger.Coins(80_000), balance)
}

func TestApproveWithdrawalConvertsCoins(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	reviewer := testkit.Account(test, "staff")
	harness.Fund(test, alice, 45_000)

	_, err := service.RequestWithdrawal(ctx, alice, 15_000, mustIdentity(test, "alice"), "")
	require.ErrorIs(test, err, ledger.ErrInvalidAmount)
	_, err = service.RequestWithdrawal(ctx, alice, 50_000, mustIdentity(test, "alice"), "")
	require.ErrorIs(test, err, ledger.ErrInsufficientFunds)

	request, err := service.RequestWithdrawal(ctx, alice, 40_000, mustIdentity(test, "alice"), "hair please")
	require.NoError(test, err)
	require.Equal(test, 4, request.Quantity)
	balance, err := harness.Wallet.Balance(ctx, alice)
	require.NoError(test, err)
	require.Equal(test, ledger.Coins(45_000), balance)

	pending, err := service.PendingWithdrawals(ctx, 0)
	require.NoError(test, err)
	require.Len(test, pending, 1)

	approved, err := service.ApproveWithdrawal(ctx, request.ID, reviewer, 30_000)
	require.NoError(test, err)
	require.Equal(test, prizes.WithdrawApproved, approved.Status)
	require.Equal(test, 3, approved.Quantity)
	require.NotEmpty(test, approved.PrizeID)

	balance, err = harness.Wallet.Balance(ctx, alice)
	require.NoError(test, err)
	require.Equal(test, ledger.Coins(15_000), balance)

	prize, err := service.Prize(ctx, approved.PrizeID)
	require.NoError(test, err)
	require.Equal(test, prizes.PrizeReady, prize.Status)
	require.Equal(test, 3, prize.Quantity)
	entry, err := service.NextReady(ctx)
	require.NoError(test, err)
	require.Equal(test, approved.PrizeID, entry.PrizeID)
	require.Equal(test, "hair please", entry.Note)

	_, err = service.ApproveWithdrawal(ctx, request.ID, reviewer, 0)
	require.ErrorIs(test, err, prizes.ErrAlreadyReviewed)
	_, err = service.RejectWithdrawal(ctx, request.ID, reviewer, "late")
	require.ErrorIs(test, err, prizes.ErrAlreadyReviewed)

	stored, err := service.WithdrawRequest(ctx, request.ID)
	require.NoError(test, err)
	require.Equal(test, reviewer, stored.ReviewerAccountID)
}

func TestApproveWithdrawalRechecksBalance(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	harness.Fund(test, alice, 20_000)

	request, err := service.RequestWithdrawal(ctx, alice, 20_000, mustIdentity(test, "alice"), "")
	require.NoError(test, err)
	_, err = harness.Wallet.Apply(ctx, ledger.ApplyRequest{AccountID: alice, Delta: -15_000, Kind: ledger.KindBetStake})
	require.NoError(test, err)

	_, err = service.ApproveWithdrawal(ctx, request.ID, testkit.Account(test, "staff"), 0)
	require.ErrorIs(test, err, ledger.ErrInsufficientFunds)

	stored, err := service.WithdrawRequest(ctx, request.ID)
	require.NoError(test, err)
	require.Equal(test, prizes.WithdrawPending, stored.Status)
	_, err = service.NextReady(ctx)
	require.ErrorIs(test, err, prizes.ErrQueueEmpty)
}

func TestRejectWithdrawalLeavesBalance(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	harness.Fund(test, alice, 10_000)

	request, err := service.RequestWithdrawal(ctx, alice, 10_000, mustIdentity(test, "alice"), "")
	require.NoError(test, err)
	rejected, err := service.RejectWithdrawal(ctx, request.ID, testkit.Account(test, "staff"), "wishlist empty")
	require.NoError(test, err)
	require.Equal(test, prizes.WithdrawRejected, rejected.Status)
	require.Equal(test, "wishlist empty", rejected.ReviewNote)

	balance, err := harness.Wallet.Balance(ctx, alice)
	require.NoError(test, err)
	require.Equal(test, ledger.Coins(10_000), balance)
	pending, err := service.PendingWithdrawals(ctx, 10)
	require.NoError(test, err)
	require.Empty(test, pending)
}
