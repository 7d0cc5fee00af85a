package lottery_test

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/haus/internal/testkit"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/lottery"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/stretchr/testify/require"
)

const currentPeriod = "2025-02"

func fixedSeeds(prefix string, subject string, _ int64) (string, error) {
	return prefix + "-" + subject + "-fixed", nil
}

func mustNewService(test *testing.T, harness *testkit.Harness) *lottery.Service {
	test.Helper()
	service, err := lottery.NewService(harness.Store.Lottery(), harness.Wallet, lottery.WithSeedGenerator(fixedSeeds))
	require.NoError(test, err)
	return service
}

func TestBuyTicketsDebitsAndRecords(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	harness.Fund(test, alice, 35_000)

	require.Equal(test, currentPeriod, service.CurrentPeriod())
	purchase, err := service.BuyTickets(ctx, alice, 3, "")
	require.NoError(test, err)
	require.Equal(test, currentPeriod, purchase.Period)
	require.Len(test, purchase.Tickets, 3)
	require.Equal(test, ledger.Coins(30_000), purchase.Cost)
	require.Equal(test, ledger.Coins(5_000), purchase.Balance)

	_, err = service.BuyTickets(ctx, alice, 1, "")
	require.ErrorIs(test, err, ledger.ErrInsufficientFunds)
	_, err = service.BuyTickets(ctx, alice, 0, "")
	require.ErrorIs(test, err, lottery.ErrInvalidTicketCount)
	_, err = service.BuyTickets(ctx, alice, 101, "")
	require.ErrorIs(test, err, lottery.ErrInvalidTicketCount)
	_, err = service.BuyTickets(ctx, alice, 1, "next week")
	require.ErrorIs(test, err, lottery.ErrInvalidPeriod)

	status, err := service.Status(ctx, "", alice)
	require.NoError(test, err)
	require.Equal(test, int64(3), status.TotalTickets)
	require.Equal(test, int64(3), status.AccountTickets)
	require.Nil(test, status.Draw)
	require.Greater(test, status.NextDrawUnixUTC, testkit.StartUnixUTC)
}

func TestDrawRecordsWinnerAndPendingPrize(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)
	ctx := context.Background()
	alice := testkit.Account(test, "alice")
	bob := testkit.Account(test, "bob")
	harness.Fund(test, alice, 20_000)
	harness.Fund(test, bob, 10_000)

	_, err := service.BuyTickets(ctx, alice, 2, currentPeriod)
	require.NoError(test, err)
	_, err = service.BuyTickets(ctx, bob, 1, currentPeriod)
	require.NoError(test, err)

	draw, err := service.Draw(ctx, currentPeriod)
	require.NoError(test, err)
	require.Equal(test, lottery.DrawDone, draw.Status)
	require.Equal(test, 3, draw.TicketCount)
	require.Equal(test, "LOTTO-"+currentPeriod+"-fixed", draw.Seed)
	require.Contains(test, []ledger.AccountID{alice, bob}, draw.WinnerAccountID)

	tickets, err := harness.Store.Lottery().ListTickets(ctx, currentPeriod)
	require.NoError(test, err)
	require.Equal(test, lottery.PickWinner(draw.Seed, tickets).ID, draw.TicketID)

	prize, err := harness.Store.Prizes().GetPrize(ctx, draw.PrizeID)
	require.NoError(test, err)
	require.Equal(test, draw.WinnerAccountID, prize.WinnerAccountID)
	require.Equal(test, prizes.PrizePending, prize.Status)
	require.Equal(test, 10, prize.Quantity)
	require.Contains(test, prize.Metadata.String(), `"week":"`+currentPeriod+`"`)
	require.Contains(test, prize.Metadata.String(), `"shop":"Shop YaEli"`)

	_, err = service.Draw(ctx, currentPeriod)
	require.ErrorIs(test, err, lottery.ErrAlreadyDrawn)
	_, err = service.BuyTickets(ctx, alice, 1, currentPeriod)
	require.ErrorIs(test, err, lottery.ErrAlreadyDrawn)

	status, err := service.Status(ctx, currentPeriod, bob)
	require.NoError(test, err)
	require.NotNil(test, status.Draw)
	require.Equal(test, draw.ID, status.Draw.ID)
	require.Equal(test, int64(1), status.AccountTickets)
}

func TestDrawWithoutEntries(test *testing.T) {
	test.Parallel()
	harness := testkit.New(test)
	service := mustNewService(test, harness)

	_, err := service.Draw(context.Background(), "2025-05")
	require.ErrorIs(test, err, lottery.ErrNoEntries)
	_, err = harness.Store.Lottery().GetDraw(context.Background(), "2025-05")
	require.ErrorIs(test, err, lottery.ErrNoDraw)
}
