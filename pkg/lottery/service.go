// Package lottery sells weekly tickets and draws one winner per ISO week.
package lottery

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/haus/pkg/keylock"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"github.com/MarkoPoloResearchLab/haus/pkg/seeded"
)

const (
	operationBuyTickets = "lottery_buy"
	operationDraw       = "lottery_draw"
	metadataKeyPeriod   = "period"
	metadataKeyCount    = "count"
	metadataKeyShop     = "shop"
	metadataKeyShopURL  = "shop_url"
	metadataKeyWeek     = "week"
	metadataKeySeed     = "seed"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger ledger.OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithConfig overrides pricing and schedule.
func WithConfig(config Config) ServiceOption {
	return func(service *Service) {
		service.config = config
	}
}

// WithSeedGenerator replaces the audit seed source.
func WithSeedGenerator(generator seeded.Generator) ServiceOption {
	return func(service *Service) {
		service.seeds = generator
	}
}

// Service is the weekly lottery.
type Service struct {
	store  Store
	wallet *ledger.Service
	locks  *keylock.Registry
	logger ledger.OperationLogger
	config Config
	seeds  seeded.Generator
}

// NewService wires a Service.
func NewService(store Store, wallet *ledger.Service, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	service := &Service{
		store:  store,
		wallet: wallet,
		locks:  wallet.Locks(),
		config: DefaultConfig(),
		seeds:  seeded.RandomGenerator,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := service.config.Validate(); err != nil {
		return nil, err
	}
	if service.seeds == nil {
		return nil, fmt.Errorf("%w: seed generator is nil", ErrInvalidConfig)
	}
	return service, nil
}

// Config returns the active lottery settings.
func (service *Service) Config() Config {
	return service.config
}

// Period returns the ISO week id of atUnixUTC in the configured zone.
func (service *Service) Period(atUnixUTC int64) string {
	return ledger.WeekPeriod(atUnixUTC, service.config.Location)
}

// CurrentPeriod returns the ISO week id of now.
func (service *Service) CurrentPeriod() string {
	return service.Period(service.wallet.Now())
}

// BuyTickets debits count tickets and records them for period; an empty period means the current week.
func (service *Service) BuyTickets(ctx context.Context, accountID ledger.AccountID, count int, rawPeriod string) (Purchase, error) {
	var purchase Purchase
	operationError := service.buyTickets(ctx, accountID, count, rawPeriod, &purchase)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationBuyTickets,
		AccountID: accountID,
		Subject:   purchase.Period,
		Amount:    -purchase.Cost,
		Metadata:  ledger.MetadataFrom(map[string]any{metadataKeyCount: count}),
		Error:     operationError,
	})
	return purchase, operationError
}

func (service *Service) buyTickets(ctx context.Context, accountID ledger.AccountID, count int, rawPeriod string, purchase *Purchase) error {
	period, err := service.resolvePeriod(rawPeriod)
	if err != nil {
		return err
	}
	purchase.Period = period
	if count < 1 || count > service.config.MaxTicketsPerPurchase {
		return fmt.Errorf("%w: must be within 1..%d", ErrInvalidTicketCount, service.config.MaxTicketsPerPurchase)
	}
	unlock := service.locks.Lock(keylock.LotteryKey(period), keylock.AccountKey(accountID.String()))
	defer unlock()

	cost := service.config.TicketPrice * ledger.Coins(count)
	metadata := ledger.MetadataFrom(map[string]any{metadataKeyPeriod: period, metadataKeyCount: count})
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetDraw(ctx, period); err == nil {
			return ErrAlreadyDrawn
		} else if !errors.Is(err, ErrNoDraw) {
			return err
		}
		balance, err := service.wallet.DebitWithin(ctx, transactionStore.Ledger(), accountID, cost, ledger.KindTicketPurchase, metadata)
		if err != nil {
			return err
		}
		nowUnixUTC := service.wallet.Now()
		tickets := make([]Ticket, count)
		for index := range tickets {
			tickets[index] = Ticket{Period: period, AccountID: accountID, PurchasedUnixUTC: nowUnixUTC}
		}
		recorded, err := transactionStore.InsertTickets(ctx, tickets)
		if err != nil {
			return err
		}
		purchase.Tickets = recorded
		purchase.Cost = cost
		purchase.Balance = balance
		return nil
	})
}

// Draw picks the winner of period and records a pending prize for them. Each period draws once.
func (service *Service) Draw(ctx context.Context, rawPeriod string) (Draw, error) {
	var draw Draw
	operationError := service.draw(ctx, rawPeriod, &draw)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationDraw,
		AccountID: draw.WinnerAccountID,
		Subject:   draw.Period,
		Metadata:  ledger.MetadataFrom(map[string]any{metadataKeySeed: draw.Seed}),
		Error:     operationError,
	})
	return draw, operationError
}

func (service *Service) draw(ctx context.Context, rawPeriod string, draw *Draw) error {
	period, err := service.resolvePeriod(rawPeriod)
	if err != nil {
		return err
	}
	draw.Period = period
	unlock := service.locks.Lock(keylock.LotteryKey(period))
	defer unlock()

	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetDraw(ctx, period); err == nil {
			return ErrAlreadyDrawn
		} else if !errors.Is(err, ErrNoDraw) {
			return err
		}
		tickets, err := transactionStore.ListTickets(ctx, period)
		if err != nil {
			return err
		}
		if len(tickets) == 0 {
			return ErrNoEntries
		}
		nowUnixUTC := service.wallet.Now()
		seed, err := service.seeds(seedPrefix, period, nowUnixUTC)
		if err != nil {
			return err
		}
		winner := PickWinner(seed, tickets)
		prize, err := transactionStore.CreatePrize(ctx, prizes.Prize{
			WinnerAccountID: winner.AccountID,
			Kind:            prizes.KindWishlistGift,
			Quantity:        service.config.PrizeQuantity,
			Metadata: ledger.MetadataFrom(map[string]any{
				metadataKeyShop:    service.config.ShopName,
				metadataKeyShopURL: service.config.ShopURL,
				metadataKeyWeek:    period,
			}),
			Status:         prizes.PrizePending,
			CreatedUnixUTC: nowUnixUTC,
			UpdatedUnixUTC: nowUnixUTC,
		})
		if err != nil {
			return err
		}
		recorded, err := transactionStore.InsertDraw(ctx, Draw{
			Period:          period,
			WinnerAccountID: winner.AccountID,
			TicketID:        winner.ID,
			TicketCount:     len(tickets),
			Seed:            seed,
			Status:          DrawDone,
			PrizeID:         prize.ID,
			RunUnixUTC:      nowUnixUTC,
		})
		if err != nil {
			return err
		}
		*draw = recorded
		return nil
	})
}

// Status reports ticket counts, the draw when present and the next draw time.
func (service *Service) Status(ctx context.Context, rawPeriod string, accountID ledger.AccountID) (Status, error) {
	period, err := service.resolvePeriod(rawPeriod)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		Period:          period,
		TicketPrice:     service.config.TicketPrice,
		NextDrawUnixUTC: service.config.NextDraw(service.wallet.Now()),
	}
	if status.TotalTickets, err = service.store.CountTickets(ctx, period); err != nil {
		return Status{}, err
	}
	if !accountID.IsZero() {
		if status.AccountTickets, err = service.store.CountAccountTickets(ctx, period, accountID); err != nil {
			return Status{}, err
		}
	}
	draw, err := service.store.GetDraw(ctx, period)
	switch {
	case err == nil:
		status.Draw = &draw
	case !errors.Is(err, ErrNoDraw):
		return Status{}, err
	}
	return status, nil
}

func (service *Service) resolvePeriod(raw string) (string, error) {
	if raw == "" {
		return service.CurrentPeriod(), nil
	}
	return ParsePeriod(raw)
}

func (service *Service) logOperation(ctx context.Context, entry ledger.OperationLog) {
	ledger.EmitOperation(ctx, service.logger, entry)
}
