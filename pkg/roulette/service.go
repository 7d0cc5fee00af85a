// Package roulette runs timed fixed-odds color rounds per scope.
package roulette

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/keylock"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger ledger.OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithConfig overrides the odds table and round limits.
func WithConfig(config Config) ServiceOption {
	return func(service *Service) {
		service.config = config
	}
}

// WithResolver replaces the seeded outcome resolver.
func WithResolver(resolver Resolver) ServiceOption {
	return func(service *Service) {
		service.resolver = resolver
	}
}

// WithoutTimers disables auto-resolution; rounds then close only through Resolve or Cancel.
func WithoutTimers() ServiceOption {
	return func(service *Service) {
		service.timersDisabled = true
	}
}

// Service is the round manager.
type Service struct {
	store          Store
	wallet         *ledger.Service
	locks          *keylock.Registry
	logger         ledger.OperationLogger
	config         Config
	resolver       Resolver
	scheduler      *Scheduler
	timersDisabled bool
}

// NewService wires a Service over store, settling stakes and payouts through wallet.
func NewService(store Store, wallet *ledger.Service, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	service := &Service{
		store:    store,
		wallet:   wallet,
		locks:    wallet.Locks(),
		config:   DefaultConfig(),
		resolver: NewSeededResolver(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := service.config.Validate(); err != nil {
		return nil, err
	}
	service.scheduler = NewScheduler(service.resolveOnTimeout)
	return service, nil
}

// Config returns the active odds table.
func (service *Service) Config() Config {
	return service.config
}

// Open starts a round in scope, failing with ErrRoundAlreadyOpen when one is already running.
// durationSeconds is clamped to the configured bounds; zero selects the default.
func (service *Service) Open(ctx context.Context, scope string, durationSeconds int64, opener ledger.AccountID) (Round, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return Round{}, fmt.Errorf("%w: empty value", ErrInvalidScope)
	}
	unlock := service.locks.Lock(keylock.RoundScopeKey(scope))
	defer unlock()

	duration := service.config.clampDuration(durationSeconds)
	var opened Round
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		_, err := transactionStore.FindOpenRound(ctx, scope)
		if err == nil {
			return ErrRoundAlreadyOpen
		}
		if !errors.Is(err, ErrNoOpenRound) {
			return err
		}
		number, err := transactionStore.NextRoundNumber(ctx, scope)
		if err != nil {
			return err
		}
		nowUnixUTC := service.wallet.Now()
		opened, err = transactionStore.CreateRound(ctx, Round{
			Scope:          scope,
			Number:         number,
			Status:         RoundOpen,
			OpenedBy:       opener,
			OpenedUnixUTC:  nowUnixUTC,
			ExpiresUnixUTC: nowUnixUTC + duration,
		})
		return err
	})
	if operationError == nil {
		service.arm(opened)
	}
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationOpen,
		AccountID: opener,
		Subject:   scope,
		Error:     operationError,
	})
	return opened, operationError
}

// PlaceBet debits stake and records the bet while the round is open.
func (service *Service) PlaceBet(ctx context.Context, roundID string, accountID ledger.AccountID, choice Choice, stake ledger.Coins) (Bet, error) {
	var placed Bet
	operationError := service.placeBet(ctx, roundID, accountID, choice, stake, &placed)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationBet,
		AccountID: accountID,
		Subject:   roundID,
		Amount:    stake,
		Metadata:  ledger.MetadataFrom(map[string]any{metadataKeyChoice: choice.String()}),
		Error:     operationError,
	})
	return placed, operationError
}

func (service *Service) placeBet(ctx context.Context, roundID string, accountID ledger.AccountID, choice Choice, stake ledger.Coins, placed *Bet) error {
	if !choice.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}
	if stake <= 0 || stake > service.config.MaxStake {
		return fmt.Errorf("%w: must be within 1..%d", ErrInvalidStake, service.config.MaxStake)
	}
	round, err := service.store.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	unlock := service.locks.Lock(keylock.RoundScopeKey(round.Scope), keylock.AccountKey(accountID.String()))
	defer unlock()

	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		nowUnixUTC := service.wallet.Now()
		if current.Status != RoundOpen || nowUnixUTC > current.ExpiresUnixUTC {
			return ErrRoundClosed
		}
		if service.config.OneBetPerRound {
			existing, err := transactionStore.CountAccountBets(ctx, roundID, accountID)
			if err != nil {
				return err
			}
			if existing > 0 {
				return ErrDuplicateBet
			}
		}
		metadata := ledger.MetadataFrom(map[string]any{metadataKeyRound: roundID, metadataKeyChoice: choice.String()})
		if _, err := service.wallet.DebitWithin(ctx, transactionStore.Ledger(), accountID, stake, ledger.KindBetStake, metadata); err != nil {
			return err
		}
		*placed, err = transactionStore.InsertBet(ctx, Bet{
			RoundID:        roundID,
			AccountID:      accountID,
			Choice:         choice,
			Stake:          stake,
			CreatedUnixUTC: nowUnixUTC,
			Exclusive:      service.config.OneBetPerRound,
		})
		return err
	})
}

// Resolve draws the outcome, pays floor(stake × multiplier) to every winning bet and closes the round.
// A round already RESOLVED or CANCELLED fails with ErrRoundNotOpen.
func (service *Service) Resolve(ctx context.Context, roundID string) (Settlement, error) {
	settlement, operationError := service.close(ctx, roundID, RoundResolved)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationResolve,
		Subject:   roundID,
		Amount:    totalPaid(settlement.Payouts),
		Metadata:  ledger.MetadataFrom(map[string]any{metadataKeyResult: settlement.Round.Outcome.String()}),
		Error:     operationError,
	})
	return settlement, operationError
}

// Cancel refunds every stake and closes the round without an outcome.
func (service *Service) Cancel(ctx context.Context, roundID string) (Settlement, error) {
	settlement, operationError := service.close(ctx, roundID, RoundCancelled)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationCancel,
		Subject:   roundID,
		Amount:    totalPaid(settlement.Payouts),
		Error:     operationError,
	})
	return settlement, operationError
}

func (service *Service) close(ctx context.Context, roundID string, target RoundStatus) (Settlement, error) {
	round, err := service.store.GetRound(ctx, roundID)
	if err != nil {
		return Settlement{}, err
	}
	unlock := service.locks.Lock(keylock.RoundScopeKey(round.Scope))
	defer unlock()

	var settlement Settlement
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if current.Status != RoundOpen {
			return ErrRoundNotOpen
		}
		bets, err := transactionStore.ListBets(ctx, roundID)
		if err != nil {
			return err
		}
		nowUnixUTC := service.wallet.Now()
		current.Status = target
		current.ClosedUnixUTC = nowUnixUTC
		if target == RoundResolved {
			outcome, err := service.resolver.Resolve(roundID, nowUnixUTC)
			if err != nil {
				return err
			}
			current.Outcome = outcome.Choice
			current.OutcomePosition = outcome.Position
			current.Seed = outcome.Seed
		}
		payouts, err := service.settle(ctx, transactionStore, current, bets)
		if err != nil {
			return err
		}
		if err := transactionStore.CloseRound(ctx, current); err != nil {
			return err
		}
		settlement = Settlement{Round: current, BetCount: len(bets), Pool: totalStaked(bets), Payouts: payouts}
		return nil
	})
	if operationError == nil {
		service.scheduler.Cancel(roundID)
	}
	return settlement, operationError
}

func (service *Service) settle(ctx context.Context, transactionStore Store, round Round, bets []Bet) ([]Payout, error) {
	payouts := make([]Payout, 0, len(bets))
	for _, bet := range bets {
		var amount ledger.Coins
		var metadata ledger.MetadataJSON
		switch round.Status {
		case RoundCancelled:
			amount = bet.Stake
			metadata = ledger.MetadataFrom(map[string]any{metadataKeyRound: round.ID, metadataKeyRefund: true})
		case RoundResolved:
			if bet.Choice != round.Outcome {
				continue
			}
			amount = service.config.WinningAmount(bet.Choice, bet.Stake)
			metadata = ledger.MetadataFrom(map[string]any{metadataKeyRound: round.ID, metadataKeyResult: round.Outcome.String()})
		}
		if amount <= 0 {
			continue
		}
		if _, err := service.wallet.CreditWithin(ctx, transactionStore.Ledger(), bet.AccountID, amount, ledger.KindPayout, metadata); err != nil {
			return nil, err
		}
		payouts = append(payouts, Payout{BetID: bet.ID, AccountID: bet.AccountID, Stake: bet.Stake, Amount: amount})
	}
	return payouts, nil
}

// Status returns the open round in scope with its bet count, informational pool and time left.
func (service *Service) Status(ctx context.Context, scope string) (StatusView, error) {
	round, err := service.store.FindOpenRound(ctx, strings.TrimSpace(scope))
	if err != nil {
		return StatusView{}, err
	}
	bets, err := service.store.ListBets(ctx, round.ID)
	if err != nil {
		return StatusView{}, err
	}
	secondsLeft := round.ExpiresUnixUTC - service.wallet.Now()
	if secondsLeft < 0 {
		secondsLeft = 0
	}
	return StatusView{Round: round, BetCount: len(bets), Pool: totalStaked(bets), SecondsLeft: secondsLeft}, nil
}

// Round returns a round by id.
func (service *Service) Round(ctx context.Context, roundID string) (Round, error) {
	return service.store.GetRound(ctx, roundID)
}

// RecoverOpenRounds re-arms timers for rounds left OPEN by a previous process and resolves the
// ones already past expiry. It returns how many rounds were found.
func (service *Service) RecoverOpenRounds(ctx context.Context) (int, error) {
	rounds, err := service.store.ListOpenRounds(ctx)
	if err != nil {
		return 0, err
	}
	nowUnixUTC := service.wallet.Now()
	for _, round := range rounds {
		if round.ExpiresUnixUTC > nowUnixUTC {
			service.arm(round)
			continue
		}
		if _, err := service.Resolve(ctx, round.ID); err != nil && !errors.Is(err, ErrRoundNotOpen) {
			return len(rounds), err
		}
	}
	return len(rounds), nil
}

// PendingTimers reports how many rounds await auto-resolution.
func (service *Service) PendingTimers() int {
	return service.scheduler.Pending()
}

// Close disarms all timers.
func (service *Service) Close() {
	service.scheduler.Stop()
}

func (service *Service) arm(round Round) {
	if service.timersDisabled {
		return
	}
	delaySeconds := round.ExpiresUnixUTC - service.wallet.Now()
	service.scheduler.Schedule(round.ID, time.Duration(delaySeconds)*time.Second)
}

func (service *Service) resolveOnTimeout(roundID string) {
	_, err := service.Resolve(context.Background(), roundID)
	if err == nil || errors.Is(err, ErrRoundNotOpen) {
		return
	}
	service.logOperation(context.Background(), ledger.OperationLog{
		Operation: operationTimeout,
		Subject:   roundID,
		Error:     err,
	})
}

func (service *Service) logOperation(ctx context.Context, entry ledger.OperationLog) {
	ledger.EmitOperation(ctx, service.logger, entry)
}

func totalStaked(bets []Bet) ledger.Coins {
	var pool ledger.Coins
	for _, bet := range bets {
		pool += bet.Stake
	}
	return pool
}

func totalPaid(payouts []Payout) ledger.Coins {
	var paid ledger.Coins
	for _, payout := range payouts {
		paid += payout.Amount
	}
	return paid
}
