package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/haus/pkg/keylock"
)

// ClaimConfig sets the periodic and one-time grant amounts.
type ClaimConfig struct {
	StarterAmount        Coins
	DailyAmount          Coins
	WeeklyAmount         Coins
	DailyCooldownSeconds int64
	Location             *time.Location
}

// DefaultClaimConfig returns the stock grant amounts (5000 starter, 1800 daily, 6000 weekly).
func DefaultClaimConfig() ClaimConfig {
	location, err := LoadLocation(defaultClaimTimeZone)
	if err != nil {
		location = time.UTC
	}
	return ClaimConfig{
		StarterAmount:        defaultStarterAmount,
		DailyAmount:          defaultDailyAmount,
		WeeklyAmount:         defaultWeeklyAmount,
		DailyCooldownSeconds: defaultDailyCooldown,
		Location:             location,
	}
}

// Validate rejects non-positive amounts and fills a missing location.
func (config *ClaimConfig) Validate() error {
	if config.StarterAmount <= 0 || config.DailyAmount <= 0 || config.WeeklyAmount <= 0 {
		return fmt.Errorf("%w: claim amounts must be positive", ErrInvalidServiceConfig)
	}
	if config.DailyCooldownSeconds <= 0 {
		return fmt.Errorf("%w: daily cooldown must be positive", ErrInvalidServiceConfig)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return nil
}

// Service contains the wallet logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	logger OperationLogger
	locks  *keylock.Registry
	claims ClaimConfig
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, claims: DefaultClaimConfig()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.locks == nil {
		service.locks = keylock.NewRegistry()
	}
	if err := service.claims.Validate(); err != nil {
		return nil, err
	}
	return service, nil
}

// WithLocks shares a lock registry with the other engine services.
func WithLocks(registry *keylock.Registry) ServiceOption {
	return func(service *Service) {
		service.locks = registry
	}
}

// WithClaimConfig overrides the grant amounts.
func WithClaimConfig(config ClaimConfig) ServiceOption {
	return func(service *Service) {
		service.claims = config
	}
}

// Now exposes the service clock.
func (service *Service) Now() int64 {
	return service.nowFn()
}

// Apply changes an account balance and appends one transaction atomically.
func (service *Service) Apply(ctx context.Context, request ApplyRequest) (Coins, error) {
	unlock := service.locks.Lock(keylock.AccountKey(request.AccountID.String()))
	defer unlock()

	var balance Coins
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		balance, err = service.ApplyWithin(ctx, transactionStore, request)
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationApply,
		AccountID: request.AccountID,
		Subject:   request.Kind.String(),
		Amount:    request.Delta,
		Metadata:  request.Metadata,
		Error:     operationError,
	})
	return balance, operationError
}

// ApplyWithin performs the Apply step inside a transaction owned by the caller. It neither locks nor logs;
// compound operations in other packages hold the locks and emit their own log entry.
func (service *Service) ApplyWithin(ctx context.Context, transactionStore Store, request ApplyRequest) (Coins, error) {
	if err := request.validate(); err != nil {
		return 0, err
	}
	nowUnixUTC := service.nowFn()
	if _, err := transactionStore.EnsureAccount(ctx, request.AccountID, nowUnixUTC); err != nil {
		return 0, err
	}
	balance, err := transactionStore.AdjustBalance(ctx, request.AccountID, request.Delta)
	if err != nil {
		return 0, err
	}
	transaction := Transaction{
		AccountID:      request.AccountID,
		Kind:           request.Kind,
		Amount:         request.Delta,
		Metadata:       request.Metadata,
		CreatedUnixUTC: nowUnixUTC,
	}
	if err := transactionStore.InsertTransaction(ctx, transaction); err != nil {
		return 0, err
	}
	return balance, nil
}

// Balance returns the account balance; an account that never transacted has zero.
func (service *Service) Balance(ctx context.Context, accountID AccountID) (Coins, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if errors.Is(err, ErrUnknownAccount) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// GetAccount returns the account row, failing with ErrUnknownAccount when absent.
func (service *Service) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	return service.store.GetAccount(ctx, accountID)
}

// ClaimDaily credits the daily amount once per cooldown window.
func (service *Service) ClaimDaily(ctx context.Context, accountID AccountID) (Coins, error) {
	return service.claimPeriodic(ctx, accountID, ClaimDaily, service.claims.DailyAmount, func(account Account, nowUnixUTC int64) error {
		if account.LastDailyClaimUnixUTC == 0 {
			return nil
		}
		nextEligible := account.LastDailyClaimUnixUTC + service.claims.DailyCooldownSeconds
		if nowUnixUTC < nextEligible {
			return CooldownError{Claim: ClaimDaily, NextEligibleUnixUTC: nextEligible}
		}
		return nil
	})
}

// ClaimWeekly credits the weekly amount once per ISO week in the configured zone.
func (service *Service) ClaimWeekly(ctx context.Context, accountID AccountID) (Coins, error) {
	location := service.claims.Location
	return service.claimPeriodic(ctx, accountID, ClaimWeekly, service.claims.WeeklyAmount, func(account Account, nowUnixUTC int64) error {
		if account.LastWeeklyClaimUnixUTC == 0 {
			return nil
		}
		if WeekPeriod(account.LastWeeklyClaimUnixUTC, location) == WeekPeriod(nowUnixUTC, location) {
			return CooldownError{Claim: ClaimWeekly, NextEligibleUnixUTC: StartOfNextWeek(nowUnixUTC, location)}
		}
		return nil
	})
}

// GrantStarter credits the one-time starter balance.
func (service *Service) GrantStarter(ctx context.Context, accountID AccountID) (Coins, error) {
	return service.claimPeriodic(ctx, accountID, ClaimStarter, service.claims.StarterAmount, func(account Account, _ int64) error {
		if account.StarterGrantedUnixUTC != 0 {
			return ErrStarterAlreadyGranted
		}
		return nil
	})
}

// Adjust applies an operator deposit (positive delta) or withdrawal (negative delta).
func (service *Service) Adjust(ctx context.Context, accountID AccountID, delta Coins, actor AccountID, reason string) (Coins, error) {
	unlock := service.locks.Lock(keylock.AccountKey(accountID.String()))
	defer unlock()

	metadata := MetadataFrom(map[string]any{metadataKeyActor: actor.String(), metadataKeyReason: reason})
	var balance Coins
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		balance, err = service.ApplyWithin(ctx, transactionStore, ApplyRequest{
			AccountID: accountID,
			Delta:     delta,
			Kind:      KindManualAdjust,
			Metadata:  metadata,
		})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationManualAdjust,
		AccountID: accountID,
		Subject:   actor.String(),
		Amount:    delta,
		Metadata:  metadata,
		Error:     operationError,
	})
	return balance, operationError
}

// ListTransactions lists an account's transactions newest first, before a cutoff time (0 means now).
func (service *Service) ListTransactions(ctx context.Context, accountID AccountID, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidListLimit, limit)
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if beforeUnixUTC == 0 {
		beforeUnixUTC = service.nowFn() + 1
	}
	return service.store.ListTransactions(ctx, accountID, beforeUnixUTC, limit)
}

// Reconcile checks that the stored balance equals the sum of the account's transactions.
func (service *Service) Reconcile(ctx context.Context, accountID AccountID) (Reconciliation, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	sum, err := service.store.SumTransactions(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		AccountID:      accountID,
		Balance:        account.Balance,
		TransactionSum: sum,
		Consistent:     account.Balance == sum,
	}, nil
}

func (service *Service) claimPeriodic(ctx context.Context, accountID AccountID, claim ClaimKind, amount Coins, eligible func(account Account, nowUnixUTC int64) error) (Coins, error) {
	unlock := service.locks.Lock(keylock.AccountKey(accountID.String()))
	defer unlock()

	kind := KindPeriodicClaim
	operation := operationClaimDaily
	switch claim {
	case ClaimWeekly:
		operation = operationClaimWeekly
	case ClaimStarter:
		kind = KindStarterGrant
		operation = operationGrantStarter
	}
	metadata := MetadataFrom(map[string]any{metadataKeyPeriod: claim.String()})

	var balance Coins
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		nowUnixUTC := service.nowFn()
		account, err := transactionStore.EnsureAccount(ctx, accountID, nowUnixUTC)
		if err != nil {
			return err
		}
		if err := eligible(account, nowUnixUTC); err != nil {
			return err
		}
		balance, err = service.ApplyWithin(ctx, transactionStore, ApplyRequest{
			AccountID: accountID,
			Delta:     amount,
			Kind:      kind,
			Metadata:  metadata,
		})
		if err != nil {
			return err
		}
		return transactionStore.MarkClaim(ctx, accountID, claim, nowUnixUTC)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operation,
		AccountID: accountID,
		Subject:   claim.String(),
		Amount:    amount,
		Metadata:  metadata,
		Error:     operationError,
	})
	return balance, operationError
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	EmitOperation(ctx, service.logger, entry)
}
