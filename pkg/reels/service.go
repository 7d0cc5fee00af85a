// Package reels implements the shared-pot reel game: every play feeds the scope's pot and may draw
// from it, never below the floor.
package reels

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/MarkoPoloResearchLab/haus/pkg/keylock"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/seeded"
)

const (
	operationSpin     = "reel_spin"
	metadataKeyScope  = "scope"
	metadataKeyCount  = "count"
	metadataKeyGame   = "game"
	gameName          = "reels"
	defaultSpinsLimit = 20
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger ledger.OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithConfig overrides the pot economics.
func WithConfig(config Config) ServiceOption {
	return func(service *Service) {
		service.config = config
	}
}

// WithSymbolSource replaces the random face generator.
func WithSymbolSource(source SymbolSource) ServiceOption {
	return func(service *Service) {
		service.symbols = source
	}
}

// Service runs spins against per-scope pots.
type Service struct {
	store   Store
	wallet  *ledger.Service
	locks   *keylock.Registry
	logger  ledger.OperationLogger
	config  Config
	symbols SymbolSource
}

// NewService wires a Service.
func NewService(store Store, wallet *ledger.Service, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	service := &Service{store: store, wallet: wallet, locks: wallet.Locks(), config: DefaultConfig()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := service.config.Validate(); err != nil {
		return nil, err
	}
	if service.symbols == nil {
		nonce, err := seeded.NewNonce()
		if err != nil {
			return nil, err
		}
		service.symbols = NewRandomSource(rand.New(rand.NewSource(nonce)))
	}
	return service, nil
}

// Config returns the active pot economics.
func (service *Service) Config() Config {
	return service.config
}

// Spin plays count rounds for account in scope. The full entry fee is debited before any face is
// drawn and the summed payout is credited once at the end, all in one transaction.
func (service *Service) Spin(ctx context.Context, scope string, accountID ledger.AccountID, count int) (SpinResult, error) {
	var result SpinResult
	operationError := service.spin(ctx, scope, accountID, count, &result)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationSpin,
		AccountID: accountID,
		Subject:   scope,
		Amount:    result.TotalPayout - result.TotalStake,
		Metadata:  ledger.MetadataFrom(map[string]any{metadataKeyCount: count}),
		Error:     operationError,
	})
	return result, operationError
}

func (service *Service) spin(ctx context.Context, rawScope string, accountID ledger.AccountID, count int, result *SpinResult) error {
	scope, err := normalizeScope(rawScope)
	if err != nil {
		return err
	}
	if count < 1 || count > service.config.MaxSpins {
		return fmt.Errorf("%w: must be within 1..%d", ErrInvalidSpinCount, service.config.MaxSpins)
	}
	unlock := service.locks.Lock(keylock.PotKey(scope), keylock.AccountKey(accountID.String()))
	defer unlock()

	totalStake := service.config.EntryFee * ledger.Coins(count)
	metadata := ledger.MetadataFrom(map[string]any{metadataKeyGame: gameName, metadataKeyScope: scope, metadataKeyCount: count})
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		balance, err := service.wallet.DebitWithin(ctx, transactionStore.Ledger(), accountID, totalStake, ledger.KindBetStake, metadata)
		if err != nil {
			return err
		}
		nowUnixUTC := service.wallet.Now()
		pot, err := transactionStore.GetOrCreatePot(ctx, scope, Pot{
			Scope:          scope,
			Amount:         service.config.Floor,
			Floor:          service.config.Floor,
			UpdatedUnixUTC: nowUnixUTC,
		})
		if err != nil {
			return err
		}
		pot.Floor = service.config.Floor
		spins := make([]Spin, 0, count)
		var totalPayout ledger.Coins
		for play := 0; play < count; play++ {
			pot.Amount += service.config.EntryFee
			faces := service.draw()
			potBefore := pot.Amount
			payout := Evaluate(service.config, faces, potBefore)
			pot.Amount -= payout
			totalPayout += payout
			recorded, err := transactionStore.InsertSpin(ctx, Spin{
				Scope:          scope,
				AccountID:      accountID,
				Symbols:        faces,
				Payout:         payout,
				PotBefore:      potBefore,
				CreatedUnixUTC: nowUnixUTC,
			})
			if err != nil {
				return err
			}
			spins = append(spins, recorded)
		}
		pot.UpdatedUnixUTC = nowUnixUTC
		if err := transactionStore.SavePot(ctx, pot); err != nil {
			return err
		}
		if totalPayout > 0 {
			balance, err = service.wallet.CreditWithin(ctx, transactionStore.Ledger(), accountID, totalPayout, ledger.KindPayout, metadata)
			if err != nil {
				return err
			}
		}
		*result = SpinResult{Spins: spins, TotalStake: totalStake, TotalPayout: totalPayout, Balance: balance, Pot: pot}
		return nil
	})
}

// PotStatus returns the scope's pot; a scope that never played reports the floor.
func (service *Service) PotStatus(ctx context.Context, rawScope string) (Pot, error) {
	scope, err := normalizeScope(rawScope)
	if err != nil {
		return Pot{}, err
	}
	pot, err := service.store.GetPot(ctx, scope)
	if err == nil {
		return pot, nil
	}
	if !errors.Is(err, ErrUnknownPot) {
		return Pot{}, err
	}
	return Pot{Scope: scope, Amount: service.config.Floor, Floor: service.config.Floor}, nil
}

// RecentSpins returns the latest spins of a scope, newest first.
func (service *Service) RecentSpins(ctx context.Context, rawScope string, limit int) ([]Spin, error) {
	scope, err := normalizeScope(rawScope)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSpinsLimit
	}
	return service.store.ListSpins(ctx, scope, limit)
}

func (service *Service) draw() [3]Symbol {
	var faces [3]Symbol
	for index := range faces {
		faces[index] = service.symbols.Draw(service.config.Symbols)
	}
	return faces
}

func (service *Service) logOperation(ctx context.Context, entry ledger.OperationLog) {
	ledger.EmitOperation(ctx, service.logger, entry)
}
