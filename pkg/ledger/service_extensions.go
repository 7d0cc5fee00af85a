package ledger

import (
	"context"

	"github.com/MarkoPoloResearchLab/haus/pkg/keylock"
)

// Locks exposes the lock registry so compound operations can serialize on the same account keys.
func (service *Service) Locks() *keylock.Registry {
	return service.locks
}

// DebitWithin removes amount from an account inside the caller's transaction.
func (service *Service) DebitWithin(ctx context.Context, transactionStore Store, accountID AccountID, amount Coins, kind TransactionKind, metadata MetadataJSON) (Coins, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return service.ApplyWithin(ctx, transactionStore, ApplyRequest{
		AccountID: accountID,
		Delta:     -amount,
		Kind:      kind,
		Metadata:  metadata,
	})
}

// CreditWithin adds amount to an account inside the caller's transaction.
func (service *Service) CreditWithin(ctx context.Context, transactionStore Store, accountID AccountID, amount Coins, kind TransactionKind, metadata MetadataJSON) (Coins, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return service.ApplyWithin(ctx, transactionStore, ApplyRequest{
		AccountID: accountID,
		Delta:     amount,
		Kind:      kind,
		Metadata:  metadata,
	})
}
