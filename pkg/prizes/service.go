// Package prizes tracks prizes from award to fulfillment and converts coins into prizes through
// reviewed withdrawal requests.
package prizes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/haus/pkg/keylock"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
)

const (
	operationInitiateClaim = "prize_claim_start"
	operationSubmitClaim   = "prize_claim_submit"
	operationFulfill       = "prize_fulfill"
	operationFail          = "prize_fail"
	operationRequest       = "withdrawal_request"
	operationApprove       = "withdrawal_approve"
	operationReject        = "withdrawal_reject"
	metadataKeySource      = "source"
	metadataKeyRequest     = "request"
	metadataKeyCoins       = "coins"
	metadataKeyReviewer    = "reviewer"
	sourceWithdrawal       = "withdrawal"
	defaultRequestLimit    = 50
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger ledger.OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithConfig overrides the conversion settings.
func WithConfig(config Config) ServiceOption {
	return func(service *Service) {
		service.config = config
	}
}

// Service runs the claim queue and withdrawal reviews.
type Service struct {
	store  Store
	wallet *ledger.Service
	locks  *keylock.Registry
	logger ledger.OperationLogger
	config Config
	tokens *tokenRegistry
}

// NewService wires a Service.
func NewService(store Store, wallet *ledger.Service, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	service := &Service{store: store, wallet: wallet, locks: wallet.Locks(), config: DefaultConfig(), tokens: newTokenRegistry()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := service.config.Validate(); err != nil {
		return nil, err
	}
	return service, nil
}

// Config returns the active conversion settings.
func (service *Service) Config() Config {
	return service.config
}

// Prize returns a prize by id.
func (service *Service) Prize(ctx context.Context, prizeID string) (Prize, error) {
	return service.store.GetPrize(ctx, prizeID)
}

// Prizes lists the prizes won by an account, newest first.
func (service *Service) Prizes(ctx context.Context, accountID ledger.AccountID) ([]Prize, error) {
	return service.store.ListPrizes(ctx, accountID)
}

// InitiateClaim issues a claim token for the prize's winner. The token must be redeemed with
// CompleteClaim before it expires.
func (service *Service) InitiateClaim(ctx context.Context, prizeID string, accountID ledger.AccountID) (ClaimToken, error) {
	token, operationError := service.initiateClaim(ctx, prizeID, accountID)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationInitiateClaim,
		AccountID: accountID,
		Subject:   prizeID,
		Error:     operationError,
	})
	return token, operationError
}

func (service *Service) initiateClaim(ctx context.Context, prizeID string, accountID ledger.AccountID) (ClaimToken, error) {
	prize, err := service.store.GetPrize(ctx, prizeID)
	if err != nil {
		return ClaimToken{}, err
	}
	if prize.WinnerAccountID != accountID {
		return ClaimToken{}, ErrNotWinner
	}
	if prize.Status != PrizePending {
		return ClaimToken{}, ErrAlreadyClaimed
	}
	nowUnixUTC := service.wallet.Now()
	service.tokens.sweep(nowUnixUTC)
	return service.tokens.issue(ClaimToken{
		PrizeID:        prizeID,
		AccountID:      accountID,
		ExpiresUnixUTC: nowUnixUTC + service.config.ClaimTokenTTLSeconds,
	}), nil
}

// CompleteClaim redeems a claim token and submits the identity for its prize.
func (service *Service) CompleteClaim(ctx context.Context, token string, identity Identity, note string) (ClaimEntry, bool, error) {
	// A rejected identity leaves the token pending for a retry.
	if err := identity.Validate(); err != nil {
		return ClaimEntry{}, false, err
	}
	claimToken, ok := service.tokens.redeem(strings.TrimSpace(token), service.wallet.Now())
	if !ok {
		return ClaimEntry{}, false, ErrClaimTokenExpired
	}
	return service.SubmitClaim(ctx, claimToken.PrizeID, claimToken.AccountID, identity, note)
}

// SubmitClaim records the winner's identity in the claim queue and marks the prize claimed.
// Resubmitting for a prize that already has an entry returns that entry unchanged with created=false.
func (service *Service) SubmitClaim(ctx context.Context, prizeID string, accountID ledger.AccountID, identity Identity, note string) (ClaimEntry, bool, error) {
	entry, created, operationError := service.submitClaim(ctx, prizeID, accountID, identity, note)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationSubmitClaim,
		AccountID: accountID,
		Subject:   prizeID,
		Error:     operationError,
	})
	return entry, created, operationError
}

func (service *Service) submitClaim(ctx context.Context, prizeID string, accountID ledger.AccountID, identity Identity, note string) (ClaimEntry, bool, error) {
	unlock := service.locks.Lock(keylock.PrizeKey(prizeID))
	defer unlock()

	prize, err := service.store.GetPrize(ctx, prizeID)
	if err != nil {
		return ClaimEntry{}, false, err
	}
	if prize.WinnerAccountID != accountID {
		return ClaimEntry{}, false, ErrNotWinner
	}
	existing, err := service.store.FindClaimEntryByPrize(ctx, prizeID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ClaimEntry{}, false, err
	}
	if err := identity.Validate(); err != nil {
		return ClaimEntry{}, false, err
	}

	var entry ClaimEntry
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		nowUnixUTC := service.wallet.Now()
		var err error
		entry, err = transactionStore.CreateClaimEntry(ctx, ClaimEntry{
			PrizeID:         prizeID,
			WinnerAccountID: accountID,
			Identity:        identity,
			Note:            strings.TrimSpace(note),
			Status:          EntryReady,
			CreatedUnixUTC:  nowUnixUTC,
			UpdatedUnixUTC:  nowUnixUTC,
		})
		if err != nil {
			return err
		}
		return transactionStore.TransitionPrize(ctx, prizeID, PrizeClaimed, nowUnixUTC, PrizePending)
	})
	if operationError != nil {
		return ClaimEntry{}, false, operationError
	}
	return entry, true, nil
}

// NextReady returns the oldest entry awaiting fulfillment.
func (service *Service) NextReady(ctx context.Context) (ClaimEntry, error) {
	return service.store.NextReadyEntry(ctx)
}

// ClaimEntry returns a queue entry by id.
func (service *Service) ClaimEntry(ctx context.Context, entryID string) (ClaimEntry, error) {
	return service.store.GetClaimEntry(ctx, entryID)
}

// Fulfill marks a queue entry and its prize fulfilled.
func (service *Service) Fulfill(ctx context.Context, entryID string, staffNote string) (ClaimEntry, error) {
	entry, operationError := service.closeEntry(ctx, entryID, EntryFulfilled, PrizeFulfilled, staffNote)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationFulfill,
		AccountID: entry.WinnerAccountID,
		Subject:   entryID,
		Error:     operationError,
	})
	return entry, operationError
}

// Fail marks a queue entry and its prize failed.
func (service *Service) Fail(ctx context.Context, entryID string, staffNote string) (ClaimEntry, error) {
	entry, operationError := service.closeEntry(ctx, entryID, EntryFailed, PrizeFailed, staffNote)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationFail,
		AccountID: entry.WinnerAccountID,
		Subject:   entryID,
		Error:     operationError,
	})
	return entry, operationError
}

func (service *Service) closeEntry(ctx context.Context, entryID string, entryStatus EntryStatus, prizeStatus PrizeStatus, staffNote string) (ClaimEntry, error) {
	entry, err := service.store.GetClaimEntry(ctx, entryID)
	if err != nil {
		return ClaimEntry{}, err
	}
	unlock := service.locks.Lock(keylock.PrizeKey(entry.PrizeID))
	defer unlock()

	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetClaimEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryReady {
			return ErrEntryClosed
		}
		nowUnixUTC := service.wallet.Now()
		note := strings.TrimSpace(staffNote)
		if err := transactionStore.CloseClaimEntry(ctx, entryID, entryStatus, note, nowUnixUTC); err != nil {
			return err
		}
		if err := transactionStore.TransitionPrize(ctx, current.PrizeID, prizeStatus, nowUnixUTC, PrizeClaimed, PrizeReady); err != nil {
			return err
		}
		current.Status = entryStatus
		current.StaffNote = note
		current.UpdatedUnixUTC = nowUnixUTC
		entry = current
		return nil
	})
	return entry, operationError
}

// RequestWithdrawal records a pending coin-to-gift conversion. The balance is only checked here;
// nothing is debited until approval.
func (service *Service) RequestWithdrawal(ctx context.Context, accountID ledger.AccountID, coins ledger.Coins, identity Identity, note string) (WithdrawRequest, error) {
	request, operationError := service.requestWithdrawal(ctx, accountID, coins, identity, note)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationRequest,
		AccountID: accountID,
		Subject:   request.ID,
		Amount:    coins,
		Error:     operationError,
	})
	return request, operationError
}

func (service *Service) requestWithdrawal(ctx context.Context, accountID ledger.AccountID, coins ledger.Coins, identity Identity, note string) (WithdrawRequest, error) {
	quantity, err := service.config.GiftQuantity(coins)
	if err != nil {
		return WithdrawRequest{}, err
	}
	if err := identity.Validate(); err != nil {
		return WithdrawRequest{}, err
	}
	balance, err := service.wallet.Balance(ctx, accountID)
	if err != nil {
		return WithdrawRequest{}, err
	}
	if balance < coins {
		return WithdrawRequest{}, ledger.ErrInsufficientFunds
	}
	return service.store.CreateWithdrawRequest(ctx, WithdrawRequest{
		AccountID:      accountID,
		Coins:          coins,
		Quantity:       quantity,
		Identity:       identity,
		Note:           strings.TrimSpace(note),
		Status:         WithdrawPending,
		CreatedUnixUTC: service.wallet.Now(),
	})
}

// WithdrawRequest returns a request by id.
func (service *Service) WithdrawRequest(ctx context.Context, requestID string) (WithdrawRequest, error) {
	return service.store.GetWithdrawRequest(ctx, requestID)
}

// PendingWithdrawals lists requests awaiting review, oldest first.
func (service *Service) PendingWithdrawals(ctx context.Context, limit int) ([]WithdrawRequest, error) {
	if limit <= 0 {
		limit = defaultRequestLimit
	}
	return service.store.ListWithdrawRequests(ctx, WithdrawPending, limit)
}

// ApproveWithdrawal re-validates the amount against the current balance, then debits the account and
// creates a ready prize with its claim entry in one transaction. confirmedCoins of zero keeps the
// requested amount; otherwise it may lower the request but never raise it.
func (service *Service) ApproveWithdrawal(ctx context.Context, requestID string, reviewer ledger.AccountID, confirmedCoins ledger.Coins) (WithdrawRequest, error) {
	request, operationError := service.approveWithdrawal(ctx, requestID, reviewer, confirmedCoins)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationApprove,
		AccountID: request.AccountID,
		Subject:   requestID,
		Amount:    request.Coins,
		Metadata:  ledger.MetadataFrom(map[string]any{metadataKeyReviewer: reviewer.String()}),
		Error:     operationError,
	})
	return request, operationError
}

func (service *Service) approveWithdrawal(ctx context.Context, requestID string, reviewer ledger.AccountID, confirmedCoins ledger.Coins) (WithdrawRequest, error) {
	request, err := service.store.GetWithdrawRequest(ctx, requestID)
	if err != nil {
		return WithdrawRequest{}, err
	}
	unlock := service.locks.Lock(keylock.WithdrawalKey(requestID), keylock.AccountKey(request.AccountID.String()))
	defer unlock()

	var approved WithdrawRequest
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		current, err := transactionStore.GetWithdrawRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != WithdrawPending {
			return ErrAlreadyReviewed
		}
		coins := current.Coins
		if confirmedCoins < 0 || confirmedCoins > current.Coins {
			return fmt.Errorf("%w: confirmed %d of requested %d", ledger.ErrInvalidAmount, confirmedCoins, current.Coins)
		}
		if confirmedCoins > 0 {
			coins = confirmedCoins
		}
		quantity, err := service.config.GiftQuantity(coins)
		if err != nil {
			return err
		}
		metadata := ledger.MetadataFrom(map[string]any{metadataKeySource: sourceWithdrawal, metadataKeyRequest: requestID, metadataKeyCoins: coins.Int64()})
		if _, err := service.wallet.DebitWithin(ctx, transactionStore.Ledger(), current.AccountID, coins, ledger.KindPrizeConversion, metadata); err != nil {
			return err
		}
		nowUnixUTC := service.wallet.Now()
		prize, err := transactionStore.CreatePrize(ctx, Prize{
			WinnerAccountID: current.AccountID,
			Kind:            KindWishlistGift,
			Quantity:        quantity,
			Metadata:        metadata,
			Status:          PrizeReady,
			CreatedUnixUTC:  nowUnixUTC,
			UpdatedUnixUTC:  nowUnixUTC,
		})
		if err != nil {
			return err
		}
		if _, err := transactionStore.CreateClaimEntry(ctx, ClaimEntry{
			PrizeID:         prize.ID,
			WinnerAccountID: current.AccountID,
			Identity:        current.Identity,
			Note:            current.Note,
			Status:          EntryReady,
			CreatedUnixUTC:  nowUnixUTC,
			UpdatedUnixUTC:  nowUnixUTC,
		}); err != nil {
			return err
		}
		current.Coins = coins
		current.Quantity = quantity
		current.Status = WithdrawApproved
		current.ReviewerAccountID = reviewer
		current.PrizeID = prize.ID
		current.ReviewedUnixUTC = nowUnixUTC
		if err := transactionStore.ReviewWithdrawRequest(ctx, current); err != nil {
			return err
		}
		approved = current
		return nil
	})
	if operationError != nil {
		return request, operationError
	}
	return approved, nil
}

// RejectWithdrawal closes a pending request without touching the balance.
func (service *Service) RejectWithdrawal(ctx context.Context, requestID string, reviewer ledger.AccountID, reason string) (WithdrawRequest, error) {
	request, operationError := service.rejectWithdrawal(ctx, requestID, reviewer, reason)
	service.logOperation(ctx, ledger.OperationLog{
		Operation: operationReject,
		AccountID: request.AccountID,
		Subject:   requestID,
		Error:     operationError,
	})
	return request, operationError
}

func (service *Service) rejectWithdrawal(ctx context.Context, requestID string, reviewer ledger.AccountID, reason string) (WithdrawRequest, error) {
	unlock := service.locks.Lock(keylock.WithdrawalKey(requestID))
	defer unlock()

	request, err := service.store.GetWithdrawRequest(ctx, requestID)
	if err != nil {
		return WithdrawRequest{}, err
	}
	if request.Status != WithdrawPending {
		return request, ErrAlreadyReviewed
	}
	request.Status = WithdrawRejected
	request.ReviewerAccountID = reviewer
	request.ReviewNote = strings.TrimSpace(reason)
	request.ReviewedUnixUTC = service.wallet.Now()
	if err := service.store.ReviewWithdrawRequest(ctx, request); err != nil {
		return request, err
	}
	return request, nil
}

func (service *Service) logOperation(ctx context.Context, entry ledger.OperationLog) {
	ledger.EmitOperation(ctx, service.logger, entry)
}
