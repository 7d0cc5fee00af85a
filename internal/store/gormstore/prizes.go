package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/prizes"
	"gorm.io/gorm"
)

const defaultWithdrawLimit = 50

// PrizeStore implements prizes.Store.
type PrizeStore struct {
	*Store
}

// Prizes returns the prize pipeline view of the store.
func (store *Store) Prizes() *PrizeStore {
	return &PrizeStore{Store: store}
}

// WithTx executes fn within a transaction.
func (prizeStore *PrizeStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore prizes.Store) error) error {
	return prizeStore.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &PrizeStore{Store: &Store{db: transaction}})
	})
}

// Ledger returns the wallet view over the same connection or transaction.
func (prizeStore *PrizeStore) Ledger() ledger.Store {
	return prizeStore.Store
}

func (store *Store) CreatePrize(ctx context.Context, prize prizes.Prize) (prizes.Prize, error) {
	record := Prize{
		PrizeID:         prize.ID,
		WinnerAccountID: prize.WinnerAccountID.String(),
		Kind:            string(prize.Kind),
		Quantity:        prize.Quantity,
		Metadata:        datatypesJSON(prize.Metadata.String()),
		Status:          string(prize.Status),
		CreatedUnixUTC:  prize.CreatedUnixUTC,
		UpdatedUnixUTC:  prize.UpdatedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return prizes.Prize{}, wrapStoreError(errorSubjectPrize, errorCodeCreate, err)
	}
	prize.ID = record.PrizeID
	return prize, nil
}

func (store *Store) GetPrize(ctx context.Context, prizeID string) (prizes.Prize, error) {
	var record Prize
	err := store.db.WithContext(ctx).Where("prize_id = ?", prizeID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return prizes.Prize{}, wrapStoreError(errorSubjectPrize, errorCodeGet, prizes.ErrNotFound)
	}
	if err != nil {
		return prizes.Prize{}, wrapStoreError(errorSubjectPrize, errorCodeGet, err)
	}
	return mapPrize(record)
}

func (store *Store) ListPrizes(ctx context.Context, winner ledger.AccountID) ([]prizes.Prize, error) {
	var rows []Prize
	err := store.db.WithContext(ctx).
		Where("winner_account_id = ?", winner.String()).
		Order("created_unix_utc DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPrize, errorCodeList, err)
	}
	result := make([]prizes.Prize, 0, len(rows))
	for _, row := range rows {
		prize, err := mapPrize(row)
		if err != nil {
			return nil, err
		}
		result = append(result, prize)
	}
	return result, nil
}

func (store *Store) TransitionPrize(ctx context.Context, prizeID string, to prizes.PrizeStatus, atUnixUTC int64, from ...prizes.PrizeStatus) error {
	allowed := make([]string, len(from))
	for index, status := range from {
		allowed[index] = string(status)
	}
	query := store.db.WithContext(ctx).Model(&Prize{}).Where("prize_id = ?", prizeID)
	if len(allowed) > 0 {
		query = query.Where("status IN ?", allowed)
	}
	result := query.Updates(map[string]any{"status": string(to), "updated_unix_utc": atUnixUTC})
	if result.Error != nil {
		return wrapStoreError(errorSubjectPrize, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := store.GetPrize(ctx, prizeID); err != nil {
			return err
		}
		return wrapStoreError(errorSubjectPrize, errorCodeUpdate, prizes.ErrPrizeStateConflict)
	}
	return nil
}

func (store *Store) CreateClaimEntry(ctx context.Context, entry prizes.ClaimEntry) (prizes.ClaimEntry, error) {
	record := ClaimEntry{
		EntryID:         entry.ID,
		PrizeID:         entry.PrizeID,
		WinnerAccountID: entry.WinnerAccountID.String(),
		Username:        entry.Identity.Username,
		ProfileURL:      entry.Identity.ProfileURL,
		WishlistURL:     entry.Identity.WishlistURL,
		Note:            entry.Note,
		StaffNote:       entry.StaffNote,
		Status:          string(entry.Status),
		CreatedUnixUTC:  entry.CreatedUnixUTC,
		UpdatedUnixUTC:  entry.UpdatedUnixUTC,
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeDuplicate, prizes.ErrAlreadyClaimed)
	}
	if err != nil {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeCreate, err)
	}
	entry.ID = record.EntryID
	return entry, nil
}

func (store *Store) GetClaimEntry(ctx context.Context, entryID string) (prizes.ClaimEntry, error) {
	return store.takeClaimEntry(ctx, "entry_id = ?", entryID)
}

func (store *Store) FindClaimEntryByPrize(ctx context.Context, prizeID string) (prizes.ClaimEntry, error) {
	return store.takeClaimEntry(ctx, "prize_id = ?", prizeID)
}

func (store *Store) NextReadyEntry(ctx context.Context) (prizes.ClaimEntry, error) {
	var record ClaimEntry
	err := store.db.WithContext(ctx).
		Where("status = ?", string(prizes.EntryReady)).
		Order("created_unix_utc ASC").
		Order("entry_id ASC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, prizes.ErrQueueEmpty)
	}
	if err != nil {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapClaimEntry(record)
}

func (store *Store) CloseClaimEntry(ctx context.Context, entryID string, to prizes.EntryStatus, staffNote string, atUnixUTC int64) error {
	result := store.db.WithContext(ctx).
		Model(&ClaimEntry{}).
		Where("entry_id = ? AND status = ?", entryID, string(prizes.EntryReady)).
		Updates(map[string]any{"status": string(to), "staff_note": staffNote, "updated_unix_utc": atUnixUTC})
	if result.Error != nil {
		return wrapStoreError(errorSubjectEntry, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := store.GetClaimEntry(ctx, entryID); err != nil {
			return err
		}
		return wrapStoreError(errorSubjectEntry, errorCodeUpdate, prizes.ErrEntryClosed)
	}
	return nil
}

func (store *Store) CreateWithdrawRequest(ctx context.Context, request prizes.WithdrawRequest) (prizes.WithdrawRequest, error) {
	record := WithdrawRequest{
		RequestID:         request.ID,
		AccountID:         request.AccountID.String(),
		Coins:             request.Coins.Int64(),
		Quantity:          request.Quantity,
		Username:          request.Identity.Username,
		ProfileURL:        request.Identity.ProfileURL,
		WishlistURL:       request.Identity.WishlistURL,
		Note:              request.Note,
		Status:            string(request.Status),
		ReviewerAccountID: request.ReviewerAccountID.String(),
		ReviewNote:        request.ReviewNote,
		PrizeID:           request.PrizeID,
		CreatedUnixUTC:    request.CreatedUnixUTC,
		ReviewedUnixUTC:   request.ReviewedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return prizes.WithdrawRequest{}, wrapStoreError(errorSubjectWithdraw, errorCodeCreate, err)
	}
	request.ID = record.RequestID
	return request, nil
}

func (store *Store) GetWithdrawRequest(ctx context.Context, requestID string) (prizes.WithdrawRequest, error) {
	var record WithdrawRequest
	err := store.db.WithContext(ctx).Where("request_id = ?", requestID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return prizes.WithdrawRequest{}, wrapStoreError(errorSubjectWithdraw, errorCodeGet, prizes.ErrNotFound)
	}
	if err != nil {
		return prizes.WithdrawRequest{}, wrapStoreError(errorSubjectWithdraw, errorCodeGet, err)
	}
	return mapWithdrawRequest(record)
}

func (store *Store) ListWithdrawRequests(ctx context.Context, status prizes.WithdrawStatus, limit int) ([]prizes.WithdrawRequest, error) {
	query := store.db.WithContext(ctx).Model(&WithdrawRequest{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var rows []WithdrawRequest
	err := query.
		Order("created_unix_utc ASC").
		Order("request_id ASC").
		Limit(clampLimit(limit, defaultWithdrawLimit)).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectWithdraw, errorCodeList, err)
	}
	requests := make([]prizes.WithdrawRequest, 0, len(rows))
	for _, row := range rows {
		request, err := mapWithdrawRequest(row)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, nil
}

func (store *Store) ReviewWithdrawRequest(ctx context.Context, request prizes.WithdrawRequest) error {
	result := store.db.WithContext(ctx).
		Model(&WithdrawRequest{}).
		Where("request_id = ? AND status = ?", request.ID, string(prizes.WithdrawPending)).
		Updates(map[string]any{
			"status":              string(request.Status),
			"coins":               request.Coins.Int64(),
			"quantity":            request.Quantity,
			"reviewer_account_id": request.ReviewerAccountID.String(),
			"review_note":         request.ReviewNote,
			"prize_id":            request.PrizeID,
			"reviewed_unix_utc":   request.ReviewedUnixUTC,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectWithdraw, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := store.GetWithdrawRequest(ctx, request.ID); err != nil {
			return err
		}
		return wrapStoreError(errorSubjectWithdraw, errorCodeUpdate, prizes.ErrAlreadyReviewed)
	}
	return nil
}

func (store *Store) takeClaimEntry(ctx context.Context, condition string, value string) (prizes.ClaimEntry, error) {
	var record ClaimEntry
	err := store.db.WithContext(ctx).Where(condition, value).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, prizes.ErrNotFound)
	}
	if err != nil {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeGet, err)
	}
	return mapClaimEntry(record)
}

func mapPrize(record Prize) (prizes.Prize, error) {
	winner, err := ledger.NewAccountID(record.WinnerAccountID)
	if err != nil {
		return prizes.Prize{}, wrapStoreError(errorSubjectPrize, errorCodeInvalid, err)
	}
	metadata, err := ledger.NewMetadataJSON(string(record.Metadata))
	if err != nil {
		return prizes.Prize{}, wrapStoreError(errorSubjectPrize, errorCodeInvalid, err)
	}
	status := prizes.PrizeStatus(record.Status)
	switch status {
	case prizes.PrizePending, prizes.PrizeClaimed, prizes.PrizeReady, prizes.PrizeFulfilled, prizes.PrizeFailed:
	default:
		return prizes.Prize{}, invalidRecord(errorSubjectPrize, "status", record.Status)
	}
	return prizes.Prize{
		ID:              record.PrizeID,
		WinnerAccountID: winner,
		Kind:            prizes.PrizeKind(record.Kind),
		Quantity:        record.Quantity,
		Metadata:        metadata,
		Status:          status,
		CreatedUnixUTC:  record.CreatedUnixUTC,
		UpdatedUnixUTC:  record.UpdatedUnixUTC,
	}, nil
}

func mapClaimEntry(record ClaimEntry) (prizes.ClaimEntry, error) {
	winner, err := ledger.NewAccountID(record.WinnerAccountID)
	if err != nil {
		return prizes.ClaimEntry{}, wrapStoreError(errorSubjectEntry, errorCodeInvalid, err)
	}
	status := prizes.EntryStatus(record.Status)
	switch status {
	case prizes.EntryReady, prizes.EntryFulfilled, prizes.EntryFailed:
	default:
		return prizes.ClaimEntry{}, invalidRecord(errorSubjectEntry, "status", record.Status)
	}
	return prizes.ClaimEntry{
		ID:              record.EntryID,
		PrizeID:         record.PrizeID,
		WinnerAccountID: winner,
		Identity: prizes.Identity{
			Username:    record.Username,
			ProfileURL:  record.ProfileURL,
			WishlistURL: record.WishlistURL,
		},
		Note:           record.Note,
		StaffNote:      record.StaffNote,
		Status:         status,
		CreatedUnixUTC: record.CreatedUnixUTC,
		UpdatedUnixUTC: record.UpdatedUnixUTC,
	}, nil
}

func mapWithdrawRequest(record WithdrawRequest) (prizes.WithdrawRequest, error) {
	accountID, err := ledger.NewAccountID(record.AccountID)
	if err != nil {
		return prizes.WithdrawRequest{}, wrapStoreError(errorSubjectWithdraw, errorCodeInvalid, err)
	}
	reviewer, err := optionalAccountID(record.ReviewerAccountID)
	if err != nil {
		return prizes.WithdrawRequest{}, wrapStoreError(errorSubjectWithdraw, errorCodeInvalid, err)
	}
	status := prizes.WithdrawStatus(record.Status)
	switch status {
	case prizes.WithdrawPending, prizes.WithdrawApproved, prizes.WithdrawRejected:
	default:
		return prizes.WithdrawRequest{}, invalidRecord(errorSubjectWithdraw, "status", record.Status)
	}
	return prizes.WithdrawRequest{
		ID:        record.RequestID,
		AccountID: accountID,
		Coins:     ledger.Coins(record.Coins),
		Quantity:  record.Quantity,
		Identity: prizes.Identity{
			Username:    record.Username,
			ProfileURL:  record.ProfileURL,
			WishlistURL: record.WishlistURL,
		},
		Note:              record.Note,
		Status:            status,
		ReviewerAccountID: reviewer,
		ReviewNote:        record.ReviewNote,
		PrizeID:           record.PrizeID,
		CreatedUnixUTC:    record.CreatedUnixUTC,
		ReviewedUnixUTC:   record.ReviewedUnixUTC,
	}, nil
}
