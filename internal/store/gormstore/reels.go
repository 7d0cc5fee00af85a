package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/reels"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultSpinsLimit = 20

// ReelStore implements reels.Store.
type ReelStore struct {
	*Store
}

// Reels returns the reel game view of the store.
func (store *Store) Reels() *ReelStore {
	return &ReelStore{Store: store}
}

// WithTx executes fn within a transaction.
func (reelStore *ReelStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore reels.Store) error) error {
	return reelStore.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &ReelStore{Store: &Store{db: transaction}})
	})
}

// Ledger returns the wallet view over the same connection or transaction.
func (reelStore *ReelStore) Ledger() ledger.Store {
	return reelStore.Store
}

func (store *Store) GetOrCreatePot(ctx context.Context, scope string, initial reels.Pot) (reels.Pot, error) {
	record := Pot{
		Scope:          scope,
		Amount:         initial.Amount.Int64(),
		Floor:          initial.Floor.Int64(),
		UpdatedUnixUTC: initial.UpdatedUnixUTC,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "scope"}}, DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return reels.Pot{}, wrapStoreError(errorSubjectPot, errorCodeCreate, err)
	}
	// The row stays locked until the surrounding transaction ends, so concurrent spin batches
	// from other processes wait before reading the amount they will overwrite in SavePot.
	return store.loadPot(ctx, scope, true)
}

func (store *Store) GetPot(ctx context.Context, scope string) (reels.Pot, error) {
	return store.loadPot(ctx, scope, false)
}

func (store *Store) loadPot(ctx context.Context, scope string, forUpdate bool) (reels.Pot, error) {
	var record Pot
	query := store.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := query.Where("scope = ?", scope).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reels.Pot{}, wrapStoreError(errorSubjectPot, errorCodeGet, reels.ErrUnknownPot)
	}
	if err != nil {
		return reels.Pot{}, wrapStoreError(errorSubjectPot, errorCodeGet, err)
	}
	return reels.Pot{
		Scope:          record.Scope,
		Amount:         ledger.Coins(record.Amount),
		Floor:          ledger.Coins(record.Floor),
		UpdatedUnixUTC: record.UpdatedUnixUTC,
	}, nil
}

func (store *Store) SavePot(ctx context.Context, pot reels.Pot) error {
	result := store.db.WithContext(ctx).
		Model(&Pot{}).
		Where("scope = ?", pot.Scope).
		Updates(map[string]any{
			"amount":           pot.Amount.Int64(),
			"floor":            pot.Floor.Int64(),
			"updated_unix_utc": pot.UpdatedUnixUTC,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectPot, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectPot, errorCodeUpdate, reels.ErrUnknownPot)
	}
	return nil
}

func (store *Store) InsertSpin(ctx context.Context, spin reels.Spin) (reels.Spin, error) {
	symbols := make([]string, len(spin.Symbols))
	for index, symbol := range spin.Symbols {
		symbols[index] = string(symbol)
	}
	record := Spin{
		SpinID:         spin.ID,
		Scope:          spin.Scope,
		AccountID:      spin.AccountID.String(),
		Symbols:        datatypes.NewJSONSlice(symbols),
		Payout:         spin.Payout.Int64(),
		PotBefore:      spin.PotBefore.Int64(),
		CreatedUnixUTC: spin.CreatedUnixUTC,
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return reels.Spin{}, wrapStoreError(errorSubjectSpin, errorCodeInsert, err)
	}
	spin.ID = record.SpinID
	return spin, nil
}

func (store *Store) ListSpins(ctx context.Context, scope string, limit int) ([]reels.Spin, error) {
	var rows []Spin
	err := store.db.WithContext(ctx).
		Where("scope = ?", scope).
		Order("created_unix_utc DESC").
		Order("spin_id DESC").
		Limit(clampLimit(limit, defaultSpinsLimit)).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectSpin, errorCodeList, err)
	}
	spins := make([]reels.Spin, 0, len(rows))
	for _, row := range rows {
		accountID, err := ledger.NewAccountID(row.AccountID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectSpin, errorCodeInvalid, err)
		}
		if len(row.Symbols) != 3 {
			return nil, invalidRecord(errorSubjectSpin, "symbols", row.SpinID)
		}
		var faces [3]reels.Symbol
		for index := range faces {
			faces[index] = reels.Symbol(row.Symbols[index])
		}
		spins = append(spins, reels.Spin{
			ID:             row.SpinID,
			Scope:          row.Scope,
			AccountID:      accountID,
			Symbols:        faces,
			Payout:         ledger.Coins(row.Payout),
			PotBefore:      ledger.Coins(row.PotBefore),
			CreatedUnixUTC: row.CreatedUnixUTC,
		})
	}
	return spins, nil
}
