package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/MarkoPoloResearchLab/haus/pkg/roulette"
	"gorm.io/gorm"
)

// RoundStore implements roulette.Store.
type RoundStore struct {
	*Store
}

// Rounds returns the roulette view of the store.
func (store *Store) Rounds() *RoundStore {
	return &RoundStore{Store: store}
}

// WithTx executes fn within a transaction.
func (rounds *RoundStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore roulette.Store) error) error {
	return rounds.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &RoundStore{Store: &Store{db: transaction}})
	})
}

// Ledger returns the wallet view over the same connection or transaction.
func (rounds *RoundStore) Ledger() ledger.Store {
	return rounds.Store
}

func (store *Store) CreateRound(ctx context.Context, round roulette.Round) (roulette.Round, error) {
	record := Round{
		RoundID:        round.ID,
		Scope:          round.Scope,
		Number:         round.Number,
		Status:         string(round.Status),
		OpenedBy:       round.OpenedBy.String(),
		OpenedUnixUTC:  round.OpenedUnixUTC,
		ExpiresUnixUTC: round.ExpiresUnixUTC,
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeDuplicate, roulette.ErrRoundAlreadyOpen)
	}
	if err != nil {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeCreate, err)
	}
	return mapRound(record)
}

func (store *Store) GetRound(ctx context.Context, roundID string) (roulette.Round, error) {
	var record Round
	err := store.db.WithContext(ctx).Where("round_id = ?", roundID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeGet, roulette.ErrUnknownRound)
	}
	if err != nil {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeGet, err)
	}
	return mapRound(record)
}

func (store *Store) FindOpenRound(ctx context.Context, scope string) (roulette.Round, error) {
	var record Round
	err := store.db.WithContext(ctx).
		Where("scope = ? AND status = ?", scope, string(roulette.RoundOpen)).
		Order("number DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeGet, roulette.ErrNoOpenRound)
	}
	if err != nil {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeGet, err)
	}
	return mapRound(record)
}

func (store *Store) ListOpenRounds(ctx context.Context) ([]roulette.Round, error) {
	var rows []Round
	err := store.db.WithContext(ctx).
		Where("status = ?", string(roulette.RoundOpen)).
		Order("expires_unix_utc ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectRound, errorCodeList, err)
	}
	rounds := make([]roulette.Round, 0, len(rows))
	for _, row := range rows {
		round, err := mapRound(row)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

func (store *Store) NextRoundNumber(ctx context.Context, scope string) (int64, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Round{}).
		Select("coalesce(max(number),0) as total").
		Where("scope = ?", scope).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectRound, errorCodeCount, err)
	}
	return sum.Total + 1, nil
}

func (store *Store) CloseRound(ctx context.Context, round roulette.Round) error {
	result := store.db.WithContext(ctx).
		Model(&Round{}).
		Where("round_id = ? AND status = ?", round.ID, string(roulette.RoundOpen)).
		Updates(map[string]any{
			"status":           string(round.Status),
			"outcome":          string(round.Outcome),
			"outcome_position": round.OutcomePosition,
			"seed":             round.Seed,
			"closed_unix_utc":  round.ClosedUnixUTC,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectRound, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRound, errorCodeUpdate, roulette.ErrRoundNotOpen)
	}
	return nil
}

func (store *Store) InsertBet(ctx context.Context, bet roulette.Bet) (roulette.Bet, error) {
	record := Bet{
		BetID:          bet.ID,
		RoundID:        bet.RoundID,
		AccountID:      bet.AccountID.String(),
		Choice:         string(bet.Choice),
		Stake:          bet.Stake.Int64(),
		CreatedUnixUTC: bet.CreatedUnixUTC,
	}
	if bet.Exclusive {
		key := bet.RoundID + "/" + bet.AccountID.String()
		record.ExclusiveKey = &key
	}
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return roulette.Bet{}, wrapStoreError(errorSubjectBet, errorCodeDuplicate, roulette.ErrDuplicateBet)
	}
	if err != nil {
		return roulette.Bet{}, wrapStoreError(errorSubjectBet, errorCodeInsert, err)
	}
	bet.ID = record.BetID
	return bet, nil
}

func (store *Store) ListBets(ctx context.Context, roundID string) ([]roulette.Bet, error) {
	var rows []Bet
	err := store.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("created_unix_utc ASC").
		Order("bet_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBet, errorCodeList, err)
	}
	bets := make([]roulette.Bet, 0, len(rows))
	for _, row := range rows {
		accountID, err := ledger.NewAccountID(row.AccountID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBet, errorCodeInvalid, err)
		}
		choice, err := roulette.ParseChoice(row.Choice)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBet, errorCodeInvalid, err)
		}
		bets = append(bets, roulette.Bet{
			ID:             row.BetID,
			RoundID:        row.RoundID,
			AccountID:      accountID,
			Choice:         choice,
			Stake:          ledger.Coins(row.Stake),
			CreatedUnixUTC: row.CreatedUnixUTC,
			Exclusive:      row.ExclusiveKey != nil,
		})
	}
	return bets, nil
}

func (store *Store) CountAccountBets(ctx context.Context, roundID string, accountID ledger.AccountID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Bet{}).
		Where("round_id = ? AND account_id = ?", roundID, accountID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBet, errorCodeCount, err)
	}
	return count, nil
}

func mapRound(record Round) (roulette.Round, error) {
	status, err := roulette.ParseRoundStatus(record.Status)
	if err != nil {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeInvalid, err)
	}
	openedBy, err := optionalAccountID(record.OpenedBy)
	if err != nil {
		return roulette.Round{}, wrapStoreError(errorSubjectRound, errorCodeInvalid, err)
	}
	round := roulette.Round{
		ID:              record.RoundID,
		Scope:           record.Scope,
		Number:          record.Number,
		Status:          status,
		OpenedBy:        openedBy,
		OpenedUnixUTC:   record.OpenedUnixUTC,
		ExpiresUnixUTC:  record.ExpiresUnixUTC,
		OutcomePosition: record.OutcomePosition,
		Seed:            record.Seed,
		ClosedUnixUTC:   record.ClosedUnixUTC,
	}
	if record.Outcome != "" {
		outcome, err := roulette.ParseChoice(record.Outcome)
		if err != nil {
			return roulette.Round{}, invalidRecord(errorSubjectRound, "outcome", record.Outcome)
		}
		round.Outcome = outcome
	}
	return round, nil
}
