// Package gormstore persists accounts, games and prizes through GORM on Postgres or SQLite.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMetadataJSON   = "{}"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorSubjectAccount   = "account"
	errorSubjectBalance   = "balance"
	errorSubjectTx        = "transaction"
	errorSubjectRound     = "round"
	errorSubjectBet       = "bet"
	errorSubjectPot       = "pot"
	errorSubjectSpin      = "spin"
	errorSubjectTicket    = "ticket"
	errorSubjectDraw      = "draw"
	errorSubjectPrize     = "prize"
	errorSubjectEntry     = "claim_entry"
	errorSubjectWithdraw  = "withdraw_request"
	errorSubjectSchema    = "schema"
	errorCodeCreate       = "create"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeCount        = "count"
	errorCodeUpdate       = "update"
	errorCodeSum          = "sum"
	errorCodeMigrate      = "migrate"
)

// Store implements ledger.Store using GORM. Rounds, Reels, Lottery and Prizes expose the same
// connection under each game's store contract.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) EnsureAccount(ctx context.Context, accountID ledger.AccountID, atUnixUTC int64) (ledger.Account, error) {
	record := Account{AccountID: accountID.String(), CreatedUnixUTC: atUnixUTC}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "account_id"}}, DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return store.GetAccount(ctx, accountID)
}

func (store *Store) GetAccount(ctx context.Context, accountID ledger.AccountID) (ledger.Account, error) {
	var record Account
	err := store.db.WithContext(ctx).Where("account_id = ?", accountID.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrUnknownAccount)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	parsedAccountID, err := ledger.NewAccountID(record.AccountID)
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return ledger.Account{
		ID:                     parsedAccountID,
		Balance:                ledger.Coins(record.Balance),
		LastDailyClaimUnixUTC:  record.LastDailyClaimUnixUTC,
		LastWeeklyClaimUnixUTC: record.LastWeeklyClaimUnixUTC,
		StarterGrantedUnixUTC:  record.StarterGrantedUnixUTC,
		CreatedUnixUTC:         record.CreatedUnixUTC,
	}, nil
}

// AdjustBalance applies delta with a conditional update so concurrent debits can never overdraw.
func (store *Store) AdjustBalance(ctx context.Context, accountID ledger.AccountID, delta ledger.Coins) (ledger.Coins, error) {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND balance + ? >= 0", accountID.String(), delta.Int64()).
		Update("balance", gorm.Expr("balance + ?", delta.Int64()))
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := store.GetAccount(ctx, accountID); err != nil {
			return 0, err
		}
		return 0, wrapStoreError(errorSubjectBalance, errorCodeUpdate, ledger.ErrInsufficientFunds)
	}
	account, err := store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	record := Transaction{
		AccountID:      transaction.AccountID.String(),
		Kind:           transaction.Kind.String(),
		Amount:         transaction.Amount.Int64(),
		Metadata:       datatypesJSON(transaction.Metadata.String()),
		CreatedUnixUTC: transaction.CreatedUnixUTC,
	}
	record.TransactionID = transaction.ID.String()
	err := store.db.WithContext(ctx).Create(&record).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectTx, errorCodeDuplicate, err)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTx, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID ledger.AccountID, beforeUnixUTC int64, limit int) ([]ledger.Transaction, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("account_id = ? AND created_unix_utc < ?", accountID.String(), beforeUnixUTC).
		Order("created_unix_utc DESC").
		Order("transaction_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTx, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTx, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) SumTransactions(ctx context.Context, accountID ledger.AccountID) (ledger.Coins, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("coalesce(sum(amount),0) as total").
		Where("account_id = ?", accountID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	return ledger.Coins(sum.Total), nil
}

func (store *Store) MarkClaim(ctx context.Context, accountID ledger.AccountID, claim ledger.ClaimKind, atUnixUTC int64) error {
	var column string
	switch claim {
	case ledger.ClaimDaily:
		column = "last_daily_claim_unix_utc"
	case ledger.ClaimWeekly:
		column = "last_weekly_claim_unix_utc"
	case ledger.ClaimStarter:
		column = "starter_granted_unix_utc"
	default:
		return wrapStoreError(errorSubjectAccount, errorCodeInvalid, ledger.ErrInvalidClaimKind)
	}
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ?", accountID.String()).
		Update(column, atUnixUTC)
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrUnknownAccount)
	}
	return nil
}

func mapTransaction(row Transaction) (ledger.Transaction, error) {
	transactionID, err := ledger.NewTransactionID(row.TransactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	accountID, err := ledger.NewAccountID(row.AccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	kind, err := ledger.ParseTransactionKind(row.Kind)
	if err != nil {
		return ledger.Transaction{}, err
	}
	metadata, err := ledger.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		ID:             transactionID,
		AccountID:      accountID,
		Kind:           kind,
		Amount:         ledger.Coins(row.Amount),
		Metadata:       metadata,
		CreatedUnixUTC: row.CreatedUnixUTC,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapStoreError(subject, code, err)
}

type sqlSum struct {
	Total int64
}

func optionalAccountID(raw string) (ledger.AccountID, error) {
	if raw == "" {
		return ledger.AccountID{}, nil
	}
	return ledger.NewAccountID(raw)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func clampLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func invalidRecord(subject string, field string, raw string) error {
	return wrapStoreError(subject, errorCodeInvalid, fmt.Errorf("unexpected %s %q", field, raw))
}
