// Package testkit builds SQLite-backed stores and wallets for integration tests.
package testkit

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/MarkoPoloResearchLab/haus/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/haus/pkg/ledger"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StartUnixUTC is Monday 2025-01-06 08:00:00 UTC.
const StartUnixUTC int64 = 1736150400

// Clock is a settable unix-seconds clock safe for concurrent use.
type Clock struct {
	current atomic.Int64
}

// NewClock returns a clock reading atUnixUTC.
func NewClock(atUnixUTC int64) *Clock {
	clock := &Clock{}
	clock.current.Store(atUnixUTC)
	return clock
}

// Now returns the current reading.
func (clock *Clock) Now() int64 {
	return clock.current.Load()
}

// Set moves the clock to atUnixUTC.
func (clock *Clock) Set(atUnixUTC int64) {
	clock.current.Store(atUnixUTC)
}

// Advance moves the clock forward by seconds.
func (clock *Clock) Advance(seconds int64) {
	clock.current.Add(seconds)
}

// Harness bundles a migrated store with a wallet reading Clock.
type Harness struct {
	DB     *gorm.DB
	Store  *gormstore.Store
	Wallet *ledger.Service
	Clock  *Clock
}

// New opens a fresh SQLite database under the test's temp dir and migrates it. The pool is limited
// to one connection so SQLite never reports a busy database under concurrent tests.
func New(test testing.TB, options ...ledger.ServiceOption) *Harness {
	test.Helper()
	db := OpenDB(test)
	clock := NewClock(StartUnixUTC)
	store := gormstore.New(db)
	wallet, err := ledger.NewService(store, clock.Now, options...)
	if err != nil {
		test.Fatalf("wallet init failed: %v", err)
	}
	return &Harness{DB: db, Store: store, Wallet: wallet, Clock: clock}
}

// OpenDB returns a migrated SQLite database that is closed when the test ends.
func OpenDB(test testing.TB) *gorm.DB {
	test.Helper()
	path := filepath.Join(test.TempDir(), "haus.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("sqlite handle failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.Migrate(context.Background(), db); err != nil {
		test.Fatalf("migrate failed: %v", err)
	}
	return db
}

// Fund credits account with amount through a manual adjustment.
func (harness *Harness) Fund(test testing.TB, accountID ledger.AccountID, amount ledger.Coins) {
	test.Helper()
	if _, err := harness.Wallet.Adjust(context.Background(), accountID, amount, Account(test, "test-admin"), "fund"); err != nil {
		test.Fatalf("fund %s failed: %v", accountID, err)
	}
}

// Account parses raw into an account id or fails the test.
func Account(test testing.TB, raw string) ledger.AccountID {
	test.Helper()
	accountID, err := ledger.NewAccountID(raw)
	if err != nil {
		test.Fatalf("invalid account id %q: %v", raw, err)
	}
	return accountID
}
