// Package keylock provides per-key mutual exclusion for accounts, round scopes, pots and prizes.
package keylock

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync"
)

// Registry hands out one mutex per key. Keys are never evicted; the key space is bounded by
// accounts and scopes.
type Registry struct {
	mutexes *xsync.MapOf[string, *sync.Mutex]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{mutexes: xsync.NewMapOf[*sync.Mutex]()}
}

// Lock acquires every key in sorted order and returns a function releasing them in reverse.
// Duplicate keys are acquired once.
func (registry *Registry) Lock(keys ...string) func() {
	ordered := uniqueSorted(keys)
	acquired := make([]*sync.Mutex, 0, len(ordered))
	for _, key := range ordered {
		mutex := registry.mutexFor(key)
		mutex.Lock()
		acquired = append(acquired, mutex)
	}
	return func() {
		for index := len(acquired) - 1; index >= 0; index-- {
			acquired[index].Unlock()
		}
	}
}

// Size reports how many keys have been seen.
func (registry *Registry) Size() int {
	return registry.mutexes.Size()
}

func (registry *Registry) mutexFor(key string) *sync.Mutex {
	if mutex, ok := registry.mutexes.Load(key); ok {
		return mutex
	}
	mutex, _ := registry.mutexes.LoadOrStore(key, &sync.Mutex{})
	return mutex
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	ordered := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	return ordered
}

// AccountKey scopes a lock to a ledger account.
func AccountKey(accountID string) string {
	return "account:" + accountID
}

// RoundScopeKey scopes a lock to the roulette round slot of a scope.
func RoundScopeKey(scope string) string {
	return "round-scope:" + scope
}

// PotKey scopes a lock to a reel pot.
func PotKey(scope string) string {
	return "pot:" + scope
}

// PrizeKey scopes a lock to a prize.
func PrizeKey(prizeID string) string {
	return "prize:" + prizeID
}

// WithdrawalKey scopes a lock to a withdrawal request.
func WithdrawalKey(requestID string) string {
	return "withdrawal:" + requestID
}

// LotteryKey scopes a lock to a lottery period.
func LotteryKey(period string) string {
	return "lottery:" + period
}
