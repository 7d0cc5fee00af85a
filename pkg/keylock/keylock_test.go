package keylock

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(test *testing.T) {
	test.Parallel()
	registry := NewRegistry()
	counter := 0
	var group sync.WaitGroup
	for index := 0; index < 50; index++ {
		group.Add(1)
		go func() {
			defer group.Done()
			unlock := registry.Lock(AccountKey("acct-1"))
			current := counter
			current++
			counter = current
			unlock()
		}()
	}
	group.Wait()
	if counter != 50 {
		test.Fatalf("expected 50 increments, got %d", counter)
	}
}

func TestLockMultipleKeysInOppositeOrderDoesNotDeadlock(test *testing.T) {
	test.Parallel()
	registry := NewRegistry()
	var group sync.WaitGroup
	for index := 0; index < 20; index++ {
		group.Add(2)
		go func() {
			defer group.Done()
			unlock := registry.Lock(AccountKey("a"), RoundScopeKey("s"))
			unlock()
		}()
		go func() {
			defer group.Done()
			unlock := registry.Lock(RoundScopeKey("s"), AccountKey("a"))
			unlock()
		}()
	}
	group.Wait()
	if registry.Size() != 2 {
		test.Fatalf("expected 2 registered keys, got %d", registry.Size())
	}
}

func TestLockDeduplicatesKeys(test *testing.T) {
	test.Parallel()
	registry := NewRegistry()
	unlock := registry.Lock(PotKey("x"), PotKey("x"))
	unlock()
	relock := registry.Lock(PotKey("x"))
	relock()
}
