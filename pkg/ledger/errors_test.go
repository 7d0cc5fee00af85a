package ledger

import (
	"errors"
	"testing"
)

const (
	operationName    = "ledger"
	subjectName      = "transaction"
	codeName         = "invalid"
	baseErrorMessage = "base error"
)

func TestOperationErrorFormatting(test *testing.T) {
	test.Parallel()
	baseError := errors.New(baseErrorMessage)
	wrappedError := WrapError(operationName, subjectName, codeName, baseError)
	if wrappedError == nil {
		test.Fatalf("expected wrapped error")
	}
	expected := operationName + "." + subjectName + "." + codeName + ": " + baseErrorMessage
	if wrappedError.Error() != expected {
		test.Fatalf("expected %q, got %q", expected, wrappedError.Error())
	}
	if !errors.Is(wrappedError, baseError) {
		test.Fatalf("expected wrapped error to unwrap to base")
	}
}

func TestWrapErrorNil(test *testing.T) {
	test.Parallel()
	if WrapError(operationName, subjectName, codeName, nil) != nil {
		test.Fatalf("expected nil wrapped error")
	}
}

func TestIsStoreError(test *testing.T) {
	test.Parallel()
	if !IsStoreError(WrapStoreError("account", "lookup", errors.New("disk"))) {
		test.Fatalf("expected store error")
	}
	if IsStoreError(ErrInsufficientFunds) {
		test.Fatalf("sentinel must not be a store error")
	}
	if IsStoreError(WrapError("service", "balance", "negative", ErrInsufficientFunds)) {
		test.Fatalf("non-store operation must not be a store error")
	}
}

func TestCooldownErrorUnwrapsToSentinel(test *testing.T) {
	test.Parallel()
	err := error(CooldownError{Claim: ClaimDaily, NextEligibleUnixUTC: 0})
	if !errors.Is(err, ErrClaimCooldown) {
		test.Fatalf("expected ErrClaimCooldown")
	}
	if err.Error() != "claim cooldown: daily claim available at 1970-01-01T00:00:00Z" {
		test.Fatalf("unexpected message %q", err.Error())
	}
}
