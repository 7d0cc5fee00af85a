package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Domain-level error values returned by the ledger service.
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrUnknownAccount          = errors.New("unknown account")
	ErrInvalidAccountID        = errors.New("invalid account id")
	ErrInvalidTransactionID    = errors.New("invalid transaction id")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidTransactionKind  = errors.New("invalid transaction kind")
	ErrInvalidClaimKind        = errors.New("invalid claim kind")
	ErrInvalidMetadataJSON     = errors.New("invalid metadata json")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
	ErrInvalidListLimit        = errors.New("invalid list limit")
	ErrClaimCooldown           = errors.New("claim cooldown")
	ErrStarterAlreadyGranted   = errors.New("starter grant already issued")
	ErrUnbalancedAccountRecord = errors.New("account balance does not match transactions")
)

const errorOperationStore = "store"

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// WrapStoreError tags a persistence failure so callers can tell infrastructure errors from domain refusals.
func WrapStoreError(subject string, code string, err error) error {
	return WrapError(errorOperationStore, subject, code, err)
}

// IsStoreError reports whether err was tagged by a store.
func IsStoreError(err error) bool {
	var operationError OperationError
	if !errors.As(err, &operationError) {
		return false
	}
	return operationError.operation == errorOperationStore
}

// CooldownError reports a periodic claim attempted before it is eligible again.
type CooldownError struct {
	Claim               ClaimKind
	NextEligibleUnixUTC int64
}

// Error returns the formatted error message.
func (cooldownError CooldownError) Error() string {
	nextEligible := time.Unix(cooldownError.NextEligibleUnixUTC, 0).UTC().Format(time.RFC3339)
	return fmt.Sprintf("%v: %s claim available at %s", ErrClaimCooldown, cooldownError.Claim, nextEligible)
}

// Unwrap exposes ErrClaimCooldown to errors.Is.
func (cooldownError CooldownError) Unwrap() error {
	return ErrClaimCooldown
}
