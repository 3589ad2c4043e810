package errors

import (
	"errors"
	"fmt"

	"capledger/jsonx"
)

// LedgerErrorCode represents standardized error codes for ledger operations
type LedgerErrorCode string

const (
	// General errors
	ErrCodeInternal LedgerErrorCode = "internal_error"

	// Validation errors (rejected mutations; no state change, no event)
	ErrCodeInvalidRequest     LedgerErrorCode = "invalid_request"
	ErrCodeMissingRole        LedgerErrorCode = "missing_role"
	ErrCodeNotAllowlisted     LedgerErrorCode = "not_allowlisted"
	ErrCodeInvalidAmount      LedgerErrorCode = "invalid_amount"
	ErrCodeAmountTruncated    LedgerErrorCode = "amount_truncated_to_zero"
	ErrCodeInsufficientFunds  LedgerErrorCode = "insufficient_funds"
	ErrCodeEmptySymbol        LedgerErrorCode = "empty_symbol"
	ErrCodeInvalidSplitFactor LedgerErrorCode = "invalid_split_factor"
	ErrCodeInvalidRole        LedgerErrorCode = "invalid_role"
	ErrCodeInvalidAddress     LedgerErrorCode = "invalid_address"

	// Lookup errors
	ErrCodeLedgerNotFound  LedgerErrorCode = "ledger_not_found"
	ErrCodeAccountNotFound LedgerErrorCode = "account_not_found"
	ErrCodeGenesisUnknown  LedgerErrorCode = "genesis_unknown"

	// Snapshot errors
	ErrCodeHeightOutOfRange LedgerErrorCode = "height_out_of_range"

	// Log integrity errors: the event log violated its ordering or shape
	// invariant. Any replay that hits this must abort, not skip.
	ErrCodeCorruptedLog LedgerErrorCode = "corrupted_log"
)

// LedgerError is the standardized error carried across the mutation and
// snapshot interfaces.
type LedgerError struct {
	Code    LedgerErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	err, _ := jsonx.Marshal(LedgerError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// NewError creates a new LedgerError and returns it as error interface
func NewError(code LedgerErrorCode, message string) error {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

// NewErrorf creates a new LedgerError with a formatted message
func NewErrorf(code LedgerErrorCode, format string, args ...interface{}) error {
	return &LedgerError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf extracts the LedgerErrorCode from err, or ErrCodeInternal when err
// is not a LedgerError.
func CodeOf(err error) LedgerErrorCode {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeInternal
}

// IsValidation reports whether err is a precondition failure on a mutation.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case ErrCodeInvalidRequest, ErrCodeMissingRole, ErrCodeNotAllowlisted,
		ErrCodeInvalidAmount, ErrCodeAmountTruncated, ErrCodeInsufficientFunds,
		ErrCodeEmptySymbol, ErrCodeInvalidSplitFactor, ErrCodeInvalidRole,
		ErrCodeInvalidAddress:
		return true
	}
	return false
}

// IsNotFound reports whether err is an unknown-identifier error.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case ErrCodeLedgerNotFound, ErrCodeAccountNotFound, ErrCodeGenesisUnknown:
		return true
	}
	return false
}

// IsOutOfRange reports whether err is a height-range error.
func IsOutOfRange(err error) bool {
	return CodeOf(err) == ErrCodeHeightOutOfRange
}

// IsCorruption reports whether err is a log integrity violation.
func IsCorruption(err error) bool {
	return CodeOf(err) == ErrCodeCorruptedLog
}
