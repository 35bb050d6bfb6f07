package surety

import (
	"errors"
)

var (
	ErrNotOperational     = errors.New("not operational")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFunded          = errors.New("airline not funded")
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrAlreadyCredited    = errors.New("flight already credited")
	ErrInsufficientValue  = errors.New("insufficient value")
	ErrNotInFuture        = errors.New("timestamp not in future")
	ErrIndexMismatch      = errors.New("index mismatch")
	ErrRequestNotOpen     = errors.New("request not open")
	ErrNoCredits          = errors.New("no credits")
	ErrInvariantViolation = errors.New("invariant violation")

	ErrFlightNotRegistered = errors.New("flight not registered")
	ErrStatusNotLate       = errors.New("flight status not late airline")
	ErrCooldownActive      = errors.New("status updated in current block")
	ErrAlreadyReported     = errors.New("oracle already reported")
	ErrInvalidStatus       = errors.New("invalid status code")
)

// ABCI result codes. Zero is success; 1 is reserved for envelope failures.
const (
	CodeOK uint32 = iota
	CodeInternal
	CodeNotOperational
	CodeUnauthorized
	CodeNotFunded
	CodeAlreadyRegistered
	CodeAlreadyCredited
	CodeInsufficientValue
	CodeNotInFuture
	CodeIndexMismatch
	CodeRequestNotOpen
	CodeNoCredits
	CodeInvariantViolation
	CodeFlightNotRegistered
	CodeStatusNotLate
	CodeCooldownActive
	CodeAlreadyReported
	CodeInvalidStatus
)

var errCodes = []struct {
	err  error
	code uint32
}{
	{ErrNotOperational, CodeNotOperational},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrNotFunded, CodeNotFunded},
	{ErrAlreadyRegistered, CodeAlreadyRegistered},
	{ErrAlreadyCredited, CodeAlreadyCredited},
	{ErrInsufficientValue, CodeInsufficientValue},
	{ErrNotInFuture, CodeNotInFuture},
	{ErrIndexMismatch, CodeIndexMismatch},
	{ErrRequestNotOpen, CodeRequestNotOpen},
	{ErrNoCredits, CodeNoCredits},
	{ErrInvariantViolation, CodeInvariantViolation},
	{ErrFlightNotRegistered, CodeFlightNotRegistered},
	{ErrStatusNotLate, CodeStatusNotLate},
	{ErrCooldownActive, CodeCooldownActive},
	{ErrAlreadyReported, CodeAlreadyReported},
	{ErrInvalidStatus, CodeInvalidStatus},
}

// Code maps an error to its ABCI result code.
func Code(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range errCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// CodeText names an ABCI result code for clients.
func CodeText(code uint32) string {
	switch code {
	case CodeOK:
		return "ok"
	case CodeInternal:
		return "internal"
	}
	for _, c := range errCodes {
		if c.code == code {
			return c.err.Error()
		}
	}
	return "unknown"
}
