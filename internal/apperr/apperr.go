// Package apperr holds the error kinds shared by the ledger, withdrawal and
// admin components. Callers inspect them with errors.Is.
package apperr

import "errors"

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidBankInfo     = errors.New("invalid bank info")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrReasonRequired      = errors.New("rejection reason required")

	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInvalidURL          = errors.New("invalid url")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrConflict            = errors.New("conflict")
)
