package common

import "errors"

// Stable error kinds surfaced to handlers, matched with errors.Is and mapped
// to HTTP status codes at the edge.
var (
	ErrNotFound            = errors.New("record not found")
	ErrForbidden           = errors.New("actor not allowed for this action")
	ErrInvalidTransition   = errors.New("action not allowed from current status")
	ErrValidation          = errors.New("invalid input")
	ErrConflict            = errors.New("duplicate action")
	ErrProviderNotPayable  = errors.New("provider has no payable account")
	ErrProcessorError      = errors.New("payment processor request failed")
	ErrInsufficientBalance = errors.New("requested amount exceeds available balance")
	ErrAccountNotReady     = errors.New("connected account is not ready for payouts")
	ErrIdentityNotVerified = errors.New("identity verification required")
)
