// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Generic error kinds. Handlers map these to HTTP responses with errors.Is.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the actor lacks permission for the requested mutation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the operation is not allowed in the entity's
	// current lifecycle stage (e.g. editing a deleted message).
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict indicates a uniqueness violation translated to domain meaning.
	ErrConflict = errors.New("conflict")

	// ErrExpired indicates a token, session or block past its validity window.
	ErrExpired = errors.New("expired")

	// ErrValidation indicates malformed input caught before reaching storage.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates an untranslatable storage or crypto failure.
	ErrUnavailable = errors.New("unavailable")
)

// Specific conditions wrapping the generic kinds, so callers can match either.
var (
	ErrBlockedRecipient = fmt.Errorf("%w: recipient blocked", ErrForbidden)
	ErrInvalidContent   = fmt.Errorf("%w: invalid message content", ErrValidation)
	ErrEditNotAllowed   = fmt.Errorf("%w: edit not allowed", ErrForbidden)

	ErrSelfBlock      = fmt.Errorf("%w: cannot block yourself", ErrValidation)
	ErrAlreadyBlocked = fmt.Errorf("%w: already blocked", ErrConflict)
	ErrNotBlocked     = fmt.Errorf("%w: no active block", ErrNotFound)

	ErrAlreadyReviewed = fmt.Errorf("%w: already reviewed", ErrConflict)

	ErrInvalidToken     = fmt.Errorf("%w: token", ErrNotFound)
	ErrExpiredOrRevoked = fmt.Errorf("%w: token expired or revoked", ErrExpired)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrForbidden)
	ErrAccountLocked      = fmt.Errorf("%w: account locked", ErrForbidden)
	ErrAccountDisabled    = fmt.Errorf("%w: account disabled", ErrForbidden)
)
