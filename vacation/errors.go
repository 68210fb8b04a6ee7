/*
errors.go - Failure taxonomy of the lifecycle engine

ERROR KINDS:
  InvalidDateRange  start in the past, end before start          -> 400
  InvalidArgument   malformed page, limit or status              -> 400
  NotFound          unknown user or vacation request             -> 404
  Conflict          overlapping pending request, not pending     -> 409
  Forbidden         self-approval, missing validator role        -> 403

  Anything else (storage, connectivity) is an internal failure. The engine
  never retries; the boundary decides.

USAGE:
  if errors.Is(err, vacation.ErrOverlap) { ... }

  var overlap *vacation.OverlapError
  if errors.As(err, &overlap) {
      log.Printf("clashes with %s", overlap.Existing.ID)
  }

  switch vacation.KindOf(err) { ... }
*/
package vacation

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidDateRange Kind = "INVALID_DATE_RANGE"
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindForbidden        Kind = "FORBIDDEN"
	KindInternal         Kind = "INTERNAL"
)

// Error is a classified engine failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrStartInPast    = newError(KindInvalidDateRange, "start date cannot be in the past")
	ErrEndBeforeStart = newError(KindInvalidDateRange, "end date must be after start date")

	ErrInvalidPage   = newError(KindInvalidArgument, "page must be a positive integer")
	ErrInvalidLimit  = newError(KindInvalidArgument, "limit must be between 1 and 100")
	ErrInvalidStatus = newError(KindInvalidArgument, "status must be one of: Pending, Approved, Rejected")
	ErrInvalidTarget = newError(KindInvalidArgument, "status must be Approved or Rejected")

	ErrUserNotFound    = newError(KindNotFound, "user not found")
	ErrRequestNotFound = newError(KindNotFound, "vacation request not found")

	ErrOverlap    = newError(KindConflict, "overlapping pending request")
	ErrNotPending = newError(KindConflict, "request is not pending")

	ErrSelfApproval = newError(KindForbidden, "validators cannot approve or reject their own request")
	ErrNotValidator = newError(KindForbidden, "validator role required")

	// ErrStoreRequired is returned when an operation needs an optional store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// OverlapError names the pending request that blocked a creation.
type OverlapError struct {
	Requested DateRange
	Existing  Request
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s: %s clashes with request %s %s",
		ErrOverlap.Message, e.Requested, e.Existing.ID, e.Existing.Period)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound returns true if err names a missing user or request.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsClientError returns true if err is caused by caller input rather than the store.
func IsClientError(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}
