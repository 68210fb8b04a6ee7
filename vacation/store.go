/*
store.go - Persistence interfaces consumed by the engine

KEY INTERFACES:
  Directory: read-only user lookup (the engine never writes users)
  Store:     vacation request collection keyed by id
  TxStore:   Store with an atomic scope; used to serialize check-then-write
  AuditLog:  optional append-only trail of who changed what

MISSING RECORDS:
  Lookups return (nil, nil) when nothing matches. Errors are reserved for
  storage failures, so callers can tell "absent" from "broken".

IMPLEMENTATIONS:
  - vacation/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go:   SQLite
*/
package vacation

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORY
// =============================================================================

type Directory interface {
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// ListUsers returns every user ordered by name.
	ListUsers(ctx context.Context) ([]User, error)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// ListFilter selects a slice of requests ordered by CreatedAt descending.
type ListFilter struct {
	Status *Status
	Offset int
	Limit  int
}

type Store interface {
	// InsertRequest persists a new request. The id must be unused.
	InsertRequest(ctx context.Context, r Request) error

	// UpdateRequest overwrites Status, Comments, ValidatorID and UpdatedAt.
	UpdateRequest(ctx context.Context, r Request) error

	// GetRequest returns nil, nil when the request does not exist.
	GetRequest(ctx context.Context, id RequestID) (*Request, error)

	// RequestsByUser returns the user's requests, newest first.
	// A nil status returns every status.
	RequestsByUser(ctx context.Context, userID UserID, status *Status) ([]Request, error)

	// ListRequests returns one page joined with owners, plus the total
	// number of requests matching the filter.
	ListRequests(ctx context.Context, filter ListFilter) ([]Listing, int, error)
}

// TxStore wraps Store with an atomic scope.
// If fn returns an error nothing fn wrote is kept.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG
// =============================================================================

type AuditAction string

const (
	AuditRequestCreated  AuditAction = "request_created"
	AuditRequestApproved AuditAction = "request_approved"
	AuditRequestRejected AuditAction = "request_rejected"
)

// AuditEntry records who did what to a request, and when.
type AuditEntry struct {
	RequestID  RequestID
	ActorID    UserID
	Action     AuditAction
	FromStatus Status
	ToStatus   Status
	Comments   string
	At         time.Time
}

// AuditLog is append-only. Stores (and their transactional views) that
// implement it get entries written in the same scope as the change.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	AuditTrail(ctx context.Context, requestID RequestID) ([]AuditEntry, error)
}
