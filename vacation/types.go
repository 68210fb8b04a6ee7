/*
Package vacation provides the vacation request lifecycle engine.

PURPOSE:
  An employee (Requester) submits a calendar-date range; a Validator other
  than the requester approves or rejects it; both roles browse the history.
  This package holds the rules that decide whether a request may be created,
  whether it may change status and who may change it.

KEY CONCEPTS IN THIS FILE (types.go):
  - User:    identity + role, read from a Directory
  - Request: a vacation request record (plain value, never an active record)
  - Listing: a request joined with its owner, for display
  - Status:  Pending -> Approved | Rejected

STATE MACHINE:

    ┌─────────┐  Transition(Approved)  ┌──────────┐
    │ Pending │ ─────────────────────▶ │ Approved │
    └─────────┘                        └──────────┘
         │       Transition(Rejected)  ┌──────────┐
         └───────────────────────────▶ │ Rejected │
                                       └──────────┘

  Nothing moves back to Pending. By default the engine does not re-check the
  source state (see engine.go, WithStrictTransitions).

SEE ALSO:
  - engine.go: creation and transition rules
  - query.go:  ListMine / ListAll
  - store.go:  Directory and Store interfaces
*/
package vacation

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type RequestID string

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleRequester Role = "Requester"
	RoleValidator Role = "Validator"
)

func (r Role) Valid() bool { return r == RoleRequester || r == RoleValidator }

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Statuses lists every lifecycle state in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal reports whether s is a decision state.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// ParseStatus converts a wire value into a Status. It fails with ErrInvalidStatus.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// =============================================================================
// RECORDS
// =============================================================================

// User is created once by an admin or the seed command and never mutated here.
type User struct {
	ID        UserID
	Name      string
	Role      Role
	CreatedAt time.Time
}

// Request is a vacation request. Reason and Comments are empty when absent.
// ValidatorID is the actor of the last transition; empty while Pending.
type Request struct {
	ID          RequestID
	UserID      UserID
	Period      DateRange
	Reason      string
	Status      Status
	Comments    string
	ValidatorID UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Listing is a request joined with the identity of its owner.
type Listing struct {
	Request
	User User
}
