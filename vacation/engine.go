/*
engine.go - Request creation and status transitions

CREATION (CreateRequest), first failing check wins:
  1. start before today          -> ErrStartInPast
  2. end before start            -> ErrEndBeforeStart
  3. requester unknown           -> ErrUserNotFound
  4. overlaps a PENDING request  -> *OverlapError (ErrOverlap)
  then the request is persisted as Pending.

  Approved and Rejected requests never block a new submission.

TRANSITION (Transition):
  1. target not Approved/Rejected -> ErrInvalidTarget
  2. request unknown              -> ErrRequestNotFound
  3. validator owns the request   -> ErrSelfApproval
  then status, comments and validator are written in one update.

  The default contract does not check the current status nor the
  validator's role: a decided request can be decided again. Use
  WithStrictTransitions to reject both.

ATOMICITY:
  When the Store is a TxStore, the overlap scan and the insert (and the
  read-modify-write of a transition) run in one WithTx scope. Otherwise two
  concurrent creations for the same requester may both pass the scan.

TIME:
  "Today" is the engine clock's calendar date in the engine location.
  Inject both with WithClock / WithLocation.
*/
package vacation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine applies the lifecycle rules over a Directory and a Store.
type Engine struct {
	users    Directory
	requests Store
	now      func() time.Time
	loc      *time.Location
	newID    func() RequestID
	strict   bool
	logger   *zap.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithStrictTransitions only lets Pending requests move, and only by an
// existing user holding the Validator role.
func WithStrictTransitions() Option {
	return func(e *Engine) { e.strict = true }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.Named("vacation.engine")
		}
	}
}

// WithIDGenerator replaces the UUID generator for request ids.
func WithIDGenerator(fn func() RequestID) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(users Directory, requests Store, opts ...Option) *Engine {
	e := &Engine{
		users:    users,
		requests: requests,
		now:      time.Now,
		loc:      time.Local,
		newID:    func() RequestID { return RequestID(uuid.NewString()) },
		logger:   zap.L().Named("vacation.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current calendar date as the engine sees it.
func (e *Engine) Today() Date {
	return DateOf(e.now().In(e.loc))
}

// =============================================================================
// CREATION
// =============================================================================

// CreateRequest validates and persists a new Pending request.
func (e *Engine) CreateRequest(ctx context.Context, requesterID UserID, start, end Date, reason string) (Request, error) {
	period := DateRange{Start: start, End: end}
	e.logger.Debug("create request",
		zap.String("user_id", string(requesterID)),
		zap.Stringer("period", period),
	)

	if err := e.CheckDates(start, end); err != nil {
		e.logger.Warn("create request rejected", zap.String("user_id", string(requesterID)), zap.Error(err))
		return Request{}, err
	}

	user, err := e.users.GetUser(ctx, requesterID)
	if err != nil {
		e.logger.Error("create request user lookup failed", zap.Error(err))
		return Request{}, fmt.Errorf("lookup user %s: %w", requesterID, err)
	}
	if user == nil {
		e.logger.Warn("create request unknown user", zap.String("user_id", string(requesterID)))
		return Request{}, ErrUserNotFound
	}

	now := e.now().UTC()
	req := Request{
		ID:        e.newID(),
		UserID:    requesterID,
		Period:    period,
		Reason:    reason,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = e.atomically(ctx, func(s Store) error {
		if err := checkOverlap(ctx, s, requesterID, period); err != nil {
			return err
		}
		if err := s.InsertRequest(ctx, req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return record(ctx, s, AuditEntry{
			RequestID: req.ID,
			ActorID:   requesterID,
			Action:    AuditRequestCreated,
			ToStatus:  StatusPending,
			At:        now,
		})
	})
	if err != nil {
		if IsClientError(err) {
			e.logger.Warn("create request rejected", zap.String("user_id", string(requesterID)), zap.Error(err))
		} else {
			e.logger.Error("create request persist failed", zap.Error(err))
		}
		return Request{}, err
	}

	e.logger.Info("create request success",
		zap.String("request_id", string(req.ID)),
		zap.String("user_id", string(requesterID)),
	)
	return req, nil
}

// CheckDates applies the date rules of CreateRequest without touching storage.
func (e *Engine) CheckDates(start, end Date) error {
	if start.Before(e.Today()) {
		return ErrStartInPast
	}
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	return nil
}

func checkOverlap(ctx context.Context, s Store, userID UserID, period DateRange) error {
	pending := StatusPending
	existing, err := s.RequestsByUser(ctx, userID, &pending)
	if err != nil {
		return fmt.Errorf("load pending requests: %w", err)
	}
	for _, ex := range existing {
		if period.Overlaps(ex.Period) {
			return &OverlapError{Requested: period, Existing: ex}
		}
	}
	return nil
}

// =============================================================================
// TRANSITION
// =============================================================================

// Transition moves a request to Approved or Rejected on behalf of validatorID.
// A nil comments keeps the stored comments.
func (e *Engine) Transition(ctx context.Context, requestID RequestID, target Status, validatorID UserID, comments *string) (Request, error) {
	e.logger.Debug("transition request",
		zap.String("request_id", string(requestID)),
		zap.String("validator_id", string(validatorID)),
		zap.String("target_status", string(target)),
	)

	if !target.Terminal() {
		return Request{}, ErrInvalidTarget
	}

	// The validator is resolved up front so that no directory read happens
	// inside the store's atomic scope.
	var validator *User
	if e.strict {
		v, err := e.users.GetUser(ctx, validatorID)
		if err != nil {
			return Request{}, fmt.Errorf("lookup validator %s: %w", validatorID, err)
		}
		validator = v
	}

	var updated Request
	err := e.atomically(ctx, func(s Store) error {
		current, err := s.GetRequest(ctx, requestID)
		if err != nil {
			return fmt.Errorf("load request %s: %w", requestID, err)
		}
		if current == nil {
			return ErrRequestNotFound
		}
		if current.UserID == validatorID {
			return ErrSelfApproval
		}
		if e.strict {
			switch {
			case validator == nil:
				return ErrUserNotFound
			case validator.Role != RoleValidator:
				return ErrNotValidator
			case current.Status != StatusPending:
				return ErrNotPending
			}
		}

		from := current.Status
		updated = *current
		updated.Status = target
		updated.ValidatorID = validatorID
		updated.UpdatedAt = e.now().UTC()
		if comments != nil {
			updated.Comments = *comments
		}

		if err := s.UpdateRequest(ctx, updated); err != nil {
			return fmt.Errorf("update request %s: %w", requestID, err)
		}
		return record(ctx, s, AuditEntry{
			RequestID:  requestID,
			ActorID:    validatorID,
			Action:     auditActionFor(target),
			FromStatus: from,
			ToStatus:   target,
			Comments:   updated.Comments,
			At:         updated.UpdatedAt,
		})
	})
	if err != nil {
		if IsClientError(err) {
			e.logger.Warn("transition request rejected",
				zap.String("request_id", string(requestID)),
				zap.String("validator_id", string(validatorID)),
				zap.Error(err),
			)
		} else {
			e.logger.Error("transition request persist failed",
				zap.String("request_id", string(requestID)),
				zap.Error(err),
			)
		}
		return Request{}, err
	}

	e.logger.Info("transition request success",
		zap.String("request_id", string(requestID)),
		zap.String("status", string(target)),
	)
	return updated, nil
}

func auditActionFor(target Status) AuditAction {
	if target == StatusApproved {
		return AuditRequestApproved
	}
	return AuditRequestRejected
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Engine) atomically(ctx context.Context, fn func(Store) error) error {
	if tx, ok := e.requests.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(e.requests)
}

// record appends to the audit log when the store in scope keeps one.
func record(ctx context.Context, s Store, entry AuditEntry) error {
	log, ok := s.(AuditLog)
	if !ok {
		return nil
	}
	if err := log.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}
