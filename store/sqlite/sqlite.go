/*
Package sqlite provides a SQLite-backed implementation of the vacation storage interfaces.

PURPOSE:
  Implements every persistence interface the engine consumes using SQLite.
  The SQL is kept portable; moving to PostgreSQL is mostly placeholder syntax.

INTERFACES IMPLEMENTED:
  vacation.Directory: user lookup
  vacation.TxStore:   vacation request persistence with an atomic scope
  vacation.AuditLog:  append-only status history

KEY TABLES:
  users:             identity + role (Requester | Validator)
  vacation_requests: one row per request, FK to users for owner and validator
  audit_log:         who changed which request, from what to what

INDEXES:
  - idx_vacation_requests_user_id:        ListMine and the overlap scan
  - idx_vacation_requests_status:         status filter
  - idx_vacation_requests_status_created: filtered, ordered pages (hot path)
  - idx_audit_log_request:                AuditTrail

TIMESTAMPS:
  Stored as fixed-width UTC text (timestampLayout) so that string order is
  time order. Calendar dates are stored as YYYY-MM-DD.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single pooled connection so
  that ":memory:" databases are shared by every call. WithTx holds the write
  lock for its whole scope, which serializes the engine's check-then-write.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/vacations.db")
  if err != nil {
      return err
  }
  defer store.Close()

  engine := vacation.NewEngine(store, store)

MIGRATION:
  Schema is auto-migrated on New() with CREATE ... IF NOT EXISTS.

SEE ALSO:
  - vacation/store.go: Interface definitions
  - vacation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/vacation-engine/vacation"
)

// timestampLayout sorts lexicographically in time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// ErrDuplicateID is returned when a request id is inserted twice.
var ErrDuplicateID = errors.New("duplicate request id")

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('Requester', 'Validator')),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vacation_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'Pending'
			CHECK (status IN ('Pending', 'Approved', 'Rejected')),
		comments TEXT,
		-- not a foreign key: the loose contract accepts validators outside
		-- the directory
		validator_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_date >= start_date)
	);

	CREATE INDEX IF NOT EXISTS idx_vacation_requests_user_id
		ON vacation_requests(user_id);
	CREATE INDEX IF NOT EXISTS idx_vacation_requests_status
		ON vacation_requests(status);

	-- Filtered pages ordered by creation time
	CREATE INDEX IF NOT EXISTS idx_vacation_requests_status_created
		ON vacation_requests(status, created_at DESC);

	-- Append-only status history
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL REFERENCES vacation_requests(id),
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		from_status TEXT,
		to_status TEXT NOT NULL,
		comments TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_request
		ON audit_log(request_id, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DIRECTORY (vacation.Directory interface)
// =============================================================================

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u vacation.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (id, name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role
	`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Name, u.Role, formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID. Returns nil, nil when absent.
func (s *Store) GetUser(ctx context.Context, id vacation.UserID) (*vacation.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, role, created_at FROM users WHERE id = ?`

	var u vacation.User
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]vacation.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, role, created_at FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []vacation.User{}
	for rows.Next() {
		var u vacation.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// REQUEST STORE (vacation.Store interface)
// =============================================================================

const requestColumns = `
	r.id, r.user_id, r.start_date, r.end_date, r.reason, r.status,
	r.comments, r.validator_id, r.created_at, r.updated_at`

// InsertRequest persists a new request.
func (s *Store) InsertRequest(ctx context.Context, r vacation.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRequest(ctx, s.db, r)
}

// UpdateRequest overwrites the mutable fields of a request.
func (s *Store) UpdateRequest(ctx context.Context, r vacation.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRequest(ctx, s.db, r)
}

// GetRequest retrieves a request by ID. Returns nil, nil when absent.
func (s *Store) GetRequest(ctx context.Context, id vacation.RequestID) (*vacation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

// RequestsByUser returns a user's requests, newest first.
func (s *Store) RequestsByUser(ctx context.Context, userID vacation.UserID, status *vacation.Status) ([]vacation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return requestsByUser(ctx, s.db, userID, status)
}

// ListRequests returns one page of requests joined with their owners.
func (s *Store) ListRequests(ctx context.Context, filter vacation.ListFilter) ([]vacation.Listing, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRequests(ctx, s.db, filter)
}

func insertRequest(ctx context.Context, q querier, r vacation.Request) error {
	query := `
		INSERT INTO vacation_requests
		(id, user_id, start_date, end_date, reason, status, comments, validator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		r.ID,
		r.UserID,
		r.Period.Start.String(),
		r.Period.End.String(),
		nullString(r.Reason),
		r.Status,
		nullString(r.Comments),
		nullString(string(r.ValidatorID)),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return translateError(err, "failed to insert request")
	}
	return nil
}

func updateRequest(ctx context.Context, q querier, r vacation.Request) error {
	query := `
		UPDATE vacation_requests
		SET status = ?, comments = ?, validator_id = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query,
		r.Status,
		nullString(r.Comments),
		nullString(string(r.ValidatorID)),
		formatTime(r.UpdatedAt),
		r.ID,
	)
	if err != nil {
		return translateError(err, "failed to update request")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n == 0 {
		return vacation.ErrRequestNotFound
	}
	return nil
}

func getRequest(ctx context.Context, q querier, id vacation.RequestID) (*vacation.Request, error) {
	query := `SELECT` + requestColumns + ` FROM vacation_requests r WHERE r.id = ?`

	r, err := scanRequest(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func requestsByUser(ctx context.Context, q querier, userID vacation.UserID, status *vacation.Status) ([]vacation.Request, error) {
	query := `SELECT` + requestColumns + ` FROM vacation_requests r WHERE r.user_id = ?`
	args := []any{userID}
	if status != nil {
		query += ` AND r.status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY r.created_at DESC, r.rowid DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	requests := []vacation.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func listRequests(ctx context.Context, q querier, filter vacation.ListFilter) ([]vacation.Listing, int, error) {
	where := ""
	var args []any
	if filter.Status != nil {
		where = ` WHERE r.status = ?`
		args = append(args, *filter.Status)
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM vacation_requests r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	query := `SELECT` + requestColumns + `, u.id, u.name, u.role, u.created_at
		FROM vacation_requests r
		JOIN users u ON u.id = r.user_id` + where + `
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ? OFFSET ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	items := []vacation.Listing{}
	for rows.Next() {
		var l vacation.Listing
		var userCreatedAt string
		dest, raw := requestDest(&l.Request)
		dest = append(dest, &l.User.ID, &l.User.Name, &l.User.Role, &userCreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan listing: %w", err)
		}
		if err := raw.into(&l.Request); err != nil {
			return nil, 0, err
		}
		if l.User.CreatedAt, err = parseTime(userCreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

// =============================================================================
// AUDIT LOG (vacation.AuditLog interface)
// =============================================================================

// AppendAudit records a status change.
func (s *Store) AppendAudit(ctx context.Context, entry vacation.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, entry)
}

// AuditTrail returns the history of a request, oldest first.
func (s *Store) AuditTrail(ctx context.Context, id vacation.RequestID) ([]vacation.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auditTrail(ctx, s.db, id)
}

func appendAudit(ctx context.Context, q querier, e vacation.AuditEntry) error {
	query := `
		INSERT INTO audit_log (request_id, actor_id, action, from_status, to_status, comments, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		e.RequestID, e.ActorID, e.Action,
		nullString(string(e.FromStatus)), e.ToStatus,
		nullString(e.Comments), formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func auditTrail(ctx context.Context, q querier, id vacation.RequestID) ([]vacation.AuditEntry, error) {
	query := `
		SELECT request_id, actor_id, action, from_status, to_status, comments, at
		FROM audit_log WHERE request_id = ? ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []vacation.AuditEntry{}
	for rows.Next() {
		var e vacation.AuditEntry
		var from, comments sql.NullString
		var at string
		if err := rows.Scan(&e.RequestID, &e.ActorID, &e.Action, &from, &e.ToStatus, &comments, &at); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.FromStatus = vacation.Status(from.String)
		e.Comments = comments.String
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (vacation.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store vacation.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads and writes through the open transaction only. The parent
// lock is already held, so it must never call back into Store.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) InsertRequest(ctx context.Context, r vacation.Request) error {
	return insertRequest(ctx, ts.tx, r)
}

func (ts *txStore) UpdateRequest(ctx context.Context, r vacation.Request) error {
	return updateRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id vacation.RequestID) (*vacation.Request, error) {
	return getRequest(ctx, ts.tx, id)
}

func (ts *txStore) RequestsByUser(ctx context.Context, userID vacation.UserID, status *vacation.Status) ([]vacation.Request, error) {
	return requestsByUser(ctx, ts.tx, userID, status)
}

func (ts *txStore) ListRequests(ctx context.Context, filter vacation.ListFilter) ([]vacation.Listing, int, error) {
	return listRequests(ctx, ts.tx, filter)
}

func (ts *txStore) AppendAudit(ctx context.Context, entry vacation.AuditEntry) error {
	return appendAudit(ctx, ts.tx, entry)
}

func (ts *txStore) AuditTrail(ctx context.Context, id vacation.RequestID) ([]vacation.AuditEntry, error) {
	return auditTrail(ctx, ts.tx, id)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"audit_log", "vacation_requests", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// requestScan holds the textual and nullable columns of a request row
// until they are converted into the domain value.
type requestScan struct {
	start, end, createdAt, updatedAt string
	reason, comments, validator      sql.NullString
}

// requestDest returns scan targets in requestColumns order.
func requestDest(r *vacation.Request) ([]any, *requestScan) {
	raw := &requestScan{}
	return []any{
		&r.ID, &r.UserID, &raw.start, &raw.end, &raw.reason, &r.Status,
		&raw.comments, &raw.validator, &raw.createdAt, &raw.updatedAt,
	}, raw
}

func (raw *requestScan) into(r *vacation.Request) error {
	var err error
	if r.Period.Start, err = vacation.ParseDate(raw.start); err != nil {
		return fmt.Errorf("bad start_date %q: %w", raw.start, err)
	}
	if r.Period.End, err = vacation.ParseDate(raw.end); err != nil {
		return fmt.Errorf("bad end_date %q: %w", raw.end, err)
	}
	r.Reason = raw.reason.String
	r.Comments = raw.comments.String
	r.ValidatorID = vacation.UserID(raw.validator.String)
	if r.CreatedAt, err = parseTime(raw.createdAt); err != nil {
		return err
	}
	r.UpdatedAt, err = parseTime(raw.updatedAt)
	return err
}

func scanRequest(row rowScanner) (vacation.Request, error) {
	var r vacation.Request
	dest, raw := requestDest(&r)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return r, err
		}
		return r, fmt.Errorf("failed to scan request: %w", err)
	}
	return r, raw.into(&r)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// translateError maps constraint violations onto domain errors.
func translateError(err error, msg string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return ErrDuplicateID
		case sqlite3.ErrConstraintForeignKey:
			return vacation.ErrUserNotFound
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
