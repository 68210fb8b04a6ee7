// Package store provides in-memory implementations of the vacation storage interfaces.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements vacation.Directory, vacation.TxStore and vacation.AuditLog.
type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	users    map[vacation.UserID]vacation.User
	requests map[vacation.RequestID]storedRequest
	audit    []vacation.AuditEntry
	seq      int64
}

// storedRequest keeps insertion order as the tie-breaker for equal CreatedAt.
type storedRequest struct {
	vacation.Request
	seq int64
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		users:    make(map[vacation.UserID]vacation.User),
		requests: make(map[vacation.RequestID]storedRequest),
	}}
}

// SaveUser inserts or replaces a user.
func (m *Memory) SaveUser(_ context.Context, u vacation.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = u
	return nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id vacation.UserID) (*vacation.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getUser(id), nil
}

func (m *Memory) ListUsers(_ context.Context) ([]vacation.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]vacation.User, 0, len(m.state.users))
	for _, u := range m.state.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name == users[j].Name {
			return users[i].ID < users[j].ID
		}
		return users[i].Name < users[j].Name
	})
	return users, nil
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) InsertRequest(_ context.Context, r vacation.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insert(r)
}

func (m *Memory) UpdateRequest(_ context.Context, r vacation.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.update(r)
}

func (m *Memory) GetRequest(_ context.Context, id vacation.RequestID) (*vacation.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.get(id), nil
}

func (m *Memory) RequestsByUser(_ context.Context, userID vacation.UserID, status *vacation.Status) ([]vacation.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.byUser(userID, status), nil
}

func (m *Memory) ListRequests(_ context.Context, filter vacation.ListFilter) ([]vacation.Listing, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items, total := m.state.list(filter)
	return items, total, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry vacation.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.audit = append(m.state.audit, entry)
	return nil
}

func (m *Memory) AuditTrail(_ context.Context, id vacation.RequestID) ([]vacation.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.trail(id), nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx runs fn under the write lock. For the memory store this is
// simulated with a snapshot + restore on error.
func (m *Memory) WithTx(_ context.Context, fn func(vacation.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txMemoryView{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// txMemoryView works on the locked state directly; it must not take the lock.
type txMemoryView struct {
	state *memoryState
}

func (tv *txMemoryView) InsertRequest(_ context.Context, r vacation.Request) error {
	return tv.state.insert(r)
}

func (tv *txMemoryView) UpdateRequest(_ context.Context, r vacation.Request) error {
	return tv.state.update(r)
}

func (tv *txMemoryView) GetRequest(_ context.Context, id vacation.RequestID) (*vacation.Request, error) {
	return tv.state.get(id), nil
}

func (tv *txMemoryView) RequestsByUser(_ context.Context, userID vacation.UserID, status *vacation.Status) ([]vacation.Request, error) {
	return tv.state.byUser(userID, status), nil
}

func (tv *txMemoryView) ListRequests(_ context.Context, filter vacation.ListFilter) ([]vacation.Listing, int, error) {
	items, total := tv.state.list(filter)
	return items, total, nil
}

func (tv *txMemoryView) AppendAudit(_ context.Context, entry vacation.AuditEntry) error {
	tv.state.audit = append(tv.state.audit, entry)
	return nil
}

func (tv *txMemoryView) AuditTrail(_ context.Context, id vacation.RequestID) ([]vacation.AuditEntry, error) {
	return tv.state.trail(id), nil
}

// =============================================================================
// STATE (callers hold the lock)
// =============================================================================

func (s *memoryState) getUser(id vacation.UserID) *vacation.User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return &u
}

func (s *memoryState) insert(r vacation.Request) error {
	if _, exists := s.requests[r.ID]; exists {
		return fmt.Errorf("duplicate request id %s", r.ID)
	}
	s.seq++
	s.requests[r.ID] = storedRequest{Request: r, seq: s.seq}
	return nil
}

func (s *memoryState) update(r vacation.Request) error {
	stored, ok := s.requests[r.ID]
	if !ok {
		return vacation.ErrRequestNotFound
	}
	stored.Status = r.Status
	stored.Comments = r.Comments
	stored.ValidatorID = r.ValidatorID
	stored.UpdatedAt = r.UpdatedAt
	s.requests[r.ID] = stored
	return nil
}

func (s *memoryState) get(id vacation.RequestID) *vacation.Request {
	stored, ok := s.requests[id]
	if !ok {
		return nil
	}
	r := stored.Request
	return &r
}

func (s *memoryState) sorted(keep func(vacation.Request) bool) []storedRequest {
	var out []storedRequest
	for _, r := range s.requests {
		if keep(r.Request) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

func (s *memoryState) byUser(userID vacation.UserID, status *vacation.Status) []vacation.Request {
	matches := s.sorted(func(r vacation.Request) bool {
		return r.UserID == userID && (status == nil || r.Status == *status)
	})
	result := make([]vacation.Request, len(matches))
	for i, m := range matches {
		result[i] = m.Request
	}
	return result
}

func (s *memoryState) list(filter vacation.ListFilter) ([]vacation.Listing, int) {
	matches := s.sorted(func(r vacation.Request) bool {
		return filter.Status == nil || r.Status == *filter.Status
	})
	total := len(matches)

	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && filter.Limit < total-start {
		end = start + filter.Limit
	}

	items := make([]vacation.Listing, 0, end-start)
	for _, m := range matches[start:end] {
		listing := vacation.Listing{Request: m.Request}
		if u := s.getUser(m.UserID); u != nil {
			listing.User = *u
		}
		items = append(items, listing)
	}
	return items, total
}

func (s *memoryState) trail(id vacation.RequestID) []vacation.AuditEntry {
	var entries []vacation.AuditEntry
	for _, e := range s.audit {
		if e.RequestID == id {
			entries = append(entries, e)
		}
	}
	return entries
}

func (s *memoryState) clone() memoryState {
	c := memoryState{
		users:    make(map[vacation.UserID]vacation.User, len(s.users)),
		requests: make(map[vacation.RequestID]storedRequest, len(s.requests)),
		audit:    append([]vacation.AuditEntry(nil), s.audit...),
		seq:      s.seq,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}
