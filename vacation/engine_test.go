package vacation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vacation-engine/vacation"
	"github.com/warp/vacation-engine/vacation/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	alice vacation.UserID = "alice"
	bob   vacation.UserID = "bob"
	carol vacation.UserID = "carol"
)

// fixedNow keeps every 2025-12 date in the future.
var fixedNow = time.Date(2025, time.November, 1, 10, 30, 0, 0, time.UTC)

type fixture struct {
	engine  *vacation.Engine
	queries *vacation.Queries
	store   *store.Memory
	now     time.Time
}

func newFixture(t *testing.T, opts ...vacation.Option) *fixture {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveUser(ctx, vacation.User{ID: alice, Name: "Alice", Role: vacation.RoleRequester}))
	require.NoError(t, mem.SaveUser(ctx, vacation.User{ID: bob, Name: "Bob", Role: vacation.RoleValidator}))
	require.NoError(t, mem.SaveUser(ctx, vacation.User{ID: carol, Name: "Carol", Role: vacation.RoleRequester}))

	f := &fixture{store: mem, now: fixedNow}
	base := []vacation.Option{
		vacation.WithClock(func() time.Time { return f.now }),
		vacation.WithLocation(time.UTC),
	}
	f.engine = vacation.NewEngine(mem, mem, append(base, opts...)...)
	f.queries = vacation.NewQueries(mem, mem)
	return f
}

func (f *fixture) create(t *testing.T, user vacation.UserID, start, end string) vacation.Request {
	t.Helper()
	r, err := f.engine.CreateRequest(context.Background(), user,
		vacation.MustParseDate(start), vacation.MustParseDate(end), "")
	require.NoError(t, err)
	return r
}

func strPtr(s string) *string { return &s }

// =============================================================================
// CREATION
// =============================================================================

func TestCreateRequest_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.engine.CreateRequest(ctx, alice,
		vacation.MustParseDate("2025-12-01"), vacation.MustParseDate("2025-12-05"), "family trip")
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, alice, r.UserID)
	assert.Equal(t, vacation.StatusPending, r.Status)
	assert.Equal(t, "family trip", r.Reason)
	assert.Equal(t, fixedNow, r.CreatedAt)
	assert.Equal(t, 5, r.Period.Days())

	stored, err := f.store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, r, *stored)
}

func TestCreateRequest_EndBeforeStart_NothingPersisted(t *testing.T) {
	// P1: end < start fails and writes nothing
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateRequest(ctx, alice,
		vacation.MustParseDate("2025-12-05"), vacation.MustParseDate("2025-12-01"), "")
	assert.ErrorIs(t, err, vacation.ErrEndBeforeStart)
	assert.Equal(t, vacation.KindInvalidDateRange, vacation.KindOf(err))

	mine, err := f.queries.ListMine(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCreateRequest_StartInPast(t *testing.T) {
	// P2: yesterday is rejected, today is accepted regardless of time of day
	f := newFixture(t)
	ctx := context.Background()
	today := f.engine.Today()

	_, err := f.engine.CreateRequest(ctx, alice, today.AddDays(-1), today.AddDays(3), "")
	assert.ErrorIs(t, err, vacation.ErrStartInPast)
	assert.Equal(t, vacation.KindInvalidDateRange, vacation.KindOf(err))

	f.now = time.Date(2025, time.November, 1, 23, 59, 0, 0, time.UTC)
	_, err = f.engine.CreateRequest(ctx, alice, today, today, "")
	assert.NoError(t, err)
}

func TestCreateRequest_PastStartCheckedBeforeOrder(t *testing.T) {
	f := newFixture(t)
	today := f.engine.Today()

	_, err := f.engine.CreateRequest(context.Background(), alice, today.AddDays(-2), today.AddDays(-5), "")
	assert.ErrorIs(t, err, vacation.ErrStartInPast)
}

func TestCreateRequest_UnknownUser(t *testing.T) {
	// P4: unknown user fails NotFound when dates are valid
	f := newFixture(t)

	_, err := f.engine.CreateRequest(context.Background(), "ghost",
		vacation.MustParseDate("2025-12-01"), vacation.MustParseDate("2025-12-05"), "")
	assert.ErrorIs(t, err, vacation.ErrUserNotFound)
	assert.True(t, vacation.IsNotFound(err))
}

func TestCreateRequest_Overlap(t *testing.T) {
	// P3: given pending [2025-12-10, 2025-12-15]
	tests := []struct {
		name       string
		start, end string
		conflict   bool
	}{
		{"extends past end", "2025-12-12", "2025-12-20", true},
		{"extends before start", "2025-12-05", "2025-12-10", true},
		{"inside", "2025-12-11", "2025-12-12", true},
		{"covers", "2025-12-01", "2025-12-31", true},
		{"same range", "2025-12-10", "2025-12-15", true},
		{"touches last day", "2025-12-15", "2025-12-15", true},
		{"day after", "2025-12-16", "2025-12-20", false},
		{"day before", "2025-12-01", "2025-12-09", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			existing := f.create(t, alice, "2025-12-10", "2025-12-15")

			_, err := f.engine.CreateRequest(context.Background(), alice,
				vacation.MustParseDate(tt.start), vacation.MustParseDate(tt.end), "")
			if !tt.conflict {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, vacation.ErrOverlap)
			assert.Equal(t, vacation.KindConflict, vacation.KindOf(err))
			var overlap *vacation.OverlapError
			require.ErrorAs(t, err, &overlap)
			assert.Equal(t, existing.ID, overlap.Existing.ID)
		})
	}
}

func TestCreateRequest_OverlapIsPerUser(t *testing.T) {
	f := newFixture(t)
	f.create(t, alice, "2025-12-10", "2025-12-15")

	_, err := f.engine.CreateRequest(context.Background(), carol,
		vacation.MustParseDate("2025-12-10"), vacation.MustParseDate("2025-12-15"), "")
	assert.NoError(t, err)
}

func TestCreateRequest_DecidedRequestsDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	approved := f.create(t, alice, "2025-12-10", "2025-12-15")
	_, err := f.engine.Transition(ctx, approved.ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)

	rejected := f.create(t, alice, "2025-12-10", "2025-12-15")
	_, err = f.engine.Transition(ctx, rejected.ID, vacation.StatusRejected, bob, strPtr("team offsite"))
	require.NoError(t, err)

	_, err = f.engine.CreateRequest(ctx, alice,
		vacation.MustParseDate("2025-12-12"), vacation.MustParseDate("2025-12-13"), "")
	assert.NoError(t, err)
}

func TestCreateRequest_RecordsAudit(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, alice, "2025-12-01", "2025-12-02")

	trail, err := f.queries.AuditTrail(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, vacation.AuditRequestCreated, trail[0].Action)
	assert.Equal(t, alice, trail[0].ActorID)
	assert.Equal(t, vacation.StatusPending, trail[0].ToStatus)
}

// =============================================================================
// TRANSITION
// =============================================================================

func TestTransition_Approve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2025-12-01", "2025-12-05")

	f.now = fixedNow.Add(time.Hour)
	updated, err := f.engine.Transition(ctx, r.ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)

	assert.Equal(t, vacation.StatusApproved, updated.Status)
	assert.Equal(t, bob, updated.ValidatorID)
	assert.Equal(t, fixedNow.Add(time.Hour), updated.UpdatedAt)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)

	listing, err := f.queries.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusApproved, listing.Status)
	assert.Equal(t, "Alice", listing.User.Name)
}

func TestTransition_CommentsKeptWhenNil(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2025-12-01", "2025-12-05")

	_, err := f.engine.Transition(ctx, r.ID, vacation.StatusRejected, bob, strPtr("busy week"))
	require.NoError(t, err)

	updated, err := f.engine.Transition(ctx, r.ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)
	assert.Equal(t, "busy week", updated.Comments)

	updated, err = f.engine.Transition(ctx, r.ID, vacation.StatusApproved, bob, strPtr(""))
	require.NoError(t, err)
	assert.Empty(t, updated.Comments)
}

func TestTransition_SelfApprovalForbidden(t *testing.T) {
	// P5: both targets are blocked, whatever the actor's role
	for _, target := range []vacation.Status{vacation.StatusApproved, vacation.StatusRejected} {
		t.Run(string(target), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			r := f.create(t, bob, "2025-12-01", "2025-12-05")

			_, err := f.engine.Transition(ctx, r.ID, target, bob, nil)
			assert.ErrorIs(t, err, vacation.ErrSelfApproval)
			assert.Equal(t, vacation.KindForbidden, vacation.KindOf(err))

			stored, err := f.store.GetRequest(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, vacation.StatusPending, stored.Status)
		})
	}
}

func TestTransition_UnknownRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Transition(context.Background(), "missing", vacation.StatusApproved, bob, nil)
	assert.ErrorIs(t, err, vacation.ErrRequestNotFound)
}

func TestTransition_PendingIsNotATarget(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, alice, "2025-12-01", "2025-12-05")

	_, err := f.engine.Transition(context.Background(), r.ID, vacation.StatusPending, bob, nil)
	assert.ErrorIs(t, err, vacation.ErrInvalidTarget)
	assert.Equal(t, vacation.KindInvalidArgument, vacation.KindOf(err))
}

func TestTransition_LooseContract(t *testing.T) {
	// A requester may decide someone else's request, and a decided request
	// may be decided again.
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2025-12-01", "2025-12-05")

	_, err := f.engine.Transition(ctx, r.ID, vacation.StatusApproved, carol, nil)
	require.NoError(t, err)

	updated, err := f.engine.Transition(ctx, r.ID, vacation.StatusRejected, bob, strPtr("changed my mind"))
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusRejected, updated.Status)
}

func TestTransition_Strict(t *testing.T) {
	f := newFixture(t, vacation.WithStrictTransitions())
	ctx := context.Background()
	r := f.create(t, alice, "2025-12-01", "2025-12-05")

	_, err := f.engine.Transition(ctx, r.ID, vacation.StatusApproved, carol, nil)
	assert.ErrorIs(t, err, vacation.ErrNotValidator)

	_, err = f.engine.Transition(ctx, r.ID, vacation.StatusApproved, "ghost", nil)
	assert.ErrorIs(t, err, vacation.ErrUserNotFound)

	_, err = f.engine.Transition(ctx, r.ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)

	_, err = f.engine.Transition(ctx, r.ID, vacation.StatusRejected, bob, nil)
	assert.ErrorIs(t, err, vacation.ErrNotPending)
	assert.Equal(t, vacation.KindConflict, vacation.KindOf(err))
}

func TestTransition_RecordsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, alice, "2025-12-01", "2025-12-05")

	_, err := f.engine.Transition(ctx, r.ID, vacation.StatusRejected, bob, strPtr("coverage"))
	require.NoError(t, err)

	trail, err := f.queries.AuditTrail(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, vacation.AuditRequestRejected, trail[1].Action)
	assert.Equal(t, vacation.StatusPending, trail[1].FromStatus)
	assert.Equal(t, vacation.StatusRejected, trail[1].ToStatus)
	assert.Equal(t, "coverage", trail[1].Comments)
	assert.Equal(t, bob, trail[1].ActorID)
}

// =============================================================================
// STORE FAILURES
// =============================================================================

// failingStore embeds only the Store interface, so it is neither a TxStore
// nor an AuditLog.
type failingStore struct {
	vacation.Store
	err error
}

func (s failingStore) RequestsByUser(context.Context, vacation.UserID, *vacation.Status) ([]vacation.Request, error) {
	return nil, s.err
}

func TestCreateRequest_StoreFailurePropagates(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveUser(ctx, vacation.User{ID: alice, Name: "Alice", Role: vacation.RoleRequester}))

	boom := errors.New("disk on fire")
	engine := vacation.NewEngine(mem, failingStore{Store: mem, err: boom},
		vacation.WithClock(func() time.Time { return fixedNow }))

	_, err := engine.CreateRequest(ctx, alice,
		vacation.MustParseDate("2025-12-01"), vacation.MustParseDate("2025-12-05"), "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, vacation.KindInternal, vacation.KindOf(err))
	assert.False(t, vacation.IsClientError(err))
}

// =============================================================================
// END TO END
// =============================================================================

func TestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A submits and gets a Pending request
	first := f.create(t, alice, "2025-12-01", "2025-12-05")
	assert.Equal(t, vacation.StatusPending, first.Status)

	// B approves without comments; re-fetch shows Approved
	_, err := f.engine.Transition(ctx, first.ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)
	got, err := f.queries.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, vacation.StatusApproved, got.Status)

	// An overlapping submission passes, the approved one is not scanned
	second := f.create(t, alice, "2025-12-03", "2025-12-04")
	assert.Equal(t, vacation.StatusPending, second.Status)

	// Overlapping the new pending one is a conflict
	_, err = f.engine.CreateRequest(ctx, alice,
		vacation.MustParseDate("2025-12-04"), vacation.MustParseDate("2025-12-08"), "")
	assert.ErrorIs(t, err, vacation.ErrOverlap)

	mine, err := f.queries.ListMine(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
