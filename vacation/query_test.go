package vacation_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vacation-engine/vacation"
)

// seed inserts n disjoint pending requests for alice, one day apart in
// CreatedAt, so the newest is the last inserted.
func seed(t *testing.T, f *fixture, n int) []vacation.Request {
	t.Helper()
	out := make([]vacation.Request, n)
	start := vacation.MustParseDate("2026-01-01")
	for i := 0; i < n; i++ {
		f.now = fixedNow.Add(time.Duration(i) * time.Minute)
		day := start.AddDays(i * 2)
		r, err := f.engine.CreateRequest(context.Background(), alice, day, day, fmt.Sprintf("r%d", i))
		require.NoError(t, err)
		out[i] = r
	}
	return out
}

func TestListMine_EmptyIsNotAnError(t *testing.T) {
	// P6
	f := newFixture(t)

	mine, err := f.queries.ListMine(context.Background(), carol)
	require.NoError(t, err)
	assert.NotNil(t, mine)
	assert.Empty(t, mine)
}

func TestListMine_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.queries.ListMine(context.Background(), "ghost")
	assert.ErrorIs(t, err, vacation.ErrUserNotFound)
}

func TestListMine_NewestFirstAndOwnOnly(t *testing.T) {
	f := newFixture(t)
	created := seed(t, f, 3)
	f.create(t, carol, "2026-03-01", "2026-03-02")

	mine, err := f.queries.ListMine(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, created[2].ID, mine[0].ID)
	assert.Equal(t, created[0].ID, mine[2].ID)
}

func TestListAll_PaginationMath(t *testing.T) {
	// P7: 23 items, limit 10
	f := newFixture(t)
	created := seed(t, f, 23)
	ctx := context.Background()

	page1, err := f.queries.ListAll(ctx, vacation.PageQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, vacation.Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 23, ItemsPerPage: 10}, page1.Pagination)
	require.Len(t, page1.Items, 10)
	assert.Equal(t, created[22].ID, page1.Items[0].ID)
	assert.Equal(t, "Alice", page1.Items[0].User.Name)

	page3, err := f.queries.ListAll(ctx, vacation.PageQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page3.Pagination.CurrentPage)
	require.Len(t, page3.Items, 3)
	assert.Equal(t, created[0].ID, page3.Items[2].ID)
}

func TestListAll_PastLastPage(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 4)

	page, err := f.queries.ListAll(context.Background(), vacation.PageQuery{Page: 9, Limit: 3})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, vacation.Pagination{CurrentPage: 9, TotalPages: 2, TotalItems: 4, ItemsPerPage: 3}, page.Pagination)
}

func TestListAll_PageFarPastTheEnd(t *testing.T) {
	f := newFixture(t)
	seed(t, f, 2)

	// WHEN: the offset of the page does not fit an int
	page, err := f.queries.ListAll(context.Background(), vacation.PageQuery{Page: math.MaxInt, Limit: 2})

	// THEN: the page is simply empty
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, vacation.Pagination{CurrentPage: math.MaxInt, TotalPages: 1, TotalItems: 2, ItemsPerPage: 2}, page.Pagination)
}

func TestListAll_StatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := seed(t, f, 5)
	_, err := f.engine.Transition(ctx, created[1].ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)
	_, err = f.engine.Transition(ctx, created[3].ID, vacation.StatusApproved, bob, nil)
	require.NoError(t, err)

	approved := vacation.StatusApproved
	page, err := f.queries.ListAll(ctx, vacation.PageQuery{Page: 1, Limit: 10, Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.TotalItems)
	require.Len(t, page.Items, 2)
	assert.Equal(t, created[3].ID, page.Items[0].ID)
	assert.Equal(t, created[1].ID, page.Items[1].ID)
}

func TestListAll_InvalidArguments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bogus := vacation.Status("Cancelled")

	tests := []struct {
		name  string
		query vacation.PageQuery
		want  error
	}{
		{"page zero", vacation.PageQuery{Page: 0, Limit: 10}, vacation.ErrInvalidPage},
		{"negative page", vacation.PageQuery{Page: -1, Limit: 10}, vacation.ErrInvalidPage},
		{"limit zero", vacation.PageQuery{Page: 1, Limit: 0}, vacation.ErrInvalidLimit},
		{"limit too large", vacation.PageQuery{Page: 1, Limit: 101}, vacation.ErrInvalidLimit},
		{"unknown status", vacation.PageQuery{Page: 1, Limit: 10, Status: &bogus}, vacation.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.queries.ListAll(ctx, tt.query)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, vacation.KindInvalidArgument, vacation.KindOf(err))
		})
	}
}

func TestGet_Unknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.queries.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, vacation.ErrRequestNotFound)

	_, err = f.queries.AuditTrail(context.Background(), "missing")
	assert.ErrorIs(t, err, vacation.ErrRequestNotFound)
}
