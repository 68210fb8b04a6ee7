package vacation

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PageQuery selects one page of ListAll. A nil Status lists every status.
type PageQuery struct {
	Page   int
	Limit  int
	Status *Status
}

type Pagination struct {
	CurrentPage  int
	TotalPages   int
	TotalItems   int
	ItemsPerPage int
}

// NewPagination computes the pagination block; TotalPages rounds up.
func NewPagination(totalItems, page, limit int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (totalItems + limit - 1) / limit
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   totalItems,
		ItemsPerPage: limit,
	}
}

type Page struct {
	Items      []Listing
	Pagination Pagination
}

// Queries is the read side. It never writes.
type Queries struct {
	users    Directory
	requests Store
	logger   *zap.Logger
}

func NewQueries(users Directory, requests Store, logger ...*zap.Logger) *Queries {
	l := zap.L().Named("vacation.queries")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("vacation.queries")
	}
	return &Queries{users: users, requests: requests, logger: l}
}

// ListMine returns every request of userID, newest first. A user without
// requests gets an empty, non-nil slice.
func (q *Queries) ListMine(ctx context.Context, userID UserID) ([]Request, error) {
	user, err := q.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	requests, err := q.requests.RequestsByUser(ctx, userID, nil)
	if err != nil {
		q.logger.Error("list user requests failed", zap.String("user_id", string(userID)), zap.Error(err))
		return nil, fmt.Errorf("list requests of %s: %w", userID, err)
	}
	if requests == nil {
		requests = []Request{}
	}
	return requests, nil
}

// ListAll returns one page of requests joined with their owners, newest
// first. A page past the end has no items but a valid pagination block.
func (q *Queries) ListAll(ctx context.Context, pq PageQuery) (Page, error) {
	if pq.Page < 1 {
		return Page{}, ErrInvalidPage
	}
	if pq.Limit < 1 || pq.Limit > MaxPageSize {
		return Page{}, ErrInvalidLimit
	}
	if pq.Status != nil && !pq.Status.Valid() {
		return Page{}, ErrInvalidStatus
	}

	items, total, err := q.requests.ListRequests(ctx, ListFilter{
		Status: pq.Status,
		Offset: pageOffset(pq.Page, pq.Limit),
		Limit:  pq.Limit,
	})
	if err != nil {
		q.logger.Error("list requests failed", zap.Int("page", pq.Page), zap.Error(err))
		return Page{}, fmt.Errorf("list requests: %w", err)
	}
	if items == nil {
		items = []Listing{}
	}

	return Page{
		Items:      items,
		Pagination: NewPagination(total, pq.Page, pq.Limit),
	}, nil
}

// pageOffset is the number of rows before page. Pages whose offset does not
// fit an int saturate at math.MaxInt, which every store treats as past the end.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// Get returns a single request with its owner.
func (q *Queries) Get(ctx context.Context, id RequestID) (Listing, error) {
	req, err := q.requests.GetRequest(ctx, id)
	if err != nil {
		return Listing{}, fmt.Errorf("load request %s: %w", id, err)
	}
	if req == nil {
		return Listing{}, ErrRequestNotFound
	}

	listing := Listing{Request: *req}
	user, err := q.users.GetUser(ctx, req.UserID)
	if err != nil {
		return Listing{}, fmt.Errorf("lookup user %s: %w", req.UserID, err)
	}
	if user != nil {
		listing.User = *user
	}
	return listing, nil
}

// AuditTrail returns the change history of a request, oldest first.
func (q *Queries) AuditTrail(ctx context.Context, id RequestID) ([]AuditEntry, error) {
	log, ok := q.requests.(AuditLog)
	if !ok {
		return nil, ErrStoreRequired
	}
	req, err := q.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request %s: %w", id, err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	entries, err := log.AuditTrail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load audit trail %s: %w", id, err)
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
