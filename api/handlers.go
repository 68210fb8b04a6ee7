/*
handlers.go - HTTP API handlers for the vacation request lifecycle

PURPOSE:
  Exposes the vacation engine via REST API. Handles HTTP request/response,
  JSON serialization and input validation, and delegates every rule to the
  vacation package.

ENDPOINTS:
  Vacations:
    POST   /api/vacations              Submit a request (201)
    GET    /api/vacations/me?userId=   Requests of one user, newest first
    GET    /api/vacations              Paginated list (page, limit, status)
    GET    /api/vacations/{id}         One request with its owner
    PATCH  /api/vacations/{id}         Approve or reject
    GET    /api/vacations/{id}/audit   Status history

  Users:
    GET    /api/users                  Directory listing

  Ops:
    GET    /healthz                    Liveness + store ping
    GET    /metrics                    Prometheus

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags, see dto.go)
  3. Call the engine or the query facade
  4. Serialize response
  5. Map errors by kind (see errors.go)

SECURITY NOTE:
  Identity is taken from the request (user_id, validator_id) as sent by the
  client. There is no authentication layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error kind to HTTP status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/vacation-engine/vacation"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *vacation.Engine
	Queries *vacation.Queries
	Users   vacation.Directory
	Metrics *Metrics

	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a handler over an engine and its read side.
func NewHandler(engine *vacation.Engine, queries *vacation.Queries, users vacation.Directory, logger ...*zap.Logger) *Handler {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Handler{
		Engine:   engine,
		Queries:  queries,
		Users:    users,
		Metrics:  NewMetrics(),
		validate: newValidator(),
		logger:   l.Named("api.handler"),
	}
}

// =============================================================================
// VACATION HANDLERS
// =============================================================================

// CreateVacation submits a new request for user_id.
func (h *Handler) CreateVacation(w http.ResponseWriter, r *http.Request) {
	var req CreateVacationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, errors.New("malformed JSON body"))
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	start, err := vacation.ParseDate(req.StartDate)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	end, err := vacation.ParseDate(req.EndDate)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.Engine.CreateRequest(r.Context(), vacation.UserID(req.UserID), start, end, req.Reason)
	if err != nil {
		h.countRefusal(err)
		h.writeError(w, r, err)
		return
	}

	h.Metrics.lifecycle("created")
	writeJSON(w, http.StatusCreated, toVacationDTO(created))
}

// ListMyVacations returns every request of the user named by ?userId=.
func (h *Handler) ListMyVacations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: "User ID is required",
			Errors:  []FieldError{{Field: "userId", Message: "User ID is required"}},
		})
		return
	}

	requests, err := h.Queries.ListMine(r.Context(), vacation.UserID(userID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toVacationDTOs(requests))
}

// ListVacations returns one page of every request, with owners.
func (h *Handler) ListVacations(w http.ResponseWriter, r *http.Request) {
	q := ListVacationsQuery{Page: 1, Limit: vacation.DefaultPageSize, Status: r.URL.Query().Get("status")}

	var fieldErrs []FieldError
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: "page", Message: "Page must be a positive integer"})
		}
		q.Page = n
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: "limit", Message: "Limit must be between 1 and 100"})
		}
		q.Limit = n
	}
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidation,
			Message: fieldErrs[0].Message,
			Errors:  fieldErrs,
		})
		return
	}
	if err := h.validate.Struct(q); err != nil {
		writeValidationError(w, err)
		return
	}

	pq := vacation.PageQuery{Page: q.Page, Limit: q.Limit}
	if q.Status != "" {
		status := vacation.Status(q.Status)
		pq.Status = &status
	}

	page, err := h.Queries.ListAll(r.Context(), pq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := ListVacationsResponse{
		Vacations: make([]VacationDTO, len(page.Items)),
		Pagination: PaginationDTO{
			CurrentPage:  page.Pagination.CurrentPage,
			TotalPages:   page.Pagination.TotalPages,
			TotalItems:   page.Pagination.TotalItems,
			ItemsPerPage: page.Pagination.ItemsPerPage,
		},
	}
	for i, item := range page.Items {
		resp.Vacations[i] = toListingDTO(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetVacation returns a single request with its owner.
func (h *Handler) GetVacation(w http.ResponseWriter, r *http.Request) {
	id := vacation.RequestID(chi.URLParam(r, "id"))

	listing, err := h.Queries.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListingDTO(listing))
}

// UpdateVacationStatus approves or rejects a request.
func (h *Handler) UpdateVacationStatus(w http.ResponseWriter, r *http.Request) {
	id := vacation.RequestID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, errors.New("malformed JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := h.Engine.Transition(r.Context(), id, vacation.Status(req.Status),
		vacation.UserID(req.validator()), req.Comments)
	if err != nil {
		h.countRefusal(err)
		h.writeError(w, r, err)
		return
	}

	h.Metrics.lifecycle(strings.ToLower(string(updated.Status)))
	writeJSON(w, http.StatusOK, UpdateStatusResponse{Success: true, Vacation: toVacationDTO(updated)})
}

// GetVacationAudit returns the status history of a request.
func (h *Handler) GetVacationAudit(w http.ResponseWriter, r *http.Request) {
	id := vacation.RequestID(chi.URLParam(r, "id"))

	entries, err := h.Queries.AuditTrail(r.Context(), id)
	if err != nil {
		if errors.Is(err, vacation.ErrStoreRequired) {
			writeJSON(w, http.StatusNotImplemented, ErrorResponse{
				Code:    "NOT_IMPLEMENTED",
				Message: "audit trail is not kept by this store",
			})
			return
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns the directory.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, ListUsersResponse{Success: true, Data: dtos})
}

// =============================================================================
// OPS
// =============================================================================

// Healthz reports liveness, and store reachability when the store can tell.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Users.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) countRefusal(err error) {
	if vacation.IsClientError(err) {
		h.Metrics.lifecycle("refused")
	}
}
