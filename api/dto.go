/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the vacation domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

VALIDATION:
  Request types carry go-playground/validator tags. Field names in
  validation errors are the json names (see errors.go).

COMPATIBILITY:
  Older clients send validatorId in camelCase; both spellings are accepted
  and the snake_case one wins. They also send user ids as JSON numbers, so
  id fields decode from either a string or a number (FlexibleID).

SEE ALSO:
  - handlers.go: Uses these types
  - vacation/types.go: Domain types
*/
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// FlexibleID is a user id sent either as a JSON string or a JSON number.
// A number keeps its literal text: 7 becomes "7".
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

// CreateVacationRequest is the body of POST /api/vacations.
type CreateVacationRequest struct {
	UserID    FlexibleID `json:"user_id" validate:"required"`
	StartDate string     `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string     `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string     `json:"reason" validate:"max=500"`
}

// UpdateStatusRequest is the body of PATCH /api/vacations/{id}.
type UpdateStatusRequest struct {
	Status           string     `json:"status" validate:"required,oneof=Pending Approved Rejected"`
	ValidatorID      FlexibleID `json:"validator_id" validate:"required_without=ValidatorIDCamel"`
	ValidatorIDCamel FlexibleID `json:"validatorId"`
	Comments         *string    `json:"comments" validate:"omitempty,max=1000"`
}

func (r UpdateStatusRequest) validator() string {
	if r.ValidatorID != "" {
		return string(r.ValidatorID)
	}
	return string(r.ValidatorIDCamel)
}

// ListVacationsQuery is the query string of GET /api/vacations.
type ListVacationsQuery struct {
	Page   int    `json:"page" validate:"min=1"`
	Limit  int    `json:"limit" validate:"min=1,max=100"`
	Status string `json:"status" validate:"omitempty,oneof=Pending Approved Rejected"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// UserDTO represents a directory entry.
type UserDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// VacationDTO represents a vacation request in API responses.
type VacationDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Days        int       `json:"days"`
	Reason      string    `json:"reason,omitempty"`
	Status      string    `json:"status"`
	Comments    string    `json:"comments,omitempty"`
	ValidatorID string    `json:"validator_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	User        *UserDTO  `json:"user,omitempty"`
}

// PaginationDTO mirrors vacation.Pagination with camelCase keys.
type PaginationDTO struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// ListVacationsResponse is returned by GET /api/vacations.
type ListVacationsResponse struct {
	Vacations  []VacationDTO `json:"vacations"`
	Pagination PaginationDTO `json:"pagination"`
}

// ListUsersResponse is returned by GET /api/users.
type ListUsersResponse struct {
	Success bool      `json:"success"`
	Data    []UserDTO `json:"data"`
}

// UpdateStatusResponse is returned by PATCH /api/vacations/{id}.
type UpdateStatusResponse struct {
	Success  bool        `json:"success"`
	Vacation VacationDTO `json:"vacation"`
}

// AuditEntryDTO is one line of a request's history.
type AuditEntryDTO struct {
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Comments   string    `json:"comments,omitempty"`
	At         time.Time `json:"at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u vacation.User) UserDTO {
	return UserDTO{ID: string(u.ID), Name: u.Name, Role: string(u.Role)}
}

func toVacationDTO(r vacation.Request) VacationDTO {
	return VacationDTO{
		ID:          string(r.ID),
		UserID:      string(r.UserID),
		StartDate:   r.Period.Start.String(),
		EndDate:     r.Period.End.String(),
		Days:        r.Period.Days(),
		Reason:      r.Reason,
		Status:      string(r.Status),
		Comments:    r.Comments,
		ValidatorID: string(r.ValidatorID),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toListingDTO(l vacation.Listing) VacationDTO {
	dto := toVacationDTO(l.Request)
	if l.User.ID != "" {
		u := toUserDTO(l.User)
		dto.User = &u
	}
	return dto
}

func toVacationDTOs(rs []vacation.Request) []VacationDTO {
	dtos := make([]VacationDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toVacationDTO(r)
	}
	return dtos
}

func toAuditDTOs(entries []vacation.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ActorID:    string(e.ActorID),
			Action:     string(e.Action),
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			Comments:   e.Comments,
			At:         e.At,
		}
	}
	return dtos
}
