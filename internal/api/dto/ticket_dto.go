package dto

import (
	"time"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/service"
)

// CreateTicketRequest payload. Trimmed length rules are enforced by the service.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
}

// UpdateTicketRequest is a partial update. Setting unassign clears the assignee.
type UpdateTicketRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	AssignedTo  *string `json:"assigned_to" validate:"omitempty,uuid"`
	Unassign    bool    `json:"unassign"`
}

// AssignTicketRequest payload. A null or missing assigned_to unassigns.
type AssignTicketRequest struct {
	AssignedTo *string `json:"assigned_to" validate:"omitempty,uuid"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TicketResponse is the ticket representation.
type TicketResponse struct {
	ID            string              `json:"id"`
	ExternalKey   string              `json:"external_key"`
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Status        domain.TicketStatus `json:"status"`
	StatusLabel   string              `json:"status_display"`
	CreatedBy     *UserSummary        `json:"created_by"`
	AssignedTo    *UserSummary        `json:"assigned_to"`
	CommentsCount int                 `json:"comments_count"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID string                  `json:"changed_by_id,omitempty"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewTicketResponse maps a ticket view.
func NewTicketResponse(v *service.TicketView) TicketResponse {
	resp := TicketResponse{
		ID:            v.ID,
		ExternalKey:   v.ExternalKey,
		Title:         v.Title,
		Description:   v.Description,
		Status:        v.Status,
		StatusLabel:   v.Status.Label(),
		CreatedBy:     NewUserSummary(v.Creator),
		AssignedTo:    NewUserSummary(v.Assignee),
		CommentsCount: v.CommentsCount,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
	if resp.AssignedTo == nil && v.AssigneeID != nil {
		resp.AssignedTo = &UserSummary{ID: *v.AssigneeID}
	}
	return resp
}

// NewTicketResponses maps a list of views.
func NewTicketResponses(views []service.TicketView) []TicketResponse {
	items := make([]TicketResponse, 0, len(views))
	for i := range views {
		items = append(items, NewTicketResponse(&views[i]))
	}
	return items
}

// NewTicketHistoryResponses maps audit entries.
func NewTicketHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	items := make([]TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, TicketHistoryResponse{
			ID:          entry.ID,
			ChangeType:  entry.ChangeType,
			ChangedByID: entry.ChangedByID,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return items
}
