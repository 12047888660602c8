package dto

import (
	"time"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// MarkReadRequest marks the listed ids, or everything when all is set.
type MarkReadRequest struct {
	IDs []string `json:"notification_ids" validate:"omitempty,dive,uuid"`
	All bool     `json:"mark_all"`
}

// NotificationResponse is one inbox entry.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Type      domain.NotificationType `json:"notification_type"`
	IsRead    bool                    `json:"is_read"`
	TicketID  *string                 `json:"ticket_id"`
	CommentID *string                 `json:"comment_id"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		TicketID:  n.TicketID,
		CommentID: n.CommentID,
		CreatedAt: n.CreatedAt,
	}
}

// NewNotificationResponses maps a list.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for i := range items {
		out = append(out, NewNotificationResponse(&items[i]))
	}
	return out
}
