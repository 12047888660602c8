package dto

import (
	"time"

	"github.com/Astro-67/bookissue-backend/internal/service"
)

// CommentRequest payload for create and update.
type CommentRequest struct {
	Message string `json:"message" validate:"required"`
}

// CommentResponse represents a thread message.
type CommentResponse struct {
	ID              string       `json:"id"`
	TicketID        string       `json:"ticket_id"`
	Author          *UserSummary `json:"author"`
	AuthorName      string       `json:"author_name"`
	AuthorRoleLabel string       `json:"author_role"`
	Message         string       `json:"message"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewCommentResponse maps a comment view.
func NewCommentResponse(v *service.CommentView) CommentResponse {
	resp := CommentResponse{
		ID:        v.ID,
		TicketID:  v.TicketID,
		Author:    NewUserSummary(v.Author),
		Message:   v.Message,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	if v.Author != nil {
		resp.AuthorName = v.Author.FullName()
		resp.AuthorRoleLabel = v.Author.Role.Label()
	}
	return resp
}

// NewCommentResponses maps a thread.
func NewCommentResponses(views []service.CommentView) []CommentResponse {
	items := make([]CommentResponse, 0, len(views))
	for i := range views {
		items = append(items, NewCommentResponse(&views[i]))
	}
	return items
}
