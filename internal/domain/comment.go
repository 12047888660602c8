package domain

import (
	"strings"
	"time"
)

// Comment captures a message in a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EditableBy reports whether the user may edit or delete the comment.
func (c *Comment) EditableBy(user *User) bool {
	if user == nil {
		return false
	}
	return c.AuthorID == user.ID || user.Capabilities().ManageTickets
}

// NormalizeCommentMessage trims the message and reports whether anything is left.
func NormalizeCommentMessage(message string) (string, bool) {
	trimmed := strings.TrimSpace(message)
	return trimmed, trimmed != ""
}
