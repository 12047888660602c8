package domain

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationTicketStatus NotificationType = "ticket_status"
	NotificationNewComment   NotificationType = "new_comment"
	NotificationAssignment   NotificationType = "assignment"
	NotificationNewTicket    NotificationType = "new_ticket"
	NotificationGeneral      NotificationType = "general"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTicketStatus, NotificationNewComment, NotificationAssignment, NotificationNewTicket, NotificationGeneral:
		return true
	}
	return false
}

// Notification is a message delivered to one user. TicketID and CommentID are loose
// references; the rows they point to may be gone.
type Notification struct {
	ID        string
	UserID    string
	EventID   string
	Title     string
	Message   string
	Type      NotificationType
	IsRead    bool
	TicketID  *string
	CommentID *string
	CreatedAt time.Time
}
