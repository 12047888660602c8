// Package fanout turns domain events into notification drafts. It performs no I/O.
package fanout

import (
	"fmt"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
)

// Draft is a notification waiting to be persisted.
type Draft struct {
	EventID     string
	RecipientID string
	Title       string
	Message     string
	Type        domain.NotificationType
	TicketID    *string
	CommentID   *string
}

// Notification materialises the draft for storage.
func (d Draft) Notification() *domain.Notification {
	return &domain.Notification{
		UserID:    d.RecipientID,
		EventID:   d.EventID,
		Title:     d.Title,
		Message:   d.Message,
		Type:      d.Type,
		TicketID:  d.TicketID,
		CommentID: d.CommentID,
	}
}

// ComputeRecipients returns one draft per distinct recipient of event, in a stable order.
func ComputeRecipients(event events.Event) []Draft {
	var drafts []Draft
	switch e := event.(type) {
	case events.TicketCreated:
		drafts = ticketCreated(e)
	case *events.TicketCreated:
		drafts = ticketCreated(*e)
	case events.TicketStatusChanged:
		drafts = statusChanged(e)
	case *events.TicketStatusChanged:
		drafts = statusChanged(*e)
	case events.TicketAssigned:
		drafts = ticketAssigned(e)
	case *events.TicketAssigned:
		drafts = ticketAssigned(*e)
	case events.CommentCreated:
		drafts = commentCreated(e)
	case *events.CommentCreated:
		drafts = commentCreated(*e)
	case events.UserCreated:
		drafts = userCreated(e)
	case *events.UserCreated:
		drafts = userCreated(*e)
	}
	return dedupe(drafts)
}

func ticketCreated(e events.TicketCreated) []Draft {
	ticketID := e.Ticket.ID
	drafts := make([]Draft, 0, len(e.TriagePool))
	for _, userID := range e.TriagePool {
		// a manager opening a ticket is not told about it
		if userID == "" || userID == e.Ticket.CreatedByID {
			continue
		}
		drafts = append(drafts, Draft{
			EventID:     e.ID,
			RecipientID: userID,
			Title:       fmt.Sprintf("New Ticket %s", e.Ticket.Label()),
			Message:     fmt.Sprintf("New ticket '%s' has been submitted by %s.", e.Ticket.Title, e.Creator.Name),
			Type:        domain.NotificationNewTicket,
			TicketID:    &ticketID,
		})
	}
	return drafts
}

func statusChanged(e events.TicketStatusChanged) []Draft {
	if e.OldStatus == e.NewStatus || !e.OldStatus.Valid() || !e.NewStatus.Valid() {
		return nil
	}
	ticketID := e.Ticket.ID
	title := fmt.Sprintf("Ticket %s %s", e.Ticket.Label(), statusHeadline(e.NewStatus))
	message := fmt.Sprintf("Ticket '%s' status changed from %s to %s.", e.Ticket.Title, e.OldStatus, e.NewStatus)

	recipients := []string{e.Ticket.CreatedByID}
	if a := e.Ticket.AssigneeID; a != nil && *a != e.Ticket.CreatedByID {
		recipients = append(recipients, *a)
	}
	drafts := make([]Draft, 0, len(recipients))
	for _, userID := range recipients {
		drafts = append(drafts, Draft{
			EventID:     e.ID,
			RecipientID: userID,
			Title:       title,
			Message:     message,
			Type:        domain.NotificationTicketStatus,
			TicketID:    &ticketID,
		})
	}
	return drafts
}

func statusHeadline(s domain.TicketStatus) string {
	switch s {
	case domain.TicketStatusResolved:
		return "Resolved"
	case domain.TicketStatusInProgress:
		return "In Progress"
	default:
		return "Status Updated"
	}
}

func ticketAssigned(e events.TicketAssigned) []Draft {
	if e.NewAssigneeID == nil || *e.NewAssigneeID == "" {
		return nil
	}
	if e.OldAssigneeID != nil && *e.OldAssigneeID == *e.NewAssigneeID {
		return nil
	}
	ticketID := e.Ticket.ID
	return []Draft{{
		EventID:     e.ID,
		RecipientID: *e.NewAssigneeID,
		Title:       fmt.Sprintf("Ticket %s Assigned to You", e.Ticket.Label()),
		Message:     fmt.Sprintf("You have been assigned to ticket '%s' created by %s.", e.Ticket.Title, e.Creator.Name),
		Type:        domain.NotificationAssignment,
		TicketID:    &ticketID,
	}}
}

func commentCreated(e events.CommentCreated) []Draft {
	var recipients []string
	if e.Author.ID != e.Ticket.CreatedByID {
		recipients = append(recipients, e.Ticket.CreatedByID)
	}
	if a := e.Ticket.AssigneeID; a != nil && *a != e.Author.ID && *a != e.Ticket.CreatedByID {
		recipients = append(recipients, *a)
	}

	var title, message string
	if e.Author.Role.Elevated() {
		title = fmt.Sprintf("%s Replied to Ticket %s", e.Author.Role.Label(), e.Ticket.Label())
		message = fmt.Sprintf("%s (%s) has replied to ticket '%s'.", e.Author.Name, e.Author.Role.Label(), e.Ticket.Title)
	} else {
		title = fmt.Sprintf("New Comment on Ticket %s", e.Ticket.Label())
		message = fmt.Sprintf("%s has added a comment to ticket '%s'.", e.Author.Name, e.Ticket.Title)
	}

	ticketID, commentID := e.Ticket.ID, e.CommentID
	drafts := make([]Draft, 0, len(recipients))
	for _, userID := range recipients {
		drafts = append(drafts, Draft{
			EventID:     e.ID,
			RecipientID: userID,
			Title:       title,
			Message:     message,
			Type:        domain.NotificationNewComment,
			TicketID:    &ticketID,
			CommentID:   &commentID,
		})
	}
	return drafts
}

func userCreated(e events.UserCreated) []Draft {
	if e.User.ID == "" {
		return nil
	}
	return []Draft{{
		EventID:     e.ID,
		RecipientID: e.User.ID,
		Title:       "Welcome to Book Issue Tracker",
		Message:     "Your account has been created successfully. You can now access the system.",
		Type:        domain.NotificationGeneral,
	}}
}

func dedupe(drafts []Draft) []Draft {
	if len(drafts) < 2 {
		return drafts
	}
	seen := make(map[string]struct{}, len(drafts))
	out := drafts[:0]
	for _, d := range drafts {
		if _, ok := seen[d.RecipientID]; ok {
			continue
		}
		seen[d.RecipientID] = struct{}{}
		out = append(out, d)
	}
	return out
}
