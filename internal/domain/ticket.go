package domain

import (
	"time"

	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
)

// TicketStatuses lists the valid states.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Label returns the display form of a status.
func (s TicketStatus) Label() string {
	switch s {
	case TicketStatusOpen:
		return "Open"
	case TicketStatusInProgress:
		return "In Progress"
	case TicketStatusResolved:
		return "Resolved"
	}
	return string(s)
}

// RESOLVED is not terminal; it may be reopened.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusInProgress: {TicketStatusOpen, TicketStatusResolved},
	TicketStatusResolved:   {TicketStatusOpen, TicketStatusInProgress},
}

// CanTransition reports whether current -> next is legal. Self transitions always are.
func CanTransition(current, next TicketStatus) bool {
	if !next.Valid() {
		return false
	}
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an INVALID_TRANSITION error when current -> next is not allowed.
func ValidateTransition(current, next TicketStatus) error {
	if !CanTransition(current, next) {
		return apperrors.NewInvalidTransition(string(current), string(next))
	}
	return nil
}

// Ticket is a reported book issue.
type Ticket struct {
	ID          string
	ExternalKey string
	Title       string
	Description string
	Status      TicketStatus
	CreatedByID string
	AssigneeID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// VisibleTo reports whether the user may view the ticket and its comments.
func (t *Ticket) VisibleTo(user *User) bool {
	if user == nil {
		return false
	}
	if t.CreatedByID == user.ID || t.IsAssignedTo(user.ID) {
		return true
	}
	caps := user.Capabilities()
	return caps.ManageTickets || caps.ViewAllTickets
}

// UpdatableBy reports whether the user may change status and content.
func (t *Ticket) UpdatableBy(user *User) bool {
	if user == nil {
		return false
	}
	return t.CreatedByID == user.ID || user.Capabilities().ManageTickets
}

// TicketStats summarises a set of tickets.
type TicketStats struct {
	Total      int64 `json:"total_tickets"`
	Open       int64 `json:"open_tickets"`
	InProgress int64 `json:"in_progress_tickets"`
	Resolved   int64 `json:"resolved_tickets"`
	Assigned   int64 `json:"assigned_tickets"`
	Unassigned int64 `json:"unassigned_tickets"`
}
