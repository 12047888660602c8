package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventCommentCreated      EventType = "comment_created"
	EventUserCreated         EventType = "user_created"
)

// AllEventTypes lists every event a subscriber can observe.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventCommentCreated,
	EventUserCreated,
}

// Event is implemented by every domain event. The set of implementations is closed.
type Event interface {
	Meta() Metadata
	Type() EventType
}

// Metadata identifies an event occurrence. ID doubles as the idempotency key.
type Metadata struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id,omitempty"`
}

// Meta returns the metadata block.
func (m Metadata) Meta() Metadata { return m }

// NewMetadata stamps a fresh event identity.
func NewMetadata(actorID string) Metadata {
	return Metadata{ID: uuid.NewString(), OccurredAt: time.Now().UTC(), ActorID: actorID}
}

// TicketSnapshot is the slice of ticket state the fan-out rules read.
type TicketSnapshot struct {
	ID          string              `json:"id"`
	ExternalKey string              `json:"external_key"`
	Title       string              `json:"title"`
	Status      domain.TicketStatus `json:"status"`
	CreatedByID string              `json:"created_by_id"`
	AssigneeID  *string             `json:"assignee_id,omitempty"`
}

// SnapshotTicket copies the relevant fields of t.
func SnapshotTicket(t *domain.Ticket) TicketSnapshot {
	snap := TicketSnapshot{
		ID:          t.ID,
		ExternalKey: t.ExternalKey,
		Title:       t.Title,
		Status:      t.Status,
		CreatedByID: t.CreatedByID,
	}
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		snap.AssigneeID = &id
	}
	return snap
}

// Label is the short ticket reference used in notification titles.
func (t TicketSnapshot) Label() string {
	if t.ExternalKey != "" {
		return t.ExternalKey
	}
	return "#" + t.ID
}

// UserSnapshot is the slice of user state the fan-out rules read.
type UserSnapshot struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// SnapshotUser copies the relevant fields of u.
func SnapshotUser(u *domain.User) UserSnapshot {
	return UserSnapshot{ID: u.ID, Name: u.FullName(), Role: u.Role}
}

// TicketCreated fires after a ticket is stored. TriagePool holds the ids of every active user
// able to manage tickets at creation time.
type TicketCreated struct {
	Metadata
	Ticket     TicketSnapshot `json:"ticket"`
	Creator    UserSnapshot   `json:"creator"`
	TriagePool []string       `json:"triage_pool"`
}

// Type implements Event.
func (TicketCreated) Type() EventType { return EventTicketCreated }

// TicketStatusChanged fires after an effective status change.
type TicketStatusChanged struct {
	Metadata
	Ticket    TicketSnapshot      `json:"ticket"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// Type implements Event.
func (TicketStatusChanged) Type() EventType { return EventTicketStatusChanged }

// TicketAssigned fires after an effective assignee change, including unassignment.
type TicketAssigned struct {
	Metadata
	Ticket        TicketSnapshot `json:"ticket"`
	Creator       UserSnapshot   `json:"creator"`
	OldAssigneeID *string        `json:"old_assignee_id,omitempty"`
	NewAssigneeID *string        `json:"new_assignee_id,omitempty"`
}

// Type implements Event.
func (TicketAssigned) Type() EventType { return EventTicketAssigned }

// CommentCreated fires after a comment is stored.
type CommentCreated struct {
	Metadata
	Ticket    TicketSnapshot `json:"ticket"`
	CommentID string         `json:"comment_id"`
	Author    UserSnapshot   `json:"author"`
}

// Type implements Event.
func (CommentCreated) Type() EventType { return EventCommentCreated }

// UserCreated fires after an account is created.
type UserCreated struct {
	Metadata
	User UserSnapshot `json:"user"`
}

// Type implements Event.
func (UserCreated) Type() EventType { return EventUserCreated }

// Envelope is the wire form used by the task queue and the broker.
type Envelope struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps an event in an Envelope and marshals it.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Type(), err)
	}
	meta := event.Meta()
	return json.Marshal(Envelope{
		ID:         meta.ID,
		Type:       event.Type(),
		OccurredAt: meta.OccurredAt,
		Payload:    payload,
	})
}

// Decode reverses Encode.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	var event Event
	switch env.Type {
	case EventTicketCreated:
		var e TicketCreated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		event = e
	case EventTicketStatusChanged:
		var e TicketStatusChanged
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		event = e
	case EventTicketAssigned:
		var e TicketAssigned
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		event = e
	case EventCommentCreated:
		var e CommentCreated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		event = e
	case EventUserCreated:
		var e UserCreated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, err
		}
		event = e
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	return event, nil
}
