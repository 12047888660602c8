package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, rec := range r.s.tickets {
		if rec.value.ExternalKey == ticket.ExternalKey {
			return fmt.Errorf("%w: tickets_external_key_key", repository.ErrDuplicate)
		}
	}
	ticket.ID = newID()
	now := r.s.now()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	stored := *ticket
	stored.AssigneeID = cloneString(ticket.AssigneeID)
	r.s.tickets[ticket.ID] = record[domain.Ticket]{seq: r.s.next(), value: stored}
	return nil
}

func (r *ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(rec.value), nil
}

func (r *ticketRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, rec := range r.s.tickets {
		if rec.value.ExternalKey == key {
			return copyTicket(rec.value), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func copyTicket(t domain.Ticket) *domain.Ticket {
	t.AssigneeID = cloneString(t.AssigneeID)
	return &t
}

func matchTicket(filter repository.TicketFilter) func(domain.Ticket) bool {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	return func(t domain.Ticket) bool {
		if filter.CreatedByID != nil && t.CreatedByID != *filter.CreatedByID {
			return false
		}
		if filter.AssigneeID != nil && !t.IsAssignedTo(*filter.AssigneeID) {
			return false
		}
		if filter.Unassigned && t.AssigneeID != nil {
			return false
		}
		if filter.ParticipantID != nil && t.CreatedByID != *filter.ParticipantID && !t.IsAssignedTo(*filter.ParticipantID) {
			return false
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if s == t.Status {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		if search != "" {
			return strings.Contains(strings.ToLower(t.Title), search) ||
				strings.Contains(strings.ToLower(t.Description), search)
		}
		return true
	}
}

func (r *ticketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tickets := page(newestFirst(r.s.tickets, matchTicket(filter)), filter.Limit, filter.Offset, 20)
	out := make([]domain.Ticket, len(tickets))
	for i, t := range tickets {
		out[i] = *copyTicket(t)
	}
	return out, nil
}

func (r *ticketRepo) Stats(ctx context.Context, filter repository.TicketFilter) (domain.TicketStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stats domain.TicketStats
	keep := matchTicket(filter)
	for _, rec := range r.s.tickets {
		t := rec.value
		if !keep(t) {
			continue
		}
		stats.Total++
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		case domain.TicketStatusResolved:
			stats.Resolved++
		}
		if t.AssigneeID != nil {
			stats.Assigned++
		} else {
			stats.Unassigned++
		}
	}
	return stats, nil
}

func (r *ticketRepo) UpdateContent(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	rec.value.Title = ticket.Title
	rec.value.Description = ticket.Description
	rec.value.UpdatedAt = r.s.now()
	ticket.UpdatedAt = rec.value.UpdatedAt
	r.s.tickets[ticket.ID] = rec
	return nil
}

func (r *ticketRepo) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.TicketStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.tickets[id]
	if !ok || rec.value.Status != expected {
		return false, nil
	}
	rec.value.Status = next
	rec.value.UpdatedAt = r.s.now()
	r.s.tickets[id] = rec
	return true, nil
}

func (r *ticketRepo) CompareAndSetAssignee(ctx context.Context, id string, expected, next *string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.tickets[id]
	if !ok || !sameString(rec.value.AssigneeID, expected) {
		return false, nil
	}
	rec.value.AssigneeID = cloneString(next)
	rec.value.UpdatedAt = r.s.now()
	r.s.tickets[id] = rec
	return true, nil
}

func (r *ticketRepo) UnassignUser(ctx context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var ids []string
	for id, rec := range r.s.tickets {
		if !rec.value.IsAssignedTo(userID) {
			continue
		}
		rec.value.AssigneeID = nil
		rec.value.UpdatedAt = r.s.now()
		r.s.tickets[id] = rec
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *ticketRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	r.s.deleteTicketLocked(id)
	return nil
}

// deleteTicketLocked removes a ticket with its comments and history. Notifications keep their
// loose reference.
func (s *Store) deleteTicketLocked(id string) {
	delete(s.tickets, id)
	for commentID, rec := range s.comments {
		if rec.value.TicketID == id {
			delete(s.comments, commentID)
		}
	}
	for historyID, rec := range s.history {
		if rec.value.TicketID == id {
			delete(s.history, historyID)
		}
	}
}
