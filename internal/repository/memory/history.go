package memory

import (
	"context"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	return r.CreateBatch(ctx, []*domain.TicketHistory{history})
}

func (r *historyRepo) CreateBatch(ctx context.Context, entries []*domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, entry := range entries {
		entry.ID = newID()
		entry.CreatedAt = r.s.now()
		r.s.history[entry.ID] = record[domain.TicketHistory]{seq: r.s.next(), value: *entry}
	}
	return nil
}

func (r *historyRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := newestFirst(r.s.history, func(h domain.TicketHistory) bool { return h.TicketID == ticketID })
	// oldest first, like the SQL query
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
