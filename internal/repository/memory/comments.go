package memory

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

type commentRepo struct{ s *Store }

func (r *commentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[comment.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	comment.ID = newID()
	now := r.s.now()
	comment.CreatedAt, comment.UpdatedAt = now, now
	r.s.comments[comment.ID] = record[domain.Comment]{seq: r.s.next(), value: *comment}
	return nil
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	comment := rec.value
	return &comment, nil
}

func (r *commentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return newestFirst(r.s.comments, func(c domain.Comment) bool { return c.TicketID == ticketID }), nil
}

func (r *commentRepo) Update(ctx context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.comments[comment.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	rec.value.Message = comment.Message
	rec.value.UpdatedAt = r.s.now()
	comment.UpdatedAt = rec.value.UpdatedAt
	r.s.comments[comment.ID] = rec
	return nil
}

func (r *commentRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.comments, id)
	return nil
}

func (r *commentRepo) CountByTickets(ctx context.Context, ticketIDs []string) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int, len(ticketIDs))
	for _, id := range ticketIDs {
		counts[id] = 0
	}
	for _, rec := range r.s.comments {
		if _, ok := counts[rec.value.TicketID]; ok {
			counts[rec.value.TicketID]++
		}
	}
	return counts, nil
}
