package memory

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) CreateBatch(ctx context.Context, notifications []*domain.Notification) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delivered := make(map[[2]string]bool, len(r.s.notifications))
	for _, rec := range r.s.notifications {
		delivered[[2]string{rec.value.EventID, rec.value.UserID}] = true
	}

	inserted := 0
	for _, n := range notifications {
		key := [2]string{n.EventID, n.UserID}
		if delivered[key] {
			continue
		}
		delivered[key] = true
		n.ID = newID()
		n.IsRead = false
		n.CreatedAt = r.s.now()
		stored := *n
		stored.TicketID = cloneString(n.TicketID)
		stored.CommentID = cloneString(n.CommentID)
		r.s.notifications[n.ID] = record[domain.Notification]{seq: r.s.next(), value: stored}
		inserted++
	}
	return inserted, nil
}

func (r *notificationRepo) GetByID(ctx context.Context, userID, id string) (*domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.notifications[id]
	if !ok || rec.value.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	n := rec.value
	return &n, nil
}

func (r *notificationRepo) List(ctx context.Context, filter repository.NotificationFilter) ([]domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := newestFirst(r.s.notifications, func(n domain.Notification) bool {
		if n.UserID != filter.UserID {
			return false
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			return false
		}
		return filter.Type == nil || n.Type == *filter.Type
	})
	return page(items, filter.Limit, filter.Offset, 20), nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, rec := range r.s.notifications {
		if rec.value.UserID == userID && !rec.value.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var only map[string]bool
	if len(ids) > 0 {
		only = make(map[string]bool, len(ids))
		for _, id := range ids {
			only[id] = true
		}
	}

	var updated int64
	for id, rec := range r.s.notifications {
		if rec.value.UserID != userID || rec.value.IsRead {
			continue
		}
		if only != nil && !only[id] {
			continue
		}
		rec.value.IsRead = true
		r.s.notifications[id] = rec
		updated++
	}
	return updated, nil
}
