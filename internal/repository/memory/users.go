package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) checkUnique(user *domain.User) error {
	for id, rec := range r.s.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(rec.value.Email, user.Email) {
			return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
		if user.StudentID != nil && rec.value.StudentID != nil && *user.StudentID == *rec.value.StudentID {
			return fmt.Errorf("%w: users_student_id_key", repository.ErrDuplicate)
		}
	}
	return nil
}

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.ID = newID()
	if err := r.checkUnique(user); err != nil {
		return err
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = record[domain.User]{seq: r.s.next(), value: *user}
	return nil
}

func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if err := r.checkUnique(user); err != nil {
		return err
	}
	user.CreatedAt = rec.value.CreatedAt
	user.UpdatedAt = r.s.now()
	rec.value = *user
	r.s.users[user.ID] = rec
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user := rec.value
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, rec := range r.s.users {
		if strings.EqualFold(rec.value.Email, email) {
			user := rec.value
			return &user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *userRepo) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	users := newestFirst(r.s.users, func(u domain.User) bool {
		if filter.Role != nil && u.Role != *filter.Role {
			return false
		}
		if filter.Department != nil && (u.Department == nil || *u.Department != *filter.Department) {
			return false
		}
		if filter.Active != nil && u.Active != *filter.Active {
			return false
		}
		if search != "" {
			haystack := strings.ToLower(u.Email + " " + u.FirstName + " " + u.LastName)
			if u.StudentID != nil {
				haystack += " " + strings.ToLower(*u.StudentID)
			}
			return strings.Contains(haystack, search)
		}
		return true
	})
	return page(users, filter.Limit, filter.Offset, 50), nil
}

func (r *userRepo) ListActiveIDsByRoles(ctx context.Context, roles []domain.Role) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		wanted[role] = true
	}
	users := newestFirst(r.s.users, func(u domain.User) bool { return u.Active && wanted[u.Role] })
	ids := make([]string, 0, len(users))
	for i := len(users) - 1; i >= 0; i-- {
		ids = append(ids, users[i].ID)
	}
	return ids, nil
}

// Delete mirrors the schema's cascade rules.
func (r *userRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.users, id)

	for ticketID, rec := range r.s.tickets {
		if rec.value.CreatedByID == id {
			r.s.deleteTicketLocked(ticketID)
			continue
		}
		if rec.value.IsAssignedTo(id) {
			rec.value.AssigneeID = nil
			r.s.tickets[ticketID] = rec
		}
	}
	for commentID, rec := range r.s.comments {
		if rec.value.AuthorID == id {
			delete(r.s.comments, commentID)
		}
	}
	for nID, rec := range r.s.notifications {
		if rec.value.UserID == id {
			delete(r.s.notifications, nID)
		}
	}
	return nil
}

func (r *userRepo) Stats(ctx context.Context) (domain.UserStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := domain.UserStats{ByRole: make(map[domain.Role]int64, len(domain.Roles))}
	for _, role := range domain.Roles {
		stats.ByRole[role] = 0
	}
	for _, rec := range r.s.users {
		stats.Total++
		stats.ByRole[rec.value.Role]++
		if rec.value.Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats, nil
}
