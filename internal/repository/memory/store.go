// Package memory provides map-backed repositories with the same semantics as the Postgres ones.
// It backs development runs without POSTGRES_DSN and the service tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/repository"
)

type record[T any] struct {
	seq   uint64
	value T
}

// Store holds every table behind one lock, which also makes compare-and-set writes atomic.
type Store struct {
	mu            sync.RWMutex
	seq           uint64
	now           func() time.Time
	users         map[string]record[domain.User]
	tickets       map[string]record[domain.Ticket]
	comments      map[string]record[domain.Comment]
	notifications map[string]record[domain.Notification]
	history       map[string]record[domain.TicketHistory]
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		users:         make(map[string]record[domain.User]),
		tickets:       make(map[string]record[domain.Ticket]),
		comments:      make(map[string]record[domain.Comment]),
		notifications: make(map[string]record[domain.Notification]),
		history:       make(map[string]record[domain.TicketHistory]),
	}
}

func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

func newID() string {
	return uuid.NewString()
}

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return &ticketRepo{s} }

// Comments returns the comment repository view.
func (s *Store) Comments() repository.CommentRepository { return &commentRepo{s} }

// Notifications returns the notification repository view.
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }

// TicketHistory returns the history repository view.
func (s *Store) TicketHistory() repository.TicketHistoryRepository { return &historyRepo{s} }

// newestFirst sorts records by descending insertion order and unwraps them.
func newestFirst[T any](records map[string]record[T], keep func(T) bool) []T {
	matched := make([]record[T], 0, len(records))
	for _, rec := range records {
		if keep(rec.value) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	out := make([]T, len(matched))
	for i, rec := range matched {
		out[i] = rec.value
	}
	return out
}

func page[T any](items []T, limit, offset, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Set returns every repository view of the store.
func (s *Store) Set() repository.Set {
	return repository.Set{
		Users:         s.Users(),
		Tickets:       s.Tickets(),
		Comments:      s.Comments(),
		History:       s.TicketHistory(),
		Notifications: s.Notifications(),
	}
}
