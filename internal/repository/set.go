package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Set groups the repositories a process needs.
type Set struct {
	Users         UserRepository
	Tickets       TicketRepository
	Comments      CommentRepository
	History       TicketHistoryRepository
	Notifications NotificationRepository
}

// NewPostgresSet builds every repository on top of pool.
func NewPostgresSet(pool *pgxpool.Pool) Set {
	return Set{
		Users:         NewUserRepository(pool),
		Tickets:       NewTicketRepository(pool),
		Comments:      NewCommentRepository(pool),
		History:       NewTicketHistoryRepository(pool),
		Notifications: NewNotificationRepository(pool),
	}
}
