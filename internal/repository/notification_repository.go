package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// NotificationFilter narrows a recipient's notification listing.
type NotificationFilter struct {
	UserID string
	IsRead *bool
	Type   *domain.NotificationType
	Limit  int
	Offset int
}

// NotificationRepository persists fan-out output.
type NotificationRepository interface {
	// CreateBatch inserts notifications, skipping any (event_id, user_id) pair already stored.
	// It returns the rows actually written.
	CreateBatch(ctx context.Context, notifications []*domain.Notification) (int, error)
	GetByID(ctx context.Context, userID, id string) (*domain.Notification, error)
	List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// MarkRead flags the given ids read, or every unread notification when ids is empty.
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, user_id, event_id, title, message, notification_type, is_read, ticket_id, comment_id, created_at`

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}
	const query = `
        INSERT INTO notifications (user_id, event_id, title, message, notification_type, ticket_id, comment_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (event_id, user_id) DO NOTHING
        RETURNING id, is_read, created_at`

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(query, n.UserID, n.EventID, n.Title, n.Message, n.Type, n.TicketID, n.CommentID)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, n := range notifications {
		err := results.QueryRow().Scan(&n.ID, &n.IsRead, &n.CreatedAt)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, pgx.ErrNoRows):
			// already delivered for this event
		default:
			return inserted, err
		}
	}
	return inserted, nil
}

func (r *notificationRepository) GetByID(ctx context.Context, userID, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id=$1 AND user_id=$2`
	return scanNotification(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *notificationRepository) List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, error) {
	args := []any{filter.UserID}
	clauses := []string{"user_id=$1"}

	if filter.IsRead != nil {
		args = append(args, *filter.IsRead)
		clauses = append(clauses, fmt.Sprintf("is_read=$%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("notification_type=$%d", len(args)))
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset, 20)
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT is_read`, userID).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	args := []any{userID}
	query := `UPDATE notifications SET is_read=TRUE WHERE user_id=$1 AND NOT is_read`
	if len(ids) > 0 {
		values := make([]any, len(ids))
		for i, id := range ids {
			values[i] = id
		}
		query += fmt.Sprintf(" AND id IN (%s)", placeholders(&args, values...))
	}
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.EventID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.IsRead,
		&n.TicketID,
		&n.CommentID,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}
