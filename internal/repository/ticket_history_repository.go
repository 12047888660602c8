package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// TicketHistoryRepository stores the audit trail of status and assignee changes.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	// CreateBatch appends entries in one round trip. Entries are written in order.
	CreateBatch(ctx context.Context, entries []*domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// changed_by_id is NULL for system changes and after the acting user is deleted.
const insertHistory = `
        INSERT INTO ticket_history (ticket_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5)
        RETURNING id, created_at`

func historyArgs(entry *domain.TicketHistory) []any {
	return []any{entry.TicketID, entry.ChangedByID, entry.ChangeType, entry.OldValue, entry.NewValue}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	return r.pool.QueryRow(ctx, insertHistory, historyArgs(entry)...).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketHistoryRepository) CreateBatch(ctx context.Context, entries []*domain.TicketHistory) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, entry := range entries {
		entry := entry
		batch.Queue(insertHistory, historyArgs(entry)...).QueryRow(func(row pgx.Row) error {
			return row.Scan(&entry.ID, &entry.CreatedAt)
		})
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id, ticket_id, COALESCE(changed_by_id::text, ''), change_type, old_value, new_value, created_at
        FROM ticket_history
        WHERE ticket_id=$1
        ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistory)
}

func scanHistory(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var entry domain.TicketHistory
	err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.ChangedByID,
		&entry.ChangeType,
		&entry.OldValue,
		&entry.NewValue,
		&entry.CreatedAt,
	)
	return entry, err
}
