package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	CreatedByID *string
	AssigneeID  *string
	Unassigned  bool
	// ParticipantID limits results to tickets the user created or is assigned to.
	ParticipantID *string
	Statuses      []domain.TicketStatus
	SearchTerm    *string
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Stats(ctx context.Context, filter TicketFilter) (domain.TicketStats, error)
	// UpdateContent rewrites title and description only.
	UpdateContent(ctx context.Context, ticket *domain.Ticket) error
	// CompareAndSetStatus writes next only while the stored status still equals expected.
	CompareAndSetStatus(ctx context.Context, id string, expected, next domain.TicketStatus) (bool, error)
	// CompareAndSetAssignee writes next only while the stored assignee still equals expected.
	CompareAndSetAssignee(ctx context.Context, id string, expected, next *string) (bool, error)
	// UnassignUser clears userID from every ticket it is assigned to and returns those ticket ids.
	UnassignUser(ctx context.Context, userID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, title, description, status, created_by_id, assignee_id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, title, description, status, created_by_id, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.CreatedByID,
		ticket.AssigneeID,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return translateError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE external_key=$1`, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func ticketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assignee_id IS NULL")
	}
	if filter.ParticipantID != nil {
		args = append(args, *filter.ParticipantID)
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(created_by_id=%s OR assignee_id=%s)", p, p))
	}
	if len(filter.Statuses) > 0 {
		values := make([]any, len(filter.Statuses))
		for i, status := range filter.Statuses {
			values[i] = status
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", placeholders(&args, values...)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", p, p))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := ticketWhere(filter)
	limit, offset := pageBounds(filter.Limit, filter.Offset, 20)

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Stats(ctx context.Context, filter TicketFilter) (domain.TicketStats, error) {
	where, args := ticketWhere(filter)
	query := fmt.Sprintf(`
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='OPEN'),
               COUNT(*) FILTER (WHERE status='IN_PROGRESS'),
               COUNT(*) FILTER (WHERE status='RESOLVED'),
               COUNT(assignee_id),
               COUNT(*) FILTER (WHERE assignee_id IS NULL)
        FROM tickets WHERE %s`, where)

	var stats domain.TicketStats
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Open,
		&stats.InProgress,
		&stats.Resolved,
		&stats.Assigned,
		&stats.Unassigned,
	)
	return stats, err
}

func (r *ticketRepository) UpdateContent(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query, ticket.Title, ticket.Description, ticket.ID).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) CompareAndSetStatus(ctx context.Context, id string, expected, next domain.TicketStatus) (bool, error) {
	const query = `UPDATE tickets SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`
	cmd, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) CompareAndSetAssignee(ctx context.Context, id string, expected, next *string) (bool, error) {
	const query = `UPDATE tickets SET assignee_id=$3, updated_at=NOW() WHERE id=$1 AND assignee_id IS NOT DISTINCT FROM $2::uuid`
	cmd, err := r.pool.Exec(ctx, query, id, expected, next)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) UnassignUser(ctx context.Context, userID string) ([]string, error) {
	const query = `UPDATE tickets SET assignee_id=NULL, updated_at=NOW() WHERE assignee_id=$1 RETURNING id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.CreatedByID,
		&ticket.AssigneeID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
