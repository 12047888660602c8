package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

// maxWriteAttempts bounds compare-and-set retries on a contended ticket.
const maxWriteAttempts = 3

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, event)
}

func requireActor(actor *domain.User) error {
	if actor == nil || actor.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

// notFound maps a missing row to a NOT_FOUND error naming the resource.
func notFound(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

// validID rejects ids that cannot exist, so the Postgres uuid columns never see them.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func trimmedLength(s string) (string, int) {
	trimmed := strings.TrimSpace(s)
	return trimmed, utf8.RuneCountInString(trimmed)
}

func duplicateError(err error, message, field string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewValidationError(message, map[string]any{"field": field})
	}
	return err
}

func generateTicketKey() string {
	return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func optionalString(p *string) *string {
	if p == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*p)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
