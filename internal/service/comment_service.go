package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

// CommentService manages ticket comment threads.
type CommentService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// CommentDependencies bundles repositories for comment service.
type CommentDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
}

// CommentView is a comment with its author resolved. Author is nil once the account is gone.
type CommentView struct {
	domain.Comment
	Author *domain.User
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// List returns the thread of a ticket, newest first.
func (s *CommentService) List(ctx context.Context, actor *domain.User, ticketID string) ([]CommentView, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	authors := map[string]*domain.User{}
	result := make([]CommentView, 0, len(comments))
	for _, comment := range comments {
		author, ok := authors[comment.AuthorID]
		if !ok {
			if author, err = s.author(ctx, comment.AuthorID); err != nil {
				return nil, err
			}
			authors[comment.AuthorID] = author
		}
		result = append(result, CommentView{Comment: comment, Author: author})
	}
	return result, nil
}

// Create appends a comment and announces it.
func (s *CommentService) Create(ctx context.Context, actor *domain.User, ticketID, message string) (*CommentView, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	text, ok := domain.NormalizeCommentMessage(message)
	if !ok {
		return nil, apperrors.NewValidationError("comment message cannot be empty", map[string]any{"field": "message"})
	}

	comment := &domain.Comment{TicketID: ticket.ID, AuthorID: actor.ID, Message: text}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	publishEvent(ctx, s.dispatcher, events.CommentCreated{
		Metadata:  events.NewMetadata(actor.ID),
		Ticket:    events.SnapshotTicket(ticket),
		CommentID: comment.ID,
		Author:    events.SnapshotUser(actor),
	})
	return &CommentView{Comment: *comment, Author: actor}, nil
}

// Get returns one comment if its ticket is visible to actor.
func (s *CommentService) Get(ctx context.Context, actor *domain.User, id string) (*CommentView, error) {
	comment, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	author, err := s.author(ctx, comment.AuthorID)
	if err != nil {
		return nil, err
	}
	return &CommentView{Comment: *comment, Author: author}, nil
}

// Update rewrites the message. Only the author or support staff may edit.
func (s *CommentService) Update(ctx context.Context, actor *domain.User, id, message string) (*CommentView, error) {
	comment, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !comment.EditableBy(actor) {
		return nil, apperrors.NewForbidden("only the author or support staff can edit this comment")
	}
	text, ok := domain.NormalizeCommentMessage(message)
	if !ok {
		return nil, apperrors.NewValidationError("comment message cannot be empty", map[string]any{"field": "message"})
	}
	comment.Message = text
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, notFound(err, "comment", id)
	}
	author, err := s.author(ctx, comment.AuthorID)
	if err != nil {
		return nil, err
	}
	return &CommentView{Comment: *comment, Author: author}, nil
}

// Delete removes a comment. Only the author or support staff may delete.
func (s *CommentService) Delete(ctx context.Context, actor *domain.User, id string) error {
	comment, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if !comment.EditableBy(actor) {
		return apperrors.NewForbidden("only the author or support staff can delete this comment")
	}
	return notFound(s.comments.Delete(ctx, comment.ID), "comment", id)
}

func (s *CommentService) load(ctx context.Context, actor *domain.User, id string) (*domain.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, apperrors.NewNotFound("comment", map[string]any{"id": id})
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "comment", id)
	}
	if _, err := s.visibleTicket(ctx, actor, comment.TicketID); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) visibleTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !validID(ticketID) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	if !ticket.VisibleTo(actor) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket")
	}
	return ticket, nil
}

func (s *CommentService) author(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
