package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

// UserService implements account administration.
type UserService struct {
	users      repository.UserRepository
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	bcryptCost int
	logger     *zap.Logger
}

// UserDependencies bundles repositories for the user service.
type UserDependencies struct {
	UserRepo    repository.UserRepository
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	BcryptCost  int
	Logger      *zap.Logger
}

// CreateUserInput is an administrative account creation.
type CreateUserInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        domain.Role
	PhoneNumber *string
	StudentID   *string
	Department  *string
	Active      *bool
}

// UpdateUserInput is a partial administrative update.
type UpdateUserInput struct {
	FirstName   *string
	LastName    *string
	Role        *domain.Role
	PhoneNumber *string
	StudentID   *string
	Department  *string
	Active      *bool
}

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
	Role       *domain.Role
	Department *string
	Active     *bool
	Search     *string
	Page
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		bcryptCost: deps.BcryptCost,
		logger:     logger,
	}
}

func requireUserAdmin(actor *domain.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.Capabilities().ManageUsers {
		return apperrors.NewForbidden("user management requires an administrator")
	}
	return nil
}

// List returns accounts matching filter.
func (s *UserService) List(ctx context.Context, actor *domain.User, filter UserListFilter) ([]domain.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.List(ctx, repository.UserFilter{
		Role:       filter.Role,
		Department: filter.Department,
		Active:     filter.Active,
		SearchTerm: filter.Search,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Create adds an account with any role and announces it.
func (s *UserService) Create(ctx context.Context, actor *domain.User, input CreateUserInput) (*domain.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	role, ok := domain.ParseRole(string(input.Role))
	if !ok {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"field": "role", "allowed": domain.Roles})
	}
	user, err := buildAccount(input.Email, input.Password, input.FirstName, input.LastName)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.Active = true
	if input.Active != nil {
		user.Active = *input.Active
	}
	user.PhoneNumber = optionalString(input.PhoneNumber)
	user.StudentID = optionalString(input.StudentID)
	user.Department = optionalString(input.Department)

	if err := createAccount(ctx, s.users, s.bcryptCost, user, input.Password); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.UserCreated{
		Metadata: events.NewMetadata(actor.ID),
		User:     events.SnapshotUser(user),
	})
	return user, nil
}

// Get returns one account. Users may always read their own.
func (s *UserService) Get(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.ID != id && !actor.Capabilities().ManageUsers {
		return nil, apperrors.NewForbidden("user management requires an administrator")
	}
	if !validID(id) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return user, nil
}

// Update applies an administrative change. Administrators cannot demote or disable themselves.
// A role that loses ManageTickets releases every ticket assigned to the user.
func (s *UserService) Update(ctx context.Context, actor *domain.User, id string, input UpdateUserInput) (*domain.User, error) {
	if err := requireUserAdmin(actor); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}

	if input.Role != nil {
		role, ok := domain.ParseRole(string(*input.Role))
		if !ok {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"field": "role", "allowed": domain.Roles})
		}
		if user.ID == actor.ID && role != user.Role {
			return nil, apperrors.NewValidationError("you cannot change your own role", map[string]any{"field": "role"})
		}
		user.Role = role
	}
	if input.Active != nil {
		if user.ID == actor.ID && !*input.Active {
			return nil, apperrors.NewValidationError("you cannot deactivate your own account", map[string]any{"field": "is_active"})
		}
		user.Active = *input.Active
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = optionalString(input.PhoneNumber)
	}
	if input.StudentID != nil {
		user.StudentID = optionalString(input.StudentID)
	}
	if input.Department != nil {
		user.Department = optionalString(input.Department)
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, duplicateError(err, "student id already registered", "student_id")
	}
	if input.Role != nil && !user.Capabilities().ManageTickets {
		if err := s.releaseAssignments(ctx, actor, user.ID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// releaseAssignments unassigns userID everywhere. It is idempotent, so a failed call is fixed by
// repeating the update.
func (s *UserService) releaseAssignments(ctx context.Context, actor *domain.User, userID string) error {
	if s.tickets == nil {
		return nil
	}
	ticketIDs, err := s.tickets.UnassignUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(ticketIDs) > 0 {
		s.logger.Info("released assignments of demoted user",
			zap.String("user_id", userID),
			zap.Int("tickets", len(ticketIDs)))
	}
	if s.history == nil || len(ticketIDs) == 0 {
		return nil
	}
	entries := make([]*domain.TicketHistory, 0, len(ticketIDs))
	for _, ticketID := range ticketIDs {
		entries = append(entries, &domain.TicketHistory{
			TicketID:    ticketID,
			ChangedByID: actor.ID,
			ChangeType:  domain.ChangeTypeAssignee,
			OldValue:    map[string]any{"assignee_id": userID},
			NewValue:    map[string]any{"assignee_id": nil},
		})
	}
	// the tickets are already released, history failures are only logged
	if err := s.history.CreateBatch(ctx, entries); err != nil {
		s.logger.Warn("record ticket history", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// Delete removes an account and, through the store's cascade rules, its tickets, comments and
// notifications.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireUserAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return apperrors.NewValidationError("you cannot delete your own account", nil)
	}
	if !validID(id) {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	return notFound(s.users.Delete(ctx, id), "user", id)
}

// Stats summarises accounts.
func (s *UserService) Stats(ctx context.Context, actor *domain.User) (domain.UserStats, error) {
	if err := requireUserAdmin(actor); err != nil {
		return domain.UserStats{}, err
	}
	return s.users.Stats(ctx)
}
