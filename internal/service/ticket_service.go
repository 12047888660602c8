package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

const (
	minTitleLength       = 3
	minDescriptionLength = 10
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// TicketUpdateInput is a partial update. Unassign clears the assignee and wins over AssigneeID.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TicketStatus
	AssigneeID  *string
	Unassign    bool
}

func (in TicketUpdateInput) changesAssignee() bool {
	return in.Unassign || in.AssigneeID != nil
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	AssigneeID  *string
	Unassigned  bool
	CreatedByID *string
	Search      *string
	Page
}

// TicketView is a ticket with the data its responses embed.
type TicketView struct {
	domain.Ticket
	Creator       *domain.User
	Assignee      *domain.User
	CommentsCount int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket opens a ticket on behalf of actor and alerts the triage pool.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title, description, err := validateContent(input.Title, input.Description)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusOpen,
		CreatedByID: actor.ID,
	}
	for attempt := 1; ; attempt++ {
		ticket.ExternalKey = generateTicketKey()
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt == maxWriteAttempts {
			return nil, err
		}
	}

	publishEvent(ctx, s.dispatcher, events.TicketCreated{
		Metadata:   events.NewMetadata(actor.ID),
		Ticket:     events.SnapshotTicket(ticket),
		Creator:    events.SnapshotUser(actor),
		TriagePool: s.triagePool(ctx),
	})
	return &TicketView{Ticket: *ticket, Creator: actor}, nil
}

// triagePool lists active users able to manage tickets. A lookup failure only costs notifications.
func (s *TicketService) triagePool(ctx context.Context) []string {
	ids, err := s.users.ListActiveIDsByRoles(ctx, domain.RolesWith(func(c domain.Capabilities) bool {
		return c.ManageTickets
	}))
	if err != nil {
		s.logger.Warn("load triage pool", zap.Error(err))
		return nil
	}
	return ids
}

// List returns tickets visible to actor. Users without ticket management only see tickets they
// created or are assigned to.
func (s *TicketService) List(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := scopedFilter(actor, filter)
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, tickets)
}

// ListMine returns tickets created by actor.
func (s *TicketService) ListMine(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	filter.CreatedByID = &actor.ID
	return s.List(ctx, actor, filter)
}

// ListAssignedToMe returns tickets assigned to actor.
func (s *TicketService) ListAssignedToMe(ctx context.Context, actor *domain.User, filter TicketListFilter) ([]TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.Capabilities().ManageTickets {
		return nil, apperrors.NewForbidden("only support staff have assigned tickets")
	}
	filter.AssigneeID = &actor.ID
	filter.Unassigned = false
	return s.List(ctx, actor, filter)
}

// Stats counts the tickets actor can see.
func (s *TicketService) Stats(ctx context.Context, actor *domain.User) (domain.TicketStats, error) {
	if err := requireActor(actor); err != nil {
		return domain.TicketStats{}, err
	}
	return s.tickets.Stats(ctx, scopedFilter(actor, TicketListFilter{}))
}

func scopedFilter(actor *domain.User, filter TicketListFilter) repository.TicketFilter {
	repoFilter := repository.TicketFilter{
		CreatedByID: filter.CreatedByID,
		AssigneeID:  filter.AssigneeID,
		Unassigned:  filter.Unassigned,
		Statuses:    filter.Statuses,
		SearchTerm:  filter.Search,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	caps := actor.Capabilities()
	if !caps.ManageTickets && !caps.ViewAllTickets {
		repoFilter.ParticipantID = &actor.ID
	}
	return repoFilter
}

// Get returns one ticket.
func (s *TicketService) Get(ctx context.Context, actor *domain.User, id string) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, ticket)
}

// Update applies content, status and assignee changes. Every precondition is checked before the
// first write.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, id string, input TicketUpdateInput) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !ticket.UpdatableBy(actor) {
		return nil, apperrors.NewForbidden("only the creator or support staff can update this ticket")
	}

	contentChanged := input.Title != nil || input.Description != nil
	title, description := ticket.Title, ticket.Description
	if input.Title != nil {
		title = *input.Title
	}
	if input.Description != nil {
		description = *input.Description
	}
	if contentChanged {
		if title, description, err = validateContent(title, description); err != nil {
			return nil, err
		}
	}
	if input.Status != nil {
		if err := domain.ValidateTransition(ticket.Status, *input.Status); err != nil {
			return nil, err
		}
	}
	var assignee *string
	if input.changesAssignee() {
		if !input.Unassign {
			assignee = input.AssigneeID
		}
		if err := s.checkAssignment(ctx, actor, assignee); err != nil {
			return nil, err
		}
	}

	if contentChanged {
		ticket.Title, ticket.Description = title, description
		if err := s.tickets.UpdateContent(ctx, ticket); err != nil {
			return nil, notFound(err, "ticket", id)
		}
	}
	if input.Status != nil {
		if ticket, err = s.changeStatus(ctx, actor, ticket, *input.Status); err != nil {
			return nil, err
		}
	}
	if input.changesAssignee() {
		if ticket, err = s.changeAssignee(ctx, actor, ticket, assignee); err != nil {
			return nil, err
		}
	}
	return s.reloadView(ctx, ticket)
}

// UpdateStatus moves the ticket along the transition table.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, id string, next domain.TicketStatus) (*TicketView, error) {
	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !ticket.UpdatableBy(actor) {
		return nil, apperrors.NewForbidden("only the creator or support staff can change the status")
	}
	if ticket, err = s.changeStatus(ctx, actor, ticket, next); err != nil {
		return nil, err
	}
	return s.reloadView(ctx, ticket)
}

// Assign sets or clears (assigneeID == nil) the assignee.
func (s *TicketService) Assign(ctx context.Context, actor *domain.User, id string, assigneeID *string) (*TicketView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.checkAssignment(ctx, actor, assigneeID); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if ticket, err = s.changeAssignee(ctx, actor, ticket, assigneeID); err != nil {
		return nil, err
	}
	return s.reloadView(ctx, ticket)
}

// Delete removes the ticket and its comments.
func (s *TicketService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.Capabilities().DeleteTickets {
		return apperrors.NewForbidden("deleting tickets requires an administrator")
	}
	if !validID(id) {
		return apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return notFound(s.tickets.Delete(ctx, id), "ticket", id)
}

// History returns the audit trail of a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, actor *domain.User, id string) ([]domain.TicketHistory, error) {
	ticket, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}

// changeStatus writes next with compare-and-set on the status last read. A lost race reloads the
// ticket and re-validates against the status that won.
func (s *TicketService) changeStatus(ctx context.Context, actor *domain.User, ticket *domain.Ticket, next domain.TicketStatus) (*domain.Ticket, error) {
	current := ticket
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err := domain.ValidateTransition(current.Status, next); err != nil {
			return nil, err
		}
		if current.Status == next {
			return current, nil
		}
		swapped, err := s.tickets.CompareAndSetStatus(ctx, current.ID, current.Status, next)
		if err != nil {
			return nil, err
		}
		if swapped {
			old := current.Status
			current = s.reloadAfterSwap(ctx, current)
			current.Status = next
			s.recordHistory(ctx, actor, current.ID, domain.ChangeTypeStatus,
				map[string]any{"status": old}, map[string]any{"status": next})
			publishEvent(ctx, s.dispatcher, events.TicketStatusChanged{
				Metadata:  events.NewMetadata(actor.ID),
				Ticket:    events.SnapshotTicket(current),
				OldStatus: old,
				NewStatus: next,
			})
			return current, nil
		}
		if current, err = s.tickets.GetByID(ctx, current.ID); err != nil {
			return nil, notFound(err, "ticket", ticket.ID)
		}
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently, retry the request",
		map[string]any{"ticket_id": ticket.ID})
}

// checkAssignment verifies that actor may assign and that the target can manage tickets.
func (s *TicketService) checkAssignment(ctx context.Context, actor *domain.User, assigneeID *string) error {
	if !actor.Capabilities().AssignTickets {
		return apperrors.NewForbidden("you are not allowed to assign tickets")
	}
	if assigneeID == nil {
		return nil
	}
	invalid := apperrors.NewValidationError("assignee must be an active user who can manage tickets",
		map[string]any{"field": "assigned_to", "id": *assigneeID})
	if !validID(*assigneeID) {
		return invalid
	}
	assignee, err := s.users.GetByID(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invalid
		}
		return err
	}
	if !assignee.Active || !assignee.Capabilities().ManageTickets {
		return invalid
	}
	return nil
}

func (s *TicketService) changeAssignee(ctx context.Context, actor *domain.User, ticket *domain.Ticket, next *string) (*domain.Ticket, error) {
	current := ticket
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if sameAssignee(current.AssigneeID, next) {
			return current, nil
		}
		swapped, err := s.tickets.CompareAndSetAssignee(ctx, current.ID, current.AssigneeID, next)
		if err != nil {
			return nil, err
		}
		if swapped {
			old := current.AssigneeID
			current.AssigneeID = next
			s.recordHistory(ctx, actor, current.ID, domain.ChangeTypeAssignee,
				map[string]any{"assignee_id": old}, map[string]any{"assignee_id": next})
			publishEvent(ctx, s.dispatcher, events.TicketAssigned{
				Metadata:      events.NewMetadata(actor.ID),
				Ticket:        events.SnapshotTicket(current),
				Creator:       s.creatorSnapshot(ctx, current.CreatedByID),
				OldAssigneeID: old,
				NewAssigneeID: next,
			})
			return current, nil
		}
		if current, err = s.tickets.GetByID(ctx, current.ID); err != nil {
			return nil, notFound(err, "ticket", ticket.ID)
		}
	}
	return nil, apperrors.NewConflict("ticket was modified concurrently, retry the request",
		map[string]any{"ticket_id": ticket.ID})
}

// reloadAfterSwap returns the stored row so events see the assignee as of the write. The read
// copy is kept when the reload fails.
func (s *TicketService) reloadAfterSwap(ctx context.Context, ticket *domain.Ticket) *domain.Ticket {
	fresh, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		s.logger.Warn("reload ticket after status change", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return ticket
	}
	return fresh
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *TicketService) creatorSnapshot(ctx context.Context, id string) events.UserSnapshot {
	creator, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("load ticket creator", zap.String("user_id", id), zap.Error(err))
		return events.UserSnapshot{ID: id}
	}
	return events.SnapshotUser(creator)
}

// recordHistory appends an audit entry. The ticket write already committed, so failures are logged.
func (s *TicketService) recordHistory(ctx context.Context, actor *domain.User, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: actor.ID,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("record ticket history",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}

// loadVisible fetches a ticket and enforces the viewing rule.
func (s *TicketService) loadVisible(ctx context.Context, actor *domain.User, id string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "ticket", id)
	}
	if !ticket.VisibleTo(actor) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket")
	}
	return ticket, nil
}

func (s *TicketService) reloadView(ctx context.Context, ticket *domain.Ticket) (*TicketView, error) {
	fresh, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, notFound(err, "ticket", ticket.ID)
	}
	return s.view(ctx, fresh)
}

func (s *TicketService) view(ctx context.Context, ticket *domain.Ticket) (*TicketView, error) {
	views, err := s.views(ctx, []domain.Ticket{*ticket})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *TicketService) views(ctx context.Context, tickets []domain.Ticket) ([]TicketView, error) {
	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	counts := map[string]int{}
	if s.comments != nil && len(ids) > 0 {
		var err error
		if counts, err = s.comments.CountByTickets(ctx, ids); err != nil {
			return nil, err
		}
	}

	people := map[string]*domain.User{}
	lookup := func(id string) (*domain.User, error) {
		if user, ok := people[id]; ok {
			return user, nil
		}
		user, err := s.users.GetByID(ctx, id)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		people[id] = user
		return user, nil
	}

	result := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		view := TicketView{Ticket: ticket, CommentsCount: counts[ticket.ID]}
		var err error
		if view.Creator, err = lookup(ticket.CreatedByID); err != nil {
			return nil, err
		}
		if ticket.AssigneeID != nil {
			if view.Assignee, err = lookup(*ticket.AssigneeID); err != nil {
				return nil, err
			}
		}
		result = append(result, view)
	}
	return result, nil
}

func validateContent(title, description string) (string, string, error) {
	title, titleLen := trimmedLength(title)
	if titleLen < minTitleLength {
		return "", "", apperrors.NewValidationError("title must be at least 3 characters long",
			map[string]any{"field": "title", "min_length": minTitleLength})
	}
	description, descLen := trimmedLength(description)
	if descLen < minDescriptionLength {
		return "", "", apperrors.NewValidationError("description must be at least 10 characters long",
			map[string]any{"field": "description", "min_length": minDescriptionLength})
	}
	return title, description, nil
}
