package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/repository"
)

func seedUser(t *testing.T, s *Store, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, FirstName: "Test", LastName: string(role), Role: role, Active: true}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedTicket(t *testing.T, s *Store, creator string, key string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ExternalKey: key,
		Title:       "Need book X",
		Description: "The library copy is missing",
		Status:      domain.TicketStatusOpen,
		CreatedByID: creator,
	}
	require.NoError(t, s.Tickets().Create(context.Background(), ticket))
	return ticket
}

func TestUserEmailIsUniqueIgnoringCase(t *testing.T) {
	s := NewStore()
	seedUser(t, s, "ann@example.com", domain.RoleStudent)

	err := s.Users().Create(context.Background(), &domain.User{Email: "ANN@example.com", Role: domain.RoleStudent})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))
}

func TestCompareAndSetStatusOnlyOneWinner(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "a@example.com", domain.RoleStudent)
	ticket := seedTicket(t, s, owner.ID, "BK-00000001")

	targets := []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusInProgress}
	wins := make([]bool, len(targets))
	var wg sync.WaitGroup
	for i, next := range targets {
		wg.Add(1)
		go func(i int, next domain.TicketStatus) {
			defer wg.Done()
			ok, err := s.Tickets().CompareAndSetStatus(ctx, ticket.ID, domain.TicketStatusOpen, next)
			assert.NoError(t, err)
			wins[i] = ok
		}(i, next)
	}
	wg.Wait()
	assert.NotEqual(t, wins[0], wins[1], "exactly one writer must win")
}

func TestCompareAndSetAssigneeTreatsNilAsValue(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "a@example.com", domain.RoleStudent)
	ict := seedUser(t, s, "b@example.com", domain.RoleICT)
	ticket := seedTicket(t, s, owner.ID, "BK-00000002")

	ok, err := s.Tickets().CompareAndSetAssignee(ctx, ticket.ID, &ict.ID, &ict.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Tickets().CompareAndSetAssignee(ctx, ticket.ID, nil, &ict.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := s.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAssignedTo(ict.ID))
}

func TestNotificationBatchIsIdempotentPerEvent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	batch := func() []*domain.Notification {
		return []*domain.Notification{
			{UserID: "u1", EventID: "e1", Title: "t", Type: domain.NotificationGeneral},
			{UserID: "u2", EventID: "e1", Title: "t", Type: domain.NotificationGeneral},
		}
	}

	n, err := s.Notifications().CreateBatch(ctx, batch())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Notifications().CreateBatch(ctx, batch())
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.Notifications().CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMarkReadByIDsAndAll(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	items := []*domain.Notification{
		{UserID: "u1", EventID: "e1", Type: domain.NotificationGeneral},
		{UserID: "u1", EventID: "e2", Type: domain.NotificationGeneral},
		{UserID: "u1", EventID: "e3", Type: domain.NotificationGeneral},
		{UserID: "u2", EventID: "e1", Type: domain.NotificationGeneral},
	}
	_, err := s.Notifications().CreateBatch(ctx, items)
	require.NoError(t, err)

	updated, err := s.Notifications().MarkRead(ctx, "u1", []string{items[0].ID, items[3].ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated, "another user's notification is untouched")

	updated, err = s.Notifications().MarkRead(ctx, "u1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	count, err := s.Notifications().CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestDeletingUserCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "a@example.com", domain.RoleStudent)
	ict := seedUser(t, s, "b@example.com", domain.RoleICT)
	owned := seedTicket(t, s, owner.ID, "BK-00000003")
	other := seedTicket(t, s, ict.ID, "BK-00000004")
	_, err := s.Tickets().CompareAndSetAssignee(ctx, other.ID, nil, &owner.ID)
	require.NoError(t, err)
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{TicketID: owned.ID, AuthorID: ict.ID, Message: "hi"}))
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{TicketID: other.ID, AuthorID: owner.ID, Message: "hey"}))

	require.NoError(t, s.Users().Delete(ctx, owner.ID))

	_, err = s.Tickets().GetByID(ctx, owned.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	remaining, err := s.Tickets().GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, remaining.AssigneeID)

	comments, err := s.Comments().ListByTicket(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestCommentsAreNewestFirst(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "a@example.com", domain.RoleStudent)
	ticket := seedTicket(t, s, owner.ID, "BK-00000005")
	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, s.Comments().Create(ctx, &domain.Comment{TicketID: ticket.ID, AuthorID: owner.ID, Message: msg}))
	}

	comments, err := s.Comments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "third", comments[0].Message)

	counts, err := s.Comments().CountByTickets(ctx, []string{ticket.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ticket.ID: 3, "missing": 0}, counts)
}

func TestUnassignUserClearsOnlyTheirTickets(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "a@example.com", domain.RoleStudent)
	ict := seedUser(t, s, "b@example.com", domain.RoleICT)
	staff := seedUser(t, s, "c@example.com", domain.RoleStaff)
	mine := seedTicket(t, s, owner.ID, "BK-00000010")
	theirs := seedTicket(t, s, owner.ID, "BK-00000011")
	seedTicket(t, s, owner.ID, "BK-00000012")

	_, err := s.Tickets().CompareAndSetAssignee(ctx, mine.ID, nil, &ict.ID)
	require.NoError(t, err)
	_, err = s.Tickets().CompareAndSetAssignee(ctx, theirs.ID, nil, &staff.ID)
	require.NoError(t, err)

	released, err := s.Tickets().UnassignUser(ctx, ict.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, released)

	stored, err := s.Tickets().GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssigneeID)
	stored, err = s.Tickets().GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAssignedTo(staff.ID))

	released, err = s.Tickets().UnassignUser(ctx, ict.ID)
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestHistoryBatchKeepsOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedUser(t, s, "a@example.com", domain.RoleStudent)
	ticket := seedTicket(t, s, owner.ID, "BK-00000020")

	entries := []*domain.TicketHistory{
		{TicketID: ticket.ID, ChangeType: domain.ChangeTypeStatus, NewValue: map[string]any{"status": "IN_PROGRESS"}},
		{TicketID: ticket.ID, ChangeType: domain.ChangeTypeAssignee, NewValue: map[string]any{"assignee_id": nil}},
	}
	require.NoError(t, s.TicketHistory().CreateBatch(ctx, entries))
	assert.NotEmpty(t, entries[0].ID)

	stored, err := s.TicketHistory().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, domain.ChangeTypeStatus, stored[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeAssignee, stored[1].ChangeType)
}
