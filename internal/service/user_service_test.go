package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

func TestRegisterCreatesStudentAndWelcomesThem(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, err := h.auth.Register(ctx, RegisterInput{
		Email:     "  New.Reader@Uni.Example ",
		Password:  "correct horse",
		FirstName: "Neema",
		LastName:  "Reader",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, domain.RoleStudent, session.User.Role)
	assert.Equal(t, "new.reader@uni.example", session.User.Email)

	welcome := h.inbox(t, session.User, domain.NotificationGeneral)
	require.Len(t, welcome, 1)
	assert.Equal(t, "Welcome to Book Issue Tracker", welcome[0].Title)

	_, err = h.auth.Register(ctx, RegisterInput{Email: "new.reader@uni.example", Password: "another pass"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestLoginRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	session, err := h.auth.Register(ctx, RegisterInput{Email: "reader@uni.example", Password: "correct horse"})
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, "reader@uni.example", "wrong horse")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, err = h.auth.Login(ctx, "nobody@uni.example", "correct horse")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	again, err := h.auth.Login(ctx, "READER@uni.example", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, again.User.ID)

	require.NoError(t, h.auth.ChangePassword(ctx, session.User, "correct horse", "battery staple"))
	_, err = h.auth.Login(ctx, "reader@uni.example", "correct horse")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, err = h.auth.Login(ctx, "reader@uni.example", "battery staple")
	assert.NoError(t, err)
}

func TestUserAdministrationRequiresManageUsers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ict := h.seedUser(t, "baraka", domain.RoleICT)
	student := h.seedUser(t, "amina", domain.RoleStudent)

	_, err := h.users.List(ctx, ict, UserListFilter{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = h.users.Get(ctx, ict, student.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	self, err := h.users.Get(ctx, student, student.ID)
	require.NoError(t, err)
	assert.Equal(t, student.Email, self.Email)
}

func TestAdminManagesAccounts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.seedUser(t, "chausiku", domain.RoleSuperAdmin)
	student := h.seedUser(t, "amina", domain.RoleStudent)

	staff, err := h.users.Create(ctx, admin, CreateUserInput{
		Email:     "librarian@uni.example",
		Password:  "shelf-life",
		FirstName: "Subira",
		LastName:  "Librarian",
		Role:      domain.RoleStaff,
	})
	require.NoError(t, err)
	assert.True(t, staff.Active)
	assert.Len(t, h.inbox(t, staff, domain.NotificationGeneral), 1)

	_, err = h.users.Create(ctx, admin, CreateUserInput{Email: "x@uni.example", Password: "12345678", Role: "librarian"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	promoted, err := h.users.Update(ctx, admin, student.ID, UpdateUserInput{Role: ptr(domain.RoleICT)})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleICT, promoted.Role)

	_, err = h.users.Update(ctx, admin, admin.ID, UpdateUserInput{Role: ptr(domain.RoleStaff)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = h.users.Update(ctx, admin, admin.ID, UpdateUserInput{Active: ptr(false)})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.True(t, apperrors.HasCode(h.users.Delete(ctx, admin, admin.ID), apperrors.CodeValidation))

	stats, err := h.users.Stats(ctx, admin)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 1, stats.ByRole[domain.RoleICT])

	require.NoError(t, h.users.Delete(ctx, admin, staff.ID))
	_, err = h.users.Get(ctx, admin, staff.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeactivatedAssigneeLeavesTriagePool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.seedUser(t, "chausiku", domain.RoleSuperAdmin)
	staff := h.seedUser(t, "subira", domain.RoleStaff)
	student := h.seedUser(t, "amina", domain.RoleStudent)

	_, err := h.users.Update(ctx, admin, staff.ID, UpdateUserInput{Active: ptr(false)})
	require.NoError(t, err)

	ticket := h.openTicket(t, student)
	assert.Empty(t, h.inbox(t, staff, ""))
	assert.Len(t, h.inbox(t, admin, domain.NotificationNewTicket), 1)

	_, err = h.tickets.Assign(ctx, admin, ticket.ID, &staff.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestDemotionReleasesAssignedTickets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	admin := h.seedUser(t, "chausiku", domain.RoleSuperAdmin)
	ict := h.seedUser(t, "baraka", domain.RoleICT)
	student := h.seedUser(t, "amina", domain.RoleStudent)

	kept := h.openTicket(t, student)
	released := h.openTicket(t, student)
	_, err := h.tickets.Assign(ctx, admin, kept.ID, &ict.ID)
	require.NoError(t, err)

	// ict -> staff keeps ManageTickets, so the assignment survives
	_, err = h.users.Update(ctx, admin, ict.ID, UpdateUserInput{Role: ptr(domain.RoleStaff)})
	require.NoError(t, err)
	view, err := h.tickets.Get(ctx, admin, kept.ID)
	require.NoError(t, err)
	require.NotNil(t, view.AssigneeID)
	assert.Equal(t, ict.ID, *view.AssigneeID)

	_, err = h.tickets.Assign(ctx, admin, released.ID, &ict.ID)
	require.NoError(t, err)
	demoted, err := h.users.Update(ctx, admin, ict.ID, UpdateUserInput{Role: ptr(domain.RoleStudent)})
	require.NoError(t, err)
	assert.False(t, demoted.Capabilities().ManageTickets)

	for _, id := range []string{kept.ID, released.ID} {
		view, err := h.tickets.Get(ctx, admin, id)
		require.NoError(t, err)
		assert.Nil(t, view.AssigneeID)

		history, err := h.tickets.History(ctx, admin, id)
		require.NoError(t, err)
		require.NotEmpty(t, history)
		last := history[len(history)-1]
		assert.Equal(t, domain.ChangeTypeAssignee, last.ChangeType)
		assert.Equal(t, admin.ID, last.ChangedByID)
		assert.Equal(t, ict.ID, last.OldValue["assignee_id"])
		assert.Nil(t, last.NewValue["assignee_id"])
	}

	_, err = h.tickets.Get(ctx, demoted, kept.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.tickets.UpdateStatus(ctx, admin, kept.ID, domain.TicketStatusInProgress)
	require.NoError(t, err)
	assert.Empty(t, h.inbox(t, demoted, domain.NotificationTicketStatus))
}
