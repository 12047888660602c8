package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]TicketStatus]bool{
		{TicketStatusOpen, TicketStatusInProgress}:     true,
		{TicketStatusOpen, TicketStatusResolved}:       true,
		{TicketStatusInProgress, TicketStatusOpen}:     true,
		{TicketStatusInProgress, TicketStatusResolved}: true,
		{TicketStatusResolved, TicketStatusOpen}:       true,
		{TicketStatusResolved, TicketStatusInProgress}: true,
	}
	for _, from := range TicketStatuses {
		for _, to := range TicketStatuses {
			want := from == to || allowed[[2]TicketStatus{from, to}]
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSelfTransitionIsAllowed(t *testing.T) {
	for _, s := range TicketStatuses {
		require.NoError(t, ValidateTransition(s, s))
	}
}

func TestUnknownTargetIsRejected(t *testing.T) {
	err := ValidateTransition(TicketStatusOpen, TicketStatus("CLOSED"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	assert.Contains(t, err.Error(), "OPEN to CLOSED")
}

func TestTicketVisibility(t *testing.T) {
	assignee := "ict-1"
	ticket := &Ticket{CreatedByID: "student-1", AssigneeID: &assignee}

	assert.True(t, ticket.VisibleTo(&User{ID: "student-1", Role: RoleStudent}))
	assert.True(t, ticket.VisibleTo(&User{ID: "ict-1", Role: RoleICT}))
	assert.True(t, ticket.VisibleTo(&User{ID: "staff-9", Role: RoleStaff}))
	assert.False(t, ticket.VisibleTo(&User{ID: "student-2", Role: RoleStudent}))
	assert.False(t, ticket.VisibleTo(nil))
}

func TestTicketUpdatableBy(t *testing.T) {
	ticket := &Ticket{CreatedByID: "student-1"}
	assert.True(t, ticket.UpdatableBy(&User{ID: "student-1", Role: RoleStudent}))
	assert.True(t, ticket.UpdatableBy(&User{ID: "staff-1", Role: RoleStaff}))
	assert.False(t, ticket.UpdatableBy(&User{ID: "student-2", Role: RoleStudent}))
}

func TestNormalizeCommentMessage(t *testing.T) {
	msg, ok := NormalizeCommentMessage("  hello \n")
	assert.True(t, ok)
	assert.Equal(t, "hello", msg)

	_, ok = NormalizeCommentMessage(" \t\n ")
	assert.False(t, ok)
}
