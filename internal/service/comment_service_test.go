package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Astro-67/bookissue-backend/internal/domain"
	apperrors "github.com/Astro-67/bookissue-backend/pkg/util/errorutil"
)

func TestCommentNotifiesCreatorAssigneeOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ict := h.seedUser(t, "baraka", domain.RoleICT)
	staff := h.seedUser(t, "subira", domain.RoleStaff)

	// the creator is also the assignee
	ticket := h.openTicket(t, ict)
	_, err := h.tickets.Assign(ctx, ict, ticket.ID, &ict.ID)
	require.NoError(t, err)

	_, err = h.comments.Create(ctx, staff, ticket.ID, "Checked the shelf, nothing there.")
	require.NoError(t, err)

	notes := h.inbox(t, ict, domain.NotificationNewComment)
	require.Len(t, notes, 1)
	assert.Equal(t, "subira Tester (Staff) has replied to ticket 'Need book X'.", notes[0].Message)
	assert.Empty(t, h.inbox(t, staff, domain.NotificationNewComment))
}

func TestCommentMessageIsTrimmedAndRequired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	student := h.seedUser(t, "amina", domain.RoleStudent)
	ticket := h.openTicket(t, student)

	_, err := h.comments.Create(ctx, student, ticket.ID, " \n\t ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	view, err := h.comments.Create(ctx, student, ticket.ID, "  still waiting  ")
	require.NoError(t, err)
	assert.Equal(t, "still waiting", view.Message)
	assert.Equal(t, student.ID, view.Author.ID)
}

func TestCommentThreadVisibilityAndOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.seedUser(t, "amina", domain.RoleStudent)
	stranger := h.seedUser(t, "bahati", domain.RoleStudent)
	staff := h.seedUser(t, "subira", domain.RoleStaff)
	ticket := h.openTicket(t, owner)

	first, err := h.comments.Create(ctx, owner, ticket.ID, "first")
	require.NoError(t, err)
	_, err = h.comments.Create(ctx, staff, ticket.ID, "second")
	require.NoError(t, err)

	thread, err := h.comments.List(ctx, owner, ticket.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "second", thread[0].Message)
	assert.Equal(t, domain.RoleStaff, thread[0].Author.Role)

	_, err = h.comments.List(ctx, stranger, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = h.comments.Create(ctx, stranger, ticket.ID, "me too")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = h.comments.Get(ctx, stranger, first.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestCommentEditAndDeletePermissions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	owner := h.seedUser(t, "amina", domain.RoleStudent)
	staff := h.seedUser(t, "subira", domain.RoleStaff)
	ticket := h.openTicket(t, owner)

	reply, err := h.comments.Create(ctx, staff, ticket.ID, "We are on it.")
	require.NoError(t, err)

	_, err = h.comments.Update(ctx, owner, reply.ID, "edited by someone else")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	assert.True(t, apperrors.HasCode(h.comments.Delete(ctx, owner, reply.ID), apperrors.CodeForbidden))

	mine, err := h.comments.Create(ctx, owner, ticket.ID, "typo hree")
	require.NoError(t, err)
	edited, err := h.comments.Update(ctx, owner, mine.ID, " typo here ")
	require.NoError(t, err)
	assert.Equal(t, "typo here", edited.Message)

	_, err = h.comments.Update(ctx, owner, mine.ID, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	require.NoError(t, h.comments.Delete(ctx, staff, mine.ID))
	_, err = h.comments.Get(ctx, owner, mine.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
