package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/config"
	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/repository"
	"github.com/Astro-67/bookissue-backend/internal/repository/memory"
)

type harness struct {
	store         *memory.Store
	dispatcher    events.Dispatcher
	auth          *AuthService
	users         *UserService
	tickets       *TicketService
	comments      *CommentService
	notifications *NotificationService
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, enqueuer Enqueuer) *harness {
	t.Helper()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4}}
	h := &harness{
		store:      store,
		dispatcher: dispatcher,
		auth:       NewAuthService(cfg, AuthDependencies{UserRepo: store.Users(), Dispatcher: dispatcher}),
		users: NewUserService(UserDependencies{
			UserRepo:    store.Users(),
			TicketRepo:  store.Tickets(),
			HistoryRepo: store.TicketHistory(),
			Dispatcher:  dispatcher,
			BcryptCost:  4,
		}),
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:  store.Tickets(),
			CommentRepo: store.Comments(),
			UserRepo:    store.Users(),
			HistoryRepo: store.TicketHistory(),
			Dispatcher:  dispatcher,
		}),
		comments: NewCommentService(CommentDependencies{
			TicketRepo:  store.Tickets(),
			CommentRepo: store.Comments(),
			UserRepo:    store.Users(),
			Dispatcher:  dispatcher,
		}),
		notifications: NewNotificationService(NotificationDependencies{
			NotificationRepo: store.Notifications(),
			Dispatcher:       dispatcher,
			Enqueuer:         enqueuer,
		}),
	}
	h.notifications.RegisterHandlers()
	return h
}

func (h *harness) seedUser(t *testing.T, first string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:        first + "@uni.example",
		PasswordHash: "unused",
		FirstName:    first,
		LastName:     "Tester",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return user
}

func (h *harness) openTicket(t *testing.T, creator *domain.User) *TicketView {
	t.Helper()
	view, err := h.tickets.CreateTicket(context.Background(), creator, TicketCreateInput{
		Title:       "Need book X",
		Description: "The library copy of book X is missing pages.",
	})
	require.NoError(t, err)
	return view
}

func (h *harness) inbox(t *testing.T, user *domain.User, kind domain.NotificationType) []domain.Notification {
	t.Helper()
	filter := repository.NotificationFilter{UserID: user.ID, Limit: 100}
	if kind != "" {
		filter.Type = &kind
	}
	list, err := h.store.Notifications().List(context.Background(), filter)
	require.NoError(t, err)
	return list
}

func ptr[T any](v T) *T { return &v }
