package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astro-67/bookissue-backend/internal/api/http/handlers"
	"github.com/Astro-67/bookissue-backend/internal/auth"
	"github.com/Astro-67/bookissue-backend/internal/config"
	"github.com/Astro-67/bookissue-backend/internal/domain"
	"github.com/Astro-67/bookissue-backend/internal/events"
	"github.com/Astro-67/bookissue-backend/internal/observability"
	"github.com/Astro-67/bookissue-backend/internal/repository/memory"
	"github.com/Astro-67/bookissue-backend/internal/service"
)

type testServer struct {
	app    *fiber.App
	store  *memory.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(logger)
	metrics := observability.NewMetrics()
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 15, BcryptCost: 4}}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	notifications.RegisterHandlers()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("bookissue-api", "test", nil, nil, false),
		Auth: handlers.NewAuthHandler(service.NewAuthService(cfg, service.AuthDependencies{
			UserRepo:   store.Users(),
			Dispatcher: dispatcher,
		})),
		Users: handlers.NewUsersHandler(service.NewUserService(service.UserDependencies{
			UserRepo:    store.Users(),
			TicketRepo:  store.Tickets(),
			HistoryRepo: store.TicketHistory(),
			Dispatcher:  dispatcher,
			BcryptCost:  4,
			Logger:      logger,
		})),
		Tickets: handlers.NewTicketsHandler(service.NewTicketService(service.TicketDependencies{
			TicketRepo:  store.Tickets(),
			CommentRepo: store.Comments(),
			UserRepo:    store.Users(),
			HistoryRepo: store.TicketHistory(),
			Dispatcher:  dispatcher,
			Logger:      logger,
		})),
		Comments: handlers.NewCommentsHandler(service.NewCommentService(service.CommentDependencies{
			TicketRepo:  store.Tickets(),
			CommentRepo: store.Comments(),
			UserRepo:    store.Users(),
			Dispatcher:  dispatcher,
		})),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		Metrics:        metrics,
	})
	return &testServer{app: app, store: store, tokens: tokens}
}

// staffToken seeds an active account with role and returns its bearer token.
func (s *testServer) staffToken(t *testing.T, first string, role domain.Role) (*domain.User, string) {
	t.Helper()
	user := &domain.User{
		Email:        first + "@uni.example",
		PasswordHash: "unused",
		FirstName:    first,
		LastName:     "Tester",
		Role:         role,
		Active:       true,
	}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	token, _, err := s.tokens.GenerateToken(user)
	require.NoError(t, err)
	return user, token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestRegisterLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"email":      "Reader@Uni.Example",
		"password":   "correct horse",
		"first_name": "Amina",
	})
	require.Equal(t, fiber.StatusCreated, status)
	session := decode[struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}](t, body.Data)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "reader@uni.example", session.User.Email)
	assert.Equal(t, "student", session.User.Role)

	status, body = s.do(t, fiber.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "reader@uni.example",
		"password": "wrong horse",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	status, _ = s.do(t, fiber.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = s.do(t, fiber.MethodGet, "/api/auth/me", session.Token, nil)
	require.Equal(t, fiber.StatusOK, status)
	me := decode[struct {
		Email string `json:"email"`
	}](t, body.Data)
	assert.Equal(t, "reader@uni.example", me.Email)
}

func TestRegisterValidationReportsFields(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	fields, ok := body.Error.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	_, studentToken := s.staffToken(t, "amina", domain.RoleStudent)
	ict, ictToken := s.staffToken(t, "baraka", domain.RoleICT)

	status, body := s.do(t, fiber.MethodPost, "/api/tickets", studentToken, map[string]any{
		"title":       "Need book X",
		"description": "The library copy of book X is missing pages.",
	})
	require.Equal(t, fiber.StatusCreated, status)
	ticket := decode[struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}](t, body.Data)
	assert.Equal(t, "OPEN", ticket.Status)

	status, body = s.do(t, fiber.MethodGet, "/api/notifications/unread-count", ictToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	count := decode[struct {
		UnreadCount int `json:"unread_count"`
	}](t, body.Data)
	assert.Equal(t, 1, count.UnreadCount)

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticket.ID+"/assign", studentToken, map[string]any{"assigned_to": ict.ID})
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	status, _ = s.do(t, fiber.MethodPost, "/api/tickets/"+ticket.ID+"/assign", ictToken, map[string]any{"assigned_to": ict.ID})
	require.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticket.ID+"/status", ictToken, map[string]any{"status": "closed"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "INVALID_TRANSITION", body.Error.Code)

	status, body = s.do(t, fiber.MethodPost, "/api/tickets/"+ticket.ID+"/status", ictToken, map[string]any{"status": "resolved"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "RESOLVED", decode[struct {
		Status string `json:"status"`
	}](t, body.Data).Status)

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/my", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body.Data), 1)

	status, body = s.do(t, fiber.MethodGet, "/api/notifications?type=ticket_status", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body.Data), 1)

	status, body = s.do(t, fiber.MethodPost, "/api/notifications/mark-all-read", studentToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, decode[struct {
		UpdatedCount int `json:"updated_count"`
	}](t, body.Data).UpdatedCount)
}

func TestCommentRoutes(t *testing.T) {
	s := newTestServer(t)
	_, studentToken := s.staffToken(t, "amina", domain.RoleStudent)
	_, strangerToken := s.staffToken(t, "bahati", domain.RoleStudent)

	_, body := s.do(t, fiber.MethodPost, "/api/tickets", studentToken, map[string]any{
		"title":       "Need book X",
		"description": "The library copy of book X is missing pages.",
	})
	ticketID := decode[struct {
		ID string `json:"id"`
	}](t, body.Data).ID

	status, body := s.do(t, fiber.MethodPost, "/api/tickets/"+ticketID+"/comments", studentToken, map[string]any{"message": "  any news?  "})
	require.Equal(t, fiber.StatusCreated, status)
	comment := decode[struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}](t, body.Data)
	assert.Equal(t, "any news?", comment.Message)

	status, _ = s.do(t, fiber.MethodGet, "/api/tickets/"+ticketID+"/comments", strangerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodDelete, "/api/comments/"+comment.ID, studentToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestUsersRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	student, studentToken := s.staffToken(t, "amina", domain.RoleStudent)
	_, adminToken := s.staffToken(t, "chausiku", domain.RoleSuperAdmin)

	status, _ := s.do(t, fiber.MethodGet, "/api/users", studentToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodGet, "/api/users/"+student.ID, studentToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body := s.do(t, fiber.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body.Data), 2)
}

func TestTicketFilterRejectsMalformedIDs(t *testing.T) {
	s := newTestServer(t)
	_, ictToken := s.staffToken(t, "baraka", domain.RoleICT)

	status, body := s.do(t, fiber.MethodGet, "/api/tickets?created_by=42", ictToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "created_by", body.Error.Details["field"])
}

func TestInfrastructureRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	status, _ = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestPanicRendersInternalError(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)
	app.Get("/explode", func(c *fiber.Ctx) error {
		panic("shelf collapsed")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/explode", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}
