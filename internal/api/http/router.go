package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/Astro-67/bookissue-backend/internal/api/http/handlers"
	"github.com/Astro-67/bookissue-backend/internal/auth"
	"github.com/Astro-67/bookissue-backend/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	protected.Get("/auth/me", cfg.Auth.Me)
	protected.Patch("/auth/profile", cfg.Auth.UpdateProfile)
	protected.Post("/auth/change-password", cfg.Auth.ChangePassword)

	admin := auth.RequireCapability(auth.CanManageUsers)
	users := protected.Group("/users")
	users.Get("/", admin, cfg.Users.List)
	users.Post("/", admin, cfg.Users.Create)
	users.Get("/stats", admin, cfg.Users.Stats)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id", admin, cfg.Users.Update)
	users.Delete("/:id", admin, cfg.Users.Delete)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/my", cfg.Tickets.MyTickets)
	tickets.Get("/assigned-to-me", auth.RequireCapability(auth.CanManageTickets), cfg.Tickets.AssignedToMe)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Get("/:id/comments", cfg.Comments.List)
	tickets.Post("/:id/comments", cfg.Comments.Create)

	comments := protected.Group("/comments")
	comments.Get("/:id", cfg.Comments.Get)
	comments.Patch("/:id", cfg.Comments.Update)
	comments.Delete("/:id", cfg.Comments.Delete)

	notifications := protected.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread", cfg.Notifications.Unread)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/mark-read", cfg.Notifications.MarkRead)
	notifications.Post("/mark-all-read", cfg.Notifications.MarkAllRead)
	notifications.Get("/:id", cfg.Notifications.Get)
}
