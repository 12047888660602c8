package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// CapabilityCheck selects a capability from the role matrix.
type CapabilityCheck func(domain.Capabilities) bool

// Common capability checks.
var (
	CanManageTickets CapabilityCheck = func(c domain.Capabilities) bool { return c.ManageTickets }
	CanAssignTickets CapabilityCheck = func(c domain.Capabilities) bool { return c.AssignTickets }
	CanManageUsers   CapabilityCheck = func(c domain.Capabilities) bool { return c.ManageUsers }
	CanDeleteTickets CapabilityCheck = func(c domain.Capabilities) bool { return c.DeleteTickets }
)

// RequireCapability ensures the principal's role grants check.
func RequireCapability(check CapabilityCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !check(principal.Capabilities()) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
