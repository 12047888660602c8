package domain

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	RoleStudent    Role = "student"
	RoleStaff      Role = "staff"
	RoleICT        Role = "ict"
	RoleSuperAdmin Role = "super_admin"
)

// Roles lists every recognised role in display order.
var Roles = []Role{RoleStudent, RoleStaff, RoleICT, RoleSuperAdmin}

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := capabilityMatrix[role]; !ok {
		return "", false
	}
	return role, true
}

// Label returns the human readable role name.
func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleStaff:
		return "Staff"
	case RoleICT:
		return "ICT"
	case RoleSuperAdmin:
		return "Super Admin"
	}
	return string(r)
}

// User is an account of any role.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	PhoneNumber  *string
	StudentID    *string
	Department   *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Capabilities returns the capability set derived from the user's role.
func (u *User) Capabilities() Capabilities {
	if u == nil {
		return Capabilities{}
	}
	return CapabilitiesFor(u.Role)
}

// UserStats summarises the account base.
type UserStats struct {
	Total    int64          `json:"total_users"`
	Active   int64          `json:"active_users"`
	Inactive int64          `json:"inactive_users"`
	ByRole   map[Role]int64 `json:"by_role"`
}
