package dto

import (
	"time"

	"github.com/Astro-67/bookissue-backend/internal/domain"
)

// RegisterRequest payload for self-registration.
type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FirstName   string  `json:"first_name" validate:"max=150"`
	LastName    string  `json:"last_name" validate:"max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
	StudentID   *string `json:"student_id" validate:"omitempty,max=20"`
	Department  *string `json:"department" validate:"omitempty,max=100"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdateRequest payload for PATCH /api/auth/profile.
type ProfileUpdateRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
	Department  *string `json:"department" validate:"omitempty,max=100"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// CreateUserRequest is the admin account creation payload.
type CreateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FirstName   string  `json:"first_name" validate:"max=150"`
	LastName    string  `json:"last_name" validate:"max=150"`
	Role        string  `json:"role" validate:"required,oneof=student staff ict super_admin"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
	StudentID   *string `json:"student_id" validate:"omitempty,max=20"`
	Department  *string `json:"department" validate:"omitempty,max=100"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateUserRequest is the admin partial update payload.
type UpdateUserRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	Role        *string `json:"role" validate:"omitempty,oneof=student staff ict super_admin"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=20"`
	StudentID   *string `json:"student_id" validate:"omitempty,max=20"`
	Department  *string `json:"department" validate:"omitempty,max=100"`
	IsActive    *bool   `json:"is_active"`
}

// UserResponse is the full account representation.
type UserResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	FullName    string      `json:"full_name"`
	Role        domain.Role `json:"role"`
	RoleLabel   string      `json:"role_display"`
	PhoneNumber *string     `json:"phone_number"`
	StudentID   *string     `json:"student_id"`
	Department  *string     `json:"department"`
	IsActive    bool        `json:"is_active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserSummary is the short form embedded in tickets and comments.
type UserSummary struct {
	ID       string      `json:"id"`
	FullName string      `json:"full_name"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Role:        u.Role,
		RoleLabel:   u.Role.Label(),
		PhoneNumber: u.PhoneNumber,
		StudentID:   u.StudentID,
		Department:  u.Department,
		IsActive:    u.Active,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// NewUserSummary maps a possibly deleted user.
func NewUserSummary(u *domain.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, FullName: u.FullName(), Email: u.Email, Role: u.Role}
}
