package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// UserRole is the access level of an account
type UserRole string

// Account roles
const (
	RoleCitizen UserRole = "citizen"
	RoleAgency  UserRole = "agency"
	RoleAdmin   UserRole = "admin"
)

// UserRoles lists every role
var UserRoles = []UserRole{RoleCitizen, RoleAgency, RoleAdmin}

// ParseUserRole validates a role name
func ParseUserRole(s string) (UserRole, bool) {
	for _, r := range UserRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// IsStaff reports whether the role may work the triage queue
func (r UserRole) IsStaff() bool {
	return r == RoleAgency || r == RoleAdmin
}

// User represents a reporter or agency staff account
type User struct {
	ID               string         `json:"id" yaml:"id"`
	Username         string         `json:"username" yaml:"username"`
	Email            sql.NullString `json:"email" yaml:"email"`
	PasswordHash     sql.NullString `json:"-" yaml:"-"` // Omit from JSON responses
	Role             UserRole       `json:"role" yaml:"role"`
	CredibilityScore float64        `json:"credibility_score" yaml:"credibility_score"`
	AgencyID         sql.NullString `json:"agency_id" yaml:"agency_id"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" yaml:"updated_at"`
}

// MarshalJSON customizes JSON marshaling for User to handle sql.NullString properly
func (u User) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ID               string    `json:"id"`
		Username         string    `json:"username"`
		Email            *string   `json:"email"`
		Role             UserRole  `json:"role"`
		CredibilityScore float64   `json:"credibilityScore"`
		AgencyID         *string   `json:"agencyId"`
		CreatedAt        time.Time `json:"createdAt"`
		UpdatedAt        time.Time `json:"updatedAt"`
	}{
		ID:               u.ID,
		Username:         u.Username,
		Email:            nullStringToPointer(u.Email),
		Role:             u.Role,
		CredibilityScore: u.CredibilityScore,
		AgencyID:         nullStringToPointer(u.AgencyID),
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	})
}

// IsStaff reports whether the user may work the triage queue
func (u *User) IsStaff() bool {
	return u != nil && u.Role.IsStaff()
}

// SignupRequest is the body of a citizen account signup
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"omitempty,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the body of a login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// NullString wraps s, treating the empty string as NULL
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// StringPtrOrNil returns nil for the empty string
func StringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
