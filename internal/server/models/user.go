// Package models defines server-side data models persisted in the database.
package models

import "time"

// Theme preferences accepted for User.ThemePreference.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// User is either a real account (email and password set) or a placeholder
// identity standing in for a named sender or group member.
type User struct {
	ID              string
	Name            string
	Email           *string
	PasswordHash    []byte
	IsAdmin         bool
	ThemePreference string
	HideAddMemberUI bool
	// PlaceholderOwnerID is the user whose sender input materialized this
	// placeholder. Nil for real accounts.
	PlaceholderOwnerID *string
	CreatedAt          time.Time
}

// IsPlaceholder reports whether the user has neither email nor password.
func (u *User) IsPlaceholder() bool {
	return u.Email == nil && len(u.PasswordHash) == 0
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Name  string
	Email string
	// Role is "admin", "user" or empty for both.
	Role string
	// Sort is one of name, email, created_at, role.
	Sort string
	Desc bool
}
