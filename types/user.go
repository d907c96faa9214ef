package types

import "time"

// Role is the authorization level of a user.
type Role string

const (
	// RoleAdmin grants unrestricted access to every resource.
	RoleAdmin Role = "admin"

	// RoleUser grants access to the user's own resources only.
	RoleUser Role = "user"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned at creation
	// and immutable afterwards.
	ID string `json:"id" db:"id"`

	// Email is the user's email address, unique across all users.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Age is the user's age in years.
	Age int `json:"age" db:"age"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// ProfileID links the user to its profile, if any.
	ProfileID string `json:"profile_id,omitempty" db:"profile_id"`

	// Profile is the linked profile record, populated on reads.
	Profile *Profile `json:"profile,omitempty" db:"-"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
