package types

import "time"

// Profile represents a profile record, optionally owned by a user.
type Profile struct {
	// ID is the unique identifier of the profile.
	ID string `json:"id" db:"id"`

	// ProfileName is the display name of the profile.
	ProfileName string `json:"profile_name" db:"profile_name"`

	// Code is a short business code for the profile.
	Code string `json:"code" db:"code"`

	// UserID is the id of the owning user, empty for unowned profiles.
	UserID string `json:"user_id,omitempty" db:"user_id"`

	// AvatarKey is the object-storage key of the profile avatar, if uploaded.
	AvatarKey string `json:"-" db:"avatar_key"`

	// CreatedAt is the timestamp when the profile was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the profile.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
