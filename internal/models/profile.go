package models

import "time"

// Profile extends a user account with library-specific contact fields.
// Exactly one profile exists per account; it is created in the same
// transaction as the user at registration time.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Matricule *string   `db:"matricule" json:"matricule,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileDetail joins the profile with its owning account.
type ProfileDetail struct {
	Profile
	Email    string   `db:"email" json:"email"`
	FullName string   `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
}
