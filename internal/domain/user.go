// Package domain contains the core business entities for Pictor.
// These are pure Go structs with no external dependencies.
package domain

import "time"

// User is the per-client-address record consulted before accepting uploads.
// A user is created implicitly on first upload and can be blocked by an operator.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Address is the client network address the record is keyed by.
	Address string `json:"address"`

	// Blocked indicates the client is on the blacklist and cannot upload.
	Blocked bool `json:"blocked"`

	// CreatedAt is the timestamp when the record was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a new unblocked User for a client address.
func NewUser(address string) *User {
	return &User{
		Address:   address,
		Blocked:   false,
		CreatedAt: time.Now().UTC(),
	}
}

// CanUpload returns true if the user is allowed to upload.
func (u *User) CanUpload() bool {
	return !u.Blocked
}

// Upload associates a user with a content hash they uploaded.
// The same hash may appear under many users; the stored bytes exist once.
type Upload struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}
