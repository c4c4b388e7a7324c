// Package events defines the change notifications the store publishes after
// each committed mutation and the read-model consumes.
package events

import (
	"time"

	"github.com/dmitrijs2005/userledger/internal/server/models"
)

const (
	CategoryCreated  = "user.created"
	CategoryUpdated  = "user.updated"
	CategoryDeleted  = "user.deleted"
	CategoryRestored = "user.restored"
	CategoryPurged   = "user.purged"
)

// UserCreated carries the persisted record, identity and timestamps included.
type UserCreated struct {
	User models.User
}

// UserUpdated carries the full record as stored after the update.
type UserUpdated struct {
	User models.User
}

// UserDeleted reports a soft delete. At is the record's new LastModified.
type UserDeleted struct {
	ID int64
	At time.Time
}

// UserRestored reports the inverse of UserDeleted.
type UserRestored struct {
	ID int64
	At time.Time
}

// UserPurged reports a permanent removal.
type UserPurged struct {
	ID int64
}

func (UserCreated) Category() string  { return CategoryCreated }
func (UserUpdated) Category() string  { return CategoryUpdated }
func (UserDeleted) Category() string  { return CategoryDeleted }
func (UserRestored) Category() string { return CategoryRestored }
func (UserPurged) Category() string   { return CategoryPurged }
