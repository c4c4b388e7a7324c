package models

import "time"

// User is the single record type managed by the ledger. ID is assigned by the
// store and never changes; Deleted marks a soft-deleted record.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	Surname      string    `json:"surname"`
	EmailAddress string    `json:"email_address"`
	Username     string    `json:"username"`
	Deleted      bool      `json:"deleted"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

// MatchesDeleted reports whether u passes an optional deleted-flag filter.
// A nil filter matches everything.
func (u User) MatchesDeleted(deleted *bool) bool {
	return deleted == nil || u.Deleted == *deleted
}

// OnlyDeleted and OnlyActive are ready-made filters for ListAll.
func OnlyDeleted() *bool { v := true; return &v }
func OnlyActive() *bool  { v := false; return &v }
