// Package users is the durable persistence layer for user records. It knows
// nothing about events or caching; the write-model in internal/server/store
// drives it, usually inside a transaction.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/userledger/internal/server/models"
)

// Repository describes the SQL operations on the users table.
type Repository interface {
	// List returns all users ordered by id, or only those whose deleted flag
	// equals *deleted when deleted is non-nil.
	List(ctx context.Context, deleted *bool) ([]models.User, error)

	// GetByID returns common.ErrorNotFound when no row has the id.
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByIDForUpdate is GetByID for a read-modify-write inside a
	// transaction. On postgres the row stays locked until the transaction
	// ends; SQLite serializes writers on its single connection instead.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)

	// Create inserts user with its timestamps and deleted flag as given and
	// fills in the assigned ID.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// Update writes the attributes and LastModified of an existing row.
	// Returns common.ErrorNotFound when no row has user.ID.
	Update(ctx context.Context, user *models.User) error

	// SetDeleted flips the deleted flag and reports whether a row matched.
	SetDeleted(ctx context.Context, id int64, deleted bool, at time.Time) (bool, error)

	// Delete physically removes a row and reports whether one matched.
	Delete(ctx context.Context, id int64) (bool, error)

	Count(ctx context.Context) (int64, error)
}
