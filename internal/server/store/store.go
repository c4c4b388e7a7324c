// Package store is the write-model: the only component that mutates durable
// user state. Every successful mutation is committed first and then announced
// on the event bus, so subscribers always observe committed data.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/dbx"
	"github.com/dmitrijs2005/userledger/internal/eventbus"
	"github.com/dmitrijs2005/userledger/internal/server/events"
	"github.com/dmitrijs2005/userledger/internal/server/models"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/repomanager"
)

// Store persists users through the repository manager and publishes
// events.User* after each committed change.
type Store struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	bus         *eventbus.Bus
	now         func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(db *sql.DB, repomanager repomanager.RepositoryManager, bus *eventbus.Bus, opts ...Option) *Store {
	s := &Store{
		db:          db,
		repomanager: repomanager,
		bus:         bus,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ListAll(ctx context.Context, deleted *bool) ([]models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, deleted)
}

func (s *Store) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// Create assigns identity and both timestamps, forces Deleted to false and
// publishes events.UserCreated.
func (s *Store) Create(ctx context.Context, draft models.User) (*models.User, error) {
	now := s.timestamp()
	user := draft
	user.ID = 0
	user.Deleted = false
	user.Created = now
	user.LastModified = now

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.repomanager.Users(tx).Create(ctx, &user)
		return err
	})
	if err != nil {
		return nil, txError(err)
	}

	eventbus.Publish(ctx, s.bus, events.UserCreated{User: user})
	return &user, nil
}

// Update writes the attributes of user against its existing identity. The
// deleted flag and creation time are kept from storage. Returns
// common.ErrorNotFound when the identity does not exist.
func (s *Store) Update(ctx context.Context, user models.User) (*models.User, error) {
	updated := user

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		current, err := repo.GetByIDForUpdate(ctx, user.ID)
		if err != nil {
			return err
		}

		updated.Deleted = current.Deleted
		updated.Created = current.Created
		updated.LastModified = s.nextModified(current.LastModified)

		return repo.Update(ctx, &updated)
	})
	if err != nil {
		return nil, txError(err)
	}

	eventbus.Publish(ctx, s.bus, events.UserUpdated{User: updated})
	return &updated, nil
}

// SoftDelete marks the user deleted and reports whether it exists.
func (s *Store) SoftDelete(ctx context.Context, id int64) (bool, error) {
	at, ok, err := s.setDeleted(ctx, id, true)
	if err != nil || !ok {
		return false, err
	}

	eventbus.Publish(ctx, s.bus, events.UserDeleted{ID: id, At: at})
	return true, nil
}

// Restore clears the deleted flag and reports whether the user exists.
func (s *Store) Restore(ctx context.Context, id int64) (bool, error) {
	at, ok, err := s.setDeleted(ctx, id, false)
	if err != nil || !ok {
		return false, err
	}

	eventbus.Publish(ctx, s.bus, events.UserRestored{ID: id, At: at})
	return true, nil
}

// Purge physically removes the row. It bypasses soft-delete and is meant
// for administrative cleanup only.
func (s *Store) Purge(ctx context.Context, id int64) (bool, error) {
	var matched bool

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		matched, err = s.repomanager.Users(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return false, txError(err)
	}
	if !matched {
		return false, nil
	}

	eventbus.Publish(ctx, s.bus, events.UserPurged{ID: id})
	return true, nil
}

func (s *Store) setDeleted(ctx context.Context, id int64, deleted bool) (time.Time, bool, error) {
	var (
		at      time.Time
		matched bool
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		current, err := repo.GetByIDForUpdate(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		at = s.nextModified(current.LastModified)
		matched, err = repo.SetDeleted(ctx, id, deleted, at)
		return err
	})
	if err != nil {
		return time.Time{}, false, txError(err)
	}

	return at, matched, nil
}

// timestamp is the current time at storage precision.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextModified keeps LastModified strictly increasing per record even when
// the clock stalls or steps backwards.
func (s *Store) nextModified(previous time.Time) time.Time {
	now := s.timestamp()
	if floor := previous.Add(time.Microsecond); now.Before(floor) {
		return floor
	}
	return now
}

// txError passes domain conditions through and classifies anything else,
// such as a failed begin or commit, as a storage failure.
func txError(err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorDuplicate),
		errors.Is(err, common.ErrorStorage):
		return err
	default:
		return fmt.Errorf("%w: db error: %w", common.ErrorStorage, err)
	}
}
