package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/userledger/internal/eventbus"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "first_name", "surname", "email_address", "username", "deleted", "created_at", "last_modified"}

// newPostgresStore drives the store through sqlmock with the postgres
// dialect, so the statements a real server would see can be asserted.
func newPostgresStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := repomanager.NewRepositoryManager(repomanager.DriverPostgres)
	require.NoError(t, err)

	// The clock lags storage so the successor rule decides LastModified.
	clock := frozenClock(time.Unix(1, 0).UTC())
	return New(db, m, eventbus.New(logging.NewNopLogger()), WithClock(clock)), mock
}

func storedRow() *sqlmock.Rows {
	return sqlmock.NewRows(userColumns).
		AddRow(int64(3), "John", "Doe", "john@example.com", "johndoe", false, int64(1_000_000), int64(2_000_000))
}

func TestUpdate_LocksRowBeforeDerivingLastModified(t *testing.T) {
	s, mock := newPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE$`).WithArgs(int64(3)).WillReturnRows(storedRow())
	mock.ExpectExec(`UPDATE users`).
		WithArgs(
			"Johnny", "Doe", "john@example.com", "johndoe",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(2_000_001), int64(3),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	in := draft("Johnny", "Doe", "john@example.com", "johndoe")
	in.ID = 3
	got, err := s.Update(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, time.UnixMicro(2_000_001).UTC(), got.LastModified)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteRestore_LockRow(t *testing.T) {
	tests := []struct {
		name    string
		call    func(s *Store) (bool, error)
		deleted bool
	}{
		{name: "soft delete", call: func(s *Store) (bool, error) { return s.SoftDelete(context.Background(), 3) }, deleted: true},
		{name: "restore", call: func(s *Store) (bool, error) { return s.Restore(context.Background(), 3) }, deleted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newPostgresStore(t)

			mock.ExpectBegin()
			mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE$`).WithArgs(int64(3)).WillReturnRows(storedRow())
			mock.ExpectExec(`^UPDATE users SET deleted = \$1, last_modified = \$2 WHERE id = \$3$`).
				WithArgs(tt.deleted, int64(2_000_001), int64(3)).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			ok, err := tt.call(s)
			require.NoError(t, err)
			assert.True(t, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
