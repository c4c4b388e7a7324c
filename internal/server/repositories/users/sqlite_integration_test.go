package users_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/server/models"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := repomanager.Open(ctx, repomanager.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := repomanager.NewRepositoryManager(repomanager.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(ctx, db))
	return db
}

func sample(first, last, email, username string, at time.Time) *models.User {
	return &models.User{FirstName: first, Surname: last, EmailAddress: email, Username: username,
		Created: at, LastModified: at}
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := users.NewSQLRepository(openSQLite(t), repomanager.DriverSQLite)
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456000, time.UTC)

	a, err := repo.Create(ctx, sample("Ann", "Lee", "ann@example.com", "ann", at))
	require.NoError(t, err)
	b, err := repo.Create(ctx, sample("Ben", "Ray", "ben@example.com", "ben", at))
	require.NoError(t, err)
	assert.Less(t, a.ID, b.ID)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, *a, *got)

	ok, err := repo.SetDeleted(ctx, b.ID, true, at.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := repo.List(ctx, models.OnlyDeleted())
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, b.ID, deleted[0].ID)
	assert.Equal(t, at.Add(time.Second), deleted[0].LastModified)

	active, err := repo.List(ctx, models.OnlyActive())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	a.Username = "ann2"
	a.LastModified = at.Add(2 * time.Second)
	require.NoError(t, repo.Update(ctx, a))
	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann2", got.Username)

	ok, err = repo.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = repo.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSQLite_FoldedKeysAreUnique(t *testing.T) {
	ctx := context.Background()
	repo := users.NewSQLRepository(openSQLite(t), repomanager.DriverSQLite)
	at := time.Now().UTC().Truncate(time.Microsecond)

	_, err := repo.Create(ctx, sample("Ann", "Lee", "ann@example.com", "ann", at))
	require.NoError(t, err)

	tests := []struct {
		name string
		user *models.User
		rule string
	}{
		{"email differs by case", sample("X", "Y", "ANN@Example.com", "x", at), common.RuleEmailAddress},
		{"username differs by case", sample("X", "Y", "x@example.com", "ANN", at), common.RuleUsername},
		{"full name differs by case", sample("ann", "LEE", "z@example.com", "z", at), common.RuleFullName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.user)
			require.ErrorIs(t, err, common.ErrorDuplicate)

			var verr *common.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.rule, verr.Rule)
		})
	}
}
