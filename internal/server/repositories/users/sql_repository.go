package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/dbx"
	"github.com/dmitrijs2005/userledger/internal/server/models"
	"github.com/dmitrijs2005/userledger/internal/timex"
	"github.com/jmoiron/sqlx"
)

const selectColumns = `id, first_name, surname, email_address, username, deleted, created_at, last_modified`

// SQLRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
// Queries are written with "?" placeholders and rebound for the driver.
type SQLRepository struct {
	db       dbx.DBTX
	bindType int
}

// NewSQLRepository binds the repository to db; driverName selects the
// placeholder style ("sqlite" or "pgx").
func NewSQLRepository(db dbx.DBTX, driverName string) *SQLRepository {
	return &SQLRepository{db: db, bindType: sqlx.BindType(driverName)}
}

func (r *SQLRepository) rebind(query string) string {
	return sqlx.Rebind(r.bindType, query)
}

func (r *SQLRepository) List(ctx context.Context, deleted *bool) ([]models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users`
	var args []any
	if deleted != nil {
		query += ` WHERE deleted = ?`
		args = append(args, *deleted)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	result := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, storageError(err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}

	return result, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getByID(ctx, `SELECT `+selectColumns+` FROM users WHERE id = ?`, id)
}

func (r *SQLRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = ?`
	if r.bindType == sqlx.DOLLAR {
		query += ` FOR UPDATE`
	}
	return r.getByID(ctx, query, id)
}

func (r *SQLRepository) getByID(ctx context.Context, query string, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, r.rebind(query), id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, storageError(err)
	}

	return &u, nil
}

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (first_name, surname, email_address, username,
		                    email_key, username_key, full_name_key,
		                    deleted, created_at, last_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, r.rebind(query),
		user.FirstName, user.Surname, user.EmailAddress, user.Username,
		user.EmailKey(), user.UsernameKey(), user.FullNameKey(),
		user.Deleted, timex.ToMicros(user.Created), timex.ToMicros(user.LastModified),
	).Scan(&user.ID)
	if err != nil {
		return nil, writeError(err)
	}

	return user, nil
}

func (r *SQLRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users
		 SET first_name = ?, surname = ?, email_address = ?, username = ?,
		     email_key = ?, username_key = ?, full_name_key = ?,
		     last_modified = ?
		 WHERE id = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		user.FirstName, user.Surname, user.EmailAddress, user.Username,
		user.EmailKey(), user.UsernameKey(), user.FullNameKey(),
		timex.ToMicros(user.LastModified), user.ID,
	)
	if err != nil {
		return writeError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) SetDeleted(ctx context.Context, id int64, deleted bool, at time.Time) (bool, error) {
	query := `UPDATE users SET deleted = ?, last_modified = ? WHERE id = ?`
	return r.execMatched(ctx, query, deleted, timex.ToMicros(at), id)
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return r.execMatched(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, storageError(err)
	}
	return n, nil
}

func (r *SQLRepository) execMatched(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return false, storageError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(err)
	}
	return n > 0, nil
}

func scanUser(scan func(dest ...any) error) (models.User, error) {
	var (
		u                     models.User
		created, lastModified int64
	)
	if err := scan(&u.ID, &u.FirstName, &u.Surname, &u.EmailAddress, &u.Username,
		&u.Deleted, &created, &lastModified); err != nil {
		return models.User{}, err
	}
	u.Created = timex.FromMicros(created)
	u.LastModified = timex.FromMicros(lastModified)
	return u, nil
}

func storageError(err error) error {
	return fmt.Errorf("%w: db error: %w", common.ErrorStorage, err)
}
