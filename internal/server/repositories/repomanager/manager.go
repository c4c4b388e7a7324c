// Package repomanager opens the durable store, applies the embedded goose
// migrations for the configured dialect and vends repositories bound to a
// *sql.DB or *sql.Tx.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/userledger/internal/dbx"
	"github.com/dmitrijs2005/userledger/internal/filex"
	"github.com/dmitrijs2005/userledger/internal/server/migrations"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type RepositoryManager interface {
	Driver() string
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

type dialect struct {
	goose string
	dir   string
}

var dialects = map[string]dialect{
	DriverSQLite:   {goose: "sqlite3", dir: "sqlite"},
	DriverPostgres: {goose: "postgres", dir: "postgres"},
}

// SQLRepositoryManager vends SQL-backed repositories for one driver.
type SQLRepositoryManager struct {
	driver  string
	dialect dialect
}

// NewRepositoryManager returns a manager for driver ("sqlite" or "pgx").
func NewRepositoryManager(driver string) (RepositoryManager, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	return &SQLRepositoryManager{driver: driver, dialect: d}, nil
}

func (m *SQLRepositoryManager) Driver() string {
	return m.driver
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.driver)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations of the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.goose); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, m.dialect.dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Open opens and pings the database. SQLite gets a single connection so that
// writers never contend for the file lock and ":memory:" stays one database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if path, ok := sqliteFilePath(driver, dsn); ok {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("prepare %s db: %w", driver, err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}

	return db, nil
}

// sqliteFilePath returns the file behind a plain SQLite path DSN. In-memory
// databases and "file:" URIs are left alone.
func sqliteFilePath(driver, dsn string) (string, bool) {
	if driver != DriverSQLite || dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return "", false
	}
	return dsn, true
}
