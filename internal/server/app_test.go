package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/server/config"
	"github.com/dmitrijs2005/userledger/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = filepath.Join(t.TempDir(), "users.db")
	c.MetricsAddr = ""
	c.ShutdownTimeout = time.Second
	return c
}

func TestNewApp_SeedsEmptyDatabase(t *testing.T) {
	ctx := context.Background()

	app, err := NewApp(ctx, testConfig(t), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Len(t, app.Users.ListAll(ctx, nil), 3)
	deleted := app.Users.ListAll(ctx, models.OnlyDeleted())
	require.Len(t, deleted, 1)
	assert.Equal(t, "bobjohnson", deleted[0].Username)
}

func TestNewApp_SeedsOnlyOnce(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := NewApp(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	_, err = first.Users.Create(ctx, models.User{FirstName: "New", Surname: "Person",
		EmailAddress: "new@example.com", Username: "new"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewApp(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.Len(t, second.Users.ListAll(ctx, nil), 4)
}

func TestNewApp_WithoutSeed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.SeedOnEmpty = false

	app, err := NewApp(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Empty(t, app.Users.ListAll(ctx, nil))
}

func TestNewApp_UnsupportedDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseDriver = "mysql"

	_, err := NewApp(context.Background(), cfg, logging.NewNopLogger())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestApp_MetricsReflectCommands(t *testing.T) {
	ctx := context.Background()
	app, err := NewApp(ctx, testConfig(t), logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	_, err = app.Users.Create(ctx, models.User{FirstName: "New", Surname: "Person",
		EmailAddress: "new@example.com", Username: "new"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `userledger_commands_total{command="create",result="ok"} 1`)
	assert.Contains(t, body, `userledger_bus_events_published_total{category="user.created"} 1`)
	assert.Contains(t, body, `userledger_readmodel_records 4`)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"

	app, err := NewApp(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandleSignals_ReturnsWhenContextDone(t *testing.T) {
	app := &App{logger: logging.NewNopLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		app.handleSignals(ctx, cancel)
	}()

	cancel()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("signal handler outlived its context")
	}
}
