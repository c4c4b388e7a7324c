// Package services contains the server-side facade over the user core.
// UserService answers queries from the read-model and sends commands through
// the validator to the write-model.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/server/models"
)

// Command names used in logs and the commands_total metric.
const (
	CommandCreate          = "create"
	CommandUpdate          = "update"
	CommandSoftDelete      = "soft_delete"
	CommandRestore         = "restore"
	CommandPermanentDelete = "permanent_delete"
)

// Checker is implemented by *validation.Validator.
type Checker interface {
	ValidateCreate(ctx context.Context, user models.User) error
	ValidateUpdate(ctx context.Context, user models.User) error
}

// Writer is implemented by *store.Store.
type Writer interface {
	Create(ctx context.Context, draft models.User) (*models.User, error)
	Update(ctx context.Context, user models.User) (*models.User, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
	Restore(ctx context.Context, id int64) (bool, error)
	Purge(ctx context.Context, id int64) (bool, error)
}

// Reader is implemented by *readmodel.Cache.
type Reader interface {
	ListAll(ctx context.Context, deleted *bool) []models.User
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// CommandRecorder is implemented by *metrics.Metrics.
type CommandRecorder interface {
	RecordCommand(command string, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordCommand(string, time.Duration, error) {}

type UserService struct {
	checker  Checker
	writer   Writer
	reader   Reader
	logger   logging.Logger
	recorder CommandRecorder
}

type Option func(*UserService)

func WithRecorder(r CommandRecorder) Option {
	return func(s *UserService) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewUserService wires the facade. Commands return once the store has
// committed and the bus has delivered the event, so a following query on
// the same process already sees the change.
func NewUserService(checker Checker, writer Writer, reader Reader, logger logging.Logger, opts ...Option) *UserService {
	s := &UserService{
		checker:  checker,
		writer:   writer,
		reader:   reader,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAll returns all users, or only those matching the deleted filter.
func (s *UserService) ListAll(ctx context.Context, deleted *bool) []models.User {
	return s.reader.ListAll(ctx, deleted)
}

// GetByID returns common.ErrorNotFound for unknown ids.
func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.reader.GetByID(ctx, id)
}

// Create validates draft against the store and persists it.
func (s *UserService) Create(ctx context.Context, draft models.User) (user *models.User, err error) {
	defer s.observe(ctx, CommandCreate, time.Now(), &err)

	draft = normalize(draft)
	if err := s.checker.ValidateCreate(ctx, draft); err != nil {
		return nil, err
	}
	return s.writer.Create(ctx, draft)
}

// Update validates the new attributes of an existing user and persists
// them. The deleted flag is not changed by Update.
func (s *UserService) Update(ctx context.Context, user models.User) (updated *models.User, err error) {
	defer s.observe(ctx, CommandUpdate, time.Now(), &err)

	user = normalize(user)
	if err := s.checker.ValidateUpdate(ctx, user); err != nil {
		return nil, err
	}
	return s.writer.Update(ctx, user)
}

// SoftDelete reports false when the id does not exist.
func (s *UserService) SoftDelete(ctx context.Context, id int64) (bool, error) {
	return s.flag(ctx, CommandSoftDelete, id, s.writer.SoftDelete)
}

// Restore reports false when the id does not exist.
func (s *UserService) Restore(ctx context.Context, id int64) (bool, error) {
	return s.flag(ctx, CommandRestore, id, s.writer.Restore)
}

// PermanentlyDelete removes the user from storage and the read-model.
func (s *UserService) PermanentlyDelete(ctx context.Context, id int64) (bool, error) {
	return s.flag(ctx, CommandPermanentDelete, id, s.writer.Purge)
}

func (s *UserService) flag(ctx context.Context, command string, id int64, fn func(context.Context, int64) (bool, error)) (bool, error) {
	start := time.Now()
	ok, err := fn(ctx, id)

	outcome := err
	if err == nil && !ok {
		outcome = common.ErrorNotFound
	}
	s.observe(ctx, command, start, &outcome)

	return ok, err
}

func (s *UserService) observe(ctx context.Context, command string, start time.Time, errp *error) {
	err := *errp
	s.recorder.RecordCommand(command, time.Since(start), err)

	switch {
	case err == nil:
		s.logger.Debug(ctx, "command handled", "command", command)
	case common.IsUserCorrectable(err), errors.Is(err, common.ErrorNotFound):
		s.logger.Info(ctx, "command rejected", "command", command, "error", err.Error())
	default:
		s.logger.Error(ctx, "command failed", "command", command, "error", err.Error())
	}
}

func normalize(u models.User) models.User {
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.Surname = strings.TrimSpace(u.Surname)
	u.EmailAddress = strings.TrimSpace(u.EmailAddress)
	u.Username = strings.TrimSpace(u.Username)
	return u
}
