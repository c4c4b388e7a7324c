// Package validation checks commands before they reach the store: field
// format first, then case-insensitive uniqueness against every stored user,
// deleted or not.
//
// The validator reads the store directly rather than the read-model, so a
// check never runs against a view that lags behind a committed write.
package validation

import (
	"context"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/server/models"
)

const (
	emailMinLen      = 3
	emailMaxLen      = 254
	emailLocalMaxLen = 64
)

var (
	emailLocalRe  = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+(\.[A-Za-z0-9!#$%&'*+/=?^_{|}~-]+)*$`)
	emailDomainRe = regexp.MustCompile(`^[\p{L}\p{N}]([\p{L}\p{N}-]*[\p{L}\p{N}])?(\.[\p{L}\p{N}]([\p{L}\p{N}-]*[\p{L}\p{N}])?)+$`)
)

// Source is the authoritative view the validator checks against.
type Source interface {
	ListAll(ctx context.Context, deleted *bool) ([]models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type Validator struct {
	source Source
}

func New(source Source) *Validator {
	return &Validator{source: source}
}

// ValidateCreate checks user against every existing record.
func (v *Validator) ValidateCreate(ctx context.Context, user models.User) error {
	if err := ValidateFormat(user); err != nil {
		return err
	}
	return v.checkUnique(ctx, user, 0)
}

// ValidateUpdate returns common.ErrorNotFound when user.ID does not exist;
// otherwise it checks user against every record except itself.
func (v *Validator) ValidateUpdate(ctx context.Context, user models.User) error {
	if _, err := v.source.GetByID(ctx, user.ID); err != nil {
		return err
	}
	if err := ValidateFormat(user); err != nil {
		return err
	}
	return v.checkUnique(ctx, user, user.ID)
}

// ValidateFormat reports the first malformed field of user.
func ValidateFormat(user models.User) error {
	required := []struct {
		field, value string
	}{
		{common.FieldFirstName, user.FirstName},
		{common.FieldSurname, user.Surname},
		{common.FieldEmailAddress, user.EmailAddress},
		{common.FieldUsername, user.Username},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return common.InvalidFormat(r.field, "must not be empty")
		}
	}

	if !ValidEmail(strings.TrimSpace(user.EmailAddress)) {
		return common.InvalidFormat(common.FieldEmailAddress, "is not a valid email address")
	}
	return nil
}

// ValidEmail applies a practical address grammar: a dot-atom local part,
// "@", and a domain of at least two non-empty labels.
func ValidEmail(address string) bool {
	if len(address) < emailMinLen || len(address) > emailMaxLen {
		return false
	}

	local, domain, ok := strings.Cut(address, "@")
	if !ok || local == "" || len(local) > emailLocalMaxLen {
		return false
	}

	return emailLocalRe.MatchString(local) && emailDomainRe.MatchString(domain)
}

func (v *Validator) checkUnique(ctx context.Context, user models.User, self int64) error {
	existing, err := v.source.ListAll(ctx, nil)
	if err != nil {
		return err
	}

	emailKey, usernameKey, nameKey := user.EmailKey(), user.UsernameKey(), user.FullNameKey()

	rules := []struct {
		rule    string
		message string
		key     string
		keyOf   func(models.User) string
	}{
		{common.RuleEmailAddress, "email address is already in use", emailKey, models.User.EmailKey},
		{common.RuleUsername, "username is already in use", usernameKey, models.User.UsernameKey},
		{common.RuleFullName, "a user with this first name and surname already exists", nameKey, models.User.FullNameKey},
	}

	for _, r := range rules {
		for _, other := range existing {
			if other.ID == self {
				continue
			}
			if r.keyOf(other) == r.key {
				return common.Duplicate(r.rule, r.message)
			}
		}
	}
	return nil
}
