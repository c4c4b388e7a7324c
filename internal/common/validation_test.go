package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_InvalidFormat(t *testing.T) {
	err := InvalidFormat(FieldEmailAddress, "missing @")

	assert.ErrorIs(t, err, ErrorInvalidFormat)
	assert.NotErrorIs(t, err, ErrorDuplicate)
	assert.Equal(t, "invalid format: email_address: missing @", err.Error())
}

func TestValidationError_Duplicate_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create user: %w", Duplicate(RuleUsername, "username already in use"))

	require.ErrorIs(t, wrapped, ErrorDuplicate)

	var verr *ValidationError
	require.True(t, errors.As(wrapped, &verr))
	assert.Equal(t, RuleUsername, verr.Rule)
	assert.Empty(t, verr.Field)
}

func TestIsUserCorrectable(t *testing.T) {
	assert.True(t, IsUserCorrectable(InvalidFormat(FieldSurname, "required")))
	assert.True(t, IsUserCorrectable(Duplicate(RuleFullName, "taken")))
	assert.False(t, IsUserCorrectable(ErrorNotFound))
	assert.False(t, IsUserCorrectable(fmt.Errorf("%w: db down", ErrorStorage)))
	assert.False(t, IsUserCorrectable(nil))
}
