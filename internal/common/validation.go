package common

import (
	"errors"
	"fmt"
)

// Field names used in validation errors.
const (
	FieldFirstName    = "first_name"
	FieldSurname      = "surname"
	FieldEmailAddress = "email_address"
	FieldUsername     = "username"
)

// Uniqueness rules used in duplicate errors.
const (
	RuleEmailAddress = "email_address"
	RuleUsername     = "username"
	RuleFullName     = "full_name"
)

// ValidationError carries the offending field (for ErrorInvalidFormat) or the
// violated uniqueness rule (for ErrorDuplicate).
type ValidationError struct {
	Field   string
	Rule    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	subject := e.Field
	if e.Rule != "" {
		subject = e.Rule
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, subject, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// InvalidFormat builds a ValidationError for a malformed field.
func InvalidFormat(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: ErrorInvalidFormat}
}

// Duplicate builds a ValidationError for a violated uniqueness rule.
func Duplicate(rule, message string) *ValidationError {
	return &ValidationError{Rule: rule, Message: message, Err: ErrorDuplicate}
}

// IsUserCorrectable reports whether err is something the caller fixes by
// changing its input (format or uniqueness).
func IsUserCorrectable(err error) bool {
	return errors.Is(err, ErrorInvalidFormat) || errors.Is(err, ErrorDuplicate)
}
