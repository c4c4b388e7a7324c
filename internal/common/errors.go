// Package common defines the error taxonomy shared by the store, the validator
// and the service facade. Callers should use errors.Is to match these values
// and errors.As to extract a *ValidationError.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorStorage  = errors.New("storage failure")

	// Validation errors, both recoverable by the caller.
	ErrorInvalidFormat = errors.New("invalid format")
	ErrorDuplicate     = errors.New("duplicate")
)
