// Package validation provides common validation utilities for configuration
// parameters across the goexec library.
//
// Every helper returns a *errors.ValidationError (wrapping
// errors.ErrInvalidConfiguration) so constructors can fail fast with a
// consistent message.
package validation
