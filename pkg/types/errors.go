package types

import "errors"

// Validation errors shared across the API and storage layers.
var (
	ErrInvalidUserID   = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidName     = errors.New("name must be 1-200 characters")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidRole     = errors.New("role must be 'user' or 'admin'")
	ErrInvalidTitle    = errors.New("title must be 1-200 characters")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrWeakPassword    = errors.New("password must be at least 8 characters")
	ErrContentTooLarge = errors.New("content exceeds 64KB limit")
)
