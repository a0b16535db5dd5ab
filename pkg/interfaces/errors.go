package interfaces

import "errors"

// Common errors returned by Store implementations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrPostNotFound   = errors.New("post not found")
	ErrDuplicateEmail = errors.New("email already registered")
)
