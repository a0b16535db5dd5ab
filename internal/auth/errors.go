package auth

import "errors"

// Authentication and authorization errors.
var (
	// ErrInvalidToken covers every verification failure: absent, malformed,
	// bad signature, expired, or missing the id claim. Unauthenticated
	// connection attempts hit this constantly, so it is a value, not a panic.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthenticated means no usable credential accompanied the request.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller authenticated but lacks the required role.
	ErrForbidden = errors.New("forbidden")
)
