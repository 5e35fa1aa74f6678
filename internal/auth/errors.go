package auth

import "errors"

var (
	// ErrUnauthorized covers every credential failure: missing, malformed or
	// expired tokens, unknown principals and bad login credentials. Callers
	// must not leak which case occurred.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrForbidden means the principal is valid but lacks a required scope.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrInvalidToken indicates the token failed signature, shape or expiry
	// validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrEncoding indicates claims could not be serialized into a token.
	ErrEncoding = errors.New("auth: token encoding failed")

	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
)
