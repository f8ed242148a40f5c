package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidToken covers missing, forged and expired identity tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)
