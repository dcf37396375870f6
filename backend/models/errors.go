package models

import "errors"

// Error kinds shared by the services. Callers wrap them with context and
// the API layer maps them onto HTTP status codes with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrTokenExpired = errors.New("token expired")
)
