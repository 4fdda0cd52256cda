package directory

import "errors"

var (
	ErrUnauthorized  = errors.New("caller token rejected")
	ErrForbidden     = errors.New("admin role required")
	ErrEventNotFound = errors.New("event not found")
	ErrInvalidEvent  = errors.New("event fields are invalid")
)
