package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyInMatch        = errors.New("player already in a match")
	ErrTimedOut              = errors.New("accept window elapsed")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
