package core

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: bad ids, bad query parameters,
	// malformed percent-encoding.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks lookups the upstream could not satisfy.
	ErrNotFound = errors.New("not found")
)
