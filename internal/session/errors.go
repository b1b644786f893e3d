package session

import "errors"

var (
	// ErrEmptyToken is returned by Set when no token is given.
	ErrEmptyToken = errors.New("session: token cannot be empty")
)
