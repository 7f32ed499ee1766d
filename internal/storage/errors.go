package storage

import "errors"

var (
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrProfileNotFound is returned when a user has no stored profile
	ErrProfileNotFound = errors.New("profile not found")

	// ErrEmailTaken is returned when registering an already used email
	ErrEmailTaken = errors.New("email already registered")
)
