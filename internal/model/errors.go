package model

import "errors"

var (
	// User related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")

	// Telemetry/control related errors
	ErrNotFound = errors.New("not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
