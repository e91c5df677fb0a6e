package model

import "errors"

// Sentinel errors shared across repositories and services.
var (
	// ErrInvalidState is returned when a reminder transition is attempted
	// from a terminal status (SENT or CANCELED).
	ErrInvalidState = errors.New("invalid reminder state transition")

	// ErrReminderNotFound is returned when the requested reminder does not exist.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrTaskNotFound is returned when the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUserNotFound is returned when the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")
)
