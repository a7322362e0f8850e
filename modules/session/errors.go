package session

import "errors"

var (
	// ErrInvalidID is returned for an empty or malformed session id
	ErrInvalidID = errors.New("invalid session id")

	// ErrNotStarted is returned when the manager is used before Start
	ErrNotStarted = errors.New("session manager not started")

	// ErrUnknownStore is returned for store kinds other than memory and redis
	ErrUnknownStore = errors.New("unknown session store")

	// ErrInvalidSchedule is returned when the GC schedule cannot be parsed
	ErrInvalidSchedule = errors.New("invalid session gc schedule")
)
