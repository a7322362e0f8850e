package database

import "errors"

// Static error definitions to avoid dynamic error creation (err113 linter)
var (
	// ErrEmptyDriver is returned when no driver is configured
	ErrEmptyDriver = errors.New("database driver cannot be empty")

	// ErrUnsupportedDriver is returned for drivers other than mysql and sqlite
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrDatabaseNotConnected is returned when the service has been closed
	ErrDatabaseNotConnected = errors.New("database not connected")

	// ErrInvalidTableName is returned when an invalid table name is used
	ErrInvalidTableName = errors.New("invalid table name: must start with letter/underscore and contain only alphanumeric/underscore characters")
)
