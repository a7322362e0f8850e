package feeders

import "errors"

// Static error definitions for feeders
var (
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
	ErrEmptyPath         = errors.New("feeder path is empty")
	ErrDotEnvInvalidLine = errors.New("invalid .env line, expected KEY=VALUE")
)
