package config

import "errors"

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrNilPointer is returned when a nil pointer is provided to Load
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	ErrInvalidAPIURL    = errors.New("invalid api url")
	ErrInvalidTransport = errors.New("invalid socket transport")
	ErrNoTransports     = errors.New("at least one socket transport is required")
	ErrInvalidLogFormat = errors.New("invalid log format")
)
