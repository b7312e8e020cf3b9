package services

import "errors"

// Dashboard service errors
var (
	// ErrNoTable means the session has no uploaded table yet.
	ErrNoTable = errors.New("no table uploaded in this session")

	// ErrInvalidInput wraps malformed query values and unsupported formats.
	ErrInvalidInput = errors.New("invalid input")

	// ErrServiceUnavailable is reported by readiness checks.
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
