package errors

import (
	"errors"
	"fmt"
)

// Common error types for the gate-pass service
var (
	// Secret errors
	ErrSecretUnavailable = errors.New("secret unavailable")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrSealingKeyMissing = errors.New("sealing key missing")

	// Device errors
	ErrInvalidDeviceToken = errors.New("invalid device token")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
