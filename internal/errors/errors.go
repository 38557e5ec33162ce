package errors

import (
	"errors"
	"fmt"
)

// Common error types for the device link server
var (
	// Authentication errors
	ErrNoCredentials    = errors.New("no credentials")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrTokenNotFound    = errors.New("token not found")
	ErrNotAuthenticated = errors.New("not authenticated")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Authorization errors
	ErrDeviceNotAuthorized = errors.New("device not authorized for user")
	ErrDeviceOwnerMismatch = errors.New("device belongs to another user")
	ErrDeviceNotFound      = errors.New("device not found")

	// Request errors
	ErrInvalidDeviceType = errors.New("invalid device type")
	ErrInvalidRequest    = errors.New("invalid request")

	// Dependency errors
	ErrUpstream = errors.New("upstream dependency failed")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

var authFailures = []error{
	ErrNoCredentials,
	ErrInvalidToken,
	ErrTokenExpired,
	ErrInvalidIssuer,
	ErrTokenNotFound,
	ErrNotAuthenticated,
	ErrSessionNotFound,
	ErrSessionExpired,
}

var forbidden = []error{
	ErrDeviceNotAuthorized,
	ErrDeviceOwnerMismatch,
	ErrDeviceNotFound,
}

var badRequests = []error{
	ErrInvalidDeviceType,
	ErrInvalidRequest,
}

// IsAuthFailure reports whether err means the caller could not be identified.
func IsAuthFailure(err error) bool {
	return isAny(err, authFailures)
}

// IsForbidden reports whether err means the caller was identified but may not
// touch the requested device.
func IsForbidden(err error) bool {
	return isAny(err, forbidden)
}

// IsBadRequest reports whether err was caused by malformed request input.
func IsBadRequest(err error) bool {
	return isAny(err, badRequests)
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
