package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrContentNotFound     = errors.New("content not found")
	ErrVersionNotFound     = errors.New("game version not found")
	ErrInvalidProfile      = errors.New("invalid profile")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrManifestUnavailable = errors.New("manifest unavailable")
	ErrIntegrity           = errors.New("integrity check failed")
	ErrNetwork             = errors.New("network error")
	ErrNoCompatibleVersion = errors.New("no compatible version")
	ErrAuthRequired        = errors.New("no active account")
	ErrAuthDenied          = errors.New("authorization denied")
	ErrAuthExpired         = errors.New("authorization expired")
	ErrLaunchInProgress    = errors.New("launch already in progress")
	ErrLaunchFailed        = errors.New("launch failed")
	ErrLinkFailed          = errors.New("link operation failed")
)

// IntegrityError reports a file whose content does not match its recorded checksum.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch for %s (expected %s, got %s)", ErrIntegrity, e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// NetworkError is a failed request after retries were exhausted.
// StatusCode is zero when no response was received.
type NetworkError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d after %d attempt(s)", ErrNetwork, e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("%s: %s: %v", ErrNetwork, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// LaunchError carries the stage at which a launch stopped.
type LaunchError struct {
	ProfileID string
	Stage     LaunchState
	Err       error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching profile %s: %s failed: %v", e.ProfileID, e.Stage, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunchFailed
}
