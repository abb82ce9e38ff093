package domain

import (
	"errors"
	"fmt"
)

var (
	// Internally caused: the local configuration needs editing
	ErrConfigInvalid       = errors.New("sync: configuration invalid")
	ErrNoWarehouses        = fmt.Errorf("%w: store has no warehouses", ErrConfigInvalid)
	ErrVerificationFailed  = errors.New("sync: saved configuration failed verification")
	ErrNotFound            = errors.New("sync: not found")
	ErrChannelNotConnected = errors.New("sync: channel is not connected")
	ErrSyncInProgress      = errors.New("sync: a run is already in progress for this channel")
	ErrStateInvalid        = errors.New("sync: authorization state invalid or expired")
	ErrRunLockLost         = errors.New("sync: run lock expired or taken by another run")
	ErrShopMismatch        = errors.New("sync: webhook shop does not match the channel")

	// Externally caused: the platform or the credentials need attention
	ErrPlatformFetch           = errors.New("sync: platform request failed")
	ErrPlatformAuth            = errors.New("sync: platform rejected credentials")
	ErrPlatformInvalidResponse = errors.New("sync: invalid platform response")
)

// ConfigError names the configuration field that failed validation
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration invalid: %s", e.Reason)
	}
	return fmt.Sprintf("configuration invalid: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigInvalid
}

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrorOrigin tells the user which remedy applies to a failure
type ErrorOrigin string

const (
	OriginInternal ErrorOrigin = "internal"
	OriginExternal ErrorOrigin = "external"
)

// OriginOf classifies an error as caused by the external platform or by local state
func OriginOf(err error) ErrorOrigin {
	switch {
	case errors.Is(err, ErrPlatformFetch),
		errors.Is(err, ErrPlatformAuth),
		errors.Is(err, ErrPlatformInvalidResponse):
		return OriginExternal
	default:
		return OriginInternal
	}
}

// Remedy returns the action the user should take for an error
func Remedy(err error) string {
	switch {
	case errors.Is(err, ErrPlatformAuth), errors.Is(err, ErrChannelNotConnected), errors.Is(err, ErrStateInvalid):
		return "reconnect"
	case errors.Is(err, ErrConfigInvalid), errors.Is(err, ErrVerificationFailed):
		return "edit_configuration"
	default:
		return "retry"
	}
}

// TransformWarning records a non-fatal mapping problem on one external record
type TransformWarning struct {
	ExternalID string
	Field      string
	Value      string
	Message    string
}

func (w TransformWarning) String() string {
	return fmt.Sprintf("%s %s=%q: %s", w.ExternalID, w.Field, w.Value, w.Message)
}
