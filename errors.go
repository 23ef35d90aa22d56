package nand

import (
	"errors"
	"fmt"
)

// Configuration errors. They are fatal to the calling operation and never
// retried.
var (
	ErrInvalidConfig      = errors.New("invalid NAND configuration")
	ErrRoundTrip          = errors.New("NVRAM encode/decode mismatch")
	ErrInsufficientBuffer = errors.New("command sequence buffer too small")
	ErrNotConfigured      = errors.New("controller not configured")
)

// Data path errors.
var (
	ErrInsufficientCodewordData = errors.New("request exceeds remaining codeword data")
	ErrUncorrectable            = errors.New("uncorrectable ECC error")
	ErrProgramFailed            = errors.New("page program failed")
	ErrEraseFailed              = errors.New("block erase failed")
	ErrOutOfRange               = errors.New("address out of range")
)

// ErrNoValidParameterPage is returned when none of the redundant ONFI
// parameter page copies has a valid signature and CRC.
var ErrNoValidParameterPage = errors.New("no valid ONFI parameter page")

// ErrTimeout is wrapped by every *TimeoutError.
var ErrTimeout = errors.New("timeout")

// TimeoutError reports a bounded hardware wait that ran out of budget. After a
// timeout the controller state is undefined and must be reset before reuse.
type TimeoutError struct {
	// Op is the condition being waited for, e.g. "device ready".
	Op     string
	Status IntStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("waiting for %s: %v (status %v)", e.Op, ErrTimeout, e.Status)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ConfigError names the offending field of a rejected configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func configErrorf(field, format string, a ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, a...)}
}
