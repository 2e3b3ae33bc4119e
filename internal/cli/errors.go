package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/pantry/internal/activity"
	"github.com/roach88/pantry/internal/catalog"
	"github.com/roach88/pantry/internal/config"
	"github.com/roach88/pantry/internal/conn"
	"github.com/roach88/pantry/internal/hierarchy"
	"github.com/roach88/pantry/internal/location"
	"github.com/roach88/pantry/internal/lookup"
	"github.com/roach88/pantry/internal/settings"
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeInvalidArgs     = "E002" // Malformed command arguments
	ErrCodeConfig          = "E003" // Config file unreadable or invalid
	ErrCodeDatabase        = "E004" // Database open or query failure
	ErrCodeNotFound        = "E005" // Room, space, floor, compartment, item or product not found
	ErrCodeBlocked         = "E006" // Database locked by another process
	ErrCodeVersionConflict = "E007" // Database schema newer than this binary

	ErrCodeConflict        = "E101" // Name already in use
	ErrCodeInvalidName     = "E102" // Name unusable as part of a key
	ErrCodeVirtualFloor    = "E103" // Virtual floor cannot be deleted
	ErrCodeInvalidFloor    = "E104" // Negative floor index
	ErrCodeInvalidItem     = "E105" // Item failed validation
	ErrCodeInvalidSettings = "E106" // Expiry settings failed validation

	ErrCodeLookupFailed   = "E201" // Product lookup request failed
	ErrCodeInvalidBarcode = "E202" // Empty barcode
	ErrCodeInconsistent   = "E301" // Hierarchy check found problems
)

// codedError pins an error to a response code and exit code.
type codedError struct {
	code string
	exit int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }

func (e *codedError) Unwrap() error { return e.err }

// invalidArgs reports malformed command arguments.
func invalidArgs(format string, args ...any) error {
	return &codedError{code: ErrCodeInvalidArgs, exit: ExitCommandError, err: fmt.Errorf(format, args...)}
}

// classify maps err to a response code and an exit code.
func classify(err error) (code string, exit int) {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code, ce.exit
	}

	switch {
	case errors.Is(err, hierarchy.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, lookup.ErrNotFound):
		return ErrCodeNotFound, ExitFailure
	case errors.Is(err, hierarchy.ErrConflict):
		return ErrCodeConflict, ExitFailure
	case errors.Is(err, hierarchy.ErrVirtualFloor):
		return ErrCodeVirtualFloor, ExitFailure
	case errors.Is(err, location.ErrInvalidName):
		return ErrCodeInvalidName, ExitCommandError
	case errors.Is(err, hierarchy.ErrInvalidFloor):
		return ErrCodeInvalidFloor, ExitCommandError
	case errors.Is(err, catalog.ErrInvalidItem):
		return ErrCodeInvalidItem, ExitCommandError
	case errors.Is(err, settings.ErrInvalid):
		return ErrCodeInvalidSettings, ExitCommandError
	case errors.Is(err, lookup.ErrInvalidBarcode):
		return ErrCodeInvalidBarcode, ExitCommandError
	case errors.Is(err, lookup.ErrUnavailable):
		return ErrCodeLookupFailed, ExitFailure
	case errors.Is(err, activity.ErrInvalidType):
		return ErrCodeInvalidArgs, ExitCommandError
	case errors.Is(err, config.ErrInvalid):
		return ErrCodeConfig, ExitCommandError
	case errors.Is(err, conn.ErrBlocked):
		return ErrCodeBlocked, ExitFailure
	case errors.Is(err, conn.ErrVersionConflict):
		return ErrCodeVersionConflict, ExitCommandError
	case errors.Is(err, conn.ErrInvalidName), errors.Is(err, conn.ErrClosed):
		return ErrCodeDatabase, ExitCommandError
	default:
		return ErrCodeGeneric, ExitFailure
	}
}

// fail reports err through f and returns the matching ExitError.
func fail(f *OutputFormatter, err error) error {
	code, exit := classify(err)
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(exit, code, err)
}
