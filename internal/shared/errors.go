package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error sentinels of the database layer. Concrete errors are marked with one
// of them through MarkKind and stay matchable with errors.Is.
var (
	// ErrValidation indicates a malformed descriptor or configuration value
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates that a backend-specific service is not available
	// for the active database client
	ErrUnavailable = errors.New("unavailable")

	// ErrConflict indicates a call that clashes with an open transaction
	ErrConflict = errors.New("conflict")

	// ErrTimeout indicates that a pool acquire or ping ran out of time
	ErrTimeout = errors.New("operation timed out")

	// ErrDependencyFailure indicates that a network database did not answer
	ErrDependencyFailure = errors.New("dependency failure")
)

// Kind represents a category of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnavailable
	KindConflict
	KindTimeout
	KindDependencyFailure
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindUnavailable:
		return "Unavailable"
	case KindConflict:
		return "Conflict"
	case KindTimeout:
		return "Timeout"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

var sentinels = map[Kind]error{
	KindValidation:        ErrValidation,
	KindUnavailable:       ErrUnavailable,
	KindConflict:          ErrConflict,
	KindTimeout:           ErrTimeout,
	KindDependencyFailure: ErrDependencyFailure,
}

// KindOf classifies err. Cancellation and timeouts are checked first, so a
// dependency failure caused by an expired deadline reports KindTimeout.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case IsCanceled(err):
		return KindCanceled
	case IsTimeout(err):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrDependencyFailure):
		return KindDependencyFailure
	}
	return KindUnknown
}

// MarkKind wraps err with the sentinel of kind, preserving the original error.
// A nil err, KindUnknown, KindCanceled, or an err that already has the kind
// is returned unchanged.
//
//	if err := desc.Validate(); err != nil {
//	    return nil, shared.MarkKind(err, shared.KindValidation)
//	}
func MarkKind(err error, kind Kind) error {
	sentinel, ok := sentinels[kind]
	if err == nil || !ok || KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// IsCanceled reports whether the error comes from a canceled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout: an expired
// context deadline, a net.Error timeout, or ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsValidation reports whether the error is a rejected descriptor or config value.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable reports whether the error comes from a service that the
// active backend does not provide.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
