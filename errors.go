package spatialgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/internal/arena"
)

var (
	// ErrAlreadyExists is returned when an item ID is inserted twice.
	ErrAlreadyExists = index.ErrAlreadyExists

	// ErrInvalidOptions is returned when a manager or index is configured with
	// invalid options.
	ErrInvalidOptions = index.ErrInvalidOptions

	// ErrIndexUnavailable is returned when switching to an index type that
	// has not been configured.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrInvalidBounds is returned when an item's box has Min > Max on some axis.
	ErrInvalidBounds = errors.New("invalid bounds")
)

// ErrBounds reports the item whose box was rejected.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrBounds struct {
	ID     string
	Bounds geom.AABB
}

func (e *ErrBounds) Error() string {
	return fmt.Sprintf("invalid bounds for item %q: min %v exceeds max %v", e.ID, e.Bounds.Min, e.Bounds.Max)
}

func (e *ErrBounds) Unwrap() error { return ErrInvalidBounds }

// ErrUnavailable reports the index type that could not be activated.
type ErrUnavailable struct {
	Type  index.Type
	cause error
}

func (e *ErrUnavailable) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("index %s unavailable: %v", e.Type, e.cause)
	}
	return fmt.Sprintf("index %s unavailable: not configured", e.Type)
}

func (e *ErrUnavailable) Is(target error) bool { return target == ErrIndexUnavailable }

func (e *ErrUnavailable) Unwrap() error { return e.cause }

// translateError normalizes errors surfaced by an index of type t.
func translateError(t index.Type, err error) error {
	if err == nil {
		return nil
	}

	// Duplicate IDs already match ErrAlreadyExists.
	var dup *index.DuplicateError
	if errors.As(err, &dup) {
		return err
	}

	var opt *index.OptionError
	if errors.As(err, &opt) {
		return fmt.Errorf("%s: %w", t, err)
	}

	// Capacity exhaustion leaves the index unusable for further inserts.
	if errors.Is(err, arena.ErrMaxSlotsExceeded) {
		return &ErrUnavailable{Type: t, cause: err}
	}

	return err
}
