package index

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned when an item ID is inserted twice.
	ErrAlreadyExists = errors.New("item already exists")

	// ErrInvalidOptions is returned when an index is constructed with invalid options.
	ErrInvalidOptions = errors.New("invalid options")
)

// DuplicateError reports the ID that collided on insert.
type DuplicateError struct {
	ID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("item %q already exists", e.ID)
}

// Unwrap makes errors.Is(err, ErrAlreadyExists) succeed.
func (e *DuplicateError) Unwrap() error { return ErrAlreadyExists }

// OptionError describes a rejected construction option.
type OptionError struct {
	Option string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Option, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidOptions) succeed.
func (e *OptionError) Unwrap() error { return ErrInvalidOptions }
