package playback

import (
	"errors"
	"fmt"
)

// Category tells where a failure originated
type Category int

const (
	// CategoryPlayback covers engine and network failures of a loaded item
	CategoryPlayback Category = iota
	// CategoryDataSource covers identifier to URL resolution failures
	CategoryDataSource
)

// String returns the string representation of Category
func (c Category) String() string {
	switch c {
	case CategoryPlayback:
		return "playback"
	case CategoryDataSource:
		return "data_source"
	default:
		return "unknown"
	}
}

// Error is the failure carried by the Failed state
type Error struct {
	Category Category
	Message  string
	Cause    error
}

// NewError creates an Error of the given category
func NewError(category Category, message string, cause error) *Error {
	return &Error{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

// NewDataSourceError wraps a resolution failure
func NewDataSourceError(cause error) *Error {
	return NewError(CategoryDataSource, "media URL could not be resolved", cause)
}

// NewPlaybackError wraps an engine failure
func NewPlaybackError(cause error) *Error {
	return NewError(CategoryPlayback, "media playback failed", cause)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsDataSource reports whether err is a data source failure
func IsDataSource(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Category == CategoryDataSource
}

// IsPlayback reports whether err is a playback failure
func IsPlayback(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Category == CategoryPlayback
}

// Common errors
var (
	ErrInvalidTransition = errors.New("invalid playback state transition")
	ErrStaleSeek         = errors.New("seek superseded")
)
