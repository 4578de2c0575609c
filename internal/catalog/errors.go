package catalog

import "errors"

// Catalog service errors
var (
	// ErrUnknownIdentifier indicates no catalog entry matches the identifier
	ErrUnknownIdentifier = errors.New("unknown media identifier")

	// ErrDuplicateIdentifier indicates an entry with the same identifier exists
	ErrDuplicateIdentifier = errors.New("media identifier already exists")

	// ErrInvalidURL indicates the media URL is not absolute
	ErrInvalidURL = errors.New("media URL must be an absolute URL or path")

	// ErrEmptyIdentifier indicates a blank identifier
	ErrEmptyIdentifier = errors.New("media identifier cannot be empty")
)

// IsUnknownIdentifier checks if the error is an unknown identifier error
func IsUnknownIdentifier(err error) bool {
	return errors.Is(err, ErrUnknownIdentifier)
}

// IsDuplicateIdentifier checks if the error is a duplicate identifier error
func IsDuplicateIdentifier(err error) bool {
	return errors.Is(err, ErrDuplicateIdentifier)
}

// IsValidation checks if the error comes from input validation
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrEmptyIdentifier)
}
