package graphstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/graphrecon/internal/ir"
)

// ErrEntityTypeNotFound is returned when an entity type is not registered.
var ErrEntityTypeNotFound = errors.New("entity type not found")

// ErrEntityNotFound is returned when an entity id does not exist.
var ErrEntityNotFound = errors.New("entity not found")

// ValidationError reports every way a candidate entity violates its type.
type ValidationError struct {
	EntityTypeID ir.VersionedURL
	Problems     []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("entity does not satisfy type %s: %s", e.EntityTypeID, strings.Join(e.Problems, "; "))
}

// IsValidationError returns true if the error is a ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
