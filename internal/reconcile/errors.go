package reconcile

import (
	"errors"
	"fmt"
)

// RequestErrorCode categorizes call-level input errors.
type RequestErrorCode string

const (
	// ErrCodeNoGraph indicates the engine has no GraphAPI.
	ErrCodeNoGraph RequestErrorCode = "NO_GRAPH"

	// ErrCodeUnrequestedType indicates proposals for a type that is not in
	// RequestedEntityTypes.
	ErrCodeUnrequestedType RequestErrorCode = "UNREQUESTED_TYPE"

	// ErrCodeSchemaMismatch indicates a requested schema whose $id differs
	// from the key it is registered under.
	ErrCodeSchemaMismatch RequestErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeMissingOwner indicates an empty OwnedByID.
	ErrCodeMissingOwner RequestErrorCode = "MISSING_OWNER"

	// ErrCodeNilProposal indicates a nil entry in a proposal list.
	ErrCodeNilProposal RequestErrorCode = "NIL_PROPOSAL"
)

// RequestError reports malformed input to ReconcileAndPersist.
// No storage call has been made when it is returned.
type RequestError struct {
	Code    RequestErrorCode
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRequestError returns true if the error is a RequestError.
// Uses errors.As to handle wrapped errors.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

func newRequestError(code RequestErrorCode, format string, args ...any) *RequestError {
	return &RequestError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FailureReason renders an error as a stored failure reason: the error
// message followed by a period.
func FailureReason(err error) string {
	return err.Error() + "."
}
