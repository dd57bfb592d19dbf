package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Is lets DomainError values compare by code through errors.Is,
// so wrapped instances still match the package sentinels.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrAuthRejected is terminal for the current credential: the backend
	// explicitly refused it (401/403). The credential must be destroyed.
	ErrAuthRejected = NewDomainError("AUTH_REJECTED", "Credential rejected by backend")

	// ErrNoCredential means no stored credential exists in either slot.
	ErrNoCredential = NewDomainError("NO_CREDENTIAL", "No stored credential")

	// ErrRouteUnavailable is a 404 on an endpoint expected to exist.
	// Recoverable: a remount is attempted once before escalating.
	ErrRouteUnavailable = NewDomainError("ROUTE_UNAVAILABLE", "Backend route not available")

	// ErrTransientNetwork covers timeouts, aborts and connection resets.
	// Never destroys a session, never marks the backend unreachable.
	ErrTransientNetwork = NewDomainError("TRANSIENT_NETWORK", "Transient network failure")

	// ErrBackendDown is a definitive protocol-level failure (refused
	// connection, 5xx on the health path).
	ErrBackendDown = NewDomainError("BACKEND_DOWN", "Backend unreachable")

	// ErrStorageExhausted means the durable local store rejected a write.
	// Callers prune terminal records and retry exactly once.
	ErrStorageExhausted = NewDomainError("STORAGE_EXHAUSTED", "Local storage exhausted")
)

// IsAuthRejected reports whether err is terminal for the credential.
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}

// IsRouteUnavailable reports whether err is a missing-route failure.
func IsRouteUnavailable(err error) bool {
	return errors.Is(err, ErrRouteUnavailable)
}

// IsTransient reports whether err is a timeout/abort class failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}

// IsStorageExhausted reports whether err indicates a full local store.
func IsStorageExhausted(err error) bool {
	return errors.Is(err, ErrStorageExhausted)
}
