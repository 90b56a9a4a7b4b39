package research

import (
	"errors"
	"fmt"
)

// ErrIncompleteResponse is returned when the downstream service reports a
// still-processing or incomplete status. The call is not polled or retried
// here; the caller must re-issue the request.
var ErrIncompleteResponse = errors.New("research: downstream response incomplete — retry the request")

// ExternalServiceError wraps any transport, HTTP, or parse failure from the
// downstream research API. StatusCode is zero when no HTTP response was
// received.
type ExternalServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("research: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("research: %s failed: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// AuthFailure reports whether the wrapped failure was an authentication
// rejection. Distinguished for operator diagnostics only; callers see a
// generic internal error either way.
func (e *ExternalServiceError) AuthFailure() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// MalformedRequest reports whether the downstream API rejected the request
// shape itself.
func (e *ExternalServiceError) MalformedRequest() bool {
	return e.StatusCode == 400 || e.StatusCode == 422
}
