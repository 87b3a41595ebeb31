package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidLocator is returned for locators that cannot be resolved.
var ErrInvalidLocator = errors.New("transport: invalid locator")

// TransientError is a failure worth retrying: network errors, 5xx, 429.
type TransientError struct {
	Locator    string
	StatusCode int           // 0 for network errors
	RetryAfter time.Duration // server-requested minimum wait, if any
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: transient http %d for %s", e.StatusCode, e.Locator)
	}
	return fmt.Sprintf("transport: transient failure for %s: %v", e.Locator, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a failure that will not be retried: 4xx other than 429,
// or a transient failure that exhausted the retry budget (Escalated).
type PermanentError struct {
	Locator    string
	StatusCode int
	Attempts   int
	Escalated  bool
	Err        error
}

func (e *PermanentError) Error() string {
	if e.Escalated {
		return fmt.Sprintf("transport: gave up on %s after %d attempts: %v", e.Locator, e.Attempts, e.Err)
	}
	return fmt.Sprintf("transport: permanent http %d for %s", e.StatusCode, e.Locator)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status to nil (success) or a typed error.
func classifyStatus(locator string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 429 || code >= 500:
		return &TransientError{Locator: locator, StatusCode: code, Err: fmt.Errorf("http %d", code)}
	default:
		return &PermanentError{Locator: locator, StatusCode: code, Attempts: 1, Err: fmt.Errorf("http %d", code)}
	}
}
