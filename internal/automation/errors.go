// File: internal/automation/errors.go
package automation

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is returned when a control cannot be located.
	// Recoverable, scoped to one record.
	ErrElementNotFound = errors.New("element not found")
	// ErrStepTimeout is returned when a wait condition is not met in time.
	// Recoverable, scoped to one record.
	ErrStepTimeout = errors.New("step timed out")
	// ErrSurfaceFault marks a failure of the automation surface itself
	// (browser gone, connection lost). Fatal for the run.
	ErrSurfaceFault = errors.New("automation surface fault")
)

// AuthError is returned by the Gate when authentication fails. It is always fatal.
type AuthError struct {
	Attempts int
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StepError attributes a failure to the state in which it occurred.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NotFound wraps ErrElementNotFound with the query that failed.
func NotFound(q Query) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, q)
}

// TimedOut wraps ErrStepTimeout with the condition that was awaited.
func TimedOut(c Condition) error {
	return fmt.Errorf("%w: waiting for %s", ErrStepTimeout, c)
}

// Fault wraps an underlying error as ErrSurfaceFault.
func Fault(err error) error {
	if err == nil || errors.Is(err, ErrSurfaceFault) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSurfaceFault, err)
}

// IsRecoverable reports whether err only affects the current record.
// Authentication failures never are, whatever they wrap.
func IsRecoverable(err error) bool {
	var authErr *AuthError
	if err == nil || errors.Is(err, ErrSurfaceFault) || errors.As(err, &authErr) {
		return false
	}
	return errors.Is(err, ErrElementNotFound) || errors.Is(err, ErrStepTimeout)
}

// IsFatal reports whether err must abort the run. Anything that is not a
// known recoverable condition is treated as fatal.
func IsFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}

// Kind returns the taxonomy name of err for logging.
func Kind(err error) string {
	var authErr *AuthError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return "AuthError"
	case errors.Is(err, ErrSurfaceFault):
		return "AutomationSurfaceFault"
	case errors.Is(err, ErrStepTimeout):
		return "StepTimeout"
	case errors.Is(err, ErrElementNotFound):
		return "ElementNotFound"
	default:
		return "AutomationSurfaceFault"
	}
}
