package harness

import (
	"fmt"
	"time"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/matrix"
)

// SetupError means the session never reached the target route. Every case of
// that session fails with it.
type SetupError struct {
	Session string
	Route   string
	Err     error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session %s: setup failed for route %s: %v", e.Session, e.Route, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ElementTimeoutError means a required element did not become visible
// within its bound. CaseBudget is set when the whole-case deadline fired
// first; Timeout is then the case timeout.
type ElementTimeoutError struct {
	Step       Step
	Selector   string
	Timeout    time.Duration
	CaseBudget bool
	Err        error
}

func (e *ElementTimeoutError) Error() string {
	if e.CaseBudget {
		return fmt.Sprintf("%s: %s not visible before the case timeout of %s ran out", e.Step, e.Selector, e.Timeout)
	}
	return fmt.Sprintf("%s: %s not visible within %s", e.Step, e.Selector, e.Timeout)
}

func (e *ElementTimeoutError) Unwrap() error { return e.Err }

// ElementMissingError means Find reported no match for a required element.
type ElementMissingError struct {
	Step     Step
	Selector string
}

func (e *ElementMissingError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Step, e.Selector)
}

func (e *ElementMissingError) Unwrap() error { return ErrNotFound }

// MismatchError is an overlap result that disagrees with the fixture.
type MismatchError struct {
	Config  matrix.ViewportConfig
	Want    bool
	Got     bool
	Utility geometry.Rect
	Content geometry.Rect
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("viewport %s: want overlap=%t, got overlap=%t (utility %s, content %s)",
		e.Config.Size(), e.Want, e.Got, e.Utility, e.Content)
}

// StepError wraps a browser command failure at a given step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CancelledError marks a case that did not complete because the run was
// cancelled. Step is where it stopped, empty when it never started.
type CancelledError struct {
	Step Step
	Err  error
}

func (e *CancelledError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("not run: %v", e.Err)
	}
	return fmt.Sprintf("%s: interrupted: %v", e.Step, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// CleanupError is a failed page reset. It is reported next to, never instead
// of, the case's own error.
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("reset: %v", e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
