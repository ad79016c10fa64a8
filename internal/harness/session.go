package harness

import (
	"context"
	"errors"
	"time"

	"github.com/joshp123/overlap-go/internal/geometry"
)

var (
	// ErrNotFound is returned by Session.Find when nothing matches.
	ErrNotFound = errors.New("element not found")
	// ErrWaitTimeout is returned by Session.WaitVisible when the element did
	// not become visible in time.
	ErrWaitTimeout = errors.New("timed out waiting for element")
)

// Element is an opaque handle returned by Session.Find.
type Element interface {
	Selector() string
}

// Session is one remote browser under test. The harness only issues
// commands; creating and closing the browser belongs to the caller. A Session
// is never used by two goroutines at once.
type Session interface {
	Name() string
	// Open navigates to route and waits for the initial load.
	Open(ctx context.Context, route string, timeout time.Duration) error
	ResizeViewport(ctx context.Context, width, height int) error
	Find(ctx context.Context, selector string) (Element, error)
	WaitVisible(ctx context.Context, el Element, timeout time.Duration) error
	Click(ctx context.Context, el Element) error
	Rect(ctx context.Context, el Element) (geometry.Rect, error)
	IsDisplayed(ctx context.Context, el Element) (bool, error)
	Refresh(ctx context.Context) error
}

type DismissResult int

const (
	DismissAbsent DismissResult = iota
	Dismissed
	DismissFailed
)

func (r DismissResult) String() string {
	switch r {
	case Dismissed:
		return "dismissed"
	case DismissFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Dismisser is implemented by sessions that can check and close a transient
// overlay in one step, without a gap between the visibility check and the
// click.
type Dismisser interface {
	TryDismiss(ctx context.Context, selector string, timeout time.Duration) (DismissResult, error)
}

// Screenshotter is implemented by sessions that can save the current page.
type Screenshotter interface {
	Screenshot(ctx context.Context, path string) error
}

// ConsoleReader exposes page console errors recorded by the session.
// ConsoleCursor marks the current position; ConsoleErrors returns what was
// recorded after it.
type ConsoleReader interface {
	ConsoleCursor() int64
	ConsoleErrors(since int64, limit int) []string
}

// tryDismiss closes the overlay matched by selector if it is displayed.
// Sessions implementing Dismisser do this atomically; others fall back to
// find, check, click.
func tryDismiss(ctx context.Context, s Session, selector string, timeout time.Duration) (DismissResult, error) {
	if d, ok := s.(Dismisser); ok {
		return d.TryDismiss(ctx, selector, timeout)
	}
	el, err := s.Find(ctx, selector)
	if errors.Is(err, ErrNotFound) {
		return DismissAbsent, nil
	}
	if err != nil {
		return DismissFailed, err
	}
	shown, err := s.IsDisplayed(ctx, el)
	if err != nil {
		return DismissFailed, err
	}
	if !shown {
		return DismissAbsent, nil
	}
	if err := s.Click(ctx, el); err != nil {
		return DismissFailed, err
	}
	return Dismissed, nil
}
