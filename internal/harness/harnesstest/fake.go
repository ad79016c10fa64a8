// Package harnesstest provides a scripted in-memory session and a
// testing.T adapter for the overlap harness.
package harnesstest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/harness"
)

// Layout is what the fake page renders at one viewport size.
type Layout struct {
	Content geometry.Rect
	Utility geometry.Rect
	// Hidden lists selectors that never become visible at this size.
	Hidden []string
}

type element struct{ selector string }

func (e element) Selector() string { return e.selector }

// FakeSession emulates a page with a dismissible overlay, a switch control
// and two panels. Panels only become visible after the switch was clicked,
// and the switch cannot be clicked while the overlay is shown.
type FakeSession struct {
	SessionName string
	Selectors   harness.Selectors

	// Layouts is keyed by "WIDTHxHEIGHT"; Default covers other sizes.
	Layouts map[string]Layout
	Default Layout

	// Overlay shows the dismiss control after every load.
	Overlay bool
	// Missing lists selectors Find never matches.
	Missing []string

	OpenErr    error
	ResizeErr  error
	DismissErr error
	RefreshErr error
	// RefreshErrOnce fails only the next refresh.
	RefreshErrOnce error

	mu          sync.Mutex
	calls       []string
	refreshes   int
	width       int
	height      int
	overlayUp   bool
	switched    bool
	console     []string
	screenshots []string

	inFlight   atomic.Int32
	violations atomic.Int32
}

func NewFakeSession(name string) *FakeSession {
	return &FakeSession{
		SessionName: name,
		Selectors:   harness.DefaultSelectors(),
		Layouts:     map[string]Layout{},
	}
}

func (f *FakeSession) Name() string { return f.SessionName }

// Calls returns the commands issued so far, e.g. "resize 360x740".
func (f *FakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeSession) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// Violations counts commands that arrived while another was in flight.
func (f *FakeSession) Violations() int {
	return int(f.violations.Load())
}

func (f *FakeSession) Screenshots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.screenshots...)
}

// LogConsoleError appends a page console error.
func (f *FakeSession) LogConsoleError(text string) {
	f.mu.Lock()
	f.console = append(f.console, text)
	f.mu.Unlock()
}

func (f *FakeSession) begin(format string, args ...any) func() {
	if f.inFlight.Add(1) > 1 {
		f.violations.Add(1)
	}
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
	return func() { f.inFlight.Add(-1) }
}

func (f *FakeSession) layout() Layout {
	if l, ok := f.Layouts[fmt.Sprintf("%dx%d", f.width, f.height)]; ok {
		return l
	}
	return f.Default
}

func (f *FakeSession) Open(ctx context.Context, route string, _ time.Duration) error {
	defer f.begin("open %s", route)()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.OpenErr != nil {
		return f.OpenErr
	}
	f.mu.Lock()
	f.load()
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) load() {
	f.overlayUp = f.Overlay
	f.switched = false
}

func (f *FakeSession) ResizeViewport(ctx context.Context, width, height int) error {
	defer f.begin("resize %dx%d", width, height)()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.ResizeErr != nil {
		return f.ResizeErr
	}
	f.mu.Lock()
	f.width, f.height = width, height
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) Find(ctx context.Context, selector string) (harness.Element, error) {
	defer f.begin("find %s", selector)()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if slices.Contains(f.Missing, selector) {
		return nil, harness.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector == f.Selectors.Dismiss && !f.overlayUp {
		return nil, harness.ErrNotFound
	}
	return element{selector: selector}, nil
}

func (f *FakeSession) visible(selector string) bool {
	if slices.Contains(f.layout().Hidden, selector) {
		return false
	}
	switch selector {
	case f.Selectors.Dismiss:
		return f.overlayUp
	case f.Selectors.Content, f.Selectors.Utility:
		return f.switched
	}
	return true
}

func (f *FakeSession) WaitVisible(ctx context.Context, el harness.Element, timeout time.Duration) error {
	defer f.begin("wait %s", el.Selector())()
	f.mu.Lock()
	ok := f.visible(el.Selector())
	f.mu.Unlock()
	if ok {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	<-waitCtx.Done()
	return fmt.Errorf("%w: %s", harness.ErrWaitTimeout, el.Selector())
}

func (f *FakeSession) IsDisplayed(ctx context.Context, el harness.Element) (bool, error) {
	defer f.begin("displayed %s", el.Selector())()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible(el.Selector()), nil
}

func (f *FakeSession) Click(ctx context.Context, el harness.Element) error {
	defer f.begin("click %s", el.Selector())()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch el.Selector() {
	case f.Selectors.Dismiss:
		if f.DismissErr != nil {
			return f.DismissErr
		}
		f.overlayUp = false
	case f.Selectors.Switch:
		if f.overlayUp {
			return errors.New("overlay intercepts pointer events")
		}
		f.switched = true
	}
	return nil
}

func (f *FakeSession) Rect(ctx context.Context, el harness.Element) (geometry.Rect, error) {
	defer f.begin("rect %s", el.Selector())()
	if err := ctx.Err(); err != nil {
		return geometry.Rect{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.layout()
	switch el.Selector() {
	case f.Selectors.Content:
		return l.Content, nil
	case f.Selectors.Utility:
		return l.Utility, nil
	}
	return geometry.Rect{}, fmt.Errorf("no rect for %s", el.Selector())
}

func (f *FakeSession) Refresh(ctx context.Context) error {
	defer f.begin("refresh")()
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.RefreshErrOnce != nil {
		err := f.RefreshErrOnce
		f.RefreshErrOnce = nil
		return err
	}
	if f.RefreshErr != nil {
		return f.RefreshErr
	}
	f.load()
	return nil
}

func (f *FakeSession) Screenshot(_ context.Context, path string) error {
	defer f.begin("screenshot")()
	if err := os.WriteFile(path, []byte("fake png"), 0o644); err != nil {
		return err
	}
	f.mu.Lock()
	f.screenshots = append(f.screenshots, path)
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) ConsoleCursor() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.console))
}

func (f *FakeSession) ConsoleErrors(since int64, limit int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if since < 0 || since > int64(len(f.console)) {
		since = 0
	}
	out := append([]string(nil), f.console[since:]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
