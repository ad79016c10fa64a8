package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/harness"
)

// defaultCommandTimeout bounds a single browser command when the caller's
// context has no deadline.
const defaultCommandTimeout = 15 * time.Second

// Session drives one playwright page. It implements harness.Session along
// with the optional Dismisser, Screenshotter and ConsoleReader capabilities.
type Session struct {
	name      string
	engine    Engine
	context   playwright.BrowserContext
	page      playwright.Page
	logs      *consoleStore
	waitUntil string
}

var (
	_ harness.Session       = (*Session)(nil)
	_ harness.Dismisser     = (*Session)(nil)
	_ harness.Screenshotter = (*Session)(nil)
	_ harness.ConsoleReader = (*Session)(nil)
)

type element struct {
	selector string
	locator  playwright.Locator
}

func (e *element) Selector() string { return e.selector }

func (s *Session) Name() string   { return s.name }
func (s *Session) Engine() Engine { return s.engine }

func (s *Session) Open(ctx context.Context, route string, timeout time.Duration) error {
	ms, err := timeoutMs(ctx, timeout)
	if err != nil {
		return err
	}
	resp, err := s.page.Goto(route, playwright.PageGotoOptions{
		WaitUntil: getWaitUntil(s.waitUntil),
		Timeout:   playwright.Float(ms),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", route, err)
	}
	if resp != nil && resp.Status() >= 400 {
		return fmt.Errorf("goto %s: status %d", route, resp.Status())
	}
	return nil
}

func (s *Session) ResizeViewport(ctx context.Context, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.page.SetViewportSize(width, height)
}

// Find returns a lazy handle on the first match. Playwright resolves it on
// use, so a missing element surfaces as a WaitVisible timeout rather than
// ErrNotFound.
func (s *Session) Find(ctx context.Context, selector string) (harness.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(selector) == "" {
		return nil, errors.New("selector is required")
	}
	return &element{selector: selector, locator: s.page.Locator(selector).First()}, nil
}

func (s *Session) WaitVisible(ctx context.Context, el harness.Element, timeout time.Duration) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	ms, err := timeoutMs(ctx, timeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", harness.ErrWaitTimeout, e.selector, err)
	}
	err = e.locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms),
	})
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %v", harness.ErrWaitTimeout, e.selector, err)
	}
	return err
}

func (s *Session) Click(ctx context.Context, el harness.Element) error {
	e, err := asElement(el)
	if err != nil {
		return err
	}
	ms, err := timeoutMs(ctx, defaultCommandTimeout)
	if err != nil {
		return err
	}
	return e.locator.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(ms)})
}

func (s *Session) Rect(ctx context.Context, el harness.Element) (geometry.Rect, error) {
	e, err := asElement(el)
	if err != nil {
		return geometry.Rect{}, err
	}
	ms, err := timeoutMs(ctx, defaultCommandTimeout)
	if err != nil {
		return geometry.Rect{}, err
	}
	box, err := e.locator.BoundingBox(playwright.LocatorBoundingBoxOptions{Timeout: playwright.Float(ms)})
	if err != nil {
		return geometry.Rect{}, fmt.Errorf("failed to get bounds (%s): %w", e.selector, err)
	}
	return toRect(e.selector, box)
}

func (s *Session) IsDisplayed(ctx context.Context, el harness.Element) (bool, error) {
	e, err := asElement(el)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.locator.IsVisible()
}

func (s *Session) Refresh(ctx context.Context) error {
	ms, err := timeoutMs(ctx, defaultCommandTimeout)
	if err != nil {
		return err
	}
	_, err = s.page.Reload(playwright.PageReloadOptions{
		WaitUntil: getWaitUntil(s.waitUntil),
		Timeout:   playwright.Float(ms),
	})
	return err
}

// TryDismiss checks and clicks the overlay through one element handle, so
// the check and the click apply to the same node.
func (s *Session) TryDismiss(ctx context.Context, selector string, timeout time.Duration) (harness.DismissResult, error) {
	if err := ctx.Err(); err != nil {
		return harness.DismissFailed, err
	}
	handle, err := s.page.QuerySelector(selector)
	if err != nil {
		return harness.DismissFailed, err
	}
	if handle == nil {
		return harness.DismissAbsent, nil
	}
	defer handle.Dispose()

	visible, err := handle.IsVisible()
	if err != nil {
		if isDetached(err) {
			return harness.DismissAbsent, nil
		}
		return harness.DismissFailed, err
	}
	if !visible {
		return harness.DismissAbsent, nil
	}
	ms, err := timeoutMs(ctx, timeout)
	if err != nil {
		return harness.DismissFailed, err
	}
	if err := handle.Click(playwright.ElementHandleClickOptions{Timeout: playwright.Float(ms)}); err != nil {
		if isDetached(err) {
			return harness.DismissAbsent, nil
		}
		return harness.DismissFailed, err
	}
	return harness.Dismissed, nil
}

func (s *Session) Screenshot(ctx context.Context, path string) error {
	ms, err := timeoutMs(ctx, defaultCommandTimeout)
	if err != nil {
		return err
	}
	_, err = s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
		Timeout:  playwright.Float(ms),
	})
	return err
}

func (s *Session) ConsoleCursor() int64 {
	return s.logs.lastID()
}

func (s *Session) ConsoleErrors(since int64, limit int) []string {
	entries := s.logs.list(since, limit)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.String())
	}
	return out
}

// Close closes the page and its browser context.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil && !s.page.IsClosed() {
		errs = append(errs, s.page.Close())
	}
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	return errors.Join(errs...)
}

func (s *Session) attachConsole() {
	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.logs.append(msg)
	})
	s.page.OnPageError(func(err error) {
		s.logs.appendPageError(err)
	})
}

func asElement(el harness.Element) (*element, error) {
	e, ok := el.(*element)
	if !ok || e == nil {
		return nil, fmt.Errorf("element %T does not belong to a browser session", el)
	}
	return e, nil
}

func toRect(selector string, box *playwright.Rect) (geometry.Rect, error) {
	if box == nil {
		return geometry.Rect{}, fmt.Errorf("element has no bounding box (%s)", selector)
	}
	if box.Width < 0 || box.Height < 0 {
		return geometry.Rect{}, fmt.Errorf("element has negative size (%s)", selector)
	}
	return geometry.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

// timeoutMs returns the smaller of timeout and the time left on ctx, in
// milliseconds as playwright expects.
func timeoutMs(ctx context.Context, timeout time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return 0, context.DeadlineExceeded
		}
		if timeout <= 0 || left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ms := float64(timeout.Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return ms, nil
}

func getWaitUntil(value string) *playwright.WaitUntilState {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "commit":
		return playwright.WaitUntilStateCommit
	case "networkidle":
		return playwright.WaitUntilStateNetworkidle
	case "domcontentloaded":
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateLoad
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, playwright.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func isDetached(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not attached") || strings.Contains(msg, "detached")
}
