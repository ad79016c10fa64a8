package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/harness"
)

type LaunchOptions struct {
	Engines  []Engine
	BaseURL  string
	Headless bool
	// Device names a playwright device descriptor to emulate, e.g. "Pixel 5".
	Device string
	Window *WindowSize
	// Endpoints connects an engine to an already running browser instead of
	// launching one. ws:// endpoints use the playwright protocol; http://
	// endpoints are chromium CDP endpoints.
	Endpoints map[Engine]string
	// WaitUntil is the load state for navigation and reloads.
	WaitUntil     string
	ConsoleLevels string
	Logger        *slog.Logger
}

// Launcher owns the playwright driver and the browsers behind each session.
type Launcher struct {
	opts LaunchOptions

	mu       sync.Mutex
	pw       *playwright.Playwright
	device   *playwright.DeviceDescriptor
	browsers []playwright.Browser
	sessions []*Session
}

func NewLauncher(opts LaunchOptions) *Launcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Launcher{opts: opts}
}

func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked()
}

func (l *Launcher) startLocked() error {
	if l.pw != nil {
		return nil
	}
	if l.opts.Window != nil && strings.TrimSpace(l.opts.Device) != "" {
		return errors.New("use either --window-size or --device")
	}
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	desc, err := resolveDeviceDescriptor(pw, l.opts.Device)
	if err != nil {
		pw.Stop()
		return err
	}
	l.pw = pw
	l.device = desc
	return nil
}

// Open launches (or connects to) e and returns a session on a fresh page.
func (l *Launcher) Open(e Engine) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.startLocked(); err != nil {
		return nil, err
	}

	bt, err := browserType(l.pw, e)
	if err != nil {
		return nil, err
	}
	browser, err := l.connectOrLaunch(bt, e)
	if err != nil {
		return nil, err
	}
	l.browsers = append(l.browsers, browser)

	window := l.opts.Window
	if window == nil {
		window = deviceWindowSize(l.device)
	}
	bctx, err := browser.NewContext(contextOptions(l.opts.BaseURL, window, l.device))
	if err != nil {
		return nil, fmt.Errorf("%s: new context: %w", e, err)
	}
	bctx.SetDefaultTimeout(float64(defaultCommandTimeout.Milliseconds()))

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("%s: new page: %w", e, err)
	}

	filter, err := parseConsoleLevels(l.opts.ConsoleLevels)
	if err != nil {
		bctx.Close()
		return nil, err
	}
	s := &Session{
		name:      l.sessionName(e),
		engine:    e,
		context:   bctx,
		page:      page,
		logs:      newConsoleStore(0, filter),
		waitUntil: l.opts.WaitUntil,
	}
	s.attachConsole()
	l.sessions = append(l.sessions, s)
	l.opts.Logger.Debug("session opened", "session", s.name, "headless", l.opts.Headless)
	return s, nil
}

func (l *Launcher) connectOrLaunch(bt playwright.BrowserType, e Engine) (playwright.Browser, error) {
	endpoint := strings.TrimSpace(l.opts.Endpoints[e])
	switch {
	case endpoint == "":
		b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(l.opts.Headless),
			Args:     launchArgs(e, l.opts.Window),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: launch: %w", e, err)
		}
		return b, nil
	case strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://"):
		if e != Chromium {
			return nil, fmt.Errorf("%s: CDP endpoints are only supported for chromium", e)
		}
		b, err := bt.ConnectOverCDP(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%s: connect over CDP %s: %w", e, endpoint, err)
		}
		return b, nil
	default:
		b, err := bt.Connect(endpoint)
		if err != nil {
			return nil, fmt.Errorf("%s: connect %s: %w", e, endpoint, err)
		}
		return b, nil
	}
}

func (l *Launcher) sessionName(e Engine) string {
	if l.device == nil {
		return string(e)
	}
	return fmt.Sprintf("%s (%s)", e, strings.TrimSpace(l.opts.Device))
}

// Sessions opens every configured engine. An engine that fails to start is
// returned as a session whose setup fails, so the other engines still run.
func (l *Launcher) Sessions() []harness.Session {
	out := make([]harness.Session, 0, len(l.opts.Engines))
	for _, e := range l.opts.Engines {
		s, err := l.Open(e)
		if err != nil {
			l.opts.Logger.Error("browser unavailable", "browser", e, "error", err)
			out = append(out, &unavailableSession{name: l.sessionName(e), err: err})
			continue
		}
		out = append(out, s)
	}
	return out
}

// Stop closes every session, browser and the playwright driver.
func (l *Launcher) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.sessions {
		if err := s.Close(); err != nil {
			l.opts.Logger.Debug("session close failed", "session", s.name, "error", err)
		}
	}
	l.sessions = nil
	for _, b := range l.browsers {
		_ = b.Close()
	}
	l.browsers = nil
	if l.pw != nil {
		_ = l.pw.Stop()
	}
	l.pw = nil
}

// unavailableSession stands in for a browser that could not be started.
type unavailableSession struct {
	name string
	err  error
}

func (u *unavailableSession) Name() string { return u.name }

func (u *unavailableSession) Open(context.Context, string, time.Duration) error {
	return u.err
}

func (u *unavailableSession) ResizeViewport(context.Context, int, int) error { return u.err }

func (u *unavailableSession) Find(context.Context, string) (harness.Element, error) {
	return nil, u.err
}

func (u *unavailableSession) WaitVisible(context.Context, harness.Element, time.Duration) error {
	return u.err
}

func (u *unavailableSession) Click(context.Context, harness.Element) error { return u.err }

func (u *unavailableSession) Rect(context.Context, harness.Element) (geometry.Rect, error) {
	return geometry.Rect{}, u.err
}

func (u *unavailableSession) IsDisplayed(context.Context, harness.Element) (bool, error) {
	return false, u.err
}

func (u *unavailableSession) Refresh(context.Context) error { return u.err }
