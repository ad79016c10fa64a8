package browser

import (
	"fmt"
	"os"
	"strings"

	"github.com/playwright-community/playwright-go"
)

type Engine string

const (
	Chromium Engine = "chromium"
	Firefox  Engine = "firefox"
	WebKit   Engine = "webkit"
)

var engineAliases = map[string]Engine{
	"chromium": Chromium,
	"chrome":   Chromium,
	"firefox":  Firefox,
	"webkit":   WebKit,
	"safari":   WebKit,
}

// ParseEngines parses a comma separated engine list. Duplicates are dropped
// and order is kept.
func ParseEngines(raw string) ([]Engine, error) {
	out := []Engine{}
	seen := map[Engine]bool{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		e, ok := engineAliases[name]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q (expected chromium, firefox or webkit)", part)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one browser is required")
	}
	return out, nil
}

func browserType(pw *playwright.Playwright, e Engine) (playwright.BrowserType, error) {
	switch e {
	case Chromium:
		return pw.Chromium, nil
	case Firefox:
		return pw.Firefox, nil
	case WebKit:
		return pw.WebKit, nil
	}
	return nil, fmt.Errorf("unknown browser %q", e)
}

type WindowSize struct {
	Width  int
	Height int
}

// launchArgs returns extra command line flags for e.
func launchArgs(e Engine, window *WindowSize) []string {
	if e != Chromium {
		return nil
	}
	args := []string{}
	if !envTruthy("OVERLAP_USE_KEYCHAIN") {
		args = append(args, "--use-mock-keychain")
	}
	if window != nil {
		args = append(args, fmt.Sprintf("--window-size=%d,%d", window.Width, window.Height))
	}
	return args
}

func envTruthy(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

// Install downloads the playwright driver and the given browsers.
func Install(engines []Engine) error {
	names := make([]string, 0, len(engines))
	for _, e := range engines {
		names = append(names, string(e))
	}
	return playwright.Install(&playwright.RunOptions{Browsers: names})
}
