// Package config loads run settings from the environment and an optional
// .env file. Command line flags use these values as their defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	BaseURL       string `env:"OVERLAP_BASE_URL" default:"http://localhost:8080"`
	Route         string `env:"OVERLAP_ROUTE" default:"/course/1"`
	Browsers      string `env:"OVERLAP_BROWSERS" default:"chromium"`
	MatrixFile    string `env:"OVERLAP_MATRIX"`
	Device        string `env:"OVERLAP_DEVICE"`
	WindowSize    string `env:"OVERLAP_WINDOW_SIZE"`
	Headless      bool   `env:"OVERLAP_HEADLESS" default:"true"`
	WaitUntil     string `env:"OVERLAP_WAIT_UNTIL" default:"load"`
	ConsoleLevels string `env:"OVERLAP_CONSOLE_LEVELS" default:"warning,error"`
	ArtifactDir   string `env:"OVERLAP_ARTIFACTS"`
	MetricsFile   string `env:"OVERLAP_METRICS_FILE"`
	Parallel      int    `env:"OVERLAP_PARALLEL" default:"0"`

	ControlTimeout    time.Duration `env:"OVERLAP_CONTROL_TIMEOUT" default:"100ms"`
	PanelTimeout      time.Duration `env:"OVERLAP_PANEL_TIMEOUT" default:"5s"`
	CaseTimeout       time.Duration `env:"OVERLAP_CASE_TIMEOUT" default:"50s"`
	NavigationTimeout time.Duration `env:"OVERLAP_NAVIGATION_TIMEOUT" default:"45s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// Load reads envFiles (default ".env") and then the environment. Variables
// already set in the environment win over the files.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("no .env file loaded, using environment variables", "error", err)
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var allowedWaitStates = map[string]bool{"load": true, "domcontentloaded": true, "networkidle": true, "commit": true}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Browsers) == "" {
		return errors.New("OVERLAP_BROWSERS must name at least one browser")
	}
	if !strings.HasPrefix(c.Route, "/") && !strings.Contains(c.Route, "://") {
		return fmt.Errorf("OVERLAP_ROUTE must be a path or absolute URL, got %q", c.Route)
	}
	if !allowedWaitStates[strings.ToLower(c.WaitUntil)] {
		return fmt.Errorf("invalid wait state '%s' (expected one of: load, domcontentloaded, networkidle, commit)", c.WaitUntil)
	}
	timeouts := map[string]time.Duration{
		"OVERLAP_CONTROL_TIMEOUT":    c.ControlTimeout,
		"OVERLAP_PANEL_TIMEOUT":      c.PanelTimeout,
		"OVERLAP_CASE_TIMEOUT":       c.CaseTimeout,
		"OVERLAP_NAVIGATION_TIMEOUT": c.NavigationTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.CaseTimeout < c.ControlTimeout+2*c.PanelTimeout {
		return errors.New("OVERLAP_CASE_TIMEOUT must cover the control wait and both panel waits")
	}
	if c.Parallel < 0 {
		return errors.New("OVERLAP_PARALLEL must be >= 0")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}
