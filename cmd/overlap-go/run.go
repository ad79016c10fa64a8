package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/overlap-go/internal/browser"
	"github.com/joshp123/overlap-go/internal/config"
	"github.com/joshp123/overlap-go/internal/harness"
	"github.com/joshp123/overlap-go/internal/matrix"
	"github.com/joshp123/overlap-go/internal/metrics"
	"github.com/joshp123/overlap-go/internal/report"
)

// casesFailedError is returned when the run completed but cases failed. The
// report already describes them, so main only sets the exit status.
type casesFailedError struct {
	failed int
}

func (e *casesFailedError) Error() string {
	return fmt.Sprintf("%d case(s) failed", e.failed)
}

type runOptions struct {
	cfg     config.Config
	connect map[string]string
	headed  bool
}

func newRunCmd(cfg *config.Config) *cobra.Command {
	opts := &runOptions{cfg: *cfg}
	c := &opts.cfg

	cmd := &cobra.Command{
		Use:   "run [route]",
		Short: "Check panel overlap for every browser and viewport",
		Args:  maxArgs(1, "too many arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				c.Route = args[0]
			}
			if err := resolveHeadless(cmd, &c.Headless); err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			return runOverlap(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&c.BaseURL, "base-url", cfg.BaseURL, "Base URL the route is resolved against")
	cmd.Flags().StringVar(&c.Browsers, "browsers", cfg.Browsers, "Browsers to run (chromium,firefox,webkit)")
	cmd.Flags().StringVar(&c.MatrixFile, "matrix", cfg.MatrixFile, "Viewport matrix YAML (default: reference matrix)")
	cmd.Flags().StringVar(&c.Device, "device", cfg.Device, "Playwright device descriptor to emulate")
	cmd.Flags().StringVar(&c.WindowSize, "window-size", cfg.WindowSize, "Browser window WxH")
	cmd.Flags().StringToStringVar(&opts.connect, "connect", nil, "Connect a browser to a running instance (engine=ws://...|http://...)")
	cmd.Flags().BoolVar(&c.Headless, "headless", cfg.Headless, "Force headless")
	cmd.Flags().BoolVar(&opts.headed, "headed", false, "Disable headless")
	cmd.Flags().StringVar(&c.WaitUntil, "wait-until", cfg.WaitUntil, "Load state for navigation (load|domcontentloaded|networkidle|commit)")
	cmd.Flags().StringVar(&c.ConsoleLevels, "console-levels", cfg.ConsoleLevels, "Console levels attached to failures")
	cmd.Flags().StringVar(&c.ArtifactDir, "artifacts", cfg.ArtifactDir, "Directory for failure screenshots and reports")
	cmd.Flags().StringVar(&c.MetricsFile, "metrics-file", cfg.MetricsFile, "Write prometheus metrics to this textfile")
	cmd.Flags().IntVar(&c.Parallel, "parallel", cfg.Parallel, "Max browsers running at once (0 = all)")
	cmd.Flags().DurationVar(&c.ControlTimeout, "control-timeout", cfg.ControlTimeout, "Wait for the overlay and switch controls")
	cmd.Flags().DurationVar(&c.PanelTimeout, "panel-timeout", cfg.PanelTimeout, "Wait for each panel")
	cmd.Flags().DurationVar(&c.CaseTimeout, "case-timeout", cfg.CaseTimeout, "Bound on a whole case")
	cmd.Flags().DurationVar(&c.NavigationTimeout, "navigation-timeout", cfg.NavigationTimeout, "Bound on loading the route")

	return cmd
}

func runOverlap(ctx context.Context, opts *runOptions, out io.Writer) error {
	c := opts.cfg
	engines, err := browser.ParseEngines(c.Browsers)
	if err != nil {
		return err
	}
	m, err := loadMatrix(c.MatrixFile)
	if err != nil {
		return err
	}
	window, err := parseWindow(c.WindowSize)
	if err != nil {
		return err
	}
	endpoints, err := parseEndpoints(opts.connect)
	if err != nil {
		return err
	}

	logger := globalOpts.logger
	if logger == nil {
		logger = slog.Default()
	}
	launcher := browser.NewLauncher(browser.LaunchOptions{
		Engines:       engines,
		BaseURL:       c.BaseURL,
		Headless:      c.Headless,
		Device:        c.Device,
		Window:        window,
		Endpoints:     endpoints,
		WaitUntil:     c.WaitUntil,
		ConsoleLevels: c.ConsoleLevels,
		Logger:        logger,
	})
	if err := launcher.Start(); err != nil {
		return err
	}
	defer launcher.Stop()

	met := metrics.New()
	h := harness.New(launcher.Sessions(), m, harness.Options{
		Route: c.Route,
		Timeouts: harness.Timeouts{
			Control:    c.ControlTimeout,
			Panel:      c.PanelTimeout,
			Case:       c.CaseTimeout,
			Navigation: c.NavigationTimeout,
			Reset:      c.NavigationTimeout,
		},
		Reporter:    met,
		Logger:      logger,
		ArtifactDir: c.ArtifactDir,
		Parallelism: c.Parallel,
	})

	sum, runErr := h.Run(ctx)
	if c.MetricsFile != "" {
		if err := met.WriteTextfile(c.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", c.MetricsFile, "error", err)
		}
	}
	text, err := report.Write(globalOpts.output, sum, globalOpts.outPath, c.ArtifactDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	if runErr != nil {
		return runErr
	}
	if !sum.OK() {
		return &casesFailedError{failed: sum.Failed}
	}
	return nil
}

func loadMatrix(path string) (matrix.Matrix, error) {
	if strings.TrimSpace(path) == "" {
		return matrix.Reference(), nil
	}
	return matrix.Load(path)
}

func parseWindow(raw string) (*browser.WindowSize, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	vp, err := matrix.ParseViewport(raw)
	if err != nil {
		return nil, fmt.Errorf("--window-size: %w", err)
	}
	return &browser.WindowSize{Width: vp.Width, Height: vp.Height}, nil
}

// parseEndpoints maps --connect engine names to endpoints. http endpoints
// are CDP and only work with chromium.
func parseEndpoints(raw map[string]string) (map[browser.Engine]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[browser.Engine]string, len(raw))
	for name, endpoint := range raw {
		engines, err := browser.ParseEngines(name)
		if err != nil {
			return nil, err
		}
		if len(engines) != 1 {
			return nil, fmt.Errorf("--connect: expected one browser per endpoint, got %q", name)
		}
		endpoint = strings.TrimSpace(endpoint)
		switch {
		case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
			if engines[0] != browser.Chromium {
				return nil, fmt.Errorf("--connect: CDP endpoint %s only works with chromium", endpoint)
			}
		default:
			return nil, fmt.Errorf("--connect: endpoint for %s must be ws:// or http://, got %q", engines[0], endpoint)
		}
		out[engines[0]] = endpoint
	}
	return out, nil
}
