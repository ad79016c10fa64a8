package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/matrix"
)

// Case identifies one (session, viewport) pair.
type Case struct {
	Session string                `json:"session"`
	Config  matrix.ViewportConfig `json:"viewport"`
}

func (c Case) Name() string {
	return c.Session + "/" + c.Config.Name()
}

type CaseResult struct {
	Case       Case          `json:"case"`
	Trace      []State       `json:"trace"`
	FailedStep Step          `json:"failed_step,omitempty"`
	Dismiss    DismissResult `json:"-"`
	Overlap    bool          `json:"overlap"`
	Content    geometry.Rect `json:"content"`
	Utility    geometry.Rect `json:"utility"`
	Err        error         `json:"-"`
	CleanupErr error         `json:"-"`
	Duration   time.Duration `json:"duration"`
	Screenshot string        `json:"screenshot,omitempty"`
	Console    []string      `json:"console,omitempty"`
}

// Passed is true only when the assertion held and the page was reset.
func (r CaseResult) Passed() bool {
	return r.Err == nil && r.CleanupErr == nil
}

// State is the last state the case reached.
func (r CaseResult) State() State {
	if len(r.Trace) == 0 {
		return StateIdle
	}
	return r.Trace[len(r.Trace)-1]
}

// Reached reports whether the case passed through s.
func (r CaseResult) Reached(s State) bool {
	for _, st := range r.Trace {
		if st == s {
			return true
		}
	}
	return false
}

// Cancelled reports whether the case was cut short or skipped because the
// run was cancelled.
func (r CaseResult) Cancelled() bool {
	var c *CancelledError
	return errors.As(r.Err, &c)
}

// Message is the one-line failure description shown to users.
func (r CaseResult) Message() string {
	switch {
	case r.Err != nil && r.CleanupErr != nil:
		return fmt.Sprintf("%v (also %v)", r.Err, r.CleanupErr)
	case r.Err != nil:
		return r.Err.Error()
	case r.CleanupErr != nil:
		return r.CleanupErr.Error()
	}
	return ""
}

func (r *CaseResult) enter(s State) {
	r.Trace = append(r.Trace, s)
}

func (r *CaseResult) fail(step Step, err error) {
	r.FailedStep = step
	r.Err = err
	r.enter(StateFailed)
}

// RunCase executes one case on s, which must already be set up. The page is
// refreshed before RunCase returns whatever happened.
func (h *Harness) RunCase(ctx context.Context, s Session, cfg matrix.ViewportConfig) CaseResult {
	c := Case{Session: s.Name(), Config: cfg}
	h.opts.Reporter.CaseStarted(c)
	logger := h.opts.Logger.With("session", c.Session, "viewport", cfg.Size())
	logger.Debug("case started")

	start := h.opts.Clock.Now()
	res := CaseResult{Case: c}
	res.enter(StateIdle)

	var consoleMark int64
	console, hasConsole := s.(ConsoleReader)
	if hasConsole {
		consoleMark = console.ConsoleCursor()
	}

	func() {
		// The reset runs on every exit from the steps below.
		defer h.reset(ctx, s, &res)

		caseCtx, cancel := context.WithTimeout(ctx, h.opts.Timeouts.Case)
		defer cancel()
		if step, err := h.runSteps(caseCtx, s, cfg, &res); err != nil {
			if ctx.Err() != nil {
				res.fail(step, &CancelledError{Step: step, Err: ctx.Err()})
				return
			}
			res.fail(step, err)
			if hasConsole {
				res.Console = console.ConsoleErrors(consoleMark, 20)
			}
			h.screenshot(ctx, s, &res)
		}
	}()

	res.Duration = h.opts.Clock.Since(start)
	switch {
	case res.Passed():
		logger.Info("case passed", "overlap", res.Overlap, "duration", res.Duration)
	case res.Cancelled():
		logger.Info("case cancelled", "step", res.FailedStep)
	default:
		logger.Warn("case failed", "state", res.State(), "step", res.FailedStep, "error", res.Message())
	}
	h.opts.Reporter.CaseFinished(res)
	return res
}

func (h *Harness) runSteps(ctx context.Context, s Session, cfg matrix.ViewportConfig, res *CaseResult) (Step, error) {
	sel := h.opts.Selectors
	to := h.opts.Timeouts

	if err := s.ResizeViewport(ctx, cfg.Width, cfg.Height); err != nil {
		return StepResize, &StepError{Step: StepResize, Err: err}
	}
	res.enter(StateResized)

	dismissed, err := tryDismiss(ctx, s, sel.Dismiss, to.Control)
	res.Dismiss = dismissed
	if dismissed == DismissFailed {
		if err == nil {
			err = errors.New("overlay could not be dismissed")
		}
		return StepDismiss, &StepError{Step: StepDismiss, Err: err}
	}
	res.enter(StateOverlayChecked)

	sw, err := h.waitFor(ctx, s, StepSwitch, sel.Switch, to.Control)
	if err != nil {
		return StepSwitch, err
	}
	if err := s.Click(ctx, sw); err != nil {
		return StepSwitch, &StepError{Step: StepSwitch, Err: err}
	}
	res.enter(StateViewSwitched)

	content, err := h.locate(ctx, s, StepContent, sel.Content, to.Panel)
	if err != nil {
		return StepContent, err
	}
	utility, err := h.locate(ctx, s, StepUtility, sel.Utility, to.Panel)
	if err != nil {
		return StepUtility, err
	}
	res.Content = content
	res.Utility = utility
	res.enter(StatePanelsLocated)

	res.Overlap = geometry.Overlaps(utility, content)
	res.enter(StateEvaluated)
	if res.Overlap != cfg.Want {
		return StepEvaluate, &MismatchError{
			Config:  cfg,
			Want:    cfg.Want,
			Got:     res.Overlap,
			Utility: utility,
			Content: content,
		}
	}
	return "", nil
}

func (h *Harness) waitFor(ctx context.Context, s Session, step Step, selector string, timeout time.Duration) (Element, error) {
	el, err := s.Find(ctx, selector)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &ElementMissingError{Step: step, Selector: selector}
		}
		return nil, &StepError{Step: step, Err: err}
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.WaitVisible(waitCtx, el, timeout); err != nil {
		if errors.Is(err, ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded) {
			te := &ElementTimeoutError{Step: step, Selector: selector, Timeout: timeout, Err: err}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				te.Timeout = h.opts.Timeouts.Case
				te.CaseBudget = true
			}
			return nil, te
		}
		return nil, &StepError{Step: step, Err: err}
	}
	return el, nil
}

func (h *Harness) locate(ctx context.Context, s Session, step Step, selector string, timeout time.Duration) (geometry.Rect, error) {
	el, err := h.waitFor(ctx, s, step, selector, timeout)
	if err != nil {
		return geometry.Rect{}, err
	}
	r, err := s.Rect(ctx, el)
	if err != nil {
		return geometry.Rect{}, &StepError{Step: step, Err: err}
	}
	return r, nil
}

// reset refreshes the page. It uses its own deadline so a case that ran out
// of budget still gets cleaned up.
func (h *Harness) reset(ctx context.Context, s Session, res *CaseResult) {
	resetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.Timeouts.Reset)
	defer cancel()
	if err := s.Refresh(resetCtx); err != nil {
		res.CleanupErr = &CleanupError{Err: err}
	}
	res.enter(StateReset)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (h *Harness) screenshot(ctx context.Context, s Session, res *CaseResult) {
	if h.opts.ArtifactDir == "" {
		return
	}
	shooter, ok := s.(Screenshotter)
	if !ok {
		return
	}
	if err := os.MkdirAll(h.opts.ArtifactDir, 0o755); err != nil {
		h.opts.Logger.Warn("artifact dir unavailable", "dir", h.opts.ArtifactDir, "error", err)
		return
	}
	name := fmt.Sprintf("%s-%s-%s.png", h.runID[:8], s.Name(), res.Case.Config.Size())
	path := filepath.Join(h.opts.ArtifactDir, unsafeFileChars.ReplaceAllString(name, "_"))
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.Timeouts.Panel)
	defer cancel()
	if err := shooter.Screenshot(shotCtx, path); err != nil {
		h.opts.Logger.Warn("screenshot failed", "session", s.Name(), "error", err)
		return
	}
	res.Screenshot = path
}
