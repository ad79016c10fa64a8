// Package harness checks that the content and utility panels of a page do
// not overlap, for every combination of browser session and viewport size.
//
// Sessions run concurrently with each other. Cases within a session run one
// at a time, and each case ends with a page refresh so the next one starts
// from a clean page. A failing case never stops its siblings; only a session
// that cannot load the target route skips its remaining cases.
package harness

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/overlap-go/internal/matrix"
)

type Harness struct {
	sessions []Session
	matrix   matrix.Matrix
	opts     Options
	runID    string
}

func New(sessions []Session, m matrix.Matrix, opts Options) *Harness {
	return &Harness{
		sessions: append([]Session(nil), sessions...),
		matrix:   m,
		opts:     opts.withDefaults(),
		runID:    uuid.NewString(),
	}
}

func (h *Harness) RunID() string         { return h.runID }
func (h *Harness) Options() Options      { return h.opts }
func (h *Harness) Matrix() matrix.Matrix { return h.matrix }
func (h *Harness) Sessions() []Session   { return append([]Session(nil), h.sessions...) }

type Summary struct {
	RunID     string        `json:"run_id"`
	Route     string        `json:"route"`
	Results   []CaseResult  `json:"results"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

func (s Summary) OK() bool {
	return s.Failed == 0 && s.Cancelled == 0 && len(s.Results) > 0
}

// Setup loads the target route in s. When ctx itself ends, its error is
// returned as is rather than as a SetupError.
func (h *Harness) Setup(ctx context.Context, s Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, h.opts.Timeouts.Navigation)
	defer cancel()
	if err := s.Open(navCtx, h.opts.Route, h.opts.Timeouts.Navigation); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &SetupError{Session: s.Name(), Route: h.opts.Route, Err: err}
	}
	return nil
}

// SetupFailed records a failed result for every row of the matrix without
// touching the session.
func (h *Harness) SetupFailed(s Session, err error) []CaseResult {
	out := make([]CaseResult, 0, h.matrix.Len())
	for _, cfg := range h.matrix.Configs() {
		out = append(out, h.SetupFailedCase(s, cfg, err))
	}
	return out
}

func (h *Harness) SetupFailedCase(s Session, cfg matrix.ViewportConfig, err error) CaseResult {
	c := Case{Session: s.Name(), Config: cfg}
	h.opts.Reporter.CaseStarted(c)
	res := CaseResult{Case: c}
	res.enter(StateIdle)
	res.fail(StepSetup, err)
	h.opts.Reporter.CaseFinished(res)
	return res
}

// SkippedCase records a case that never started because the run was
// cancelled.
func (h *Harness) SkippedCase(s Session, cfg matrix.ViewportConfig, err error) CaseResult {
	c := Case{Session: s.Name(), Config: cfg}
	h.opts.Reporter.CaseStarted(c)
	res := CaseResult{Case: c, Err: &CancelledError{Err: err}}
	res.enter(StateIdle)
	h.opts.Reporter.CaseFinished(res)
	return res
}

// RunSession sets up s and runs every case on it in matrix order. Once ctx
// is done the remaining cases are recorded as cancelled, so every row of the
// matrix still has exactly one result.
func (h *Harness) RunSession(ctx context.Context, s Session) []CaseResult {
	logger := h.opts.Logger.With("session", s.Name())
	configs := h.matrix.Configs()
	results := make([]CaseResult, 0, len(configs))
	skipRest := func(from int) []CaseResult {
		for _, cfg := range configs[from:] {
			results = append(results, h.SkippedCase(s, cfg, ctx.Err()))
		}
		return results
	}

	if err := h.Setup(ctx, s); err != nil {
		if ctx.Err() != nil {
			logger.Info("session skipped, run cancelled")
			return skipRest(0)
		}
		logger.Error("session setup failed", "route", h.opts.Route, "error", err)
		return h.SetupFailed(s, err)
	}
	for i, cfg := range configs {
		if ctx.Err() != nil {
			return skipRest(i)
		}
		results = append(results, h.RunCase(ctx, s, cfg))
	}
	return results
}

// Run executes the whole matrix on every session. The error is non-nil only
// when ctx ends before all cases ran; those cases are counted as cancelled.
// Case failures are in the summary.
func (h *Harness) Run(ctx context.Context) (Summary, error) {
	start := h.opts.Clock.Now()
	h.opts.Logger.Info("run started",
		"run_id", h.runID,
		"route", h.opts.Route,
		"sessions", len(h.sessions),
		"viewports", h.matrix.Len())

	perSession := make([][]CaseResult, len(h.sessions))
	g, gctx := errgroup.WithContext(ctx)
	if h.opts.Parallelism > 0 {
		g.SetLimit(h.opts.Parallelism)
	}
	for i, s := range h.sessions {
		g.Go(func() error {
			perSession[i] = h.RunSession(gctx, s)
			return nil
		})
	}
	_ = g.Wait()

	sum := Summary{RunID: h.runID, Route: h.opts.Route}
	for _, results := range perSession {
		for _, r := range results {
			sum.Results = append(sum.Results, r)
			switch {
			case r.Passed():
				sum.Passed++
			case r.Cancelled():
				sum.Cancelled++
			default:
				sum.Failed++
			}
		}
	}
	sum.Duration = h.opts.Clock.Since(start)
	h.opts.Logger.Info("run finished",
		"run_id", h.runID,
		"passed", sum.Passed,
		"failed", sum.Failed,
		"cancelled", sum.Cancelled,
		"duration", sum.Duration)
	return sum, ctx.Err()
}
