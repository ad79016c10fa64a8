package harnesstest

import (
	"context"
	"testing"

	"github.com/joshp123/overlap-go/internal/harness"
)

// RunT registers one subtest per session and, inside it, one subtest per
// viewport. Sessions run in parallel; viewports within a session run in
// order.
func RunT(t *testing.T, h *harness.Harness) {
	t.Helper()
	ctx := context.Background()
	for _, s := range h.Sessions() {
		t.Run(s.Name(), func(t *testing.T) {
			t.Parallel()
			setupErr := h.Setup(ctx, s)
			for _, cfg := range h.Matrix().Configs() {
				t.Run(cfg.Name(), func(t *testing.T) {
					if setupErr != nil {
						Check(t, h.SetupFailedCase(s, cfg, setupErr))
						return
					}
					Check(t, h.RunCase(ctx, s, cfg))
				})
			}
		})
	}
}

// Check fails t with the case diagnostics unless the result passed. Cases
// cancelled with the run are skipped.
func Check(t testing.TB, res harness.CaseResult) {
	t.Helper()
	if res.Passed() {
		return
	}
	if res.Cancelled() {
		t.Skipf("%s: %s", res.Case.Session, res.Message())
	}
	cfg := res.Case.Config
	t.Errorf("%s: viewport %s want overlap=%t got=%t state=%s step=%s: %s",
		res.Case.Session, cfg.Size(), cfg.Want, res.Overlap, res.State(), res.FailedStep, res.Message())
	if res.Screenshot != "" {
		t.Logf("screenshot: %s", res.Screenshot)
	}
	for _, line := range res.Console {
		t.Logf("console: %s", line)
	}
}
