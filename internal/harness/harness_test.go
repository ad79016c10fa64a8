package harness_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/harness"
	"github.com/joshp123/overlap-go/internal/harness/harnesstest"
	"github.com/joshp123/overlap-go/internal/matrix"
)

var (
	desktop     = matrix.ViewportConfig{Width: 1920, Height: 1080, Want: false, Label: "Desktop"}
	commonPhone = matrix.ViewportConfig{Width: 360, Height: 740, Want: false, Label: "More common phones"}
	olderPhone  = matrix.ViewportConfig{Width: 360, Height: 640, Want: false, Label: "Older phones"}

	desktopLayout = harnesstest.Layout{
		Content: geometry.Rect{X: 300, Y: 0, Width: 900, Height: 800},
		Utility: geometry.Rect{X: 1300, Y: 0, Width: 400, Height: 800},
	}
	stackedLayout = harnesstest.Layout{
		Content: geometry.Rect{X: 0, Y: 0, Width: 360, Height: 400},
		Utility: geometry.Rect{X: 0, Y: 400, Width: 360, Height: 400},
	}
	regressedLayout = harnesstest.Layout{
		Content: geometry.Rect{X: 0, Y: 0, Width: 360, Height: 400},
		Utility: geometry.Rect{X: 0, Y: 50, Width: 360, Height: 400},
	}
)

func testOptions() harness.Options {
	return harness.Options{
		Timeouts: harness.Timeouts{
			Control: 20 * time.Millisecond,
			Panel:   50 * time.Millisecond,
			Case:    2 * time.Second,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  clockwork.NewFakeClock(),
	}
}

func newSession(name string) *harnesstest.FakeSession {
	s := harnesstest.NewFakeSession(name)
	s.Default = stackedLayout
	s.Layouts["1920x1080"] = desktopLayout
	return s
}

func run(t *testing.T, sessions []harness.Session, m matrix.Matrix, opts harness.Options) harness.Summary {
	t.Helper()
	sum, err := harness.New(sessions, m, opts).Run(context.Background())
	require.NoError(t, err)
	return sum
}

func TestDesktopScenarioPasses(t *testing.T) {
	s := newSession("chromium")
	h := harness.New([]harness.Session{s}, matrix.MustNew(desktop), testOptions())
	require.NoError(t, h.Setup(context.Background(), s))

	res := h.RunCase(context.Background(), s, desktop)

	require.True(t, res.Passed(), res.Message())
	assert.False(t, res.Overlap)
	assert.Equal(t, desktopLayout.Content, res.Content)
	assert.Equal(t, desktopLayout.Utility, res.Utility)
	assert.Equal(t, []harness.State{
		harness.StateIdle,
		harness.StateResized,
		harness.StateOverlayChecked,
		harness.StateViewSwitched,
		harness.StatePanelsLocated,
		harness.StateEvaluated,
		harness.StateReset,
	}, res.Trace)
	assert.Equal(t, harness.DismissAbsent, res.Dismiss)
}

func TestStackedPhoneLayoutPasses(t *testing.T) {
	s := newSession("chromium")
	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone), testOptions())

	require.Len(t, sum.Results, 1)
	assert.True(t, sum.OK())
	assert.False(t, sum.Results[0].Overlap)
}

func TestRegressionFlipsCaseToFailed(t *testing.T) {
	s := newSession("chromium")
	s.Layouts["360x740"] = regressedLayout

	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone), testOptions())

	require.Len(t, sum.Results, 1)
	res := sum.Results[0]
	assert.False(t, res.Passed())
	assert.True(t, res.Overlap)
	assert.Equal(t, harness.StepEvaluate, res.FailedStep)

	var mismatch *harness.MismatchError
	require.ErrorAs(t, res.Err, &mismatch)
	assert.False(t, mismatch.Want)
	assert.True(t, mismatch.Got)
	assert.Equal(t, regressedLayout.Utility, mismatch.Utility)
	assert.Contains(t, res.Message(), "360x740")
	assert.Contains(t, res.Message(), "want overlap=false, got overlap=true")

	assert.True(t, res.Reached(harness.StateEvaluated))
	assert.Equal(t, harness.StateReset, res.State())
	assert.Equal(t, 1, s.Refreshes())
}

func TestExpectedOverlapPasses(t *testing.T) {
	s := newSession("chromium")
	s.Default = regressedLayout
	cfg := matrix.ViewportConfig{Width: 500, Height: 500, Want: true}

	sum := run(t, []harness.Session{s}, matrix.MustNew(cfg), testOptions())
	assert.True(t, sum.OK())
	assert.True(t, sum.Results[0].Overlap)
}

func TestFailuresAreIndependent(t *testing.T) {
	a := newSession("chromium")
	a.Layouts["360x740"] = regressedLayout
	b := newSession("firefox")
	b.Layouts["360x640"] = harnesstest.Layout{
		Content: stackedLayout.Content,
		Utility: stackedLayout.Utility,
		Hidden:  []string{".list-group.width-resize"},
	}
	m := matrix.MustNew(desktop, commonPhone, olderPhone)

	sum := run(t, []harness.Session{a, b}, m, testOptions())

	require.Len(t, sum.Results, 6)
	outcome := map[string]bool{}
	for _, r := range sum.Results {
		outcome[r.Case.Session+" "+r.Case.Config.Size()] = r.Passed()
	}
	assert.Equal(t, map[string]bool{
		"chromium 1920x1080": true,
		"chromium 360x740":   false,
		"chromium 360x640":   true,
		"firefox 1920x1080":  true,
		"firefox 360x740":    true,
		"firefox 360x640":    false,
	}, outcome)
	assert.Equal(t, 4, sum.Passed)
	assert.Equal(t, 2, sum.Failed)
	assert.False(t, sum.OK())
}

func TestResultsKeepSessionOrder(t *testing.T) {
	sessions := []harness.Session{newSession("chromium"), newSession("firefox"), newSession("webkit")}
	sum := run(t, sessions, matrix.Reference(), testOptions())

	require.Len(t, sum.Results, 12)
	for i, r := range sum.Results {
		assert.Equal(t, sessions[i/4].Name(), r.Case.Session)
		assert.Equal(t, matrix.Reference().Configs()[i%4], r.Case.Config)
	}
}

func TestResetRunsOnceBeforeNextCase(t *testing.T) {
	s := newSession("chromium")
	s.Layouts["360x740"] = harnesstest.Layout{Hidden: []string{".clickable"}}
	s.Layouts["360x640"] = regressedLayout

	sum := run(t, []harness.Session{s}, matrix.Reference(), testOptions())

	require.Len(t, sum.Results, 4)
	assert.Equal(t, 4, s.Refreshes())
	for _, r := range sum.Results {
		assert.Equal(t, harness.StateReset, r.State(), r.Case.Name())
	}

	// Every resize after the first is preceded by exactly one refresh since
	// the previous resize.
	refreshes := 0
	resizes := 0
	for _, call := range s.Calls() {
		switch {
		case call == "refresh":
			refreshes++
		case strings.HasPrefix(call, "resize "):
			assert.Equal(t, resizes, refreshes, "refreshes before resize #%d", resizes+1)
			resizes++
		}
	}
	assert.Equal(t, 4, resizes)
	assert.Equal(t, 4, refreshes)
}

func TestSwitchTimeoutFailsCase(t *testing.T) {
	s := newSession("chromium")
	s.Default = harnesstest.Layout{Hidden: []string{".clickable"}}
	opts := testOptions()

	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone), opts)

	res := sum.Results[0]
	require.False(t, res.Passed())
	assert.Equal(t, harness.StepSwitch, res.FailedStep)
	assert.True(t, res.Reached(harness.StateOverlayChecked))
	assert.False(t, res.Reached(harness.StateViewSwitched))

	var timeout *harness.ElementTimeoutError
	require.ErrorAs(t, res.Err, &timeout)
	assert.Equal(t, ".clickable", timeout.Selector)
	assert.Equal(t, opts.Timeouts.Control, timeout.Timeout)
	assert.ErrorIs(t, res.Err, harness.ErrWaitTimeout)
	assert.Equal(t, 1, s.Refreshes())
}

func TestPanelTimeoutFailsCase(t *testing.T) {
	s := newSession("chromium")
	s.Default = harnesstest.Layout{
		Content: stackedLayout.Content,
		Hidden:  []string{".list-group.width-resize"},
	}

	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone), testOptions())

	res := sum.Results[0]
	assert.Equal(t, harness.StepUtility, res.FailedStep)
	assert.True(t, res.Reached(harness.StateViewSwitched))
	assert.False(t, res.Reached(harness.StatePanelsLocated))
	assert.Contains(t, res.Message(), "utility: .list-group.width-resize not visible within 50ms")
}

func TestMissingPanelFailsCase(t *testing.T) {
	s := newSession("chromium")
	s.Missing = []string{".col-md-9"}

	sum := run(t, []harness.Session{s}, matrix.MustNew(desktop), testOptions())

	res := sum.Results[0]
	assert.Equal(t, harness.StepContent, res.FailedStep)
	var missing *harness.ElementMissingError
	require.ErrorAs(t, res.Err, &missing)
	assert.ErrorIs(t, res.Err, harness.ErrNotFound)
}

func TestResizeFailureFailsCase(t *testing.T) {
	s := newSession("chromium")
	s.ResizeErr = errors.New("window is minimized")

	sum := run(t, []harness.Session{s}, matrix.MustNew(desktop, commonPhone), testOptions())

	require.Len(t, sum.Results, 2)
	for _, r := range sum.Results {
		assert.Equal(t, harness.StepResize, r.FailedStep)
		assert.Equal(t, []harness.State{harness.StateIdle, harness.StateFailed, harness.StateReset}, r.Trace)
	}
	assert.Equal(t, 2, s.Refreshes())
}

func TestOverlayIsDismissed(t *testing.T) {
	s := newSession("chromium")
	s.Overlay = true

	sum := run(t, []harness.Session{s}, matrix.MustNew(desktop, commonPhone), testOptions())

	require.True(t, sum.OK())
	for _, r := range sum.Results {
		assert.Equal(t, harness.Dismissed, r.Dismiss)
	}
	assert.Contains(t, s.Calls(), "click .closeButton")
}

func TestOverlayThatCannotBeDismissedFailsCase(t *testing.T) {
	s := newSession("chromium")
	s.Overlay = true
	s.DismissErr = errors.New("element is not clickable")

	sum := run(t, []harness.Session{s}, matrix.MustNew(desktop), testOptions())

	res := sum.Results[0]
	assert.Equal(t, harness.DismissFailed, res.Dismiss)
	assert.Equal(t, harness.StepDismiss, res.FailedStep)
	assert.Contains(t, res.Message(), "element is not clickable")
	assert.Equal(t, 1, s.Refreshes())
}

type atomicDismisser struct {
	*harnesstest.FakeSession
	dismissCalls int
}

func (a *atomicDismisser) TryDismiss(ctx context.Context, selector string, _ time.Duration) (harness.DismissResult, error) {
	a.dismissCalls++
	return harness.DismissAbsent, nil
}

func TestAtomicDismisserIsPreferred(t *testing.T) {
	fake := newSession("chromium")
	fake.Overlay = false
	s := &atomicDismisser{FakeSession: fake}

	sum := run(t, []harness.Session{s}, matrix.MustNew(desktop, commonPhone), testOptions())

	require.True(t, sum.OK())
	assert.Equal(t, 2, s.dismissCalls)
	for _, call := range fake.Calls() {
		assert.NotEqual(t, "find .closeButton", call)
	}
}

func TestSetupFailureAbortsOnlyThatSession(t *testing.T) {
	broken := newSession("firefox")
	broken.OpenErr = errors.New("net::ERR_CONNECTION_REFUSED")
	healthy := newSession("chromium")
	rec := &harness.Recorder{}
	opts := testOptions()
	opts.Reporter = rec

	sum := run(t, []harness.Session{healthy, broken}, matrix.Reference(), opts)

	require.Len(t, sum.Results, 8)
	assert.Equal(t, 4, sum.Passed)
	assert.Equal(t, 4, sum.Failed)
	for _, r := range sum.Results[4:] {
		assert.Equal(t, "firefox", r.Case.Session)
		assert.Equal(t, harness.StepSetup, r.FailedStep)
		var setup *harness.SetupError
		require.ErrorAs(t, r.Err, &setup)
		assert.Equal(t, harness.DefaultRoute, setup.Route)
	}
	assert.Equal(t, []string{"open /course/1"}, broken.Calls())
	assert.Len(t, rec.Started(), 8)
	assert.Len(t, rec.Results(), 8)
}

func TestCleanupFailureDoesNotMaskCaseError(t *testing.T) {
	s := newSession("chromium")
	s.Layouts["360x740"] = regressedLayout
	s.RefreshErrOnce = errors.New("target closed")

	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone, olderPhone), testOptions())

	first := sum.Results[0]
	var mismatch *harness.MismatchError
	require.ErrorAs(t, first.Err, &mismatch)
	var cleanup *harness.CleanupError
	require.ErrorAs(t, first.CleanupErr, &cleanup)
	assert.Contains(t, first.Message(), "also reset: target closed")

	assert.True(t, sum.Results[1].Passed(), sum.Results[1].Message())
}

func TestCleanupFailureFailsPassingCase(t *testing.T) {
	s := newSession("chromium")
	s.RefreshErr = errors.New("target closed")

	sum := run(t, []harness.Session{s}, matrix.MustNew(desktop), testOptions())

	res := sum.Results[0]
	assert.NoError(t, res.Err)
	assert.Error(t, res.CleanupErr)
	assert.False(t, res.Passed())
	assert.Equal(t, harness.StateReset, res.State())
}

func TestFailureDiagnostics(t *testing.T) {
	s := newSession("chromium")
	s.Layouts["360x740"] = regressedLayout
	s.LogConsoleError("before the case")
	opts := testOptions()
	opts.ArtifactDir = t.TempDir()

	h := harness.New([]harness.Session{s}, matrix.MustNew(commonPhone), opts)
	require.NoError(t, h.Setup(context.Background(), s))

	res := h.RunCase(context.Background(), s, commonPhone)
	require.False(t, res.Passed())
	require.NotEmpty(t, res.Screenshot)
	assert.Contains(t, res.Screenshot, "chromium-360x740.png")
	_, err := os.Stat(res.Screenshot)
	assert.NoError(t, err)
	assert.Empty(t, res.Console, "errors logged before the case started")
}

func TestConsoleErrorsAreScopedToCase(t *testing.T) {
	s := &noisySession{FakeSession: newSession("chromium")}
	s.Layouts["360x740"] = regressedLayout
	s.LogConsoleError("from setup")

	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone), testOptions())

	assert.Equal(t, []string{"TypeError: panel is undefined"}, sum.Results[0].Console)
}

// noisySession logs a console error while the case is running.
type noisySession struct {
	*harnesstest.FakeSession
}

func (n *noisySession) ResizeViewport(ctx context.Context, w, h int) error {
	n.LogConsoleError("TypeError: panel is undefined")
	return n.FakeSession.ResizeViewport(ctx, w, h)
}

func TestSessionsNeverReceiveConcurrentCommands(t *testing.T) {
	sessions := []*harnesstest.FakeSession{newSession("a"), newSession("b"), newSession("c")}
	sessions[1].Layouts["360x640"] = harnesstest.Layout{Hidden: []string{".col-md-9"}}
	list := make([]harness.Session, len(sessions))
	for i, s := range sessions {
		list[i] = s
	}

	run(t, list, matrix.Reference(), testOptions())

	for _, s := range sessions {
		assert.Zero(t, s.Violations(), s.Name())
		assert.Equal(t, 4, s.Refreshes(), s.Name())
	}
}

func TestParallelismLimit(t *testing.T) {
	opts := testOptions()
	opts.Parallelism = 1
	sessions := []harness.Session{newSession("a"), newSession("b")}

	sum := run(t, sessions, matrix.MustNew(desktop), opts)
	assert.Equal(t, 2, sum.Passed)
}

func TestCancelledRunSkipsRemainingCases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &cancellingSession{FakeSession: newSession("a"), cancel: cancel, atResize: 2}
	b := newSession("b")
	rec := &harness.Recorder{}
	opts := testOptions()
	opts.Parallelism = 1
	opts.Reporter = rec

	sum, err := harness.New([]harness.Session{a, b}, matrix.Reference(), opts).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, sum.Results, 8)
	assert.Equal(t, 1, sum.Passed)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 7, sum.Cancelled)
	assert.False(t, sum.OK())
	assert.Len(t, rec.Results(), 8)

	assert.True(t, sum.Results[0].Passed())

	interrupted := sum.Results[1]
	assert.True(t, interrupted.Cancelled())
	assert.Equal(t, harness.StepResize, interrupted.FailedStep)
	assert.Equal(t, harness.StateReset, interrupted.State())
	assert.NoError(t, interrupted.CleanupErr)
	assert.ErrorIs(t, interrupted.Err, context.Canceled)
	assert.Equal(t, 2, a.Refreshes())

	for _, res := range sum.Results[2:] {
		assert.True(t, res.Cancelled(), res.Case.Name())
		assert.Equal(t, harness.Step(""), res.FailedStep)
		var setup *harness.SetupError
		assert.False(t, errors.As(res.Err, &setup), res.Case.Name())
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	for _, res := range sum.Results[4:] {
		assert.Equal(t, "b", res.Case.Session)
		assert.Equal(t, []harness.State{harness.StateIdle}, res.Trace)
	}
	assert.Empty(t, b.Calls())
}

func TestCancelDuringSetupIsNotASetupFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &cancellingSession{FakeSession: newSession("chromium"), cancel: cancel, onOpen: true}

	sum, err := harness.New([]harness.Session{s}, matrix.MustNew(desktop, commonPhone), testOptions()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, sum.Results, 2)
	assert.Equal(t, 2, sum.Cancelled)
	assert.Zero(t, sum.Failed)
	for _, res := range sum.Results {
		var setup *harness.SetupError
		assert.False(t, errors.As(res.Err, &setup))
		assert.Equal(t, harness.Step(""), res.FailedStep)
	}
	assert.Zero(t, s.Refreshes())
}

// cancellingSession cancels the run from inside a session command.
type cancellingSession struct {
	*harnesstest.FakeSession
	cancel   context.CancelFunc
	atResize int
	onOpen   bool
	resizes  int
}

func (c *cancellingSession) Open(ctx context.Context, route string, timeout time.Duration) error {
	if c.onOpen {
		c.cancel()
	}
	return c.FakeSession.Open(ctx, route, timeout)
}

func (c *cancellingSession) ResizeViewport(ctx context.Context, w, h int) error {
	c.resizes++
	if c.resizes == c.atResize {
		c.cancel()
	}
	return c.FakeSession.ResizeViewport(ctx, w, h)
}

func TestCaseTimeoutDuringPanelWait(t *testing.T) {
	s := newSession("chromium")
	s.Default.Hidden = []string{".col-md-9"}
	opts := testOptions()
	opts.Timeouts.Panel = 2 * time.Second
	opts.Timeouts.Case = 40 * time.Millisecond

	sum := run(t, []harness.Session{s}, matrix.MustNew(commonPhone), opts)

	res := sum.Results[0]
	assert.Equal(t, harness.StepContent, res.FailedStep)
	var timeout *harness.ElementTimeoutError
	require.ErrorAs(t, res.Err, &timeout)
	assert.True(t, timeout.CaseBudget)
	assert.Equal(t, 40*time.Millisecond, timeout.Timeout)
	assert.Contains(t, res.Message(), "content: .col-md-9 not visible before the case timeout of 40ms ran out")
	assert.Equal(t, 1, s.Refreshes())
}

func TestDefaultsApplied(t *testing.T) {
	h := harness.New(nil, matrix.Reference(), harness.Options{})
	opts := h.Options()
	assert.Equal(t, harness.DefaultRoute, opts.Route)
	assert.Equal(t, harness.DefaultSelectors(), opts.Selectors)
	assert.Equal(t, harness.DefaultTimeouts(), opts.Timeouts)
	assert.NotEmpty(t, h.RunID())
}

func TestRunTAdapter(t *testing.T) {
	sessions := []harness.Session{newSession("chromium"), newSession("firefox")}
	h := harness.New(sessions, matrix.Reference(), testOptions())
	harnesstest.RunT(t, h)
}
