// Package report renders a run summary for the terminal, as JSON, or as a
// JSON artifact file.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joshp123/overlap-go/internal/geometry"
	"github.com/joshp123/overlap-go/internal/harness"
)

const (
	ModeSummary = "summary"
	ModeJSON    = "json"
	ModePath    = "path"
)

func ValidMode(mode string) bool {
	return mode == ModeSummary || mode == ModeJSON || mode == ModePath
}

type Case struct {
	Session      string        `json:"session"`
	Viewport     string        `json:"viewport"`
	Label        string        `json:"label,omitempty"`
	Want         bool          `json:"want"`
	Overlap      bool          `json:"overlap"`
	Passed       bool          `json:"passed"`
	Cancelled    bool          `json:"cancelled,omitempty"`
	State        string        `json:"state"`
	FailedStep   string        `json:"failed_step,omitempty"`
	Dismiss      string        `json:"dismiss"`
	Content      geometry.Rect `json:"content"`
	Utility      geometry.Rect `json:"utility"`
	Error        string        `json:"error,omitempty"`
	CleanupError string        `json:"cleanup_error,omitempty"`
	DurationMS   int64         `json:"duration_ms"`
	Screenshot   string        `json:"screenshot,omitempty"`
	Console      []string      `json:"console,omitempty"`
}

type Run struct {
	RunID      string `json:"run_id"`
	Route      string `json:"route"`
	OK         bool   `json:"ok"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Cancelled  int    `json:"cancelled"`
	DurationMS int64  `json:"duration_ms"`
	Cases      []Case `json:"cases"`
}

// Build flattens a summary into its serializable form.
func Build(sum harness.Summary) Run {
	run := Run{
		RunID:      sum.RunID,
		Route:      sum.Route,
		OK:         sum.OK(),
		Passed:     sum.Passed,
		Failed:     sum.Failed,
		Cancelled:  sum.Cancelled,
		DurationMS: sum.Duration.Milliseconds(),
		Cases:      make([]Case, 0, len(sum.Results)),
	}
	for _, r := range sum.Results {
		c := Case{
			Session:    r.Case.Session,
			Viewport:   r.Case.Config.Size(),
			Label:      r.Case.Config.Label,
			Want:       r.Case.Config.Want,
			Overlap:    r.Overlap,
			Passed:     r.Passed(),
			Cancelled:  r.Cancelled(),
			State:      string(lastState(r)),
			FailedStep: string(r.FailedStep),
			Dismiss:    r.Dismiss.String(),
			Content:    r.Content,
			Utility:    r.Utility,
			DurationMS: r.Duration.Milliseconds(),
			Screenshot: r.Screenshot,
			Console:    r.Console,
		}
		if r.Err != nil {
			c.Error = r.Err.Error()
		}
		if r.CleanupErr != nil {
			c.CleanupError = r.CleanupErr.Error()
		}
		run.Cases = append(run.Cases, c)
	}
	return run
}

// lastState skips the trailing reset so the report shows where the case
// stopped.
func lastState(r harness.CaseResult) harness.State {
	for i := len(r.Trace) - 1; i >= 0; i-- {
		if r.Trace[i] != harness.StateReset {
			return r.Trace[i]
		}
	}
	return harness.StateIdle
}

// Write renders sum in the given mode. In path mode the JSON is written under
// artifactDir and the file path is returned.
func Write(mode string, sum harness.Summary, outPath, artifactDir string) (string, error) {
	switch mode {
	case ModeJSON:
		enc, err := json.MarshalIndent(Build(sum), "", "  ")
		if err != nil {
			return "", err
		}
		return string(enc), nil
	case ModeSummary:
		return Summary(sum), nil
	case ModePath:
		name := "overlap-run.json"
		if len(sum.RunID) >= 8 {
			name = fmt.Sprintf("overlap-%s.json", sum.RunID[:8])
		}
		path, err := SafeArtifactPath(artifactDir, outPath, name)
		if err != nil {
			return "", err
		}
		enc, err := json.MarshalIndent(Build(sum), "", "  ")
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, enc, 0o644); err != nil {
			return "", err
		}
		return path, nil
	default:
		return "", fmt.Errorf("unknown output mode: %s", mode)
	}
}

// Summary is one line per case followed by a totals line.
func Summary(sum harness.Summary) string {
	var b strings.Builder
	for _, r := range sum.Results {
		if r.Passed() {
			fmt.Fprintf(&b, "PASS %s overlap=%t\n", r.Case.Name(), r.Overlap)
			continue
		}
		if r.Cancelled() {
			fmt.Fprintf(&b, "SKIP %s: %s\n", r.Case.Name(), r.Message())
			continue
		}
		fmt.Fprintf(&b, "FAIL %s step=%s: %s\n", r.Case.Name(), r.FailedStep, r.Message())
		if r.Screenshot != "" {
			fmt.Fprintf(&b, "     screenshot: %s\n", r.Screenshot)
		}
		for _, line := range r.Console {
			fmt.Fprintf(&b, "     console: %s\n", line)
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", sum.Passed, sum.Failed)
	if sum.Cancelled > 0 {
		fmt.Fprintf(&b, ", %d cancelled", sum.Cancelled)
	}
	fmt.Fprintf(&b, " in %s (run %s)", sum.Duration.Round(time.Millisecond), sum.RunID)
	return b.String()
}

// SafeArtifactPath resolves name (or fallback) inside dir. Relative names
// may not escape dir; absolute names are used as given.
func SafeArtifactPath(dir, name, fallback string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	if dir == "" {
		dir = "."
	}
	base, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(base, name)
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("output path escapes artifact directory")
	}
	return path, nil
}
