package harness

import "sync"

// Reporter receives case events. Sessions run concurrently, so
// implementations must be safe for concurrent use.
type Reporter interface {
	CaseStarted(c Case)
	CaseFinished(r CaseResult)
}

type NopReporter struct{}

func (NopReporter) CaseStarted(Case)        {}
func (NopReporter) CaseFinished(CaseResult) {}

// Recorder keeps every finished result in arrival order.
type Recorder struct {
	mu      sync.Mutex
	started []Case
	results []CaseResult
}

func (r *Recorder) CaseStarted(c Case) {
	r.mu.Lock()
	r.started = append(r.started, c)
	r.mu.Unlock()
}

func (r *Recorder) CaseFinished(res CaseResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

func (r *Recorder) Started() []Case {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Case(nil), r.started...)
}

func (r *Recorder) Results() []CaseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CaseResult(nil), r.results...)
}
