package harness

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultRoute = "/course/1"

// Selectors identify the elements a case interacts with.
type Selectors struct {
	Dismiss string // transient overlay close control
	Switch  string // alternate-view control
	Content string // primary content panel
	Utility string // floating utility panel
}

func DefaultSelectors() Selectors {
	return Selectors{
		Dismiss: ".closeButton",
		Switch:  ".clickable",
		Content: ".col-md-9",
		Utility: ".list-group.width-resize",
	}
}

// Timeouts bound each wait. Control is short since the switch control is
// rendered with the page; Panel covers layout passes after a resize; Case
// caps a whole case so a stalled session cannot hang the run.
type Timeouts struct {
	Control    time.Duration
	Panel      time.Duration
	Case       time.Duration
	Navigation time.Duration
	Reset      time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Control:    100 * time.Millisecond,
		Panel:      5 * time.Second,
		Case:       50 * time.Second,
		Navigation: 45 * time.Second,
		Reset:      45 * time.Second,
	}
}

type Options struct {
	Route     string
	Selectors Selectors
	Timeouts  Timeouts
	Reporter  Reporter
	Logger    *slog.Logger
	Clock     clockwork.Clock
	// ArtifactDir receives a screenshot of every failed case when set and the
	// session supports it.
	ArtifactDir string
	// Parallelism caps how many sessions run at once. Zero means all.
	Parallelism int
}

func (o Options) withDefaults() Options {
	if o.Route == "" {
		o.Route = DefaultRoute
	}
	sel := DefaultSelectors()
	if o.Selectors.Dismiss == "" {
		o.Selectors.Dismiss = sel.Dismiss
	}
	if o.Selectors.Switch == "" {
		o.Selectors.Switch = sel.Switch
	}
	if o.Selectors.Content == "" {
		o.Selectors.Content = sel.Content
	}
	if o.Selectors.Utility == "" {
		o.Selectors.Utility = sel.Utility
	}
	def := DefaultTimeouts()
	if o.Timeouts.Control <= 0 {
		o.Timeouts.Control = def.Control
	}
	if o.Timeouts.Panel <= 0 {
		o.Timeouts.Panel = def.Panel
	}
	if o.Timeouts.Case <= 0 {
		o.Timeouts.Case = def.Case
	}
	if o.Timeouts.Navigation <= 0 {
		o.Timeouts.Navigation = def.Navigation
	}
	if o.Timeouts.Reset <= 0 {
		o.Timeouts.Reset = def.Reset
	}
	if o.Reporter == nil {
		o.Reporter = NopReporter{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}
