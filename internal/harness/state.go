package harness

// State is a point in a case's lifecycle:
//
//	Idle → Resized → OverlayChecked → ViewSwitched → PanelsLocated → Evaluated → Reset
//
// Any step may move the case to Failed instead; Reset follows either way.
type State string

const (
	StateIdle           State = "idle"
	StateResized        State = "resized"
	StateOverlayChecked State = "overlay_checked"
	StateViewSwitched   State = "view_switched"
	StatePanelsLocated  State = "panels_located"
	StateEvaluated      State = "evaluated"
	StateFailed         State = "failed"
	StateReset          State = "reset"
)

// Step names the part of the protocol an error came from.
type Step string

const (
	StepSetup    Step = "setup"
	StepResize   Step = "resize"
	StepDismiss  Step = "dismiss"
	StepSwitch   Step = "switch"
	StepContent  Step = "content"
	StepUtility  Step = "utility"
	StepEvaluate Step = "evaluate"
	StepReset    Step = "reset"
)
