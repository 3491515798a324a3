// Package proto defines the shared vocabulary of the design pipeline:
// workflow steps, signals, and the domain data types that flow between
// the workflow engine and its activity gateway.
package proto

// Step identifies one stage of a design project's lifecycle.
type Step string

const (
	StepPhotos     Step = "PHOTOS"
	StepScan       Step = "SCAN"
	StepIntake     Step = "INTAKE"
	StepGeneration Step = "GENERATION"
	StepSelection  Step = "SELECTION"
	StepIteration  Step = "ITERATION"
	StepApproval   Step = "APPROVAL"
	StepShopping   Step = "SHOPPING"
	StepCompleted  Step = "COMPLETED"
	StepAbandoned  Step = "ABANDONED"
	StepCancelled  Step = "CANCELLED"
)

// String returns the step name.
func (s Step) String() string {
	return string(s)
}

// IsTerminal reports whether the step is a final value the workflow
// converges to. A project in a terminal step has no running driver.
func (s Step) IsTerminal() bool {
	switch s {
	case StepCompleted, StepAbandoned, StepCancelled:
		return true
	default:
		return false
	}
}
