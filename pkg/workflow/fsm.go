// Package workflow implements the per-project durable design pipeline:
// the phase controller, its action queue, the background analysis
// collector, and the error/retry/termination machinery.
package workflow

import (
	"fmt"

	"designflow/pkg/proto"
)

// MinRoomPhotos is how many room photos must exist before the photos
// phase can confirm and before background analysis launches.
const MinRoomPhotos = 2

// StepTransitions is the canonical transition map for a design project.
// Phases are forward-only; the single backward edge is start_over, which
// loops a design cycle back to INTAKE. Every non-terminal step can exit
// to ABANDONED (inactivity) or CANCELLED (explicit cancel).
var StepTransitions = map[proto.Step][]proto.Step{
	// PHOTOS waits for >=2 room photos plus an explicit confirm.
	proto.StepPhotos: {proto.StepScan, proto.StepAbandoned, proto.StepCancelled},

	// SCAN waits for a scan upload or a skip; both lead to INTAKE.
	proto.StepScan: {proto.StepIntake, proto.StepAbandoned, proto.StepCancelled},

	// INTAKE waits for a brief or a skip.
	proto.StepIntake: {proto.StepGeneration, proto.StepAbandoned, proto.StepCancelled},

	// GENERATION invokes the design activity; start_over loops to INTAKE.
	proto.StepGeneration: {proto.StepSelection, proto.StepIntake, proto.StepAbandoned, proto.StepCancelled},

	// SELECTION waits for a valid option index.
	proto.StepSelection: {proto.StepIteration, proto.StepIntake, proto.StepAbandoned, proto.StepCancelled},

	// ITERATION processes queued edits; approval can come directly from
	// here, or via APPROVAL once the revision cap is hit.
	proto.StepIteration: {proto.StepApproval, proto.StepShopping, proto.StepIntake, proto.StepAbandoned, proto.StepCancelled},

	// APPROVAL is entered only through the revision cap.
	proto.StepApproval: {proto.StepShopping, proto.StepIntake, proto.StepAbandoned, proto.StepCancelled},

	// SHOPPING invokes the shopping-list activity. The design is
	// committed here, so start_over is no longer a valid exit.
	proto.StepShopping: {proto.StepCompleted, proto.StepAbandoned, proto.StepCancelled},

	// Terminal steps have no outgoing edges.
	proto.StepCompleted: {},
	proto.StepAbandoned: {},
	proto.StepCancelled: {},
}

// IsValidTransition checks if a transition between two steps is allowed.
func IsValidTransition(from, to proto.Step) bool {
	allowed, exists := StepTransitions[from]
	if !exists {
		return false
	}
	for _, step := range allowed {
		if step == to {
			return true
		}
	}
	return false
}

// ValidateStep checks if a step is part of the pipeline.
func ValidateStep(step proto.Step) error {
	if _, exists := StepTransitions[step]; !exists {
		return fmt.Errorf("invalid workflow step: %s", step)
	}
	return nil
}

// GetValidSteps returns all pipeline steps in a deterministic order.
func GetValidSteps() []proto.Step {
	return []proto.Step{
		proto.StepPhotos,
		proto.StepScan,
		proto.StepIntake,
		proto.StepGeneration,
		proto.StepSelection,
		proto.StepIteration,
		proto.StepApproval,
		proto.StepShopping,
		proto.StepCompleted,
		proto.StepAbandoned,
		proto.StepCancelled,
	}
}
