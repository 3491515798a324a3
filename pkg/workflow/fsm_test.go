package workflow

import (
	"testing"

	"designflow/pkg/proto"
)

func TestValidateStep_ValidSteps(t *testing.T) {
	for _, step := range GetValidSteps() {
		if err := ValidateStep(step); err != nil {
			t.Errorf("ValidateStep(%s) returned error: %v", step, err)
		}
	}
}

func TestValidateStep_InvalidStep(t *testing.T) {
	if err := ValidateStep(proto.Step("NOT_A_STEP")); err == nil {
		t.Error("Expected error for invalid step")
	}
}

func TestIsValidTransition_AllowedTransitions(t *testing.T) {
	testCases := []struct {
		from proto.Step
		to   proto.Step
	}{
		{proto.StepPhotos, proto.StepScan},
		{proto.StepScan, proto.StepIntake},
		{proto.StepIntake, proto.StepGeneration},
		{proto.StepGeneration, proto.StepSelection},
		{proto.StepSelection, proto.StepIteration},
		{proto.StepIteration, proto.StepApproval},
		{proto.StepIteration, proto.StepShopping},
		{proto.StepApproval, proto.StepShopping},
		{proto.StepShopping, proto.StepCompleted},

		// start_over loops back to intake from the design cycle.
		{proto.StepGeneration, proto.StepIntake},
		{proto.StepSelection, proto.StepIntake},
		{proto.StepIteration, proto.StepIntake},
		{proto.StepApproval, proto.StepIntake},

		// Every non-terminal step can abandon or cancel.
		{proto.StepPhotos, proto.StepAbandoned},
		{proto.StepPhotos, proto.StepCancelled},
		{proto.StepShopping, proto.StepAbandoned},
		{proto.StepShopping, proto.StepCancelled},
	}

	for _, tc := range testCases {
		if !IsValidTransition(tc.from, tc.to) {
			t.Errorf("Expected transition %s -> %s to be valid", tc.from, tc.to)
		}
	}
}

func TestIsValidTransition_ForbiddenTransitions(t *testing.T) {
	testCases := []struct {
		from proto.Step
		to   proto.Step
	}{
		// No skipping forward.
		{proto.StepPhotos, proto.StepIntake},
		{proto.StepPhotos, proto.StepGeneration},
		{proto.StepScan, proto.StepGeneration},
		{proto.StepIntake, proto.StepSelection},

		// No backwards movement except the start_over edge.
		{proto.StepScan, proto.StepPhotos},
		{proto.StepIntake, proto.StepScan},
		{proto.StepSelection, proto.StepGeneration},

		// start_over is not honored once the design is committed.
		{proto.StepShopping, proto.StepIntake},

		// Terminal steps never leave.
		{proto.StepCompleted, proto.StepPhotos},
		{proto.StepAbandoned, proto.StepPhotos},
		{proto.StepCancelled, proto.StepIntake},
		{proto.StepCompleted, proto.StepAbandoned},
	}

	for _, tc := range testCases {
		if IsValidTransition(tc.from, tc.to) {
			t.Errorf("Expected transition %s -> %s to be invalid", tc.from, tc.to)
		}
	}
}

func TestTerminalStepsHaveNoExits(t *testing.T) {
	for _, step := range []proto.Step{proto.StepCompleted, proto.StepAbandoned, proto.StepCancelled} {
		if exits := StepTransitions[step]; len(exits) != 0 {
			t.Errorf("Terminal step %s has exits: %v", step, exits)
		}
		if !step.IsTerminal() {
			t.Errorf("Expected %s to be terminal", step)
		}
	}
}
