package workflow

import (
	"reflect"
	"testing"

	"designflow/pkg/proto"
)

func fixtureState() *State {
	st := NewState("proj-1")
	st.Photos = []proto.PhotoData{
		{PhotoID: "p1", StorageKey: "k1", Type: proto.PhotoTypeRoom},
		{PhotoID: "p2", StorageKey: "k2", Type: proto.PhotoTypeRoom},
		{PhotoID: "p3", StorageKey: "k3", Type: proto.PhotoTypeInspiration, Note: "love the brass accents"},
	}
	st.PhotosConfirmed = true
	st.ScanResolved = true
	st.Scan = &proto.ScanData{
		StorageKey: "scan-1",
		Dimensions: &proto.RoomDimensions{WidthM: 3.2, LengthM: 4.1, HeightM: 2.6},
	}
	st.Step = proto.StepIteration
	st.RoomAnalysis = &proto.RoomAnalysis{Summary: "bright bedroom"}
	st.FuseRoomContext()
	st.Brief = &proto.DesignBrief{RoomType: "bedroom", StyleProfile: "japandi"}
	st.IntakeResolved = true
	st.Options = []proto.DesignOption{{OptionID: "a", ImageURL: "https://img/a"}, {OptionID: "b", ImageURL: "https://img/b"}}
	idx := 1
	st.SelectedOption = &idx
	st.CurrentImage = "https://img/rev2"
	st.ChatKey = "chat-9"
	st.Revisions = []proto.RevisionRecord{{Number: 1, Type: proto.RevisionFeedback, RevisedImageURL: "https://img/rev1"}}
	st.Enqueue(NewFeedbackAction("warmer lighting"))
	st.SetActivityError("edit blew up", true)
	return st
}

func TestResetCycle_ClearsDesignKeepsInputs(t *testing.T) {
	st := fixtureState()
	st.ResetCycle()

	if st.Cycle != 1 {
		t.Errorf("Expected cycle 1 after reset, got %d", st.Cycle)
	}

	// Inputs survive.
	if len(st.Photos) != 3 {
		t.Errorf("Expected photos to survive reset, got %d", len(st.Photos))
	}
	if !st.PhotosConfirmed {
		t.Error("Expected photo confirmation to survive reset")
	}
	if st.Scan == nil || !st.ScanResolved {
		t.Error("Expected scan results to survive reset")
	}

	// Design-cycle outputs are gone.
	if st.Brief != nil || st.IntakeResolved || st.IntakeSkipped {
		t.Error("Expected intake to be cleared")
	}
	if st.Options != nil || st.SelectedOption != nil {
		t.Error("Expected generated options and selection to be cleared")
	}
	if st.CurrentImage != "" || st.ChatKey != "" {
		t.Error("Expected current image and chat key to be cleared")
	}
	if len(st.Revisions) != 0 || len(st.Queue) != 0 {
		t.Error("Expected revisions and action queue to be cleared")
	}
	if st.RoomAnalysis != nil || st.RoomContext != nil {
		t.Error("Expected analysis results to be cleared")
	}
	if st.Err != nil {
		t.Error("Expected error to be cleared")
	}
	if st.ApprovalRequested {
		t.Error("Expected approval request to be cleared")
	}
}

func TestFuseRoomContext_Idempotent(t *testing.T) {
	st := fixtureState()
	st.FuseRoomContext()
	first := st.RoomContext
	st.FuseRoomContext()
	second := st.RoomContext

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected fusion to be idempotent: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(first.Sources, []string{"photo_analysis", "scan_dimensions"}) {
		t.Errorf("Unexpected sources: %v", first.Sources)
	}
}

func TestFuseRoomContext_PartialInputs(t *testing.T) {
	st := NewState("proj-2")
	st.FuseRoomContext()
	if st.RoomContext != nil {
		t.Error("Expected nil context with no inputs")
	}

	st.RoomAnalysis = &proto.RoomAnalysis{Summary: "dim office"}
	st.FuseRoomContext()
	if st.RoomContext == nil || !reflect.DeepEqual(st.RoomContext.Sources, []string{"photo_analysis"}) {
		t.Errorf("Expected analysis-only context, got %+v", st.RoomContext)
	}

	st.Scan = &proto.ScanData{StorageKey: "s", Dimensions: &proto.RoomDimensions{WidthM: 2}}
	st.FuseRoomContext()
	if !reflect.DeepEqual(st.RoomContext.Sources, []string{"photo_analysis", "scan_dimensions"}) {
		t.Errorf("Expected both sources, got %v", st.RoomContext.Sources)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st := fixtureState()
	data, err := st.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	restored, err := UnmarshalState(data)
	if err != nil {
		t.Fatalf("UnmarshalState failed: %v", err)
	}
	if !reflect.DeepEqual(st, restored) {
		t.Errorf("Round trip changed state:\n  before %+v\n  after  %+v", st, restored)
	}
}

func TestUnmarshalState_Invalid(t *testing.T) {
	if _, err := UnmarshalState([]byte(`{"step":"PHOTOS"}`)); err == nil {
		t.Error("Expected error for snapshot without project id")
	}
	if _, err := UnmarshalState([]byte(`{"project_id":"x","step":"BOGUS"}`)); err == nil {
		t.Error("Expected error for snapshot with unknown step")
	}
	if _, err := UnmarshalState([]byte(`not json`)); err == nil {
		t.Error("Expected error for malformed snapshot")
	}
}

func TestClone_Isolated(t *testing.T) {
	st := fixtureState()
	clone, err := st.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	clone.Photos[0].Note = "changed"
	clone.Queue = append(clone.Queue, NewFeedbackAction("more plants"))

	if st.Photos[0].Note == "changed" {
		t.Error("Clone shares photo backing array with original")
	}
	if len(st.Queue) != 1 {
		t.Errorf("Clone mutation leaked into original queue: %d", len(st.Queue))
	}
}

func TestValidationErrorClearing(t *testing.T) {
	st := NewState("proj-3")
	st.SetValidationError("bad index")
	st.ClearValidationError()
	if st.Err != nil {
		t.Error("Expected validation error to clear")
	}

	st.SetActivityError("model exploded", false)
	st.ClearValidationError()
	if st.Err == nil {
		t.Error("Expected activity error to survive validation clearing")
	}
}
