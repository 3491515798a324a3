package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"designflow/pkg/proto"
)

// Action is one queued edit request. Actions are processed strictly in
// arrival order, one at a time.
type Action struct {
	ID          string             `json:"id"`
	Type        proto.RevisionType `json:"type"`
	Regions     []proto.RegionEdit `json:"regions,omitempty"`
	Feedback    string             `json:"feedback,omitempty"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

// State is the complete durable record of one design project. Everything
// a restarted engine needs to resume lives here; nothing is held on a
// call stack. The driver mutates it under its own lock and persists a
// JSON snapshot after every change.
type State struct {
	ProjectID string     `json:"project_id"`
	Step      proto.Step `json:"step"`

	// Cycle increments on every start_over and cancel so results from
	// superseded activity calls can be recognized and discarded.
	Cycle int `json:"cycle"`

	Photos          []proto.PhotoData `json:"photos"`
	PhotosConfirmed bool              `json:"photos_confirmed"`

	ScanResolved bool                `json:"scan_resolved"`
	Scan         *proto.ScanData     `json:"scan_data"`
	RoomAnalysis *proto.RoomAnalysis `json:"room_analysis"`
	RoomContext  *proto.RoomContext  `json:"room_context"`

	IntakeResolved bool               `json:"intake_resolved"`
	IntakeSkipped  bool               `json:"intake_skipped"`
	Brief          *proto.DesignBrief `json:"design_brief"`

	Options        []proto.DesignOption   `json:"design_options"`
	SelectedOption *int                   `json:"selected_option"`
	CurrentImage   string                 `json:"current_image"`
	ChatKey        string                 `json:"chat_key"`
	Revisions      []proto.RevisionRecord `json:"revisions"`
	Queue          []Action               `json:"action_queue"`

	ApprovalRequested bool                `json:"approval_requested"`
	Approved          bool                `json:"approved"`
	ShoppingList      *proto.ShoppingList `json:"shopping_list"`

	Err *proto.WorkflowError `json:"error"`

	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// NewState creates a fresh project in the photos phase.
func NewState(projectID string) *State {
	now := time.Now().UTC()
	return &State{
		ProjectID:      projectID,
		Step:           proto.StepPhotos,
		Photos:         []proto.PhotoData{},
		Revisions:      []proto.RevisionRecord{},
		Queue:          []Action{},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// RoomPhotos returns the photos of the user's actual room.
func (s *State) RoomPhotos() []proto.PhotoData {
	var out []proto.PhotoData
	for _, p := range s.Photos {
		if p.Type == proto.PhotoTypeRoom {
			out = append(out, p)
		}
	}
	return out
}

// InspirationPhotos returns the inspiration imagery.
func (s *State) InspirationPhotos() []proto.PhotoData {
	var out []proto.PhotoData
	for _, p := range s.Photos {
		if p.Type == proto.PhotoTypeInspiration {
			out = append(out, p)
		}
	}
	return out
}

// Dimensions returns the parsed scan measurements, or nil when the scan
// was skipped or parsing failed.
func (s *State) Dimensions() *proto.RoomDimensions {
	if s.Scan == nil {
		return nil
	}
	return s.Scan.Dimensions
}

// ResetCycle implements start_over: the design portion of the state is
// cleared while photos and scan results survive. The cycle counter
// advances so any in-flight activity result becomes stale.
func (s *State) ResetCycle() {
	s.Cycle++
	s.RoomAnalysis = nil
	s.RoomContext = nil
	s.IntakeResolved = false
	s.IntakeSkipped = false
	s.Brief = nil
	s.Options = nil
	s.SelectedOption = nil
	s.CurrentImage = ""
	s.ChatKey = ""
	s.Revisions = []proto.RevisionRecord{}
	s.Queue = []Action{}
	s.ApprovalRequested = false
	s.Err = nil
}

// FuseRoomContext rebuilds the fused room context from whatever inputs
// exist. Idempotent: fusing the same inputs twice yields an identical
// context, including the source list order.
func (s *State) FuseRoomContext() {
	ctx := &proto.RoomContext{Sources: []string{}}
	if s.RoomAnalysis != nil {
		ctx.Analysis = s.RoomAnalysis
		ctx.Sources = append(ctx.Sources, "photo_analysis")
	}
	if dims := s.Dimensions(); dims != nil {
		ctx.Dimensions = dims
		ctx.Sources = append(ctx.Sources, "scan_dimensions")
	}
	if len(ctx.Sources) == 0 {
		s.RoomContext = nil
		return
	}
	s.RoomContext = ctx
}

// SetActivityError records an activity failure. Forward progress stops
// until the error is cleared by retry, start_over, or cancel.
func (s *State) SetActivityError(message string, retryable bool) {
	s.Err = &proto.WorkflowError{
		Message:   message,
		Step:      s.Step,
		Source:    proto.ErrorSourceActivity,
		Retryable: retryable,
	}
}

// SetValidationError records a rejected input. Validation errors never
// consume an iteration slot and are never retryable; a corrected signal
// of the same kind clears them.
func (s *State) SetValidationError(message string) {
	s.Err = &proto.WorkflowError{
		Message: message,
		Step:    s.Step,
		Source:  proto.ErrorSourceValidation,
	}
}

// ClearValidationError drops the current error if it came from
// validation. Activity errors stay put.
func (s *State) ClearValidationError() {
	if s.Err != nil && s.Err.Source == proto.ErrorSourceValidation {
		s.Err = nil
	}
}

// ClearError removes the recorded failure.
func (s *State) ClearError() {
	s.Err = nil
}

// Clone returns a deep copy via JSON round-trip, safe to hand to
// callers outside the driver's lock.
func (s *State) Clone() (*State, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to clone state for %s: %w", s.ProjectID, err)
	}
	clone := &State{}
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, fmt.Errorf("failed to clone state for %s: %w", s.ProjectID, err)
	}
	if clone.Photos == nil {
		clone.Photos = []proto.PhotoData{}
	}
	if clone.Revisions == nil {
		clone.Revisions = []proto.RevisionRecord{}
	}
	if clone.Queue == nil {
		clone.Queue = []Action{}
	}
	return clone, nil
}

// Marshal serializes the state for persistence.
func (s *State) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state for %s: %w", s.ProjectID, err)
	}
	return data, nil
}

// UnmarshalState restores a state from a persisted snapshot.
func UnmarshalState(data []byte) (*State, error) {
	s := &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state snapshot: %w", err)
	}
	if s.ProjectID == "" {
		return nil, fmt.Errorf("state snapshot missing project id")
	}
	if err := ValidateStep(s.Step); err != nil {
		return nil, err
	}
	if s.Photos == nil {
		s.Photos = []proto.PhotoData{}
	}
	if s.Revisions == nil {
		s.Revisions = []proto.RevisionRecord{}
	}
	if s.Queue == nil {
		s.Queue = []Action{}
	}
	return s, nil
}
