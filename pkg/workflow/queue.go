package workflow

import (
	"time"

	"github.com/google/uuid"

	"designflow/pkg/proto"
)

// The action queue serializes edit requests. Users can submit
// annotations and feedback faster than the image model applies them;
// everything past the one in-flight action waits here in arrival order.

// NewAnnotationAction builds a queued annotation edit.
func NewAnnotationAction(regions []proto.RegionEdit) Action {
	return Action{
		ID:          uuid.New().String(),
		Type:        proto.RevisionAnnotation,
		Regions:     regions,
		SubmittedAt: time.Now().UTC(),
	}
}

// NewFeedbackAction builds a queued free-text feedback edit.
func NewFeedbackAction(text string) Action {
	return Action{
		ID:          uuid.New().String(),
		Type:        proto.RevisionFeedback,
		Feedback:    text,
		SubmittedAt: time.Now().UTC(),
	}
}

// Enqueue appends an action at the back of the queue.
func (s *State) Enqueue(a Action) {
	s.Queue = append(s.Queue, a)
}

// Dequeue pops the front action. ok is false when the queue is empty.
func (s *State) Dequeue() (Action, bool) {
	if len(s.Queue) == 0 {
		return Action{}, false
	}
	a := s.Queue[0]
	s.Queue = append([]Action{}, s.Queue[1:]...)
	return a, true
}

// RequeueFront puts a failed action back at the head of the queue so a
// retry processes it before anything submitted afterward.
func (s *State) RequeueFront(a Action) {
	s.Queue = append([]Action{a}, s.Queue...)
}
