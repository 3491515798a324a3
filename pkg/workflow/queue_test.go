package workflow

import (
	"testing"

	"designflow/pkg/proto"
)

func TestQueue_FIFO(t *testing.T) {
	st := NewState("proj-q")
	first := NewFeedbackAction("brighter")
	second := NewAnnotationAction([]proto.RegionEdit{{Region: "left wall", Instruction: "add shelving"}})
	third := NewFeedbackAction("less clutter")

	st.Enqueue(first)
	st.Enqueue(second)
	st.Enqueue(third)

	for i, want := range []Action{first, second, third} {
		got, ok := st.Dequeue()
		if !ok {
			t.Fatalf("Dequeue %d returned empty", i)
		}
		if got.ID != want.ID {
			t.Errorf("Dequeue %d: expected %s, got %s", i, want.ID, got.ID)
		}
	}

	if _, ok := st.Dequeue(); ok {
		t.Error("Expected empty queue after draining")
	}
}

func TestQueue_RequeueFrontPreservesOrder(t *testing.T) {
	st := NewState("proj-q")
	failed := NewFeedbackAction("failed edit")
	waiting := NewFeedbackAction("waiting edit")

	st.Enqueue(failed)
	st.Enqueue(waiting)

	got, _ := st.Dequeue()
	if got.ID != failed.ID {
		t.Fatalf("Expected failed action first")
	}

	// A failed action goes back to the head so a retry reprocesses it
	// before anything submitted later.
	st.RequeueFront(got)
	st.Enqueue(NewFeedbackAction("submitted during error"))

	order := []string{}
	for {
		a, ok := st.Dequeue()
		if !ok {
			break
		}
		order = append(order, a.ID)
	}

	if len(order) != 3 || order[0] != failed.ID || order[1] != waiting.ID {
		t.Errorf("Unexpected processing order: %v", order)
	}
}

func TestActionInstructions(t *testing.T) {
	fb := NewFeedbackAction("warmer palette")
	if got := fb.instructions(); len(got) != 1 || got[0] != "warmer palette" {
		t.Errorf("Unexpected feedback instructions: %v", got)
	}

	ann := NewAnnotationAction([]proto.RegionEdit{
		{Region: "window", Instruction: "linen curtains"},
		{Region: "floor", Instruction: "jute rug"},
	})
	got := ann.instructions()
	if len(got) != 2 || got[0] != "window: linen curtains" || got[1] != "floor: jute rug" {
		t.Errorf("Unexpected annotation instructions: %v", got)
	}
}
