package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designflow/pkg/proto"
)

func TestRegistry_SendCreatesProject(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.reg.Send(proto.NewSignal(proto.SignalAddPhoto, "new-1", roomPhoto("p1"))))
	assert.Equal(t, 1, h.reg.ActiveCount())

	st := h.waitCond("new-1", func(st *State) bool { return len(st.Photos) == 1 }, "photo applied")
	assert.Equal(t, proto.StepPhotos, st.Step)
}

func TestRegistry_RejectsSignalWithoutProjectID(t *testing.T) {
	h := newHarness(t, nil)
	err := h.reg.Send(proto.NewSignal(proto.SignalConfirmPhotos, "", nil))
	assert.Error(t, err)
}

func TestRegistry_GetStateUnknownProject(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.reg.GetState("nobody")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestRegistry_ResumeIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.send("idem-1", proto.SignalAddPhoto, roomPhoto("p1"))
	h.waitCond("idem-1", func(st *State) bool { return len(st.Photos) == 1 }, "photo applied")

	require.NoError(t, h.reg.Resume())
	require.NoError(t, h.reg.Resume())
	assert.Equal(t, 1, h.reg.ActiveCount())
}

func TestRegistry_ResumeAbandonsExpiredProject(t *testing.T) {
	h := newHarness(t, nil)
	const id = "expired-1"

	// Snapshot whose abandonment deadline passed while the engine was
	// down: the rearmed timer fires right after boot.
	st := NewState(id)
	st.Photos = []proto.PhotoData{roomPhoto("room-1")}
	st.LastActivityAt = time.Now().UTC().Add(-h.cfg.Timeouts.AbandonAfter - time.Minute)
	require.NoError(t, h.store.Save(st))

	require.NoError(t, h.reg.Resume())
	final := h.waitStep(id, proto.StepAbandoned)
	assert.Len(t, final.Photos, 1)
	assert.Contains(t, h.mock.Purged(), id)
}

func TestRegistry_ShutdownStopsDrivers(t *testing.T) {
	h := newHarness(t, nil)
	h.send("stop-1", proto.SignalAddPhoto, roomPhoto("p1"))
	h.send("stop-2", proto.SignalAddPhoto, roomPhoto("p1"))
	h.waitCond("stop-1", func(st *State) bool { return len(st.Photos) == 1 }, "photo applied")
	h.waitCond("stop-2", func(st *State) bool { return len(st.Photos) == 1 }, "photo applied")

	require.NoError(t, h.reg.Shutdown(2*time.Second))

	// Snapshots survive shutdown for the next boot.
	st, err := h.store.Load("stop-1")
	require.NoError(t, err)
	assert.Equal(t, proto.StepPhotos, st.Step)
}
