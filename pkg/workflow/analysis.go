package workflow

import (
	"context"
	"time"

	"designflow/pkg/activity"
	"designflow/pkg/proto"
)

// analysisResult is what the background analysis goroutine delivers.
type analysisResult struct {
	analysis *proto.RoomAnalysis
	err      error
}

// analysisHandle tracks one in-flight background room analysis. The
// analysis runs concurrently with the scan and intake phases; its result
// is collected at a bounded wait point before generation. The handle is
// tagged with the design cycle it was launched in so results from a
// superseded cycle are discarded instead of merged.
type analysisHandle struct {
	cycle    int
	photoKey string
	result   chan analysisResult
	cancel   context.CancelFunc
}

// photoFingerprint identifies the room-photo set an analysis covers, so
// a changed set after start_over launches a fresh analysis.
func photoFingerprint(photos []proto.PhotoData) string {
	key := ""
	for _, p := range photos {
		key += p.PhotoID + ";"
	}
	return key
}

// maybeLaunchAnalysis starts the background analysis once enough room
// photos exist. Safe to call repeatedly; only one analysis runs per
// cycle and photo set.
func (d *Driver) maybeLaunchAnalysis(ctx context.Context) {
	room := d.state.RoomPhotos()
	if len(room) < MinRoomPhotos {
		return
	}
	key := photoFingerprint(room)
	if d.analysis != nil && d.analysis.cycle == d.state.Cycle && d.analysis.photoKey == key {
		return
	}
	if d.state.RoomAnalysis != nil {
		return
	}
	if d.analysis != nil {
		d.analysis.cancel()
	}

	actx, cancel := context.WithCancel(ctx)
	handle := &analysisHandle{
		cycle:    d.state.Cycle,
		photoKey: key,
		result:   make(chan analysisResult, 1),
		cancel:   cancel,
	}
	d.analysis = handle

	req := activity.AnalyzeRequest{
		ProjectID:  d.state.ProjectID,
		RoomPhotos: room,
	}
	d.logger.Debug("launching background room analysis over %d photos", len(room))
	go func() {
		analysis, err := d.gateway.AnalyzeRoomPhotos(actx, req)
		handle.result <- analysisResult{analysis: analysis, err: err}
	}()
}

// collectAnalysis waits up to the configured bound for the background
// analysis, then moves on. The design pipeline degrades rather than
// blocks: a slow or failed analysis just means generation runs without
// fused photo context. Stale results from an earlier cycle are dropped.
func (d *Driver) collectAnalysis(ctx context.Context) {
	if d.analysis == nil {
		d.mutate(func() { d.state.FuseRoomContext() })
		return
	}

	timer := time.NewTimer(d.cfg.Timeouts.AnalysisCollect)
	defer timer.Stop()

	var collected *proto.RoomAnalysis
	select {
	case res := <-d.analysis.result:
		stale := d.analysis.cycle != d.state.Cycle
		d.analysis = nil
		switch {
		case stale:
			d.logger.Debug("discarding room analysis from superseded cycle")
		case res.err != nil:
			d.logger.Warn("background room analysis failed, continuing without it: %v", res.err)
		default:
			collected = res.analysis
		}
	case <-timer.C:
		// Leave the analysis running; a later wait point may still
		// collect it.
		d.logger.Debug("room analysis still pending after %s, continuing", d.cfg.Timeouts.AnalysisCollect)
	case <-ctx.Done():
	}

	d.mutate(func() {
		if collected != nil {
			d.state.RoomAnalysis = collected
		}
		d.state.FuseRoomContext()
	})
}

// cancelAnalysis stops any in-flight analysis and drops its handle.
func (d *Driver) cancelAnalysis() {
	if d.analysis != nil {
		d.analysis.cancel()
		d.analysis = nil
	}
}
