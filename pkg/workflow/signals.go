package workflow

import (
	"context"
	"fmt"
	"time"

	"designflow/pkg/metrics"
	"designflow/pkg/proto"
)

// event classifies what a pumped signal did to the control flow.
type event int

const (
	// evNone: the signal was applied (or ignored); keep waiting.
	evNone event = iota
	// evCancel: the project was cancelled; exit to CANCELLED.
	evCancel
	// evStartOver: the design cycle was reset; loop back to INTAKE.
	evStartOver
	// evAbandon: the inactivity deadline fired; exit to ABANDONED.
	evAbandon
	// evStale: an activity result from a superseded cycle was discarded.
	evStale
)

// apply journals an inbound signal and applies it to the state under the
// driver lock. Signals that arrive in the wrong phase are ignored with a
// log line; the facade retries nothing, so ignoring is silent from the
// workflow's point of view.
func (d *Driver) apply(ctx context.Context, sig *proto.Signal) event {
	if err := d.store.JournalSignal(sig); err != nil {
		d.logger.Warn("failed to journal signal %s: %v", sig.ID, err)
	}
	metrics.SignalsReceived.WithLabelValues(string(sig.Type)).Inc()

	ev := evNone
	d.mutate(func() {
		d.state.LastActivityAt = time.Now().UTC()

		switch sig.Type {
		case proto.SignalAddPhoto:
			d.applyAddPhoto(sig)
		case proto.SignalRemovePhoto:
			d.applyRemovePhoto(sig)
		case proto.SignalUpdatePhotoNote:
			d.applyPhotoNote(sig)
		case proto.SignalConfirmPhotos:
			d.applyConfirmPhotos(sig)
		case proto.SignalCompleteScan:
			d.applyCompleteScan(sig)
		case proto.SignalSkipScan:
			d.applySkipScan(sig)
		case proto.SignalCompleteIntake:
			d.applyCompleteIntake(sig)
		case proto.SignalSkipIntake:
			d.applySkipIntake(sig)
		case proto.SignalSelectOption:
			d.applySelectOption(sig)
		case proto.SignalSubmitAnnotation:
			d.applyAnnotation(sig)
		case proto.SignalSubmitFeedback:
			d.applyFeedback(sig)
		case proto.SignalApproveDesign:
			d.applyApprove(sig)
		case proto.SignalRetryFailedStep:
			d.applyRetry(sig)
		case proto.SignalStartOver:
			if d.state.Approved {
				d.logger.Info("ignoring start_over: design already approved")
				return
			}
			d.state.ResetCycle()
			ev = evStartOver
		case proto.SignalCancelProject:
			d.state.Cycle++
			ev = evCancel
		default:
			d.logger.Warn("unknown signal type %s", sig.Type)
		}
	})

	if ev == evStartOver {
		d.cancelAnalysis()
		d.maybeLaunchAnalysis(ctx)
		d.logger.Info("design cycle reset, returning to intake")
	}
	return ev
}

// ignored logs a wrong-phase signal.
func (d *Driver) ignored(sig *proto.Signal) {
	d.logger.Debug("ignoring %s in step %s", sig.Type, d.state.Step)
}

func (d *Driver) applyAddPhoto(sig *proto.Signal) {
	photo, ok := photoPayload(sig.Data)
	if !ok {
		d.state.SetValidationError("add_photo requires photo data")
		return
	}
	for i := range d.state.Photos {
		if d.state.Photos[i].PhotoID == photo.PhotoID {
			d.state.Photos[i] = photo
			return
		}
	}
	d.state.Photos = append(d.state.Photos, photo)
}

func (d *Driver) applyRemovePhoto(sig *proto.Signal) {
	payload, ok := sig.Data.(proto.RemovePhotoPayload)
	if !ok {
		d.state.SetValidationError("remove_photo requires a photo id")
		return
	}
	kept := d.state.Photos[:0]
	for _, p := range d.state.Photos {
		if p.PhotoID != payload.PhotoID {
			kept = append(kept, p)
		}
	}
	d.state.Photos = kept

	// Removal below the minimum drops the confirmation but never moves
	// the project backwards out of a later step.
	if d.state.Step == proto.StepPhotos && len(d.state.RoomPhotos()) < MinRoomPhotos {
		d.state.PhotosConfirmed = false
	}
}

func (d *Driver) applyPhotoNote(sig *proto.Signal) {
	payload, ok := sig.Data.(proto.PhotoNotePayload)
	if !ok {
		d.state.SetValidationError("update_photo_note requires a photo id")
		return
	}
	for i := range d.state.Photos {
		if d.state.Photos[i].PhotoID == payload.PhotoID {
			if payload.Note == nil {
				d.state.Photos[i].Note = ""
			} else {
				d.state.Photos[i].Note = *payload.Note
			}
			return
		}
	}
	d.logger.Debug("update_photo_note for unknown photo %s", payload.PhotoID)
}

func (d *Driver) applyConfirmPhotos(sig *proto.Signal) {
	if d.state.Step != proto.StepPhotos {
		d.ignored(sig)
		return
	}
	if len(d.state.RoomPhotos()) < MinRoomPhotos {
		d.state.SetValidationError(fmt.Sprintf("need at least %d room photos to confirm", MinRoomPhotos))
		return
	}
	d.state.ClearValidationError()
	d.state.PhotosConfirmed = true
}

func (d *Driver) applyCompleteScan(sig *proto.Signal) {
	if d.state.Step != proto.StepScan {
		d.ignored(sig)
		return
	}
	scan, ok := scanPayload(sig.Data)
	if !ok {
		d.state.SetValidationError("complete_scan requires scan data")
		return
	}
	d.state.ClearValidationError()
	d.state.Scan = scan
	d.state.ScanResolved = true
}

func (d *Driver) applySkipScan(sig *proto.Signal) {
	if d.state.Step != proto.StepScan {
		d.ignored(sig)
		return
	}
	d.state.ClearValidationError()
	d.state.ScanResolved = true
}

func (d *Driver) applyCompleteIntake(sig *proto.Signal) {
	if d.state.Step != proto.StepIntake {
		d.ignored(sig)
		return
	}
	brief, ok := briefPayload(sig.Data)
	if !ok {
		d.state.SetValidationError("complete_intake requires a design brief")
		return
	}
	d.state.ClearValidationError()
	d.state.Brief = brief
	d.state.IntakeResolved = true
}

func (d *Driver) applySkipIntake(sig *proto.Signal) {
	if d.state.Step != proto.StepIntake {
		d.ignored(sig)
		return
	}
	if len(d.state.InspirationPhotos()) == 0 {
		d.state.SetValidationError("cannot skip intake without at least one inspiration photo")
		return
	}
	d.state.ClearValidationError()
	d.state.IntakeSkipped = true
	d.state.IntakeResolved = true
}

func (d *Driver) applySelectOption(sig *proto.Signal) {
	if d.state.Step != proto.StepSelection {
		d.ignored(sig)
		return
	}
	if d.state.SelectedOption != nil {
		d.logger.Debug("option already selected, ignoring select_option")
		return
	}
	payload, ok := sig.Data.(proto.SelectOptionPayload)
	if !ok {
		d.state.SetValidationError("select_option requires an option index")
		return
	}
	if payload.Index < 0 || payload.Index >= len(d.state.Options) {
		d.state.SetValidationError(fmt.Sprintf("option index %d out of range [0,%d)", payload.Index, len(d.state.Options)))
		return
	}
	d.state.ClearValidationError()
	idx := payload.Index
	d.state.SelectedOption = &idx
}

func (d *Driver) applyAnnotation(sig *proto.Signal) {
	if d.state.Step != proto.StepIteration {
		d.ignored(sig)
		return
	}
	payload, ok := sig.Data.(proto.AnnotationPayload)
	if !ok || len(payload.Regions) == 0 {
		d.state.SetValidationError("submit_annotation_edit requires at least one region")
		return
	}
	d.state.ClearValidationError()
	d.state.Enqueue(NewAnnotationAction(payload.Regions))
}

func (d *Driver) applyFeedback(sig *proto.Signal) {
	if d.state.Step != proto.StepIteration {
		d.ignored(sig)
		return
	}
	payload, ok := sig.Data.(proto.FeedbackPayload)
	if !ok || payload.Text == "" {
		d.state.SetValidationError("submit_text_feedback requires non-empty text")
		return
	}
	d.state.ClearValidationError()
	d.state.Enqueue(NewFeedbackAction(payload.Text))
}

func (d *Driver) applyApprove(sig *proto.Signal) {
	if d.state.Step != proto.StepIteration && d.state.Step != proto.StepApproval {
		d.ignored(sig)
		return
	}
	if d.state.Err != nil {
		d.logger.Info("ignoring approve_design while an error is active")
		return
	}
	d.state.ApprovalRequested = true
}

func (d *Driver) applyRetry(sig *proto.Signal) {
	if d.state.Err == nil {
		d.logger.Debug("retry_failed_step with no active error")
		return
	}
	if !d.state.Err.Retryable {
		d.logger.Info("ignoring retry for non-retryable error: %s", d.state.Err.Message)
		return
	}
	d.logger.Info("retrying failed step %s", d.state.Err.Step)
	d.state.ClearError()
}

// Payload coercion helpers. The facade hands payloads either by value or
// by pointer; both are accepted.

func photoPayload(data any) (proto.PhotoData, bool) {
	switch v := data.(type) {
	case proto.PhotoData:
		return v, v.PhotoID != ""
	case *proto.PhotoData:
		if v == nil {
			return proto.PhotoData{}, false
		}
		return *v, v.PhotoID != ""
	default:
		return proto.PhotoData{}, false
	}
}

func scanPayload(data any) (*proto.ScanData, bool) {
	switch v := data.(type) {
	case proto.ScanData:
		return &v, true
	case *proto.ScanData:
		return v, v != nil
	default:
		return nil, false
	}
}

func briefPayload(data any) (*proto.DesignBrief, bool) {
	switch v := data.(type) {
	case proto.DesignBrief:
		return &v, true
	case *proto.DesignBrief:
		return v, v != nil
	default:
		return nil, false
	}
}
