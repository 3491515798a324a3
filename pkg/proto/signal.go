package proto

import (
	"time"

	"github.com/google/uuid"
)

// SignalType identifies an external command delivered into a project's
// inbox.
type SignalType string

const (
	SignalAddPhoto         SignalType = "add_photo"
	SignalRemovePhoto      SignalType = "remove_photo"
	SignalUpdatePhotoNote  SignalType = "update_photo_note"
	SignalConfirmPhotos    SignalType = "confirm_photos"
	SignalCompleteScan     SignalType = "complete_scan"
	SignalSkipScan         SignalType = "skip_scan"
	SignalCompleteIntake   SignalType = "complete_intake"
	SignalSkipIntake       SignalType = "skip_intake"
	SignalSelectOption     SignalType = "select_option"
	SignalSubmitAnnotation SignalType = "submit_annotation_edit"
	SignalSubmitFeedback   SignalType = "submit_text_feedback"
	SignalApproveDesign    SignalType = "approve_design"
	SignalRetryFailedStep  SignalType = "retry_failed_step"
	SignalStartOver        SignalType = "start_over"
	SignalCancelProject    SignalType = "cancel_project"
)

// Signal is an asynchronous, fire-and-forget command from an external
// actor (the API facade) to one project's workflow. Data holds the typed
// payload for the signal type; handlers that find the wrong payload type
// surface a non-retryable validation error.
type Signal struct {
	ID        string     `json:"id"`
	Type      SignalType `json:"type"`
	ProjectID string     `json:"project_id"`
	Timestamp time.Time  `json:"timestamp"`
	Data      any        `json:"data,omitempty"`
}

// NewSignal creates a signal with a fresh ID and timestamp.
func NewSignal(sigType SignalType, projectID string, data any) *Signal {
	return &Signal{
		ID:        uuid.New().String(),
		Type:      sigType,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Typed payloads carried by Signal.Data.

// RemovePhotoPayload identifies the photo to remove.
type RemovePhotoPayload struct {
	PhotoID string `json:"photo_id"`
}

// PhotoNotePayload updates (or clears) a photo's note.
type PhotoNotePayload struct {
	PhotoID string  `json:"photo_id"`
	Note    *string `json:"note,omitempty"`
}

// SelectOptionPayload chooses one of the generated design options.
type SelectOptionPayload struct {
	Index int `json:"index"`
}

// AnnotationPayload carries region edits for an annotation revision.
type AnnotationPayload struct {
	Regions []RegionEdit `json:"regions"`
}

// FeedbackPayload carries free-text feedback for a revision.
type FeedbackPayload struct {
	Text string `json:"text"`
}
