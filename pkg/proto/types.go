package proto

// PhotoType distinguishes photos of the user's actual room from
// inspiration imagery.
type PhotoType string

const (
	PhotoTypeRoom        PhotoType = "room"
	PhotoTypeInspiration PhotoType = "inspiration"
)

// PhotoData is one uploaded photo. Identity is PhotoID; StorageKey points
// at the object store owned by the API facade.
type PhotoData struct {
	PhotoID    string    `json:"photo_id"`
	StorageKey string    `json:"storage_key"`
	Type       PhotoType `json:"photo_type"`
	Note       string    `json:"note,omitempty"`
}

// RoomDimensions holds parsed scan measurements in meters. Parsing can
// fail independently of the scan upload, so a ScanData may carry nil
// dimensions.
type RoomDimensions struct {
	WidthM    float64  `json:"width_m"`
	LengthM   float64  `json:"length_m"`
	HeightM   float64  `json:"height_m"`
	Furniture []string `json:"furniture"`
	Openings  []string `json:"openings"`
}

// ScanData is the result of a room scan upload.
type ScanData struct {
	StorageKey string          `json:"storage_key"`
	Dimensions *RoomDimensions `json:"room_dimensions,omitempty"`
}

// InspirationNote ties free text to one of the project's photos by index.
type InspirationNote struct {
	PhotoIndex int    `json:"photo_index"`
	Text       string `json:"text"`
}

// DesignBrief captures the style interview results.
type DesignBrief struct {
	RoomType         string            `json:"room_type"`
	PainPoints       []string          `json:"pain_points"`
	KeepItems        []string          `json:"keep_items"`
	StyleProfile     string            `json:"style_profile"`
	Constraints      []string          `json:"constraints"`
	InspirationNotes []InspirationNote `json:"inspiration_notes"`
}

// DesignOption is one generated design candidate.
type DesignOption struct {
	OptionID string `json:"option_id"`
	ImageURL string `json:"image_url"`
	Summary  string `json:"summary"`
}

// RevisionType distinguishes region-annotation edits from free-text
// feedback edits.
type RevisionType string

const (
	RevisionAnnotation RevisionType = "annotation"
	RevisionFeedback   RevisionType = "feedback"
)

// RevisionRecord is one applied edit. Revisions chain: each record's base
// image is the previous record's revised image.
type RevisionRecord struct {
	Number          int          `json:"revision_number"`
	Type            RevisionType `json:"type"`
	BaseImageURL    string       `json:"base_image_url"`
	RevisedImageURL string       `json:"revised_image_url"`
	Instructions    []string     `json:"instructions"`
}

// RegionEdit is one annotated region with its edit instruction.
type RegionEdit struct {
	Region      string `json:"region"`
	Instruction string `json:"instruction"`
}

// RoomAnalysis is the output of the background room-photo analysis
// activity.
type RoomAnalysis struct {
	Summary       string   `json:"summary"`
	DetectedItems []string `json:"detected_items"`
	Lighting      string   `json:"lighting"`
	Palette       []string `json:"palette"`
}

// RoomContext fuses the background analysis with any scan dimensions.
// Sources lists which inputs contributed; fusion is idempotent, so
// re-fusing the same inputs yields the same source list.
type RoomContext struct {
	Analysis   *RoomAnalysis   `json:"analysis,omitempty"`
	Dimensions *RoomDimensions `json:"dimensions,omitempty"`
	Sources    []string        `json:"sources"`
}

// ShoppingItem is one product matched against the approved design.
type ShoppingItem struct {
	Name     string  `json:"name"`
	Vendor   string  `json:"vendor"`
	URL      string  `json:"url"`
	PriceUSD float64 `json:"price_usd"`
}

// ShoppingList is the output of the shopping-list activity.
type ShoppingList struct {
	Matched   []ShoppingItem `json:"matched"`
	Unmatched []string       `json:"unmatched"`
	TotalUSD  float64        `json:"total_usd"`
}

// ErrorSource tells where a workflow error came from. Activity errors
// are cleared by retry_failed_step; validation errors are cleared by a
// corrected signal of the same kind.
type ErrorSource string

const (
	ErrorSourceActivity   ErrorSource = "activity"
	ErrorSourceValidation ErrorSource = "validation"
)

// WorkflowError is a captured activity or validation failure. A non-nil
// error on the workflow state blocks approval and forward progress until
// the user retries, starts over, or cancels.
type WorkflowError struct {
	Message   string      `json:"message"`
	Step      Step        `json:"step"`
	Source    ErrorSource `json:"source"`
	Retryable bool        `json:"retryable"`
}
