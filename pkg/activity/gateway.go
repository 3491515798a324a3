package activity

import (
	"context"

	"designflow/pkg/proto"
)

// Activity names used in error classification and metrics labels.
const (
	NameAnalyzeRoomPhotos    = "analyze_room_photos"
	NameGenerateDesigns      = "generate_designs"
	NameEditDesign           = "edit_design"
	NameGenerateShoppingList = "generate_shopping_list"
	NamePurgeProjectData     = "purge_project_data"
)

// OptionCount is the fixed number of design options a generation run
// produces.
const OptionCount = 2

// AnalyzeRequest carries room photo references for background analysis.
type AnalyzeRequest struct {
	ProjectID  string
	RoomPhotos []proto.PhotoData
}

// GenerateRequest carries everything the design generation needs. Brief
// is nil when intake was skipped; InspirationNotes then serves as the
// fallback style signal.
type GenerateRequest struct {
	ProjectID         string
	RoomPhotos        []proto.PhotoData
	InspirationPhotos []proto.PhotoData
	Brief             *proto.DesignBrief
	InspirationNotes  []string
	Dimensions        *proto.RoomDimensions
	RoomContext       *proto.RoomContext
}

// EditRequest applies one annotation or feedback action to the current
// design image. ChatKey continues a prior edit conversation when set.
type EditRequest struct {
	ProjectID         string
	BaseImageURL      string
	RoomPhotos        []proto.PhotoData
	InspirationPhotos []proto.PhotoData
	Brief             *proto.DesignBrief
	Regions           []proto.RegionEdit
	Feedback          string
	ChatKey           string
	Dimensions        *proto.RoomDimensions
	RoomContext       *proto.RoomContext
}

// EditResult is the revised image plus the continuation key for the next
// edit in the same cycle.
type EditResult struct {
	RevisedImageURL string
	ChatKey         string
}

// ShoppingRequest carries the approved design and its full edit history.
type ShoppingRequest struct {
	ProjectID   string
	DesignImage string
	RoomPhotos  []proto.PhotoData
	Brief       *proto.DesignBrief
	Revisions   []proto.RevisionRecord
	Dimensions  *proto.RoomDimensions
	RoomContext *proto.RoomContext
}

// Gateway is the typed call surface to the five external operations.
// Every call may take seconds to minutes and may fail with a classified
// *Error. Implementations must be safe for use by one workflow driver at
// a time; the engine never runs two activities for the same project
// concurrently except the background analysis.
type Gateway interface {
	AnalyzeRoomPhotos(ctx context.Context, req AnalyzeRequest) (*proto.RoomAnalysis, error)
	GenerateDesigns(ctx context.Context, req GenerateRequest) ([]proto.DesignOption, error)
	EditDesign(ctx context.Context, req EditRequest) (*EditResult, error)
	GenerateShoppingList(ctx context.Context, req ShoppingRequest) (*proto.ShoppingList, error)

	// PurgeProjectData is best-effort and idempotent; callers swallow its
	// failure.
	PurgeProjectData(ctx context.Context, projectID string) error
}
