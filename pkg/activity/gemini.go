package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"designflow/pkg/logx"
	"designflow/pkg/proto"
)

// ImageStore is the persistent object storage collaborator. Fetch accepts
// either a storage key or a URL previously returned by Save.
type ImageStore interface {
	Fetch(ctx context.Context, ref string) (data []byte, mimeType string, err error)
	Save(ctx context.Context, projectID string, data []byte, mimeType string) (url string, err error)
	Purge(ctx context.Context, projectID string) error
}

// LiveGateway implements Gateway against the Gemini API for image work
// and a configurable text backend for shopping-list reasoning.
type LiveGateway struct {
	apiKey     string
	imageModel string
	text       TextClient
	store      ImageStore
	logger     *logx.Logger

	clientMu sync.Mutex
	client   *genai.Client

	// Edit conversations keyed by project, then by chat continuation key.
	// Replaying prior turns preserves Gemini's visual continuity across
	// revisions.
	chatMu sync.Mutex
	chats  map[string]map[string][]*genai.Content
}

// NewLiveGateway creates the production gateway.
func NewLiveGateway(apiKey, imageModel string, text TextClient, store ImageStore) *LiveGateway {
	return &LiveGateway{
		apiKey:     apiKey,
		imageModel: imageModel,
		text:       text,
		store:      store,
		logger:     logx.NewLogger("gateway"),
		chats:      make(map[string]map[string][]*genai.Content),
	}
}

// geminiClient creates the client on first use. Client creation requires
// a context, so it cannot happen at construction time.
func (g *LiveGateway) geminiClient(ctx context.Context) (*genai.Client, error) {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()

	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		g.client = client
	}
	return g.client, nil
}

// photoParts fetches each photo and wraps it as an inline-data part.
func (g *LiveGateway) photoParts(ctx context.Context, photos []proto.PhotoData) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(photos))
	for i := range photos {
		data, mimeType, err := g.store.Fetch(ctx, photos[i].StorageKey)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch photo %s: %w", photos[i].PhotoID, err)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}})
	}
	return parts, nil
}

// stripFences removes markdown code fences models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (g *LiveGateway) AnalyzeRoomPhotos(ctx context.Context, req AnalyzeRequest) (*proto.RoomAnalysis, error) {
	client, err := g.geminiClient(ctx)
	if err != nil {
		return nil, classify(NameAnalyzeRoomPhotos, err)
	}

	parts, err := g.photoParts(ctx, req.RoomPhotos)
	if err != nil {
		return nil, classify(NameAnalyzeRoomPhotos, err)
	}
	parts = append(parts, &genai.Part{Text: "Analyze these photos of a room. Respond with JSON only: " +
		`{"summary": string, "detected_items": [string], "lighting": string, "palette": [string]}`})

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	result, err := client.Models.GenerateContent(ctx, g.imageModel, contents, nil)
	if err != nil {
		return nil, classify(NameAnalyzeRoomPhotos, err)
	}
	if result == nil || result.Text() == "" {
		return nil, NewError(ErrorTypeTransient, NameAnalyzeRoomPhotos, "empty response from Gemini API")
	}

	var analysis proto.RoomAnalysis
	if err := json.Unmarshal([]byte(stripFences(result.Text())), &analysis); err != nil {
		return nil, WrapError(ErrorTypeTransient, NameAnalyzeRoomPhotos, fmt.Errorf("unparseable analysis: %w", err))
	}
	return &analysis, nil
}

// generatePrompt builds the generation instruction from the brief or, if
// intake was skipped, the inspiration notes.
func generatePrompt(req *GenerateRequest, direction string) string {
	var sb strings.Builder
	sb.WriteString("Redesign the room in the attached photos. ")
	sb.WriteString(direction)
	if req.Brief != nil {
		sb.WriteString(fmt.Sprintf(" Room type: %s. Style: %s.", req.Brief.RoomType, req.Brief.StyleProfile))
		if len(req.Brief.KeepItems) > 0 {
			sb.WriteString(" Keep: " + strings.Join(req.Brief.KeepItems, ", ") + ".")
		}
		if len(req.Brief.PainPoints) > 0 {
			sb.WriteString(" Address: " + strings.Join(req.Brief.PainPoints, ", ") + ".")
		}
		if len(req.Brief.Constraints) > 0 {
			sb.WriteString(" Constraints: " + strings.Join(req.Brief.Constraints, ", ") + ".")
		}
	} else if len(req.InspirationNotes) > 0 {
		sb.WriteString(" Match the style of the inspiration photos: " + strings.Join(req.InspirationNotes, "; ") + ".")
	}
	if req.Dimensions != nil {
		sb.WriteString(fmt.Sprintf(" The room measures %.1fx%.1fx%.1f meters.",
			req.Dimensions.WidthM, req.Dimensions.LengthM, req.Dimensions.HeightM))
	}
	if req.RoomContext != nil && req.RoomContext.Analysis != nil {
		sb.WriteString(" Room analysis: " + req.RoomContext.Analysis.Summary)
	}
	return sb.String()
}

func (g *LiveGateway) GenerateDesigns(ctx context.Context, req GenerateRequest) ([]proto.DesignOption, error) {
	client, err := g.geminiClient(ctx)
	if err != nil {
		return nil, classify(NameGenerateDesigns, err)
	}

	photoParts, err := g.photoParts(ctx, append(append([]proto.PhotoData{}, req.RoomPhotos...), req.InspirationPhotos...))
	if err != nil {
		return nil, classify(NameGenerateDesigns, err)
	}

	directions := [OptionCount]string{
		"Produce a faithful interpretation that stays close to the requested style.",
		"Produce a bolder interpretation that takes the requested style further.",
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	options := make([]proto.DesignOption, 0, OptionCount)
	for _, direction := range directions {
		parts := append(append([]*genai.Part{}, photoParts...), &genai.Part{Text: generatePrompt(&req, direction)})
		contents := []*genai.Content{{Role: "user", Parts: parts}}

		result, err := client.Models.GenerateContent(ctx, g.imageModel, contents, cfg)
		if err != nil {
			return nil, classify(NameGenerateDesigns, err)
		}

		imageURL, summary, err := g.saveGeneratedImage(ctx, req.ProjectID, result)
		if err != nil {
			return nil, err
		}
		options = append(options, proto.DesignOption{
			OptionID: uuid.New().String(),
			ImageURL: imageURL,
			Summary:  summary,
		})
	}
	return options, nil
}

// saveGeneratedImage extracts the inline image from a generation result
// and persists it, returning its URL and any accompanying text.
func (g *LiveGateway) saveGeneratedImage(ctx context.Context, projectID string, result *genai.GenerateContentResponse) (string, string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", "", NewError(ErrorTypeTransient, NameGenerateDesigns, "empty response from Gemini API")
	}

	var summary string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			summary += part.Text
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			url, err := g.store.Save(ctx, projectID, part.InlineData.Data, part.InlineData.MIMEType)
			if err != nil {
				return "", "", WrapError(ErrorTypeTransient, NameGenerateDesigns, err)
			}
			return url, strings.TrimSpace(summary), nil
		}
	}
	return "", "", NewError(ErrorTypeContentPolicy, NameGenerateDesigns, "model returned no image")
}

func (g *LiveGateway) EditDesign(ctx context.Context, req EditRequest) (*EditResult, error) {
	client, err := g.geminiClient(ctx)
	if err != nil {
		return nil, classify(NameEditDesign, err)
	}

	baseData, baseMime, err := g.store.Fetch(ctx, req.BaseImageURL)
	if err != nil {
		return nil, classify(NameEditDesign, err)
	}

	var sb strings.Builder
	sb.WriteString("Apply the following edits to the attached design image, changing nothing else.")
	for i := range req.Regions {
		sb.WriteString(fmt.Sprintf(" In the %s: %s.", req.Regions[i].Region, req.Regions[i].Instruction))
	}
	if req.Feedback != "" {
		sb.WriteString(" " + req.Feedback)
	}

	turn := &genai.Content{Role: "user", Parts: []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: baseMime, Data: baseData}},
		{Text: sb.String()},
	}}

	g.chatMu.Lock()
	history := append(append([]*genai.Content{}, g.chats[req.ProjectID][req.ChatKey]...), turn)
	g.chatMu.Unlock()

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	result, err := client.Models.GenerateContent(ctx, g.imageModel, history, cfg)
	if err != nil {
		return nil, classify(NameEditDesign, err)
	}

	imageURL, _, err := g.saveGeneratedImage(ctx, req.ProjectID, result)
	if err != nil {
		return nil, err
	}

	chatKey := req.ChatKey
	if chatKey == "" {
		chatKey = uuid.New().String()
	}
	g.chatMu.Lock()
	if g.chats[req.ProjectID] == nil {
		g.chats[req.ProjectID] = make(map[string][]*genai.Content)
	}
	g.chats[req.ProjectID][chatKey] = append(history, result.Candidates[0].Content)
	g.chatMu.Unlock()

	return &EditResult{RevisedImageURL: imageURL, ChatKey: chatKey}, nil
}

func (g *LiveGateway) GenerateShoppingList(ctx context.Context, req ShoppingRequest) (*proto.ShoppingList, error) {
	contextJSON, err := json.Marshal(map[string]any{
		"brief":      req.Brief,
		"revisions":  req.Revisions,
		"dimensions": req.Dimensions,
		"context":    req.RoomContext,
	})
	if err != nil {
		return nil, WrapError(ErrorTypeInvalidRequest, NameGenerateShoppingList, err)
	}

	system := "You are a furniture sourcing assistant. Given an approved interior design and its edit " +
		"history, produce a shopping list of purchasable products. Respond with JSON only: " +
		`{"matched": [{"name": string, "vendor": string, "url": string, "price_usd": number}], ` +
		`"unmatched": [string], "total_usd": number}`
	prompt := fmt.Sprintf("Approved design image: %s\nProject context:\n%s", req.DesignImage, contextJSON)

	raw, err := g.text.Complete(ctx, system, prompt)
	if err != nil {
		return nil, classify(NameGenerateShoppingList, err)
	}

	var list proto.ShoppingList
	if err := json.Unmarshal([]byte(stripFences(raw)), &list); err != nil {
		return nil, WrapError(ErrorTypeTransient, NameGenerateShoppingList, fmt.Errorf("unparseable shopping list: %w", err))
	}
	return &list, nil
}

func (g *LiveGateway) PurgeProjectData(ctx context.Context, projectID string) error {
	g.chatMu.Lock()
	delete(g.chats, projectID)
	g.chatMu.Unlock()

	if err := g.store.Purge(ctx, projectID); err != nil {
		return classify(NamePurgeProjectData, err)
	}
	return nil
}
