package activity

import (
	"context"
	"fmt"
	"sync"

	"designflow/pkg/proto"
)

// MockGateway is a scripted Gateway for tests. Each activity can be
// primed with a number of failures before it starts succeeding, or with
// a permanent error.
type MockGateway struct {
	mu sync.Mutex

	// failures[name] errors remain before name succeeds.
	failures map[string]int
	// failWith[name] overrides the error returned while failing.
	failWith map[string]error
	// permanent[name] marks an activity that never succeeds.
	permanent map[string]bool

	calls []string

	// Delay hooks let tests hold an activity open.
	AnalyzeStarted  chan struct{}
	AnalyzeRelease  chan struct{}
	GenerateStarted chan struct{}
	GenerateRelease chan struct{}
	EditStarted     chan struct{}
	EditRelease     chan struct{}

	Analysis     *proto.RoomAnalysis
	ShoppingList *proto.ShoppingList

	// designs overrides the canned generation result when set.
	designs []proto.DesignOption

	editCount int
	purged    []string
}

// NewMockGateway returns a gateway that succeeds at everything with
// deterministic canned results.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		failures:  make(map[string]int),
		failWith:  make(map[string]error),
		permanent: make(map[string]bool),
		Analysis: &proto.RoomAnalysis{
			Summary:       "small bedroom with warm afternoon light",
			DetectedItems: []string{"bed", "dresser"},
			Lighting:      "warm",
			Palette:       []string{"beige", "oak"},
		},
		ShoppingList: &proto.ShoppingList{
			Matched:   []proto.ShoppingItem{{Name: "oak side table", Vendor: "acme", URL: "https://acme.test/oak", PriceUSD: 129}},
			Unmatched: []string{"custom headboard"},
			TotalUSD:  129,
		},
	}
}

// FailTimes primes name to fail n times before succeeding.
func (m *MockGateway) FailTimes(name string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name] = n
	m.failWith[name] = err
}

// AlwaysFail primes name to fail every call.
func (m *MockGateway) AlwaysFail(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanent[name] = true
	m.failWith[name] = err
}

// Calls returns the ordered activity invocation log.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

// SetDesigns overrides the options GenerateDesigns returns. nil
// restores the canned result.
func (m *MockGateway) SetDesigns(options []proto.DesignOption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.designs = options
}

// Purged returns the project IDs purge was invoked for.
func (m *MockGateway) Purged() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.purged...)
}

// check records the call and returns the scripted error, if any.
func (m *MockGateway) check(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, name)

	if m.permanent[name] {
		return m.scriptedError(name)
	}
	if m.failures[name] > 0 {
		m.failures[name]--
		return m.scriptedError(name)
	}
	return nil
}

func (m *MockGateway) scriptedError(name string) error {
	if err := m.failWith[name]; err != nil {
		return err
	}
	return NewError(ErrorTypeTransient, name, "scripted failure")
}

func (m *MockGateway) AnalyzeRoomPhotos(ctx context.Context, req AnalyzeRequest) (*proto.RoomAnalysis, error) {
	if m.AnalyzeStarted != nil {
		close(m.AnalyzeStarted)
		m.AnalyzeStarted = nil
	}
	if m.AnalyzeRelease != nil {
		select {
		case <-m.AnalyzeRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.check(NameAnalyzeRoomPhotos); err != nil {
		return nil, err
	}
	return m.Analysis, nil
}

func (m *MockGateway) GenerateDesigns(ctx context.Context, req GenerateRequest) ([]proto.DesignOption, error) {
	if m.GenerateStarted != nil {
		close(m.GenerateStarted)
		m.GenerateStarted = nil
	}
	if m.GenerateRelease != nil {
		select {
		case <-m.GenerateRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.check(NameGenerateDesigns); err != nil {
		return nil, err
	}
	m.mu.Lock()
	overridden := m.designs
	m.mu.Unlock()
	if overridden != nil {
		return overridden, nil
	}
	options := make([]proto.DesignOption, OptionCount)
	for i := range options {
		options[i] = proto.DesignOption{
			OptionID: fmt.Sprintf("option-%d", i),
			ImageURL: fmt.Sprintf("https://images.test/%s/option-%d.png", req.ProjectID, i),
			Summary:  fmt.Sprintf("design direction %d", i),
		}
	}
	return options, nil
}

func (m *MockGateway) EditDesign(ctx context.Context, req EditRequest) (*EditResult, error) {
	if m.EditStarted != nil {
		close(m.EditStarted)
		m.EditStarted = nil
	}
	if m.EditRelease != nil {
		select {
		case <-m.EditRelease:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.check(NameEditDesign); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.editCount++
	n := m.editCount
	m.mu.Unlock()

	chatKey := req.ChatKey
	if chatKey == "" {
		chatKey = "chat-1"
	}
	return &EditResult{
		RevisedImageURL: fmt.Sprintf("https://images.test/%s/rev-%d.png", req.ProjectID, n),
		ChatKey:         chatKey,
	}, nil
}

func (m *MockGateway) GenerateShoppingList(ctx context.Context, req ShoppingRequest) (*proto.ShoppingList, error) {
	if err := m.check(NameGenerateShoppingList); err != nil {
		return nil, err
	}
	return m.ShoppingList, nil
}

func (m *MockGateway) PurgeProjectData(ctx context.Context, projectID string) error {
	if err := m.check(NamePurgeProjectData); err != nil {
		return err
	}
	m.mu.Lock()
	m.purged = append(m.purged, projectID)
	m.mu.Unlock()
	return nil
}
