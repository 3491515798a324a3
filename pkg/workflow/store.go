package workflow

import (
	"encoding/json"
	"errors"
	"sync"

	"designflow/pkg/persistence"
	"designflow/pkg/proto"
)

// ErrProjectNotFound is returned when a project has no stored snapshot.
var ErrProjectNotFound = errors.New("project not found")

// Store persists project snapshots and the signal journal. The driver
// writes a full snapshot after every state change, so a crashed engine
// resumes from exactly where it stopped.
type Store interface {
	Save(st *State) error
	Load(projectID string) (*State, error)
	// ListResumable returns every project that still needs a driver at
	// boot, including completed projects waiting out their retention.
	ListResumable() ([]*State, error)
	JournalSignal(sig *proto.Signal) error
	Delete(projectID string) error
}

// SQLStore backs Store with the sqlite singleton.
type SQLStore struct{}

// NewSQLStore returns the sqlite-backed store. persistence.Initialize
// must have been called first.
func NewSQLStore() *SQLStore {
	return &SQLStore{}
}

func (s *SQLStore) Save(st *State) error {
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	return persistence.Ops().UpsertProject(&persistence.ProjectRecord{
		ID:             st.ProjectID,
		Step:           string(st.Step),
		Snapshot:       string(data),
		CreatedAt:      st.CreatedAt,
		LastActivityAt: st.LastActivityAt,
		CompletedAt:    st.CompletedAt,
	})
}

func (s *SQLStore) Load(projectID string) (*State, error) {
	rec, err := persistence.Ops().GetProject(projectID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return UnmarshalState([]byte(rec.Snapshot))
}

func (s *SQLStore) ListResumable() ([]*State, error) {
	records, err := persistence.Ops().ListActiveProjects()
	if err != nil {
		return nil, err
	}
	states := make([]*State, 0, len(records))
	for _, rec := range records {
		st, err := UnmarshalState([]byte(rec.Snapshot))
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func (s *SQLStore) JournalSignal(sig *proto.Signal) error {
	payload := ""
	if sig.Data != nil {
		data, err := json.Marshal(sig.Data)
		if err == nil {
			payload = string(data)
		}
	}
	return persistence.Ops().AppendSignal(sig.ProjectID, sig.ID, string(sig.Type), payload, sig.Timestamp)
}

func (s *SQLStore) Delete(projectID string) error {
	return persistence.Ops().DeleteProject(projectID)
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	journal   map[string][]proto.Signal
	saves     int
}

func NewMemStore() *MemStore {
	return &MemStore{
		snapshots: make(map[string][]byte),
		journal:   make(map[string][]proto.Signal),
	}
}

func (m *MemStore) Save(st *State) error {
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[st.ProjectID] = data
	m.saves++
	return nil
}

func (m *MemStore) Load(projectID string) (*State, error) {
	m.mu.Lock()
	data, ok := m.snapshots[projectID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrProjectNotFound
	}
	return UnmarshalState(data)
}

func (m *MemStore) ListResumable() ([]*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var states []*State
	for _, data := range m.snapshots {
		st, err := UnmarshalState(data)
		if err != nil {
			return nil, err
		}
		if st.Step == proto.StepAbandoned || st.Step == proto.StepCancelled {
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

func (m *MemStore) JournalSignal(sig *proto.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal[sig.ProjectID] = append(m.journal[sig.ProjectID], *sig)
	return nil
}

func (m *MemStore) Delete(projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, projectID)
	delete(m.journal, projectID)
	return nil
}

// Journal returns the recorded signals for a project, in arrival order.
func (m *MemStore) Journal(projectID string) []proto.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]proto.Signal{}, m.journal[projectID]...)
}

// SaveCount returns how many snapshot writes have happened.
func (m *MemStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// compile-time interface checks
var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemStore)(nil)
)
