package persistence

import "time"

// ProjectRecord is one project row. Snapshot holds the serialized
// WorkflowState; the timestamp columns back the durable timers, so a
// restarted engine can rearm abandonment and retention deadlines from
// them.
type ProjectRecord struct {
	ID             string     `json:"id"`
	Step           string     `json:"step"`
	Snapshot       string     `json:"snapshot"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// JournalEntry is one accepted signal, recorded in arrival order.
type JournalEntry struct {
	Seq        int64     `json:"seq"`
	ProjectID  string    `json:"project_id"`
	SignalID   string    `json:"signal_id"`
	SignalType string    `json:"signal_type"`
	Payload    string    `json:"payload,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
