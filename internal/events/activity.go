// Package events defines the payloads published when the working set changes.
package events

import "time"

// Event types, also used as the event_type Kafka header.
const (
	TypeActivityUpserted   = "activity.upserted"
	TypeActivityDeleted    = "activity.deleted"
	TypeWorkingSetReplaced = "activity.set_replaced"
	TypeActivitiesImported = "activity.imported"
)

// ActivityUpserted is emitted when an activity is created or edited.
type ActivityUpserted struct {
	ActivityID  string    `json:"activity_id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	Responsible string    `json:"responsible"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	Cost        float64   `json:"cost"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Created     bool      `json:"created"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted when an activity is removed from the working set.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkingSetReplaced is emitted when a feed refresh swaps the whole set.
type WorkingSetReplaced struct {
	Source     string    `json:"source"`
	Count      int       `json:"count"`
	Version    uint64    `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivitiesImported is emitted when uploaded or streamed rows are merged.
type ActivitiesImported struct {
	Source     string    `json:"source"`
	Name       string    `json:"name,omitempty"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	Total      int       `json:"total"`
	Version    uint64    `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}
