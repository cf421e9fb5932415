package domain

import "time"

// EventType identifies a data service mutation
type EventType string

const (
	EventTeamCreated            EventType = "team_created"
	EventRawDataCreated         EventType = "raw_data_created"
	EventCCIRCreated            EventType = "ccir_created"
	EventBulletPointCreated     EventType = "bullet_point_created"
	EventBulletPointsLinked     EventType = "bullet_points_linked"
	EventBulletPointInvalidated EventType = "bullet_point_invalidated"
	EventSummariesRegenerated   EventType = "summaries_regenerated"
	EventSeedReloaded           EventType = "seed_reloaded"
)

// Event is a mutation notice pushed to subscribers. Only the fields relevant
// to Type are set.
type Event struct {
	Type          EventType `json:"type"`
	TeamID        int64     `json:"team_id,omitempty"`
	BulletPointID int64     `json:"bp_id,omitempty"`
	ChildID       int64     `json:"child_id,omitempty"`
	RawDataID     int64     `json:"raw_data_id,omitempty"`
	Keyword       string    `json:"ccir,omitempty"`
	Affected      []int64   `json:"affected,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChangesBullets reports whether the event alters the bullet-point forest
func (e Event) ChangesBullets() bool {
	switch e.Type {
	case EventBulletPointCreated, EventBulletPointsLinked,
		EventBulletPointInvalidated, EventSummariesRegenerated:
		return true
	}
	return false
}
