package domain

import "time"

// DefaultSourceType is used when raw data is filed without a source tag
const DefaultSourceType = "sitrep"

// RawData is a single observation filed by a team
type RawData struct {
	ID         int64     `json:"raw_data_id" yaml:"raw_data_id"`
	TeamID     int64     `json:"team_id" yaml:"team_id"`
	Content    string    `json:"content" yaml:"content"`
	SourceType string    `json:"source_type" yaml:"source_type"`
	CreatedAt  time.Time `json:"created_at,omitempty" yaml:"-"`
}

// RawDataCreated is the store's echo after raw data is filed
type RawDataCreated struct {
	ID      int64  `json:"raw_data_id"`
	Message string `json:"message"`
}

// NewRawData is the input for filing an observation
type NewRawData struct {
	TeamID     int64  `json:"team_id" validate:"required,gt=0"`
	Content    string `json:"content" validate:"required"`
	SourceType string `json:"source_type" validate:"max=64"`
}
