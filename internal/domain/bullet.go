package domain

import (
	"fmt"
	"time"
)

// ValidityStatus is the validity of a bullet point
type ValidityStatus string

const (
	ValidityValid   ValidityStatus = "valid"
	ValidityInvalid ValidityStatus = "invalid"
)

// ParseValidityStatus accepts exactly the two recognized states
func ParseValidityStatus(s string) (ValidityStatus, error) {
	switch ValidityStatus(s) {
	case ValidityValid, ValidityInvalid:
		return ValidityStatus(s), nil
	case "":
		return ValidityValid, nil
	}
	return "", InvalidInput(fmt.Sprintf("unknown validity status %q", s))
}

// BulletPoint is a summary line produced by a team. Children is only
// populated in the hierarchy view.
type BulletPoint struct {
	ID             int64          `json:"bp_id" yaml:"bp_id"`
	TeamID         int64          `json:"team_id" yaml:"team_id"`
	EchelonLevel   string         `json:"echelon_level,omitempty" yaml:"echelon_level,omitempty"`
	Content        string         `json:"content" yaml:"content"`
	ValidityStatus ValidityStatus `json:"validity_status" yaml:"validity_status"`
	Children       []BulletPoint  `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsValid reports whether the bullet point has not been invalidated
func (b BulletPoint) IsValid() bool {
	return b.ValidityStatus != ValidityInvalid
}

// WithoutChildren returns a copy of the bullet point with no nested children
func (b BulletPoint) WithoutChildren() BulletPoint {
	b.Children = nil
	return b
}

// BulletPointDetails is the id-referencing view of one bullet point
type BulletPointDetails struct {
	ID                int64          `json:"bp_id" yaml:"bp_id"`
	TeamID            int64          `json:"team_id" yaml:"team_id"`
	EchelonLevel      string         `json:"echelon_level,omitempty" yaml:"echelon_level,omitempty"`
	Content           string         `json:"content" yaml:"content"`
	ValidityStatus    ValidityStatus `json:"validity_status" yaml:"validity_status"`
	CreatedAt         time.Time      `json:"created_at,omitempty" yaml:"-"`
	ChildBulletPoints []int64        `json:"child_bullet_points" yaml:"child_bullet_points"`
	ChildRawData      []int64        `json:"child_raw_data" yaml:"child_raw_data"`
}

// BulletPoint returns the details as a childless bullet point
func (d BulletPointDetails) BulletPoint() BulletPoint {
	return BulletPoint{
		ID:             d.ID,
		TeamID:         d.TeamID,
		EchelonLevel:   d.EchelonLevel,
		Content:        d.Content,
		ValidityStatus: d.ValidityStatus,
	}
}

// NewBulletPoint is a request to create a bullet point
type NewBulletPoint struct {
	TeamID       int64   `json:"team_id" validate:"required,gt=0"`
	EchelonLevel string  `json:"echelon_level" validate:"max=64"`
	Content      string  `json:"content" validate:"required"`
	ChildBPs     []int64 `json:"child_bps"`
	ChildRaws    []int64 `json:"child_raws"`
}

// Link is a parent -> child edge in the provenance DAG
type Link struct {
	ParentID int64 `json:"parent_id" validate:"required,gt=0"`
	ChildID  int64 `json:"child_id" validate:"required,gt=0"`
}

// Validate rejects self-links
func (l Link) Validate() error {
	if l.ParentID == l.ChildID {
		return InvalidInput(fmt.Sprintf("bullet point %d cannot be linked to itself", l.ParentID))
	}
	return nil
}

// RegenerateResult is the opaque payload of a summary regeneration
type RegenerateResult struct {
	Keyword string `json:"ccir"`
	Created int    `json:"created"`
	Message string `json:"message"`
}
