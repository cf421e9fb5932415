package domain

// Team is a node in the command tree
type Team struct {
	ID           int64  `json:"team_id" yaml:"team_id"`
	Name         string `json:"team_name" yaml:"team_name"`
	EchelonLevel string `json:"echelon_level" yaml:"echelon_level"`
	ParentID     *int64 `json:"parent_team_id,omitempty" yaml:"parent_team_id,omitempty"`
}

// NewTeam creates a team. A zero parentID makes it a root.
func NewTeam(id int64, name, echelon string, parentID int64) Team {
	t := Team{ID: id, Name: name, EchelonLevel: echelon}
	if parentID != 0 {
		t.ParentID = &parentID
	}
	return t
}

// Parent returns the parent team id and whether one is set
func (t Team) Parent() (int64, bool) {
	if t.ParentID == nil || *t.ParentID == 0 {
		return 0, false
	}
	return *t.ParentID, true
}

// TeamNode is a team with its subordinate teams nested
type TeamNode struct {
	Team
	Children []TeamNode `json:"children"`
}
