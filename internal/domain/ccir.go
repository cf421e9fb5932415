package domain

import "strings"

// CCIR is a Commander's Critical Information Requirement
type CCIR struct {
	ID          int64    `json:"ccir_id" yaml:"ccir_id"`
	TeamID      int64    `json:"team_id" yaml:"team_id"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Active      bool     `json:"active" yaml:"active"`
}

// MatchesKeyword reports whether content contains keyword, ignoring case.
// An empty keyword matches everything.
func MatchesKeyword(content, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return true
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(keyword))
}
