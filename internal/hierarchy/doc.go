// Package hierarchy indexes and scans the two trees echelon works with: the
// team command tree and the bullet-point forest.
//
// IndexByParent groups any flat entity list by parent key. TeamIndex builds
// on it to answer subordinate and descendant queries and to order teams
// bottom-up for summary regeneration.
//
// CollectForTeam and CollectForTeams scan a bullet-point forest in document
// (pre-order) order and return the nodes produced by the requested team(s).
// Scoping is by the bullet point's own team_id; the scanner knows nothing of
// the team tree.
//
// Assemble turns a flat bullet list plus parent/child links into the nested
// forest returned by the hierarchy view.
package hierarchy
