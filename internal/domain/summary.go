package domain

// PlannedSummary is one bullet point a regeneration intends to create.
// Sources refer to earlier entries of the same plan by index; RawData to
// existing raw data ids.
type PlannedSummary struct {
	TeamID       int64
	EchelonLevel string
	Content      string
	Sources      []int
	RawData      []int64
}

// SummaryPlan is an ordered regeneration plan. Every Sources index points
// to an earlier entry.
type SummaryPlan []PlannedSummary
