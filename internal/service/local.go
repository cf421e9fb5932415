package service

import (
	"context"
	"fmt"

	"echelon/internal/coordinator"
	"echelon/internal/domain"
)

// Local serves the coordinator's data service operations in process,
// without the HTTP API in between
type Local struct {
	Reports   *ReportService
	Summaries *SummaryService
}

var _ coordinator.DataService = (*Local)(nil)

// NewLocal pairs the two services behind the DataService interface
func NewLocal(reports *ReportService, summaries *SummaryService) *Local {
	return &Local{Reports: reports, Summaries: summaries}
}

// ListTeams returns every team
func (l *Local) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return l.Reports.ListTeams(ctx)
}

// GetHierarchy returns the full bullet-point forest
func (l *Local) GetHierarchy(ctx context.Context) ([]domain.BulletPoint, error) {
	return l.Reports.Hierarchy(ctx)
}

// GetTeamHierarchy returns the forest scoped to a team, optionally with its subordinates
func (l *Local) GetTeamHierarchy(ctx context.Context, teamID int64, includeSubteams bool) ([]domain.BulletPoint, error) {
	return l.Reports.TeamHierarchy(ctx, teamID, includeSubteams)
}

// GetBulletPointDetails returns one bullet point with its child ids
func (l *Local) GetBulletPointDetails(ctx context.Context, bpID int64) (domain.BulletPointDetails, error) {
	return l.Reports.GetBulletPointDetails(ctx, bpID)
}

// CreateRawData stores an observation for a team
func (l *Local) CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawDataCreated, error) {
	raw, err := l.Reports.CreateRawData(ctx, in)
	if err != nil {
		return domain.RawDataCreated{}, err
	}
	return domain.RawDataCreated{ID: raw.ID, Message: "Raw data created"}, nil
}

// CreateBulletPoint stores a bullet point and returns its id
func (l *Local) CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (int64, error) {
	bp, err := l.Reports.CreateBulletPoint(ctx, in)
	if err != nil {
		return 0, err
	}
	return bp.ID, nil
}

// LinkBulletPoints makes childID a child of parentID
func (l *Local) LinkBulletPoints(ctx context.Context, parentID, childID int64) (string, error) {
	if err := l.Reports.LinkBulletPoints(ctx, domain.Link{ParentID: parentID, ChildID: childID}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Linked bullet point %d as a child of %d", childID, parentID), nil
}

// InvalidateBulletPoint marks a bullet point invalid
func (l *Local) InvalidateBulletPoint(ctx context.Context, bpID int64) (string, error) {
	if _, err := l.Reports.InvalidateBulletPoint(ctx, bpID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Bullet point %d invalidated", bpID), nil
}

// RegenerateSummaries rebuilds derived bullet points for a CCIR keyword
func (l *Local) RegenerateSummaries(ctx context.Context, keyword string) (domain.RegenerateResult, error) {
	return l.Summaries.Regenerate(ctx, keyword)
}

// CreateTeam adds a team
func (l *Local) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	return l.Reports.CreateTeam(ctx, team)
}

// TeamSubtree returns a team with its subordinates nested
func (l *Local) TeamSubtree(ctx context.Context, teamID int64) (domain.TeamNode, error) {
	node, err := l.Reports.TeamSubtree(ctx, teamID)
	if err != nil {
		return domain.TeamNode{}, err
	}
	return *node, nil
}

// CreateCCIR stores a CCIR
func (l *Local) CreateCCIR(ctx context.Context, ccir domain.CCIR) (domain.CCIR, error) {
	return l.Reports.CreateCCIR(ctx, ccir)
}

// ExportSeed collects teams, CCIRs and raw data
func (l *Local) ExportSeed(ctx context.Context) (*domain.SeedFragment, error) {
	return l.Reports.ExportSeed(ctx)
}

// ImportSeed loads a seed fragment
func (l *Local) ImportSeed(ctx context.Context, seed *domain.SeedFragment) (string, error) {
	if err := l.Reports.ImportSeed(ctx, seed); err != nil {
		return "", err
	}
	return fmt.Sprintf("Imported %d teams, %d CCIRs and %d raw data", len(seed.Teams), len(seed.CCIRs), len(seed.RawData)), nil
}
