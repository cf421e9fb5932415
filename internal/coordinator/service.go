package coordinator

import (
	"context"

	"echelon/internal/domain"
	"echelon/internal/provenance"
)

// DataService is the remote store the coordinator reads snapshots from and
// forwards mutations to. Transport failures and non-success responses are
// reported as RequestFailed; unknown ids as NotFound.
type DataService interface {
	provenance.DetailsSource

	ListTeams(ctx context.Context) ([]domain.Team, error)
	GetHierarchy(ctx context.Context) ([]domain.BulletPoint, error)
	GetTeamHierarchy(ctx context.Context, teamID int64, includeSubteams bool) ([]domain.BulletPoint, error)

	CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawDataCreated, error)
	CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (int64, error)
	LinkBulletPoints(ctx context.Context, parentID, childID int64) (string, error)
	InvalidateBulletPoint(ctx context.Context, bpID int64) (string, error)
	RegenerateSummaries(ctx context.Context, keyword string) (domain.RegenerateResult, error)
}
