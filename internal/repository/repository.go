package repository

import (
	"context"

	"echelon/internal/domain"
)

// Store defines the persistence operations of the data service. Lookups of
// unknown ids fail with a domain NotFound error.
type Store interface {
	// Teams
	CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error)
	GetTeam(ctx context.Context, id int64) (domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)

	// Raw data
	CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawData, error)
	ListRawData(ctx context.Context) ([]domain.RawData, error)
	ListTeamRawData(ctx context.Context, teamID int64) ([]domain.RawData, error)

	// CCIRs
	CreateCCIR(ctx context.Context, ccir domain.CCIR) (domain.CCIR, error)
	ListTeamCCIRs(ctx context.Context, teamID int64) ([]domain.CCIR, error)

	// Bullet points
	CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (domain.BulletPoint, error)
	GetBulletPointDetails(ctx context.Context, id int64) (domain.BulletPointDetails, error)
	ListBulletPoints(ctx context.Context) ([]domain.BulletPoint, error)
	ListLinks(ctx context.Context) ([]domain.Link, error)
	LinkBulletPoints(ctx context.Context, link domain.Link) error
	ListParents(ctx context.Context, bpID int64) ([]int64, error)
	SetValidity(ctx context.Context, ids []int64, status domain.ValidityStatus) error

	// Regeneration
	ReplaceSummaries(ctx context.Context, plan domain.SummaryPlan) ([]int64, error)

	// Seed import
	ImportSeed(ctx context.Context, seed *domain.SeedFragment) error

	// Close releases resources
	Close() error
}
