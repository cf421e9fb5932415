package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"echelon/internal/domain"
	"echelon/internal/hierarchy"
	"echelon/internal/repository"

	"go.uber.org/zap"
)

// Recorder receives service-level measurements
type Recorder interface {
	RegenerationCompleted(created int, took time.Duration)
	BulletPointsInvalidated(n int)
}

type nopRecorder struct{}

func (nopRecorder) RegenerationCompleted(int, time.Duration) {}
func (nopRecorder) BulletPointsInvalidated(int)              {}

// ReportService provides business logic for teams, observations and
// bullet points
type ReportService struct {
	repo          repository.Store
	eventBus      *EventBus
	logger        *zap.Logger
	recorder      Recorder
	cascade       bool
	defaultSource string
}

// ReportOption configures a ReportService
type ReportOption func(*ReportService)

// WithCascadeInvalidation controls whether invalidating a bullet point also
// invalidates every bullet point derived from it
func WithCascadeInvalidation(on bool) ReportOption {
	return func(s *ReportService) {
		s.cascade = on
	}
}

// WithDefaultSourceType sets the source type of raw data filed without one
func WithDefaultSourceType(sourceType string) ReportOption {
	return func(s *ReportService) {
		if sourceType != "" {
			s.defaultSource = sourceType
		}
	}
}

// WithReportLogger sets the logger
func WithReportLogger(logger *zap.Logger) ReportOption {
	return func(s *ReportService) {
		s.logger = logger
	}
}

// WithReportRecorder sets the metrics recorder
func WithReportRecorder(r Recorder) ReportOption {
	return func(s *ReportService) {
		s.recorder = r
	}
}

// NewReportService creates a new report service. Invalidation cascades by
// default.
func NewReportService(repo repository.Store, eventBus *EventBus, opts ...ReportOption) *ReportService {
	s := &ReportService{
		repo:          repo,
		eventBus:      eventBus,
		logger:        zap.NewNop(),
		recorder:      nopRecorder{},
		cascade:       true,
		defaultSource: domain.DefaultSourceType,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Teams
// ============================================================================

// ListTeams returns every team
func (s *ReportService) ListTeams(ctx context.Context) ([]domain.Team, error) {
	return s.repo.ListTeams(ctx)
}

// CreateTeam adds a team to the command tree
func (s *ReportService) CreateTeam(ctx context.Context, team domain.Team) (domain.Team, error) {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return domain.Team{}, domain.InvalidInput("team name is required")
	}

	created, err := s.repo.CreateTeam(ctx, team)
	if err != nil {
		return domain.Team{}, fmt.Errorf("create team: %w", err)
	}

	s.eventBus.Publish(domain.Event{Type: domain.EventTeamCreated, TeamID: created.ID})
	return created, nil
}

// TeamSubtree returns a team with its subordinates nested
func (s *ReportService) TeamSubtree(ctx context.Context, teamID int64) (*domain.TeamNode, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.NewTeamIndex(teams).Subtree(teamID)
}

// scopeTeams returns teamID alone or with every team below it. The team
// must exist.
func (s *ReportService) scopeTeams(ctx context.Context, teamID int64, includeSubteams bool) (map[int64]struct{}, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	idx := hierarchy.NewTeamIndex(teams)
	if _, ok := idx.Get(teamID); !ok {
		return nil, domain.NotFound("team %d", teamID)
	}

	ids := []int64{teamID}
	if includeSubteams {
		ids = idx.Descendants(teamID)
	}
	scope := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		scope[id] = struct{}{}
	}
	return scope, nil
}

// ============================================================================
// Raw Data and CCIRs
// ============================================================================

// CreateRawData files an observation
func (s *ReportService) CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawData, error) {
	if strings.TrimSpace(in.Content) == "" {
		return domain.RawData{}, domain.InvalidInput("content is required")
	}
	if in.SourceType == "" {
		in.SourceType = s.defaultSource
	}

	raw, err := s.repo.CreateRawData(ctx, in)
	if err != nil {
		return domain.RawData{}, fmt.Errorf("create raw data: %w", err)
	}

	s.eventBus.Publish(domain.Event{Type: domain.EventRawDataCreated, TeamID: raw.TeamID, RawDataID: raw.ID})
	return raw, nil
}

// ListTeamRawData returns the observations of one team
func (s *ReportService) ListTeamRawData(ctx context.Context, teamID int64) ([]domain.RawData, error) {
	return s.repo.ListTeamRawData(ctx, teamID)
}

// CreateCCIR stores a CCIR. Blank keywords are dropped.
func (s *ReportService) CreateCCIR(ctx context.Context, ccir domain.CCIR) (domain.CCIR, error) {
	if strings.TrimSpace(ccir.Description) == "" {
		return domain.CCIR{}, domain.InvalidInput("description is required")
	}
	keywords := make([]string, 0, len(ccir.Keywords))
	for _, kw := range ccir.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	ccir.Keywords = keywords

	created, err := s.repo.CreateCCIR(ctx, ccir)
	if err != nil {
		return domain.CCIR{}, fmt.Errorf("create ccir: %w", err)
	}

	s.eventBus.Publish(domain.Event{Type: domain.EventCCIRCreated, TeamID: created.TeamID})
	return created, nil
}

// ListTeamCCIRs returns the CCIRs of one team
func (s *ReportService) ListTeamCCIRs(ctx context.Context, teamID int64) ([]domain.CCIR, error) {
	return s.repo.ListTeamCCIRs(ctx, teamID)
}

// ============================================================================
// Bullet Points
// ============================================================================

// CreateBulletPoint files a bullet point with its sources
func (s *ReportService) CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (domain.BulletPoint, error) {
	if strings.TrimSpace(in.Content) == "" {
		return domain.BulletPoint{}, domain.InvalidInput("content is required")
	}

	bp, err := s.repo.CreateBulletPoint(ctx, in)
	if err != nil {
		return domain.BulletPoint{}, fmt.Errorf("create bullet point: %w", err)
	}

	s.eventBus.Publish(domain.Event{Type: domain.EventBulletPointCreated, TeamID: bp.TeamID, BulletPointID: bp.ID})
	return bp, nil
}

// GetBulletPointDetails returns one bullet point with its child ids
func (s *ReportService) GetBulletPointDetails(ctx context.Context, bpID int64) (domain.BulletPointDetails, error) {
	return s.repo.GetBulletPointDetails(ctx, bpID)
}

// LinkBulletPoints records that child is a source of parent. A link that
// would make parent its own transitive source fails with CycleDetected.
func (s *ReportService) LinkBulletPoints(ctx context.Context, link domain.Link) error {
	if err := link.Validate(); err != nil {
		return err
	}

	links, err := s.repo.ListLinks(ctx)
	if err != nil {
		return err
	}
	if path := sourcePath(links, link.ChildID, link.ParentID); path != nil {
		return domain.CycleDetected(append([]int64{link.ParentID}, path...))
	}

	if err := s.repo.LinkBulletPoints(ctx, link); err != nil {
		return fmt.Errorf("link bullet points: %w", err)
	}

	s.eventBus.Publish(domain.Event{
		Type:          domain.EventBulletPointsLinked,
		BulletPointID: link.ParentID,
		ChildID:       link.ChildID,
	})
	return nil
}

// sourcePath returns the parent-to-child path from 'from' down to 'to', or
// nil if 'to' is not reachable
func sourcePath(links []domain.Link, from, to int64) []int64 {
	children := make(map[int64][]int64)
	for _, l := range links {
		children[l.ParentID] = append(children[l.ParentID], l.ChildID)
	}

	prev := map[int64]int64{from: from}
	queue := []int64{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			path := []int64{cur}
			for cur != from {
				cur = prev[cur]
				path = append([]int64{cur}, path...)
			}
			return path
		}
		for _, c := range children[cur] {
			if _, seen := prev[c]; seen {
				continue
			}
			prev[c] = cur
			queue = append(queue, c)
		}
	}
	return nil
}

// InvalidateBulletPoint marks a bullet point invalid. With cascading on,
// every bullet point derived from it is marked too; siblings never are. It
// returns the ids marked, the requested one first.
func (s *ReportService) InvalidateBulletPoint(ctx context.Context, bpID int64) ([]int64, error) {
	if _, err := s.repo.GetBulletPointDetails(ctx, bpID); err != nil {
		return nil, err
	}

	affected := []int64{bpID}
	if s.cascade {
		visited := map[int64]struct{}{bpID: {}}
		queue := []int64{bpID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			parents, err := s.repo.ListParents(ctx, cur)
			if err != nil {
				return nil, err
			}
			for _, p := range parents {
				if _, seen := visited[p]; seen {
					continue
				}
				visited[p] = struct{}{}
				affected = append(affected, p)
				queue = append(queue, p)
			}
		}
	}

	if err := s.repo.SetValidity(ctx, affected, domain.ValidityInvalid); err != nil {
		return nil, fmt.Errorf("invalidate bullet point %d: %w", bpID, err)
	}

	s.logger.Info("bullet point invalidated", zap.Int64("bp_id", bpID), zap.Int("affected", len(affected)))
	s.recorder.BulletPointsInvalidated(len(affected))
	s.eventBus.Publish(domain.Event{
		Type:          domain.EventBulletPointInvalidated,
		BulletPointID: bpID,
		Affected:      affected[1:],
	})
	return affected, nil
}

// ============================================================================
// Hierarchy Views
// ============================================================================

// Hierarchy returns every bullet point nested under its parents
func (s *ReportService) Hierarchy(ctx context.Context) ([]domain.BulletPoint, error) {
	bullets, err := s.repo.ListBulletPoints(ctx)
	if err != nil {
		return nil, err
	}
	links, err := s.repo.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.Assemble(bullets, links), nil
}

// TeamHierarchy returns the nested hierarchy restricted to one team, or to
// the team and its subordinates. Links leaving the scope are dropped.
func (s *ReportService) TeamHierarchy(ctx context.Context, teamID int64, includeSubteams bool) ([]domain.BulletPoint, error) {
	bullets, err := s.TeamBulletPoints(ctx, teamID, includeSubteams)
	if err != nil {
		return nil, err
	}
	links, err := s.repo.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.Assemble(bullets, links), nil
}

// TeamBulletPoints returns the flat bullet list of one team, or of the team
// and its subordinates, ordered by id
func (s *ReportService) TeamBulletPoints(ctx context.Context, teamID int64, includeSubteams bool) ([]domain.BulletPoint, error) {
	scope, err := s.scopeTeams(ctx, teamID, includeSubteams)
	if err != nil {
		return nil, err
	}

	all, err := s.repo.ListBulletPoints(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.BulletPoint, 0)
	for _, bp := range all {
		if _, ok := scope[bp.TeamID]; ok {
			out = append(out, bp)
		}
	}
	return out, nil
}

// ============================================================================
// Seed
// ============================================================================

// ImportSeed upserts a seed fragment of teams, CCIRs and raw data
func (s *ReportService) ImportSeed(ctx context.Context, seed *domain.SeedFragment) error {
	if seed == nil {
		return domain.InvalidInput("seed is required")
	}
	if err := s.repo.ImportSeed(ctx, seed); err != nil {
		return fmt.Errorf("import seed: %w", err)
	}

	s.logger.Info("seed imported",
		zap.Int("teams", len(seed.Teams)),
		zap.Int("ccirs", len(seed.CCIRs)),
		zap.Int("raw_data", len(seed.RawData)),
	)
	s.eventBus.Publish(domain.Event{Type: domain.EventSeedReloaded})
	return nil
}

// ExportSeed collects every team, CCIR and raw observation into a fragment
// that ImportSeed accepts
func (s *ReportService) ExportSeed(ctx context.Context) (*domain.SeedFragment, error) {
	teams, err := s.repo.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	raw, err := s.repo.ListRawData(ctx)
	if err != nil {
		return nil, fmt.Errorf("list raw data: %w", err)
	}

	seed := domain.NewSeedFragment()
	for _, team := range teams {
		seed.AddTeam(team)
		ccirs, err := s.repo.ListTeamCCIRs(ctx, team.ID)
		if err != nil {
			return nil, fmt.Errorf("list ccirs of team %d: %w", team.ID, err)
		}
		for _, c := range ccirs {
			seed.AddCCIR(c)
		}
	}
	for _, r := range raw {
		seed.AddRawData(r)
	}
	return seed, nil
}
