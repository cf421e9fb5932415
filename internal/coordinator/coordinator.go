package coordinator

import (
	"context"
	"fmt"
	"sync"

	"echelon/internal/domain"
	"echelon/internal/provenance"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Coordinator serializes the data service's snapshots into cached views and
// keeps them consistent across mutations
type Coordinator struct {
	svc     DataService
	cache   *Cache
	builder *provenance.Reconstructor
	logger  *zap.Logger

	provOpts []provenance.Option

	mu        sync.Mutex
	teamViews map[TeamViewKey]*teamViewState
	provViews map[int64]*ProvenanceView
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithProvenanceOptions passes options to the provenance reconstructor
func WithProvenanceOptions(opts ...provenance.Option) Option {
	return func(c *Coordinator) {
		c.provOpts = append(c.provOpts, opts...)
	}
}

// New creates a Coordinator over svc with an empty cache
func New(svc DataService, opts ...Option) *Coordinator {
	c := &Coordinator{
		svc:       svc,
		cache:     NewCache(),
		logger:    zap.NewNop(),
		teamViews: make(map[TeamViewKey]*teamViewState),
		provViews: make(map[int64]*ProvenanceView),
	}
	for _, opt := range opts {
		opt(c)
	}
	provOpts := append([]provenance.Option{provenance.WithLogger(c.logger)}, c.provOpts...)
	c.builder = provenance.New(svc, provOpts...)
	return c
}

// Cache returns the snapshot cache
func (c *Coordinator) Cache() *Cache {
	return c.cache
}

// Snapshot returns the cached snapshot, fetching it on a miss
func (c *Coordinator) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.cache.Load(); snap != nil {
		return snap, nil
	}
	snap, _, err := c.fetch(ctx, c.cache.Generation())
	return snap, err
}

// Hierarchy returns the cached bullet-point forest
func (c *Coordinator) Hierarchy(ctx context.Context) ([]domain.BulletPoint, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Forest, nil
}

// Teams returns the cached team list
func (c *Coordinator) Teams(ctx context.Context) ([]domain.Team, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Teams, nil
}

// TeamHierarchy asks the data service for a server-scoped hierarchy. The
// result is not cached.
func (c *Coordinator) TeamHierarchy(ctx context.Context, teamID int64, includeSubteams bool) ([]domain.BulletPoint, error) {
	if teamID <= 0 {
		return nil, domain.InvalidInput("team id is required")
	}
	return c.svc.GetTeamHierarchy(ctx, teamID, includeSubteams)
}

// Refresh discards the snapshot and re-fetches it. Team views are
// recomputed and every provenance view is marked stale.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.refresh(ctx, nil)
}

// fetch loads a new snapshot under generation gen. installed is false when
// a newer discard overtook the fetch.
func (c *Coordinator) fetch(ctx context.Context, gen uint64) (*Snapshot, bool, error) {
	var (
		forest []domain.BulletPoint
		teams  []domain.Team
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		forest, err = c.svc.GetHierarchy(gctx)
		if err != nil {
			return fmt.Errorf("get hierarchy: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		teams, err = c.svc.ListTeams(gctx)
		if err != nil {
			return fmt.Errorf("list teams: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	snap, installed := c.cache.Replace(gen, forest, teams)
	if !installed {
		c.logger.Debug("discarding superseded snapshot", zap.Uint64("generation", gen))
	}
	return snap, installed, nil
}

// refresh runs the post-mutation sequence: discard, re-fetch, recompute team
// views, mark provenance views stale. With affected nil every provenance
// view is marked; otherwise only those referencing an affected id.
func (c *Coordinator) refresh(ctx context.Context, affected []int64) error {
	gen := c.cache.Discard()

	snap, installed, err := c.fetch(ctx, gen)
	if err != nil {
		c.logger.Warn("hierarchy refresh failed", zap.Uint64("generation", gen), zap.Error(err))
		c.markAllStale()
		return err
	}

	if installed {
		c.recomputeTeamViews(snap)
	}
	marked := c.markProvenanceStale(affected)

	c.logger.Debug("hierarchy refreshed",
		zap.Uint64("generation", gen),
		zap.Int("roots", len(snap.Forest)),
		zap.Int("stale_provenance_views", marked),
	)
	return nil
}

func (c *Coordinator) recomputeTeamViews(snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, state := range c.teamViews {
		if state.view.Generation > snap.Generation {
			continue
		}
		state.view = scopeTeamView(snap, key)
	}
}

func (c *Coordinator) markAllStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, state := range c.teamViews {
		state.view.Stale = true
	}
	for _, v := range c.provViews {
		v.markStale()
	}
}

func (c *Coordinator) markProvenanceStale(affected []int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	marked := 0
	for _, v := range c.provViews {
		if affected == nil {
			v.markStale()
			marked++
			continue
		}
		if v.markStaleIfReferences(affected...) {
			marked++
		}
	}
	return marked
}

// OpenTeamView registers a team view and returns it computed against the
// current snapshot. Opening the same view twice shares it.
func (c *Coordinator) OpenTeamView(ctx context.Context, teamID int64, includeSubordinates bool) (TeamView, error) {
	if teamID <= 0 {
		return TeamView{}, domain.InvalidInput("team id is required")
	}
	key := TeamViewKey{TeamID: teamID, IncludeSubordinates: includeSubordinates}

	c.mu.Lock()
	if state, ok := c.teamViews[key]; ok {
		state.refs++
		c.mu.Unlock()
		return c.TeamView(ctx, teamID, includeSubordinates)
	}
	c.mu.Unlock()

	snap, err := c.Snapshot(ctx)
	if err != nil {
		return TeamView{}, err
	}
	view := scopeTeamView(snap, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.teamViews[key]; ok {
		state.refs++
		return state.view, nil
	}
	c.teamViews[key] = &teamViewState{view: view, refs: 1}
	return view, nil
}

// TeamView returns an open team view, recomputing it if it went stale
func (c *Coordinator) TeamView(ctx context.Context, teamID int64, includeSubordinates bool) (TeamView, error) {
	key := TeamViewKey{TeamID: teamID, IncludeSubordinates: includeSubordinates}

	c.mu.Lock()
	state, ok := c.teamViews[key]
	if !ok {
		c.mu.Unlock()
		return TeamView{}, domain.NotFound("team view %d (subordinates %t) is not open", teamID, includeSubordinates)
	}
	view := state.view
	c.mu.Unlock()

	if !view.Stale {
		return view, nil
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		return view, err
	}
	fresh := scopeTeamView(snap, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.teamViews[key]; ok && state.view.Generation <= fresh.Generation {
		state.view = fresh
	}
	return fresh, nil
}

// CloseTeamView releases one reference to a team view
func (c *Coordinator) CloseTeamView(teamID int64, includeSubordinates bool) {
	key := TeamViewKey{TeamID: teamID, IncludeSubordinates: includeSubordinates}

	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.teamViews[key]; ok {
		state.refs--
		if state.refs <= 0 {
			delete(c.teamViews, key)
		}
	}
}

// OpenProvenance registers a provenance view of bpID. Nothing is fetched
// until Get.
func (c *Coordinator) OpenProvenance(bpID int64) *ProvenanceView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.provViews[bpID]
	if !ok {
		v = newProvenanceView(bpID, c.builder)
		c.provViews[bpID] = v
	}
	v.refs++
	return v
}

// CloseProvenance releases one reference to the provenance view of bpID
func (c *Coordinator) CloseProvenance(bpID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.provViews[bpID]; ok {
		v.refs--
		if v.refs <= 0 {
			delete(c.provViews, bpID)
		}
	}
}

// Provenance builds the provenance tree of bpID without registering a view
func (c *Coordinator) Provenance(ctx context.Context, bpID int64) (*domain.ProvenanceNode, error) {
	return c.builder.Build(ctx, bpID)
}

// Regenerate asks the data service to re-summarize, filtered by keyword.
// Only on success is the snapshot refreshed and every provenance view
// marked stale.
func (c *Coordinator) Regenerate(ctx context.Context, keyword string) (domain.RegenerateResult, error) {
	res, err := c.svc.RegenerateSummaries(ctx, keyword)
	if err != nil {
		return res, fmt.Errorf("regenerate summaries: %w", err)
	}
	c.logger.Info("summaries regenerated", zap.String("ccir", keyword), zap.Int("created", res.Created))

	if err := c.refresh(ctx, nil); err != nil {
		return res, err
	}
	return res, nil
}

// Invalidate marks bpID invalid at the data service. On success the
// snapshot is refreshed and only provenance views containing bpID are
// marked stale.
func (c *Coordinator) Invalidate(ctx context.Context, bpID int64) (string, error) {
	msg, err := c.svc.InvalidateBulletPoint(ctx, bpID)
	if err != nil {
		return "", fmt.Errorf("invalidate bullet point %d: %w", bpID, err)
	}
	c.logger.Info("bullet point invalidated", zap.Int64("bp_id", bpID))

	if err := c.refresh(ctx, []int64{bpID}); err != nil {
		return msg, err
	}
	return msg, nil
}

// Link adds a provenance edge. Views containing the parent are marked
// stale.
func (c *Coordinator) Link(ctx context.Context, parentID, childID int64) (string, error) {
	link := domain.Link{ParentID: parentID, ChildID: childID}
	if err := link.Validate(); err != nil {
		return "", err
	}
	msg, err := c.svc.LinkBulletPoints(ctx, parentID, childID)
	if err != nil {
		return "", fmt.Errorf("link %d -> %d: %w", parentID, childID, err)
	}

	if err := c.refresh(ctx, []int64{parentID}); err != nil {
		return msg, err
	}
	return msg, nil
}

// CreateBulletPoint files a new bullet point and refreshes the snapshot.
// No existing provenance tree can contain the new id.
func (c *Coordinator) CreateBulletPoint(ctx context.Context, in domain.NewBulletPoint) (int64, error) {
	if in.TeamID <= 0 {
		return 0, domain.InvalidInput("team id is required")
	}
	id, err := c.svc.CreateBulletPoint(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("create bullet point: %w", err)
	}

	if err := c.refresh(ctx, []int64{}); err != nil {
		return id, err
	}
	return id, nil
}

// CreateRawData files an observation. Bullet-point caches are unaffected.
func (c *Coordinator) CreateRawData(ctx context.Context, in domain.NewRawData) (domain.RawDataCreated, error) {
	if in.TeamID <= 0 {
		return domain.RawDataCreated{}, domain.InvalidInput("team id is required")
	}
	created, err := c.svc.CreateRawData(ctx, in)
	if err != nil {
		return created, fmt.Errorf("create raw data: %w", err)
	}
	return created, nil
}
