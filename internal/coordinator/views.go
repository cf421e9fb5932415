package coordinator

import (
	"context"
	"sync"

	"echelon/internal/domain"
	"echelon/internal/hierarchy"
	"echelon/internal/provenance"
)

// TeamViewKey identifies a team view. With IncludeSubordinates the view
// covers the team and every team below it in the command tree.
type TeamViewKey struct {
	TeamID              int64 `json:"team_id"`
	IncludeSubordinates bool  `json:"include_subordinates"`
}

// TeamView is the "my summary" or "subordinate summary" list of one team,
// in document order of the snapshot it was computed from
type TeamView struct {
	TeamViewKey
	Bullets    []domain.BulletPoint `json:"bullet_points"`
	Generation uint64               `json:"generation"`
	Stale      bool                 `json:"stale"`
}

type teamViewState struct {
	view TeamView
	refs int
}

// scopeTeamView computes the bullets of key against snap
func scopeTeamView(snap *Snapshot, key TeamViewKey) TeamView {
	var bullets []domain.BulletPoint
	if key.IncludeSubordinates {
		teams := snap.Index.Descendants(key.TeamID)
		if teams == nil {
			teams = []int64{key.TeamID}
		}
		bullets = hierarchy.CollectForTeams(snap.Forest, teams)
	} else {
		bullets = hierarchy.CollectForTeam(snap.Forest, key.TeamID)
	}
	return TeamView{
		TeamViewKey: key,
		Bullets:     bullets,
		Generation:  snap.Generation,
	}
}

// ProvenanceView is an open provenance display of one bullet point. Trees
// are built lazily on Get and kept until the view is marked stale.
type ProvenanceView struct {
	bpID    int64
	builder *provenance.Reconstructor

	mu sync.Mutex
	// issued is the sequence number of the newest build started, applied
	// that of the tree held. Builds numbered below staleBefore are stale.
	issued      uint64
	applied     uint64
	staleBefore uint64
	tree        *domain.ProvenanceNode
	refs        int
}

func newProvenanceView(bpID int64, builder *provenance.Reconstructor) *ProvenanceView {
	return &ProvenanceView{bpID: bpID, builder: builder}
}

// BulletPointID returns the root bullet point of the view
func (v *ProvenanceView) BulletPointID() int64 {
	return v.bpID
}

// Get returns the current tree, building it first if the view is stale. If
// a newer build is installed while this one runs, this result is discarded
// and the newer tree returned.
func (v *ProvenanceView) Get(ctx context.Context) (*domain.ProvenanceNode, error) {
	v.mu.Lock()
	if v.fresh() {
		tree := v.tree
		v.mu.Unlock()
		return tree, nil
	}
	v.issued++
	seq := v.issued
	v.mu.Unlock()

	tree, err := v.builder.Build(ctx, v.bpID)
	if err != nil {
		return nil, err
	}
	return v.install(seq, tree), nil
}

// Rebuild marks the view stale and builds it again
func (v *ProvenanceView) Rebuild(ctx context.Context) (*domain.ProvenanceNode, error) {
	v.markStale()
	return v.Get(ctx)
}

// Current returns the tree held by the view without building, and whether it
// is fresh
func (v *ProvenanceView) Current() (*domain.ProvenanceNode, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tree, v.fresh()
}

// Stale reports whether the next Get will rebuild
func (v *ProvenanceView) Stale() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.fresh()
}

// Sequence returns the sequence number of the tree held, zero if none
func (v *ProvenanceView) Sequence() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.applied
}

func (v *ProvenanceView) fresh() bool {
	return v.tree != nil && v.applied >= v.staleBefore
}

func (v *ProvenanceView) install(seq uint64, tree *domain.ProvenanceNode) *domain.ProvenanceNode {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq < v.issued || seq <= v.applied {
		if v.tree != nil && v.applied > seq {
			return v.tree
		}
		return tree
	}
	v.tree = tree
	v.applied = seq
	return tree
}

func (v *ProvenanceView) markStale() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.staleBefore = v.issued + 1
}

// markStaleIfReferences marks the view stale when its tree contains bpID.
// A view with a build in flight is marked too since that build may predate
// the mutation.
func (v *ProvenanceView) markStaleIfReferences(bpIDs ...int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	hit := v.tree == nil || v.issued > v.applied
	for _, id := range bpIDs {
		if hit {
			break
		}
		hit = v.tree.References(id)
	}
	if hit {
		v.staleBefore = v.issued + 1
	}
	return hit
}
