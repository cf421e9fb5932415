package provenance

import (
	"context"
	"fmt"

	"echelon/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DetailsSource resolves one bullet point by id. Unknown ids fail with a
// NotFound error.
type DetailsSource interface {
	GetBulletPointDetails(ctx context.Context, bpID int64) (domain.BulletPointDetails, error)
}

// Reconstructor builds provenance trees from a DetailsSource
type Reconstructor struct {
	source      DetailsSource
	parallelism int
	maxNodes    int
	logger      *zap.Logger
}

// Option configures a Reconstructor
type Option func(*Reconstructor)

// WithParallelism fetches up to n bullet points of the same frontier level
// concurrently. n <= 1 fetches sequentially.
func WithParallelism(n int) Option {
	return func(r *Reconstructor) {
		r.parallelism = n
	}
}

// WithMaxNodes bounds the size of the expanded tree. Zero means unbounded.
func WithMaxNodes(n int) Option {
	return func(r *Reconstructor) {
		r.maxNodes = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconstructor) {
		r.logger = logger
	}
}

// New creates a Reconstructor over source
func New(source DetailsSource, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		source:      source,
		parallelism: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build reconstructs the provenance tree rooted at bpID. Any fetch failure
// fails the whole build; a bullet point that is its own transitive child
// fails with CycleDetected.
func (r *Reconstructor) Build(ctx context.Context, bpID int64) (*domain.ProvenanceNode, error) {
	arena, err := r.fetchAll(ctx, bpID)
	if err != nil {
		return nil, err
	}

	if err := checkCycles(arena, bpID); err != nil {
		return nil, err
	}

	root, size, err := r.expand(arena, bpID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("provenance built",
		zap.Int64("bp_id", bpID),
		zap.Int("fetched", len(arena)),
		zap.Int("nodes", size),
	)
	return root, nil
}

// fetchAll walks the id graph breadth-first from rootID, fetching each id
// once
func (r *Reconstructor) fetchAll(ctx context.Context, rootID int64) (map[int64]domain.BulletPointDetails, error) {
	arena := make(map[int64]domain.BulletPointDetails)
	visited := map[int64]struct{}{rootID: {}}
	frontier := []int64{rootID}

	for len(frontier) > 0 {
		fetched, err := r.fetchLevel(ctx, frontier)
		if err != nil {
			return nil, err
		}

		next := make([]int64, 0)
		for i, id := range frontier {
			d := fetched[i]
			arena[id] = d
			for _, child := range d.ChildBulletPoints {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				next = append(next, child)
			}
		}

		if r.maxNodes > 0 && len(arena)+len(next) > r.maxNodes {
			return nil, domain.InvalidInput(fmt.Sprintf(
				"provenance of bullet point %d exceeds %d nodes", rootID, r.maxNodes))
		}
		frontier = next
	}

	return arena, nil
}

func (r *Reconstructor) fetchLevel(ctx context.Context, ids []int64) ([]domain.BulletPointDetails, error) {
	out := make([]domain.BulletPointDetails, len(ids))

	if r.parallelism <= 1 || len(ids) == 1 {
		for i, id := range ids {
			d, err := r.fetch(ctx, id)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			d, err := r.fetch(gctx, id)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reconstructor) fetch(ctx context.Context, id int64) (domain.BulletPointDetails, error) {
	if err := ctx.Err(); err != nil {
		return domain.BulletPointDetails{}, err
	}
	d, err := r.source.GetBulletPointDetails(ctx, id)
	if err != nil {
		if domain.KindOf(err) == "" && ctx.Err() == nil {
			err = domain.RequestFailed(fmt.Sprintf("get bullet point %d", id), err)
		}
		return domain.BulletPointDetails{}, fmt.Errorf("provenance of %d: %w", id, err)
	}
	return d, nil
}

// checkCycles runs an iterative DFS over the arena. Reaching an id that is
// already on the current path is a cycle; reaching one that is merely
// finished is a shared child.
func checkCycles(arena map[int64]domain.BulletPointDetails, rootID int64) error {
	type frame struct {
		id   int64
		next int
	}

	onPath := map[int64]int{rootID: 0}
	done := make(map[int64]struct{})
	path := []frame{{id: rootID}}

	for len(path) > 0 {
		top := &path[len(path)-1]
		kids := arena[top.id].ChildBulletPoints
		if top.next >= len(kids) {
			delete(onPath, top.id)
			done[top.id] = struct{}{}
			path = path[:len(path)-1]
			continue
		}

		child := kids[top.next]
		top.next++

		if pos, looping := onPath[child]; looping {
			cycle := make([]int64, 0, len(path)-pos+1)
			for _, f := range path[pos:] {
				cycle = append(cycle, f.id)
			}
			return domain.CycleDetected(append(cycle, child))
		}
		if _, finished := done[child]; finished {
			continue
		}
		onPath[child] = len(path)
		path = append(path, frame{id: child})
	}
	return nil
}

// expand turns the acyclic arena into a tree, duplicating shared children at
// every occurrence
func (r *Reconstructor) expand(arena map[int64]domain.BulletPointDetails, rootID int64) (*domain.ProvenanceNode, int, error) {
	size := 0
	var build func(id int64) (*domain.ProvenanceNode, error)
	build = func(id int64) (*domain.ProvenanceNode, error) {
		size++
		if r.maxNodes > 0 && size > r.maxNodes {
			return nil, domain.InvalidInput(fmt.Sprintf(
				"provenance of bullet point %d exceeds %d nodes", rootID, r.maxNodes))
		}

		d := arena[id]
		d.ChildBulletPoints = append(make([]int64, 0, len(d.ChildBulletPoints)), d.ChildBulletPoints...)
		d.ChildRawData = append(make([]int64, 0, len(d.ChildRawData)), d.ChildRawData...)

		node := &domain.ProvenanceNode{
			Details:  d,
			Children: make([]*domain.ProvenanceNode, 0, len(d.ChildBulletPoints)),
			RawData:  append(make([]int64, 0, len(d.ChildRawData)), d.ChildRawData...),
		}
		for _, child := range d.ChildBulletPoints {
			c, err := build(child)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, c)
		}
		return node, nil
	}

	root, err := build(rootID)
	if err != nil {
		return nil, 0, err
	}
	return root, size, nil
}
