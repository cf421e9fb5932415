package hierarchy

import (
	"echelon/internal/domain"
)

// Index groups entities by parent key. Input order is preserved within each
// group. Entities with no parent, or whose parent is not part of the input,
// are roots.
type Index[K comparable, T any] struct {
	roots    []T
	children map[K][]T
	nodes    map[K]T
	order    []K
	key      func(T) K
}

// IndexByParent builds an Index over nodes. parent returns the parent key and
// false when the entity has none. No entity is dropped.
func IndexByParent[K comparable, T any](nodes []T, key func(T) K, parent func(T) (K, bool)) *Index[K, T] {
	ix := &Index[K, T]{
		roots:    make([]T, 0),
		children: make(map[K][]T),
		nodes:    make(map[K]T, len(nodes)),
		order:    make([]K, 0, len(nodes)),
		key:      key,
	}

	for _, n := range nodes {
		k := key(n)
		if _, dup := ix.nodes[k]; !dup {
			ix.order = append(ix.order, k)
		}
		ix.nodes[k] = n
	}

	for _, n := range nodes {
		pk, ok := parent(n)
		if !ok {
			ix.roots = append(ix.roots, n)
			continue
		}
		if _, exists := ix.nodes[pk]; !exists {
			ix.roots = append(ix.roots, n)
			continue
		}
		ix.children[pk] = append(ix.children[pk], n)
	}

	return ix
}

// Roots returns the entities in the synthetic no-parent bucket
func (ix *Index[K, T]) Roots() []T {
	return ix.roots
}

// Children returns the direct children of k, in input order
func (ix *Index[K, T]) Children(k K) []T {
	return ix.children[k]
}

// Get returns the entity with key k
func (ix *Index[K, T]) Get(k K) (T, bool) {
	n, ok := ix.nodes[k]
	return n, ok
}

// Len returns the number of distinct keys indexed
func (ix *Index[K, T]) Len() int {
	return len(ix.order)
}

// Descendants returns k followed by every entity below it, depth-first
// pre-order. Each key is emitted once even if the parent relation is not a
// proper tree. Unknown k yields nil.
func (ix *Index[K, T]) Descendants(k K) []K {
	if _, ok := ix.nodes[k]; !ok {
		return nil
	}

	out := make([]K, 0)
	visited := make(map[K]struct{})
	stack := []K{k}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		out = append(out, cur)

		kids := ix.children[cur]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, ix.key(kids[i]))
		}
	}
	return out
}

// TeamIndex is the team command tree
type TeamIndex struct {
	*Index[int64, domain.Team]
}

// NewTeamIndex indexes teams by parent_team_id
func NewTeamIndex(teams []domain.Team) *TeamIndex {
	return &TeamIndex{
		Index: IndexByParent(teams,
			func(t domain.Team) int64 { return t.ID },
			func(t domain.Team) (int64, bool) { return t.Parent() },
		),
	}
}

// Subordinates returns the teams directly under teamID
func (ti *TeamIndex) Subordinates(teamID int64) []domain.Team {
	return ti.Children(teamID)
}

// BottomUp orders every team so that each comes after all of its
// subordinates. Siblings keep input order. Fails with CycleDetected if the
// parent relation loops.
func (ti *TeamIndex) BottomUp() ([]domain.Team, error) {
	const (
		unvisited = iota
		onPath
		done
	)

	state := make(map[int64]int, ti.Len())
	out := make([]domain.Team, 0, ti.Len())

	type frame struct {
		id   int64
		next int
	}

	for _, start := range ti.order {
		if state[start] != unvisited {
			continue
		}
		path := []frame{{id: start}}
		state[start] = onPath

		for len(path) > 0 {
			top := &path[len(path)-1]
			kids := ti.children[top.id]
			if top.next < len(kids) {
				child := kids[top.next].ID
				top.next++
				switch state[child] {
				case unvisited:
					state[child] = onPath
					path = append(path, frame{id: child})
				case onPath:
					cycle := make([]int64, 0, len(path)+1)
					for _, f := range path {
						cycle = append(cycle, f.id)
					}
					return nil, domain.CycleDetected(append(cycle, child))
				}
				continue
			}
			state[top.id] = done
			team, _ := ti.Get(top.id)
			out = append(out, team)
			path = path[:len(path)-1]
		}
	}

	return out, nil
}

// Subtree returns teamID with its subordinates nested
func (ti *TeamIndex) Subtree(teamID int64) (*domain.TeamNode, error) {
	team, ok := ti.Get(teamID)
	if !ok {
		return nil, domain.NotFound("team %d", teamID)
	}
	visited := map[int64]struct{}{}
	node := ti.buildSubtree(team, visited)
	return &node, nil
}

func (ti *TeamIndex) buildSubtree(team domain.Team, visited map[int64]struct{}) domain.TeamNode {
	visited[team.ID] = struct{}{}
	node := domain.TeamNode{Team: team, Children: make([]domain.TeamNode, 0)}
	for _, child := range ti.Children(team.ID) {
		if _, seen := visited[child.ID]; seen {
			continue
		}
		node.Children = append(node.Children, ti.buildSubtree(child, visited))
	}
	return node
}
