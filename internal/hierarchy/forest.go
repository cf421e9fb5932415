package hierarchy

import (
	"sort"

	"echelon/internal/domain"
)

// Assemble nests a flat set of bullet points into the hierarchy forest.
// Only links whose parent and child are both in bullets are used. Roots are
// the bullets that are nobody's child, ascending by id; a child appears
// under every parent that links it. Links that would close a cycle on the
// current path are skipped, so bullets that only sit on cycles do not
// appear at all.
func Assemble(bullets []domain.BulletPoint, links []domain.Link) []domain.BulletPoint {
	byID := make(map[int64]domain.BulletPoint, len(bullets))
	for _, bp := range bullets {
		bp.Children = nil
		byID[bp.ID] = bp
	}

	childIDs := make(map[int64][]int64)
	isChild := make(map[int64]struct{})
	for _, l := range links {
		if _, ok := byID[l.ParentID]; !ok {
			continue
		}
		if _, ok := byID[l.ChildID]; !ok {
			continue
		}
		childIDs[l.ParentID] = append(childIDs[l.ParentID], l.ChildID)
		isChild[l.ChildID] = struct{}{}
	}

	roots := make([]int64, 0)
	for id := range byID {
		if _, ok := isChild[id]; !ok {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	onPath := make(map[int64]struct{})
	var build func(id int64) domain.BulletPoint
	build = func(id int64) domain.BulletPoint {
		onPath[id] = struct{}{}
		defer delete(onPath, id)

		node := byID[id]
		kids := childIDs[id]
		node.Children = make([]domain.BulletPoint, 0, len(kids))
		for _, cid := range kids {
			if _, looping := onPath[cid]; looping {
				continue
			}
			node.Children = append(node.Children, build(cid))
		}
		return node
	}

	forest := make([]domain.BulletPoint, 0, len(roots))
	for _, id := range roots {
		forest = append(forest, build(id))
	}
	return forest
}
