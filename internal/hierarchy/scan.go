package hierarchy

import (
	"echelon/internal/domain"
)

// CollectForTeam returns every bullet point in forest whose team_id equals
// teamID, in depth-first pre-order across the roots. Traversal continues
// below non-matching nodes, and a matching node's children are only
// collected if they match too. Collected nodes are returned as found,
// children intact.
func CollectForTeam(forest []domain.BulletPoint, teamID int64) []domain.BulletPoint {
	return collect(forest, func(bp *domain.BulletPoint) bool {
		return bp.TeamID == teamID
	})
}

// CollectForTeams is CollectForTeam over a set of teams in a single pass.
// Output is in document order, which is the order-preserving merge of
// calling CollectForTeam once per team.
func CollectForTeams(forest []domain.BulletPoint, teamIDs []int64) []domain.BulletPoint {
	set := make(map[int64]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		set[id] = struct{}{}
	}
	return collect(forest, func(bp *domain.BulletPoint) bool {
		_, ok := set[bp.TeamID]
		return ok
	})
}

func collect(forest []domain.BulletPoint, match func(*domain.BulletPoint) bool) []domain.BulletPoint {
	out := make([]domain.BulletPoint, 0)

	stack := make([]*domain.BulletPoint, 0, len(forest))
	for i := len(forest) - 1; i >= 0; i-- {
		stack = append(stack, &forest[i])
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if match(node) {
			out = append(out, *node)
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, &node.Children[i])
		}
	}

	return out
}

// Flatten returns every node of the forest in pre-order with children
// stripped. A bullet point shared by several parents appears once per
// occurrence.
func Flatten(forest []domain.BulletPoint) []domain.BulletPoint {
	all := collect(forest, func(*domain.BulletPoint) bool { return true })
	for i := range all {
		all[i] = all[i].WithoutChildren()
	}
	return all
}
