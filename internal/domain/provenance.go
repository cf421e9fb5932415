package domain

// ProvenanceNode is one bullet point in a reconstructed provenance tree.
// The same bullet point may occur several times in one tree when the
// underlying DAG shares it between parents.
type ProvenanceNode struct {
	Details  BulletPointDetails `json:"details" yaml:"details"`
	Children []*ProvenanceNode  `json:"children" yaml:"children"`
	RawData  []int64            `json:"raw_data" yaml:"raw_data"`
}

// Walk visits the tree in pre-order. Returning false from fn prunes the
// node's subtree.
func (n *ProvenanceNode) Walk(fn func(node *ProvenanceNode, depth int) bool) {
	if n == nil {
		return
	}
	type frame struct {
		node  *ProvenanceNode
		depth int
	}
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.node, f.depth) {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// RawDataIDs returns every raw data id reachable from the tree, first
// occurrence order
func (n *ProvenanceNode) RawDataIDs() []int64 {
	seen := make(map[int64]struct{})
	out := make([]int64, 0)
	n.Walk(func(node *ProvenanceNode, _ int) bool {
		for _, id := range node.RawData {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return true
	})
	return out
}

// References reports whether bpID occurs anywhere in the tree
func (n *ProvenanceNode) References(bpID int64) bool {
	found := false
	n.Walk(func(node *ProvenanceNode, _ int) bool {
		if node.Details.ID == bpID {
			found = true
		}
		return !found
	})
	return found
}

// Size returns the number of nodes in the tree
func (n *ProvenanceNode) Size() int {
	count := 0
	n.Walk(func(*ProvenanceNode, int) bool {
		count++
		return true
	})
	return count
}

// Depth returns the number of levels in the tree
func (n *ProvenanceNode) Depth() int {
	max := 0
	n.Walk(func(_ *ProvenanceNode, depth int) bool {
		if depth+1 > max {
			max = depth + 1
		}
		return true
	})
	return max
}
