package scheduler

import (
	"cmp"
	"slices"
)

// orderCandidates sorts candidates by node id so the lowest id is tried first
func orderCandidates(candidates []candidate) {
	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(a.node.ID, b.node.ID)
	})
}
