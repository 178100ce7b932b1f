package graph

import "sort"

// nextEdge implements the Edge Evaluator (C5): given the node that just
// finished, whether its attempt succeeded, and whether its retries are
// exhausted, pick the next edge to traverse.
// Edges are filtered by condition, sorted by priority ascending (ties
// broken by edge id lexicographically for determinism), and the first
// eligible edge wins. A nil return means the current node has no successor.
func (cg *compiledGraph) nextEdge(fromNode string, succeeded bool, retriesExhausted bool, mem map[string]any) *EdgeSpec {
	candidates := make([]*EdgeSpec, 0, len(cg.fromNode[fromNode]))
	for _, e := range cg.fromNode[fromNode] {
		if edgeEligible(e, succeeded, retriesExhausted, mem) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0]
}

func edgeEligible(e *EdgeSpec, succeeded, retriesExhausted bool, mem map[string]any) bool {
	switch e.Condition {
	case EdgeAlways:
		return true
	case EdgeOnSuccess:
		return succeeded
	case EdgeOnFailure:
		return !succeeded && retriesExhausted
	case EdgeConditional:
		return e.compiledGuard.Evaluate(mem)
	default:
		return false
	}
}
