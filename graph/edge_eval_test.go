package graph

import "testing"

func compileEdges(t *testing.T, g *GraphSpec) *compiledGraph {
	t.Helper()
	cg, _, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return cg
}

func TestEdgeEligible_Always(t *testing.T) {
	e := &EdgeSpec{Condition: EdgeAlways}
	if !edgeEligible(e, true, false, nil) {
		t.Fatal("always edge must be eligible on success")
	}
	if !edgeEligible(e, false, true, nil) {
		t.Fatal("always edge must be eligible on failure")
	}
}

func TestEdgeEligible_OnSuccess(t *testing.T) {
	e := &EdgeSpec{Condition: EdgeOnSuccess}
	if !edgeEligible(e, true, false, nil) {
		t.Fatal("on_success edge must be eligible when succeeded")
	}
	if edgeEligible(e, false, false, nil) {
		t.Fatal("on_success edge must not be eligible when failed")
	}
}

func TestEdgeEligible_OnFailureRequiresExhaustedRetries(t *testing.T) {
	e := &EdgeSpec{Condition: EdgeOnFailure}
	if edgeEligible(e, false, false, nil) {
		t.Fatal("on_failure edge must not be eligible while retries remain")
	}
	if !edgeEligible(e, false, true, nil) {
		t.Fatal("on_failure edge must be eligible once retries are exhausted")
	}
	if edgeEligible(e, true, true, nil) {
		t.Fatal("on_failure edge must not be eligible on success")
	}
}

func TestEdgeEligible_Conditional(t *testing.T) {
	g, err := parseGuard(`route == "b"`)
	if err != nil {
		t.Fatalf("parseGuard: %v", err)
	}
	e := &EdgeSpec{Condition: EdgeConditional, compiledGuard: g}
	if !edgeEligible(e, true, false, map[string]any{"route": "b"}) {
		t.Fatal("conditional edge must be eligible when guard matches")
	}
	if edgeEligible(e, true, false, map[string]any{"route": "a"}) {
		t.Fatal("conditional edge must not be eligible when guard doesn't match")
	}
}

func TestNextEdge_PriorityOrdering(t *testing.T) {
	g := &GraphSpec{
		EntryNode: "a",
		Nodes: []NodeSpec{
			{ID: "a", Kind: KindRouter},
			{ID: "low", Kind: KindRouter, IsTerminal: true},
			{ID: "high", Kind: KindRouter, IsTerminal: true},
		},
		Edges: []EdgeSpec{
			{ID: "e-low", Source: "a", Target: "low", Condition: EdgeAlways, Priority: 10},
			{ID: "e-high", Source: "a", Target: "high", Condition: EdgeAlways, Priority: 1},
		},
	}
	cg := compileEdges(t, g)
	edge := cg.nextEdge("a", true, false, nil)
	if edge == nil || edge.Target != "high" {
		t.Fatalf("expected lowest-priority edge to win, got %+v", edge)
	}
}

func TestNextEdge_TieBreaksByEdgeID(t *testing.T) {
	g := &GraphSpec{
		EntryNode: "a",
		Nodes: []NodeSpec{
			{ID: "a", Kind: KindRouter},
			{ID: "b", Kind: KindRouter, IsTerminal: true},
			{ID: "c", Kind: KindRouter, IsTerminal: true},
		},
		Edges: []EdgeSpec{
			{ID: "z-edge", Source: "a", Target: "b", Condition: EdgeAlways, Priority: 1},
			{ID: "a-edge", Source: "a", Target: "c", Condition: EdgeAlways, Priority: 1},
		},
	}
	cg := compileEdges(t, g)
	edge := cg.nextEdge("a", true, false, nil)
	if edge == nil || edge.ID != "a-edge" {
		t.Fatalf("expected tie broken by lexicographically smaller edge id, got %+v", edge)
	}
}

func TestNextEdge_NoEligibleEdgesReturnsNil(t *testing.T) {
	g := &GraphSpec{
		EntryNode: "a",
		Nodes: []NodeSpec{
			{ID: "a", Kind: KindRouter, IsTerminal: true},
			{ID: "b", Kind: KindRouter, IsTerminal: true},
		},
		Edges: []EdgeSpec{
			{ID: "e1", Source: "a", Target: "b", Condition: EdgeOnFailure},
		},
	}
	cg := compileEdges(t, g)
	if edge := cg.nextEdge("a", true, false, nil); edge != nil {
		t.Fatalf("expected nil edge when no candidate is eligible, got %+v", edge)
	}
}
