package domain

import (
	"sort"
	"testing"
)

func TestBFSReachable(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "island"} {
		g.AddNode(&Node{ID: id})
	}
	g.AddEdge(&Edge{From: "a", To: "b", Distance: 1, Time: 1})
	g.AddEdge(&Edge{From: "b", To: "c", Distance: 1, Time: 1})

	reachable := BFSReachable(g, "a")
	if len(reachable) != 3 {
		t.Errorf("expected 3 reachable nodes, got %d", len(reachable))
	}
	if reachable["island"] {
		t.Error("island must not be reachable")
	}
}

func TestBFSReachable_UnknownSource(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "a"})

	if reachable := BFSReachable(g, "zzz"); len(reachable) != 0 {
		t.Errorf("unknown source should reach nothing, got %v", reachable)
	}
}

func TestIsConnected(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(&Node{ID: id})
	}
	g.AddEdge(&Edge{From: "a", To: "b", Distance: 1, Time: 1})

	if !IsConnected(g, "a", "b") {
		t.Error("a and b are connected")
	}
	if IsConnected(g, "a", "c") {
		t.Error("a and c are not connected")
	}
	// Рёбра направленные
	if IsConnected(g, "b", "a") {
		t.Error("edge direction must be respected")
	}
}

func TestIsolatedNodes(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"depot", "a", "b", "far"} {
		g.AddNode(&Node{ID: id})
	}
	g.AddEdge(&Edge{From: "depot", To: "a", Distance: 1, Time: 1})
	g.AddEdge(&Edge{From: "a", To: "b", Distance: 1, Time: 1})

	isolated := IsolatedNodes(g, "depot")
	if len(isolated) != 1 || isolated[0] != "far" {
		t.Errorf("expected [far], got %v", isolated)
	}
}

func TestFindConnectedComponents(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		g.AddNode(&Node{ID: id})
	}
	g.AddEdge(&Edge{From: "a", To: "b", Distance: 1, Time: 1})
	g.AddEdge(&Edge{From: "c", To: "d", Distance: 1, Time: 1})

	components := FindConnectedComponents(g)
	if len(components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(components))
	}

	sizes := make([]int, len(components))
	for i, c := range components {
		sizes[i] = len(c)
	}
	sort.Ints(sizes)
	if sizes[0] != 1 || sizes[1] != 2 || sizes[2] != 2 {
		t.Errorf("unexpected component sizes: %v", sizes)
	}
}
