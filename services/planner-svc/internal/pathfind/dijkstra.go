package pathfind

import (
	"container/heap"
	"context"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/domain"
)

// =============================================================================
// Dijkstra's Algorithm
// =============================================================================
//
// Dijkstra's algorithm finds the shortest paths from a single source vertex to
// all other vertices in a graph with non-negative edge weights.
//
// Time Complexity: O((V + E) log V) with binary heap
// Space Complexity: O(V)
//
// Use Cases:
//   - Annotating vehicle routes with node-level paths through the road network
//   - General single-source shortest path queries over distance matrices
//
// Important:
//   - Dijkstra cannot handle negative edge weights. The road network is built
//     from sanitized distance matrices, so negative weights indicate corrupted
//     input; the search rejects such graphs up front instead of falling back.
//
// References:
//   - Dijkstra, E. W. (1959). "A note on two problems in connexion with graphs"
// =============================================================================

// Result contains the result of a shortest path search.
type Result struct {
	// Distances maps each node to its shortest distance from the source.
	Distances map[string]float64

	// Parent maps each node to its predecessor on the shortest path.
	// Nodes without a predecessor (the source and unreachable nodes) map to "".
	Parent map[string]string

	// Canceled indicates whether the operation was canceled via context.
	Canceled bool
}

// priorityQueueItem represents an element in the priority queue.
type priorityQueueItem struct {
	node     string
	distance float64
	index    int // Index in the heap for updates
}

// priorityQueue implements heap.Interface for Dijkstra's algorithm.
// It is a min-heap based on distance, with tie-breaking by node ID for determinism.
type priorityQueue []*priorityQueueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	// Primary sort: by distance (min-heap)
	if pq[i].distance != pq[j].distance {
		return pq[i].distance < pq[j].distance
	}
	// Secondary sort: by node ID for deterministic ordering
	return pq[i].node < pq[j].node
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*priorityQueueItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

// ShortestPaths executes Dijkstra's algorithm from source over the graph's
// distance weights. The full tree is computed; there is no early exit, so a
// single run can answer queries to every target.
//
// Returns an INVALID_GRAPH error if any edge carries a negative weight and a
// NOT_FOUND error if the source node does not exist.
func ShortestPaths(ctx context.Context, g *domain.Graph, source string) (*Result, error) {
	if g == nil {
		return nil, apperror.ErrNilInput
	}
	if _, ok := g.GetNode(source); !ok {
		return nil, apperror.New(apperror.CodeNotFound, "source node not found").WithField("source").
			WithDetails("node", source)
	}
	if g.HasNegativeWeights() {
		return nil, apperror.ErrInvalidGraph
	}

	dist := make(map[string]float64, g.NodeCount())
	parent := make(map[string]string, g.NodeCount())

	for id := range g.Nodes {
		dist[id] = domain.Infinity
		parent[id] = ""
	}
	dist[source] = 0

	pq := make(priorityQueue, 0, g.NodeCount())
	heap.Init(&pq)
	heap.Push(&pq, &priorityQueueItem{
		node:     source,
		distance: 0,
	})

	const checkInterval = 100
	iterations := 0

	for pq.Len() > 0 {
		// Periodic context check
		if iterations%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return &Result{
					Distances: dist,
					Parent:    parent,
					Canceled:  true,
				}, nil
			default:
			}
		}
		iterations++

		current := heap.Pop(&pq).(*priorityQueueItem)
		u := current.node

		// Skip stale entries (already processed with a better distance)
		if current.distance > dist[u]+domain.Epsilon {
			continue
		}

		for _, v := range g.GetOutgoing(u) {
			edge, ok := g.GetEdge(u, v)
			if !ok {
				continue
			}

			newDist := dist[u] + edge.Distance

			if newDist < dist[v]-domain.Epsilon {
				dist[v] = newDist
				parent[v] = u
				heap.Push(&pq, &priorityQueueItem{
					node:     v,
					distance: newDist,
				})
			}
		}
	}

	return &Result{
		Distances: dist,
		Parent:    parent,
		Canceled:  false,
	}, nil
}

// PathTo reconstructs the node sequence from the search source to target.
// Returns nil if the target is unreachable.
func (r *Result) PathTo(target string) []string {
	dist, ok := r.Distances[target]
	if !ok || dist >= domain.Infinity {
		return nil
	}

	var path []string
	for node := target; node != ""; node = r.Parent[node] {
		path = append(path, node)
	}

	// Reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// DistanceTo returns the shortest distance to target, or Infinity when
// unreachable.
func (r *Result) DistanceTo(target string) float64 {
	dist, ok := r.Distances[target]
	if !ok {
		return domain.Infinity
	}
	return dist
}

// PathResult is one entry of an all-pairs query: the node sequence from
// source to target and its total distance. Unreachable targets carry a nil
// path and an infinite distance.
type PathResult struct {
	Path     []string
	Distance float64
}

// AllPairs computes shortest paths between every ordered pair of the given
// nodes, running one full Dijkstra tree per source. Self-pairs yield the
// trivial ([node], 0) result. Nodes absent from the graph produce unreachable
// entries rather than an error.
func AllPairs(ctx context.Context, g *domain.Graph, nodes []string) (map[string]map[string]PathResult, error) {
	if g == nil {
		return nil, apperror.ErrNilInput
	}
	if g.HasNegativeWeights() {
		return nil, apperror.ErrInvalidGraph
	}

	unreachable := PathResult{Path: nil, Distance: domain.Infinity}

	result := make(map[string]map[string]PathResult, len(nodes))
	for _, source := range nodes {
		targets := make(map[string]PathResult, len(nodes))
		result[source] = targets

		tree, err := ShortestPaths(ctx, g, source)
		if err != nil {
			// Unknown source: every target is unreachable
			for _, target := range nodes {
				if target == source {
					targets[target] = PathResult{Path: []string{source}, Distance: 0}
					continue
				}
				targets[target] = unreachable
			}
			continue
		}
		if tree.Canceled {
			return nil, apperror.ErrTimeout
		}

		for _, target := range nodes {
			if target == source {
				targets[target] = PathResult{Path: []string{source}, Distance: 0}
				continue
			}
			path := tree.PathTo(target)
			if path == nil {
				targets[target] = unreachable
				continue
			}
			targets[target] = PathResult{Path: path, Distance: tree.Distances[target]}
		}
	}
	return result, nil
}

// ShortestPathBetween runs a single-pair query and returns the path with its
// total distance. Returns a NO_PATH error when target is unreachable.
func ShortestPathBetween(ctx context.Context, g *domain.Graph, from, to string) ([]string, float64, error) {
	result, err := ShortestPaths(ctx, g, from)
	if err != nil {
		return nil, 0, err
	}
	if result.Canceled {
		return nil, 0, apperror.ErrTimeout
	}

	path := result.PathTo(to)
	if path == nil {
		return nil, 0, apperror.New(apperror.CodeNoPath, "no path between locations").
			WithDetails("from", from).
			WithDetails("to", to)
	}

	return path, result.Distances[to], nil
}
