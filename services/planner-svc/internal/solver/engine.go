package solver

import (
	"context"
	"time"
)

// =============================================================================
// VRP Search Engine
// =============================================================================
//
// Two-phase heuristic over the integer-scaled model:
//
//  1. Construction: cheapest-insertion seeded from each vehicle's start.
//     Nodes are inserted in priority order (urgent first); pickup-delivery
//     pairs are inserted jointly with the pickup sequenced before its
//     delivery. Nodes with no feasible insertion stay dropped and pay a
//     priority-weighted penalty.
//  2. Local search: first-improvement passes of relocate, inter-route swap
//     and intra-route 2-opt, plus reinsertion attempts for dropped nodes,
//     repeated until no move improves the objective or the time limit is
//     reached.
//
// Objective: sum of arc distance costs, plus the global span coefficient
// times the maximum per-vehicle dimension total (time when available,
// distance otherwise), plus drop penalties. Minimizing the span term
// balances load across vehicles.
//
// Feasibility per route: capacity as a cumulative dimension (the spread of
// running load must fit the vehicle capacity), pickup before its paired
// delivery on the same vehicle, optional max stops and max distance, and —
// in time-window mode — a forward simulation with bounded waiting slack and
// a day horizon.
//
// The search is fully deterministic: iteration order is fixed and only
// strictly improving moves are accepted.
// =============================================================================

type engine struct {
	m        *model
	routes   [][]int // node indices per vehicle, task stops only
	assigned []int   // node index -> vehicle index, -1 when dropped
	deadline time.Time
	ctx      context.Context
}

func newEngine(ctx context.Context, m *model, timeLimit time.Duration) *engine {
	e := &engine{
		m:        m,
		routes:   make([][]int, len(m.vehicles)),
		assigned: make([]int, len(m.nodes)),
		deadline: time.Now().Add(timeLimit),
		ctx:      ctx,
	}
	for i := range e.assigned {
		e.assigned[i] = -1
	}
	return e
}

func (e *engine) expired() bool {
	if time.Now().After(e.deadline) {
		return true
	}
	select {
	case <-e.ctx.Done():
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Feasibility
// -----------------------------------------------------------------------------

// routeFeasible validates a candidate task sequence for a vehicle.
func (e *engine) routeFeasible(v int, seq []int) bool {
	spec := e.m.vehicles[v]
	if len(seq) > spec.maxStops {
		return false
	}

	// Capacity: the spread of the running load must fit. The vehicle can
	// depart with whatever initial load makes the cumulative stay in
	// [0, capacity].
	var load, minLoad, maxLoad int64
	for _, ni := range seq {
		load += e.m.nodes[ni].demand
		if load < minLoad {
			minLoad = load
		}
		if load > maxLoad {
			maxLoad = load
		}
	}
	if maxLoad-minLoad > spec.capacity {
		return false
	}

	// Pickup precedes its paired delivery on the same vehicle.
	pos := make(map[int]int, len(seq))
	for i, ni := range seq {
		pos[ni] = i
	}
	for i, ni := range seq {
		pair := e.m.nodes[ni].pair
		if pair < 0 {
			continue
		}
		j, onRoute := pos[pair]
		if !onRoute {
			return false
		}
		if e.m.nodes[ni].isPickup && i > j {
			return false
		}
	}

	if spec.maxDist < e.routeDistance(v, seq) {
		return false
	}

	if e.m.timeWindows {
		if _, ok := e.simulate(v, seq); !ok {
			return false
		}
	}
	return true
}

// simulate runs the forward time simulation over a task sequence. Waiting
// beyond the slack or arriving after a window closes is infeasible, as is
// returning to the end depot past the day horizon. Returned arrivals are the
// earliest feasible service-start times per stop.
func (e *engine) simulate(v int, seq []int) ([]int64, bool) {
	spec := e.m.vehicles[v]
	t := e.m.twStart[spec.start]
	prev := spec.start

	arrivals := make([]int64, len(seq))
	for i, ni := range seq {
		loc := e.m.nodes[ni].loc
		arrival := t + e.m.travel(prev, loc)
		serviceStart := arrival
		if arrival < e.m.twStart[loc] {
			if e.m.twStart[loc]-arrival > e.m.slack {
				return nil, false
			}
			serviceStart = e.m.twStart[loc]
		}
		if serviceStart > e.m.twEnd[loc] {
			return nil, false
		}
		arrivals[i] = serviceStart
		t = serviceStart + e.m.service[loc]
		prev = loc
	}

	t += e.m.travel(prev, spec.end)
	if t > e.m.horizon {
		return nil, false
	}
	return arrivals, true
}

// -----------------------------------------------------------------------------
// Objective
// -----------------------------------------------------------------------------

// routeDistance is the scaled distance of start -> seq... -> end.
func (e *engine) routeDistance(v int, seq []int) int64 {
	spec := e.m.vehicles[v]
	if len(seq) == 0 {
		return 0
	}
	total := e.m.dist[spec.start][e.m.nodes[seq[0]].loc]
	for i := 1; i < len(seq); i++ {
		total += e.m.dist[e.m.nodes[seq[i-1]].loc][e.m.nodes[seq[i]].loc]
	}
	total += e.m.dist[e.m.nodes[seq[len(seq)-1]].loc][spec.end]
	return total
}

// routeSpan is the per-vehicle dimension total the span coefficient applies
// to: time when a time matrix is available, distance otherwise.
func (e *engine) routeSpan(v int, seq []int) int64 {
	if e.m.time == nil {
		return e.routeDistance(v, seq)
	}
	spec := e.m.vehicles[v]
	if len(seq) == 0 {
		return 0
	}
	total := e.m.time[spec.start][e.m.nodes[seq[0]].loc]
	for i := 1; i < len(seq); i++ {
		total += e.m.time[e.m.nodes[seq[i-1]].loc][e.m.nodes[seq[i]].loc]
	}
	total += e.m.time[e.m.nodes[seq[len(seq)-1]].loc][spec.end]
	return total
}

func (e *engine) totalCost() int64 {
	var cost, maxSpan int64
	for v, seq := range e.routes {
		cost += e.routeDistance(v, seq)
		if span := e.routeSpan(v, seq); span > maxSpan {
			maxSpan = span
		}
	}
	cost += e.m.spanCoeff * maxSpan
	for ni, v := range e.assigned {
		if v < 0 {
			cost += e.m.dropPenalty * int64(e.m.nodes[ni].priority)
		}
	}
	return cost
}

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

// insertionOrder yields node indices by descending priority, pair deliveries
// deferred to their pickups.
func (e *engine) insertionOrder() []int {
	order := make([]int, 0, len(e.m.nodes))
	for ni := range e.m.nodes {
		nd := e.m.nodes[ni]
		if nd.pair >= 0 && !nd.isPickup {
			continue // inserted jointly with the pickup
		}
		order = append(order, ni)
	}
	// Stable priority sort: urgent first, ties by node index.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && e.m.nodes[order[j]].priority > e.m.nodes[order[j-1]].priority; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order
}

func (e *engine) construct() {
	for _, ni := range e.insertionOrder() {
		e.insertBest(ni)
	}
}

// insertBest places a node (or its whole pair) at the cheapest feasible
// position across all vehicles, evaluating the full objective delta so the
// span term steers placements toward balanced routes. Returns false when no
// feasible placement exists.
func (e *engine) insertBest(ni int) bool {
	nd := e.m.nodes[ni]

	spans := make([]int64, len(e.routes))
	var maxSpan int64
	for v, seq := range e.routes {
		spans[v] = e.routeSpan(v, seq)
		if spans[v] > maxSpan {
			maxSpan = spans[v]
		}
	}

	// Objective delta of replacing vehicle v's sequence with cand.
	evaluate := func(v int, cand []int) int64 {
		delta := e.routeDistance(v, cand) - e.routeDistance(v, e.routes[v])
		newMax := e.routeSpan(v, cand)
		for w, span := range spans {
			if w != v && span > newMax {
				newMax = span
			}
		}
		return delta + e.m.spanCoeff*(newMax-maxSpan)
	}

	found := false
	var bestCost int64
	bestV := -1
	var bestSeq []int

	for v := range e.routes {
		seq := e.routes[v]
		for i := 0; i <= len(seq); i++ {
			if nd.pair >= 0 {
				// Joint insertion: pickup at i, delivery at j >= i.
				for j := i; j <= len(seq); j++ {
					cand := insertTwo(seq, i, ni, j, nd.pair)
					if !e.routeFeasible(v, cand) {
						continue
					}
					if delta := evaluate(v, cand); !found || delta < bestCost {
						found = true
						bestCost = delta
						bestV = v
						bestSeq = cand
					}
				}
				continue
			}
			cand := insertOne(seq, i, ni)
			if !e.routeFeasible(v, cand) {
				continue
			}
			if delta := evaluate(v, cand); !found || delta < bestCost {
				found = true
				bestCost = delta
				bestV = v
				bestSeq = cand
			}
		}
	}

	if bestV < 0 {
		return false
	}
	e.routes[bestV] = bestSeq
	e.assigned[ni] = bestV
	if nd.pair >= 0 {
		e.assigned[nd.pair] = bestV
	}
	return true
}

func insertOne(seq []int, pos, ni int) []int {
	out := make([]int, 0, len(seq)+1)
	out = append(out, seq[:pos]...)
	out = append(out, ni)
	out = append(out, seq[pos:]...)
	return out
}

func insertTwo(seq []int, posA, a, posB, b int) []int {
	out := insertOne(seq, posA, a)
	return insertOne(out, posB+1, b)
}

// -----------------------------------------------------------------------------
// Local search
// -----------------------------------------------------------------------------

func (e *engine) solve() {
	e.construct()

	improved := true
	for improved && !e.expired() {
		improved = false
		if e.reinsertPass() {
			improved = true
		}
		if e.expired() {
			break
		}
		if e.relocatePass() {
			improved = true
			continue
		}
		if e.expired() {
			break
		}
		if e.swapPass() {
			improved = true
			continue
		}
		if e.expired() {
			break
		}
		if e.twoOptPass() {
			improved = true
		}
	}
}

// reinsertPass retries dropped nodes; any successful insertion removes its
// drop penalty and always improves the objective.
func (e *engine) reinsertPass() bool {
	improved := false
	for ni := range e.m.nodes {
		if e.assigned[ni] >= 0 {
			continue
		}
		nd := e.m.nodes[ni]
		if nd.pair >= 0 && !nd.isPickup {
			continue
		}
		if e.insertBest(ni) {
			improved = true
		}
		if e.expired() {
			break
		}
	}
	return improved
}

// relocatePass moves one node (or pair) to its best position anywhere,
// accepting the first strictly improving move per node.
func (e *engine) relocatePass() bool {
	improved := false
	for ni := range e.m.nodes {
		v := e.assigned[ni]
		if v < 0 {
			continue
		}
		nd := e.m.nodes[ni]
		if nd.pair >= 0 && !nd.isPickup {
			continue
		}

		before := e.totalCost()
		savedRoutes := e.routes[v]
		e.routes[v] = removeNodes(savedRoutes, ni, nd.pair)
		e.assigned[ni] = -1
		if nd.pair >= 0 {
			e.assigned[nd.pair] = -1
		}

		if e.insertBest(ni) && e.totalCost() < before {
			improved = true
		} else {
			// Roll back: the original placement was at least as good.
			if w := e.assigned[ni]; w >= 0 {
				e.routes[w] = removeNodes(e.routes[w], ni, nd.pair)
			}
			e.routes[v] = savedRoutes
			e.assigned[ni] = v
			if nd.pair >= 0 {
				e.assigned[nd.pair] = v
			}
		}
		if e.expired() {
			break
		}
	}
	return improved
}

// swapPass exchanges two unpaired nodes between different routes.
func (e *engine) swapPass() bool {
	improved := false
	for a := range e.m.nodes {
		if e.expired() {
			break
		}
		va := e.assigned[a]
		if va < 0 || e.m.nodes[a].pair >= 0 {
			continue
		}
		for b := a + 1; b < len(e.m.nodes); b++ {
			vb := e.assigned[b]
			if vb < 0 || vb == va || e.m.nodes[b].pair >= 0 {
				continue
			}

			before := e.totalCost()
			seqA := swapNode(e.routes[va], a, b)
			seqB := swapNode(e.routes[vb], b, a)
			if !e.routeFeasible(va, seqA) || !e.routeFeasible(vb, seqB) {
				continue
			}

			savedA, savedB := e.routes[va], e.routes[vb]
			e.routes[va], e.routes[vb] = seqA, seqB
			e.assigned[a], e.assigned[b] = vb, va
			if e.totalCost() < before {
				improved = true
				break
			}
			e.routes[va], e.routes[vb] = savedA, savedB
			e.assigned[a], e.assigned[b] = va, vb
		}
	}
	return improved
}

// twoOptPass reverses segments within single routes. Feasibility checks
// cover pair precedence, so routes carrying pairs are handled safely.
func (e *engine) twoOptPass() bool {
	improved := false
	for v := range e.routes {
		seq := e.routes[v]
		if len(seq) < 3 {
			continue
		}
		for i := 0; i < len(seq)-1; i++ {
			for j := i + 1; j < len(seq); j++ {
				cand := reverseSegment(seq, i, j)
				if !e.routeFeasible(v, cand) {
					continue
				}
				if e.routeDistance(v, cand) < e.routeDistance(v, seq) {
					e.routes[v] = cand
					seq = cand
					improved = true
				}
			}
			if e.expired() {
				return improved
			}
		}
	}
	return improved
}

func removeNodes(seq []int, a, b int) []int {
	out := make([]int, 0, len(seq))
	for _, ni := range seq {
		if ni == a || ni == b {
			continue
		}
		out = append(out, ni)
	}
	return out
}

func swapNode(seq []int, from, to int) []int {
	out := make([]int, len(seq))
	for i, ni := range seq {
		if ni == from {
			out[i] = to
		} else {
			out[i] = ni
		}
	}
	return out
}

func reverseSegment(seq []int, i, j int) []int {
	out := make([]int, len(seq))
	copy(out, seq)
	for a, b := i, j; a < b; a, b = a+1, b-1 {
		out[a], out[b] = out[b], out[a]
	}
	return out
}
