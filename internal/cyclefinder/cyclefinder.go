// Package cyclefinder searches a csrgraph.Graph for the first profitable
// cycle within a bounded number of hops, using a per-source exact-hop
// Bellman-Ford relaxation.
package cyclefinder

import (
	"math"

	"arbiter/internal/csrgraph"
)

// eps is the profitability threshold in log space: a round-trip cost must
// be strictly below -eps to count as profitable, guarding against
// floating-point noise around exact break-even.
const eps = 1e-12

// Cycle is a profitable ring found in the graph.
type Cycle struct {
	// Vertices is v0..vk with v0 == vk.
	Vertices []int
	// EdgeIndexes are the edge ids traversed, in cycle order, length k.
	EdgeIndexes []int
	// Profit is exp(-NegLogSum); always > 1 for a returned cycle.
	Profit float64
	// NegLogSum is the sum of neg-log weights along the cycle; always < -eps.
	NegLogSum float64
}

// FindProfitableCycle rebuilds a CSR graph from edges and searches it. See
// FindProfitableCycleInGraph for the search itself.
func FindProfitableCycle(nodeCount int, edges []csrgraph.InputEdge, hopCap int) *Cycle {
	if nodeCount == 0 || len(edges) == 0 || hopCap == 0 {
		return nil
	}
	for _, e := range edges {
		if e.From >= nodeCount || e.To >= nodeCount || e.Rate <= 0 || !isFinite(e.Rate) {
			return nil
		}
	}

	graph := csrgraph.FromEdges(nodeCount, edges)
	return FindProfitableCycleInGraph(graph, hopCap)
}

// FindProfitableCycleInGraph runs exact-hop Bellman-Ford from every start
// node in turn, up to hopCap hops each, and returns the first cycle found:
// the first start node, at the smallest hop count, whose round-trip cost is
// strictly negative. It performs no global minimization across starts.
func FindProfitableCycleInGraph(graph *csrgraph.Graph, hopCap int) *Cycle {
	n := graph.NodeCount()
	if n == 0 || graph.EdgeCount() == 0 || hopCap == 0 {
		return nil
	}

	for start := 0; start < n; start++ {
		bestPrevious := make([]float64, n)
		for i := range bestPrevious {
			bestPrevious[i] = math.Inf(1)
		}
		bestPrevious[start] = 0

		bestCurrent := make([]float64, n)
		predecessorAtHop := make([]int, n)
		for i := range predecessorAtHop {
			predecessorAtHop[i] = -1
		}

		predecessorsByHop := make([][]int, 0, hopCap+1)
		noPreds := make([]int, n)
		for i := range noPreds {
			noPreds[i] = -1
		}
		predecessorsByHop = append(predecessorsByHop, noPreds)

		for hop := 1; hop <= hopCap; hop++ {
			for i := range bestCurrent {
				bestCurrent[i] = math.Inf(1)
			}
			for i := range predecessorAtHop {
				predecessorAtHop[i] = -1
			}
			relaxHopInPlace(graph, bestPrevious, bestCurrent, predecessorAtHop)

			costToStart := bestCurrent[start]
			if isFinite(costToStart) && costToStart < -eps {
				usedEdges := reconstructEdgePath(hop, start, predecessorsByHop, predecessorAtHop, graph)
				if usedEdges == nil {
					continue
				}
				cyc := assembleCycleMetrics(usedEdges, graph)
				if cyc == nil {
					continue
				}
				return cyc
			}

			snapshot := make([]int, n)
			copy(snapshot, predecessorAtHop)
			predecessorsByHop = append(predecessorsByHop, snapshot)

			bestPrevious, bestCurrent = bestCurrent, bestPrevious
		}
	}

	return nil
}

// relaxHopInPlace relaxes every node with a finite cost at hop h-1 across
// its outgoing edges, writing the hop-h costs into bestCurrent and the
// winning predecessor edge (argmin) into predecessorAtHop. Caller resets
// both buffers before calling.
func relaxHopInPlace(graph *csrgraph.Graph, bestPrevious, bestCurrent []float64, predecessorAtHop []int) {
	for u, du := range bestPrevious {
		if !isFinite(du) {
			continue
		}
		for _, nb := range graph.Neighbors(u) {
			d := du + nb.NegLog
			if d < bestCurrent[nb.To] {
				bestCurrent[nb.To] = d
				predecessorAtHop[nb.To] = nb.EdgeIndex
			}
		}
	}
}

// reconstructEdgePath walks backward exactly hop steps from endNode along
// winning predecessor edges and returns the edge sequence in forward order.
func reconstructEdgePath(hop, endNode int, predecessorsByHop [][]int, predecessorAtHop []int, graph *csrgraph.Graph) []int {
	used := make([]int, 0, hop)
	current := endNode
	for h := hop; h > 0; h-- {
		ei := predecessorEdgeAtHop(predecessorsByHop, predecessorAtHop, h, current)
		if ei < 0 {
			return nil
		}
		used = append(used, ei)
		current = graph.EdgeSrc(ei)
	}
	for i, j := 0, len(used)-1; i < j; i, j = i+1, j-1 {
		used[i], used[j] = used[j], used[i]
	}
	return used
}

// predecessorEdgeAtHop reads the winning predecessor edge for (hop, node).
// While hop H is being computed, hops 0..H-1 already live in
// predecessorsByHop; hop H itself is still the in-progress predecessorAtHop
// buffer, not yet pushed into history. This "live buffer" distinction must
// be preserved or reconstruction reads a stale (or absent) predecessor for
// the hop that just triggered the negativity check.
func predecessorEdgeAtHop(predecessorsByHop [][]int, predecessorAtHop []int, hop, node int) int {
	if hop == len(predecessorsByHop) {
		return predecessorAtHop[node]
	}
	return predecessorsByHop[hop][node]
}

// assembleCycleMetrics converts an edge-id sequence into a vertex ring plus
// neg_log_sum/profit, aborting (returning nil) if profit is non-finite.
func assembleCycleMetrics(usedEdges []int, graph *csrgraph.Graph) *Cycle {
	if len(usedEdges) == 0 {
		return nil
	}

	vertices := make([]int, 0, len(usedEdges)+1)
	vertices = append(vertices, graph.EdgeSrc(usedEdges[0]))

	negLogSum := 0.0
	for _, ei := range usedEdges {
		vertices = append(vertices, graph.EdgeDst(ei))
		negLogSum += graph.NegLogWeight(ei)
	}

	profit := math.Exp(-negLogSum)
	if !isFinite(profit) {
		return nil
	}

	return &Cycle{
		Vertices:    vertices,
		EdgeIndexes: usedEdges,
		Profit:      profit,
		NegLogSum:   negLogSum,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
