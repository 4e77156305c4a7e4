// Package csrgraph implements a compressed-sparse-row adjacency structure
// for a directed graph whose edges carry a positive rate and a cached
// -ln(rate) weight.
package csrgraph

import (
	"fmt"
	"math"
)

// InputEdge is the (from, to, rate) triple a graph is built from.
type InputEdge struct {
	From int
	To   int
	Rate float64
}

// Edge is a stored edge, addressable by its position in Edges.
type Edge struct {
	From int
	To   int
	Rate float64
}

// Graph is a compressed-sparse-row adjacency structure. Topology is fixed at
// construction; only the per-edge rate (and its cached neg-log weight) may
// be mutated afterward, through UpdateRate.
type Graph struct {
	nodeCount    int
	edgeOffsets  []int
	edgeIndices  []int
	edges        []Edge
	neglogWeight []float64
}

// IndexOutOfBoundsError reports an edge index outside [0, edge count).
type IndexOutOfBoundsError struct {
	EdgeIndex int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("csrgraph: edge index %d out of bounds", e.EdgeIndex)
}

// InvalidRateError reports a rate that is non-positive or non-finite.
type InvalidRateError struct {
	Rate float64
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("csrgraph: invalid rate %v", e.Rate)
}

// FromEdges builds a graph over nodeCount nodes from an ordered edge list.
// Three linear passes: count outgoing edges per source, prefix-sum into
// edge_offsets, then place each edge id at edge_offsets[from] + cursor[from]++,
// preserving the input order of edges sharing a source.
func FromEdges(nodeCount int, edges []InputEdge) *Graph {
	outgoingCount := make([]int, nodeCount)
	for _, e := range edges {
		outgoingCount[e.From]++
	}

	edgeOffsets := make([]int, nodeCount+1)
	for i, count := range outgoingCount {
		edgeOffsets[i+1] = edgeOffsets[i] + count
	}

	edgeIndices := make([]int, len(edges))
	storedEdges := make([]Edge, len(edges))
	neglogWeight := make([]float64, len(edges))

	cursor := make([]int, nodeCount)
	for edgeIndex, e := range edges {
		slot := edgeOffsets[e.From] + cursor[e.From]
		edgeIndices[slot] = edgeIndex
		cursor[e.From]++

		storedEdges[edgeIndex] = Edge{From: e.From, To: e.To, Rate: e.Rate}
		neglogWeight[edgeIndex] = -math.Log(e.Rate)
	}

	return &Graph{
		nodeCount:    nodeCount,
		edgeOffsets:  edgeOffsets,
		edgeIndices:  edgeIndices,
		edges:        storedEdges,
		neglogWeight: neglogWeight,
	}
}

// NodeCount returns the number of vertices.
func (g *Graph) NodeCount() int { return g.nodeCount }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Neighbor is a single outgoing edge of a node, as returned by Neighbors.
type Neighbor struct {
	EdgeIndex int
	To        int
	NegLog    float64
}

// Neighbors returns the outgoing edges of fromNode in insertion order.
func (g *Graph) Neighbors(fromNode int) []Neighbor {
	start := g.edgeOffsets[fromNode]
	end := g.edgeOffsets[fromNode+1]

	out := make([]Neighbor, 0, end-start)
	for _, edgeIndex := range g.edgeIndices[start:end] {
		out = append(out, Neighbor{
			EdgeIndex: edgeIndex,
			To:        g.edges[edgeIndex].To,
			NegLog:    g.neglogWeight[edgeIndex],
		})
	}
	return out
}

// EdgeSrc returns the source node of an edge.
func (g *Graph) EdgeSrc(edgeIndex int) int { return g.edges[edgeIndex].From }

// EdgeDst returns the destination node of an edge.
func (g *Graph) EdgeDst(edgeIndex int) int { return g.edges[edgeIndex].To }

// EdgeRate returns the current rate of an edge.
func (g *Graph) EdgeRate(edgeIndex int) float64 { return g.edges[edgeIndex].Rate }

// NegLogWeight returns the cached -ln(rate) of an edge.
func (g *Graph) NegLogWeight(edgeIndex int) float64 { return g.neglogWeight[edgeIndex] }

// UpdateRate rewrites an edge's rate and its cached neg-log weight.
// edgeIndex must be within range and newRate must be positive and finite;
// otherwise the graph is left unchanged and an error is returned.
func (g *Graph) UpdateRate(edgeIndex int, newRate float64) error {
	if edgeIndex < 0 || edgeIndex >= len(g.edges) {
		return &IndexOutOfBoundsError{EdgeIndex: edgeIndex}
	}
	if newRate <= 0 || !isFinite(newRate) {
		return &InvalidRateError{Rate: newRate}
	}

	g.edges[edgeIndex].Rate = newRate
	g.neglogWeight[edgeIndex] = -math.Log(newRate)
	return nil
}

// Clone deep-copies the graph. Used by the searcher to release the read
// lock immediately after copying and run the (CPU-bound) cycle finder on a
// private snapshot.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		nodeCount:    g.nodeCount,
		edgeOffsets:  make([]int, len(g.edgeOffsets)),
		edgeIndices:  make([]int, len(g.edgeIndices)),
		edges:        make([]Edge, len(g.edges)),
		neglogWeight: make([]float64, len(g.neglogWeight)),
	}
	copy(clone.edgeOffsets, g.edgeOffsets)
	copy(clone.edgeIndices, g.edgeIndices)
	copy(clone.edges, g.edges)
	copy(clone.neglogWeight, g.neglogWeight)
	return clone
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
