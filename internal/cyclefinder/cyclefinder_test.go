package cyclefinder

import (
	"math"
	"testing"

	"arbiter/internal/csrgraph"
)

func edges(triples ...[3]float64) []csrgraph.InputEdge {
	out := make([]csrgraph.InputEdge, len(triples))
	for i, t := range triples {
		out[i] = csrgraph.InputEdge{From: int(t[0]), To: int(t[1]), Rate: t[2]}
	}
	return out
}

func TestFindsProfitable3CycleWithHopCap(t *testing.T) {
	es := edges([3]float64{0, 1, 1.02}, [3]float64{1, 2, 1.02}, [3]float64{2, 0, 0.98})

	cyc := FindProfitableCycle(3, es, 8)
	if cyc == nil {
		t.Fatal("expected a cycle")
	}
	if cyc.Profit <= 1.0 {
		t.Errorf("expected profit > 1, got %v", cyc.Profit)
	}
	if cyc.NegLogSum >= 0 {
		t.Errorf("expected negative neg_log_sum, got %v", cyc.NegLogSum)
	}
	if cyc.Vertices[0] != cyc.Vertices[len(cyc.Vertices)-1] {
		t.Errorf("vertex ring does not close: %v", cyc.Vertices)
	}
}

func TestRespectsHopCap(t *testing.T) {
	es := edges([3]float64{0, 1, 1.01}, [3]float64{1, 2, 1.01}, [3]float64{2, 3, 1.01}, [3]float64{3, 0, 1.01})

	if FindProfitableCycle(4, es, 3) != nil {
		t.Error("expected no cycle at hop cap 3")
	}
	if FindProfitableCycle(4, es, 4) == nil {
		t.Error("expected a cycle at hop cap 4")
	}
}

func TestReturnsNoneWhenNoArbitrage(t *testing.T) {
	es := edges([3]float64{0, 1, 1.01}, [3]float64{1, 2, 0.99}, [3]float64{2, 0, 1.0})
	if FindProfitableCycle(3, es, 8) != nil {
		t.Error("expected no cycle for product below one")
	}
}

func TestReturnsNoneWhenHopCapZero(t *testing.T) {
	es := edges([3]float64{0, 1, 1.1}, [3]float64{1, 0, 1.1})
	if FindProfitableCycle(2, es, 0) != nil {
		t.Error("expected no cycle when hop cap is zero")
	}
}

func TestReturnsNoneOnInvalidEdgeData(t *testing.T) {
	outOfBounds := edges([3]float64{0, 3, 1.1})
	if FindProfitableCycle(3, outOfBounds, 5) != nil {
		t.Error("expected nil for out-of-bounds endpoint")
	}

	nonPositive := edges([3]float64{0, 1, 0.0}, [3]float64{1, 0, 1.1})
	if FindProfitableCycle(3, nonPositive, 5) != nil {
		t.Error("expected nil for non-positive rate")
	}

	nanRate := edges([3]float64{0, 1, math.NaN()}, [3]float64{1, 0, 1.01})
	if FindProfitableCycle(3, nanRate, 5) != nil {
		t.Error("expected nil for NaN rate")
	}
}

func TestAcceptsHopCapExceedingNodeCount(t *testing.T) {
	es := edges([3]float64{0, 1, 1.02}, [3]float64{1, 2, 1.02}, [3]float64{2, 0, 0.98})

	cyc := FindProfitableCycle(3, es, 3+10)
	if cyc == nil {
		t.Fatal("expected cycle even with hop cap larger than node count")
	}
	if cyc.Profit <= 1.0 {
		t.Errorf("expected profit > 1, got %v", cyc.Profit)
	}
	if cyc.Vertices[0] != cyc.Vertices[len(cyc.Vertices)-1] {
		t.Errorf("vertex ring does not close: %v", cyc.Vertices)
	}
}

func TestFindsShortestProfitableCycleWhenMultipleExist(t *testing.T) {
	es := edges(
		[3]float64{0, 1, 1.1},
		[3]float64{1, 0, 1.05},
		[3]float64{0, 2, 1.03},
		[3]float64{2, 3, 1.03},
		[3]float64{3, 0, 1.03},
	)
	cyc := FindProfitableCycle(4, es, 4)
	if cyc == nil {
		t.Fatal("expected a cycle")
	}
	if len(cyc.Vertices) != 3 {
		t.Errorf("expected 2-hop cycle (3 vertices), got %d: %v", len(cyc.Vertices), cyc.Vertices)
	}
	if cyc.Profit <= 1.0 {
		t.Errorf("expected profit > 1, got %v", cyc.Profit)
	}
}

func TestFindsProfitableCycleFromDatasetSlice(t *testing.T) {
	es := edges([3]float64{83, 40, 1.011538}, [3]float64{40, 22, 1.006524}, [3]float64{22, 83, 1.00674})

	cyc := FindProfitableCycle(101, es, 4)
	if cyc == nil {
		t.Fatal("expected dataset slice to contain arbitrage")
	}
	if len(cyc.Vertices) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(cyc.Vertices))
	}
	if cyc.Profit <= 1.0 || cyc.NegLogSum >= 0 {
		t.Errorf("expected profitable cycle, got profit=%v neg_log_sum=%v", cyc.Profit, cyc.NegLogSum)
	}
}

func TestFindsAltDatasetCycle(t *testing.T) {
	es := edges([3]float64{90, 71, 1.003291}, [3]float64{71, 88, 1.008421}, [3]float64{88, 90, 1.013105})

	cyc := FindProfitableCycle(101, es, 4)
	if cyc == nil {
		t.Fatal("expected dataset slice to contain arbitrage")
	}
	if len(cyc.Vertices) != 4 {
		t.Errorf("expected 4 vertices, got %d", len(cyc.Vertices))
	}
	if cyc.Profit <= 1.0 {
		t.Errorf("expected profit > 1, got %v", cyc.Profit)
	}
}

func TestFindsProfitableCycleWithPrebuiltGraph(t *testing.T) {
	es := edges([3]float64{0, 1, 1.02}, [3]float64{1, 2, 1.02}, [3]float64{2, 0, 0.98})
	g := csrgraph.FromEdges(3, es)

	cyc := FindProfitableCycleInGraph(g, 8)
	if cyc == nil {
		t.Fatal("expected a cycle")
	}
	if cyc.Profit <= 1.0 {
		t.Errorf("expected profit > 1, got %v", cyc.Profit)
	}
}
