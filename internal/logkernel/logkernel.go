// Package logkernel implements a fused clamp->multiply->quantise->log->gate
// update that turns a pair of linear rates into a stable log-space value
// without letting NaN or denormals reach the hot loop.
package logkernel

import "math"

// absMinQuantum is the floor below which the linear quantisation step is
// never allowed to fall, regardless of the caller-supplied quantum.
const absMinQuantum = 1e-12

// LogMulEps computes the new log-domain value for old_value composed with
// linear rates a and b, gated by eps, clamped to [minR, maxR] and quantised
// to quantum. oldValue may be non-finite, meaning "no prior value".
func LogMulEps(oldValue, a, b, eps, minR, maxR, quantum float64) float64 {
	lo, hi := normalizeBounds(minR, maxR)
	eps = sanitizeEps(eps)
	quantum = sanitizeQuantum(quantum, lo)
	invQuantum := 1 / quantum

	ac := clampOperand(a, lo, hi)
	bc := clampOperand(b, lo, hi)

	product := clamp(ac*bc, lo, hi)

	quantisedLinear := clamp(quantizeTiesEvenLinear(product, invQuantum, quantum), lo, hi)

	newLog := lnNearOne(quantisedLinear)

	if !isFinite(oldValue) {
		return newLog
	}

	if eps > 0 && math.Abs(newLog-oldValue) < eps {
		return oldValue
	}
	return newLog
}

// normalizeBounds orders (minR, maxR) into (lo, hi) and keeps lo at or
// above the smallest positive normal double so later math avoids denormals.
func normalizeBounds(minR, maxR float64) (lo, hi float64) {
	lo = math.Min(minR, maxR)
	hi = math.Max(minR, maxR)

	if !isFinite(lo) || lo <= 0 {
		lo = minPositiveNormal
	}
	if !isFinite(hi) || hi < lo {
		hi = lo
	}
	return lo, hi
}

// minPositiveNormal is the smallest positive normal float64 (2^-1022),
// matching Rust's f64::MIN_POSITIVE.
const minPositiveNormal = 0x1p-1022

// sanitizeEps keeps the epsilon gate non-negative and finite: |eps| for a
// finite eps, 0 otherwise.
func sanitizeEps(eps float64) float64 {
	if isFinite(eps) {
		return math.Abs(eps)
	}
	return 0
}

// sanitizeQuantum floors the linear quantisation step to at least
// max(1e-12, ~1 ULP at lo) so quantisation steps stay meaningful.
func sanitizeQuantum(quantum, lo float64) float64 {
	minStep := math.Max(epsilon*lo, absMinQuantum)
	if isFinite(quantum) && quantum > 0 {
		return math.Max(quantum, minStep)
	}
	return minStep
}

// epsilon is the machine epsilon for float64 (2^-52), matching Rust's
// f64::EPSILON.
const epsilon = 2.220446049250313e-16

// clampOperand treats NaN as lo and +/-Inf as the corresponding bound
// before clamping to [lo, hi]. This guarantees no non-finite operand
// reaches the multiply step.
func clampOperand(value, lo, hi float64) float64 {
	var sanitized float64
	switch {
	case math.IsNaN(value):
		sanitized = lo
	case math.IsInf(value, 1):
		sanitized = hi
	case math.IsInf(value, -1):
		sanitized = lo
	default:
		sanitized = value
	}
	return clamp(sanitized, lo, hi)
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// quantizeTiesEvenLinear scales, rounds with ties-to-even, and rescales.
func quantizeTiesEvenLinear(value, invQuantum, quantum float64) float64 {
	scaled := value * invQuantum
	return roundTiesEven(scaled) * quantum
}

// roundTiesEven rounds to the nearest integer, breaking exact halves toward
// the even neighbour. Halfway detection uses an ULP-scaled slack rather
// than a fixed 0.5 comparison, since x's own representable precision
// determines how close to 0.5 a fractional part can land.
func roundTiesEven(x float64) float64 {
	if !isFinite(x) {
		return x
	}

	t := math.Trunc(x)
	frac := math.Abs(x - t)
	slack := ulp(x)

	if frac < 0.5-slack {
		return t
	}
	if frac > 0.5+slack {
		return t + sign(x)
	}

	// t is integral up to 2^53; beyond that every representable value is
	// already even.
	if math.Mod(t, 2) == 0 {
		return t
	}
	return t + sign(x)
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

// ulp returns the unit in the last place around x.
func ulp(x float64) float64 {
	if !isFinite(x) {
		return 0
	}
	if x == 0 {
		return math.SmallestNonzeroFloat64
	}
	bits := math.Float64bits(x)
	if x > 0 {
		return math.Abs(math.Float64frombits(bits+1) - x)
	}
	return math.Abs(x - math.Float64frombits(bits-1))
}

// lnNearOne computes ln(x) with a path that preserves precision when x is
// close to one, where a direct ln would lose significant digits.
func lnNearOne(x float64) float64 {
	delta := x - 1
	if math.Abs(delta) <= 1e-6 {
		return math.Log1p(delta)
	}
	return math.Log(x)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
