package immediate

import (
	"math"

	"github.com/dtcxzyw/r6/internal/ir"
)

// minifloat describes a binary floating-point format narrower than float64.
type minifloat struct {
	mantissa int // explicit fraction bits
	minExp   int // exponent of the least normal value
	maxValue float64
	hasInf   bool
}

var (
	// IEEE binary16
	half = minifloat{mantissa: 10, minExp: -14, maxValue: 65504, hasInf: true}
	// float8 E4M3FN: bias 7, no infinities, the all-ones pattern is NaN
	float8 = minifloat{mantissa: 3, minExp: -6, maxValue: 448}
)

// holds reports whether converting v to f and back reproduces v exactly.
// NaNs convert losslessly only in their canonical quiet form.
func (f minifloat) holds(v float64) bool {
	switch {
	case math.IsNaN(v):
		return math.Float64bits(v)&(1<<51-1) == 0
	case math.IsInf(v, 0):
		return f.hasInf
	case v == 0:
		return true
	}
	a := math.Abs(v)
	if a > f.maxValue {
		return false
	}
	_, exp := math.Frexp(a)
	e := max(exp-1, f.minExp)
	scaled := math.Ldexp(a, f.mantissa-e)
	return scaled == math.Trunc(scaled)
}

func fitsFloat(v ir.Value, f minifloat) bool {
	c, ok := ir.SplatFloat(v)
	return ok && c.Exact && f.holds(c.V)
}

// IsFloat8 reports whether v is a floating-point constant that float8 E4M3FN holds exactly.
func IsFloat8(v ir.Value) bool { return fitsFloat(v, float8) }

// IsHalf reports whether v is a floating-point constant that IEEE half holds exactly.
func IsHalf(v ir.Value) bool { return fitsFloat(v, half) }
