package ir

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strconv"
	"strings"
)

// Value is anything an instruction can use as an operand.
// Values are compared by identity.
type Value interface {
	Type() Type
	// Ident is the operand spelling without the type, e.g. "%x", "@g" or "42".
	Ident() string
}

// Constant is a Value fixed at compile time. Constants are interned per module.
type Constant interface {
	Value
	isConstant()
}

type Argument struct {
	Name   string
	Typ    Type
	Index  int
	Parent *Function
}

func (a *Argument) Type() Type     { return a.Typ }
func (a *Argument) Ident() string  { return localIdent(a.Name) }
func (a *Argument) String() string { return a.Typ.String() + " " + a.Ident() }

// GlobalVar is the address of a module-level variable or alias.
type GlobalVar struct {
	Name string
}

func (g *GlobalVar) Type() Type    { return Ptr }
func (g *GlobalVar) Ident() string { return globalIdent(g.Name) }
func (*GlobalVar) isConstant()     {}

// ConstInt holds the two's complement bit pattern of an integer constant, 0 <= V < 2^Bits.
type ConstInt struct {
	Typ *IntType
	V   *big.Int
}

func (c *ConstInt) Type() Type { return c.Typ }
func (*ConstInt) isConstant()  {}
func (c *ConstInt) Ident() string {
	if c.Typ.Bits == 1 {
		if c.V.Sign() == 0 {
			return "false"
		}
		return "true"
	}
	return c.Signed().String()
}

func (c *ConstInt) Width() uint32 { return c.Typ.Bits }

// Signed returns the value interpreted as a signed integer.
func (c *ConstInt) Signed() *big.Int {
	if c.V.Bit(int(c.Typ.Bits)-1) == 0 {
		return new(big.Int).Set(c.V)
	}
	return new(big.Int).Sub(c.V, new(big.Int).Lsh(big.NewInt(1), uint(c.Typ.Bits)))
}

// ZExt returns the low 64 bits of the zero-extended value.
func (c *ConstInt) ZExt() uint64 {
	if c.Typ.Bits > 64 {
		return new(big.Int).And(c.V, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
	}
	return c.V.Uint64()
}

// SExt returns the sign-extended value; only meaningful when Width() <= 64.
func (c *ConstInt) SExt() int64 {
	w := c.Typ.Bits
	if w >= 64 {
		return int64(c.ZExt())
	}
	shift := 64 - w
	return int64(c.ZExt()<<shift) >> shift
}

func (c *ConstInt) IsZero() bool { return c.V.Sign() == 0 }
func (c *ConstInt) IsOne() bool  { return c.V.IsUint64() && c.V.Uint64() == 1 }
func (c *ConstInt) IsAllOnes() bool {
	return c.V.BitLen() == int(c.Typ.Bits) && popCount(c.V) == int(c.Typ.Bits)
}
func (c *ConstInt) IsPowerOf2() bool { return popCount(c.V) == 1 }

func popCount(v *big.Int) int {
	n := 0
	for _, w := range v.Bits() {
		n += bits.OnesCount(uint(w))
	}
	return n
}

// ConstFloat holds a floating-point constant as a float64. Exact is false when the
// source type holds the value with more precision or range than float64 can.
type ConstFloat struct {
	Typ   *FloatType
	V     float64
	Exact bool
}

func (c *ConstFloat) Type() Type { return c.Typ }
func (*ConstFloat) isConstant()  {}
func (c *ConstFloat) Ident() string {
	if !c.Exact || math.IsNaN(c.V) || math.IsInf(c.V, 0) {
		return fmt.Sprintf("0x%016X", math.Float64bits(c.V))
	}
	return strconv.FormatFloat(c.V, 'e', 6, 64)
}

type ConstNull struct{ Typ Type }

func (c *ConstNull) Type() Type  { return c.Typ }
func (*ConstNull) Ident() string { return "null" }
func (*ConstNull) isConstant()   {}

// ConstUndef is undef, or poison when Poison is set.
type ConstUndef struct {
	Typ    Type
	Poison bool
}

func (c *ConstUndef) Type() Type { return c.Typ }
func (c *ConstUndef) Ident() string {
	if c.Poison {
		return "poison"
	}
	return "undef"
}
func (*ConstUndef) isConstant() {}

// ConstZero is zeroinitializer.
type ConstZero struct{ Typ Type }

func (c *ConstZero) Type() Type  { return c.Typ }
func (*ConstZero) Ident() string { return "zeroinitializer" }
func (*ConstZero) isConstant()   {}

// ConstAggregate is a vector, array or struct constant.
type ConstAggregate struct {
	Typ   Type
	Elems []Constant
}

func (c *ConstAggregate) Type() Type { return c.Typ }
func (*ConstAggregate) isConstant()  {}
func (c *ConstAggregate) Ident() string {
	parts := make([]string, len(c.Elems))
	for i, e := range c.Elems {
		parts[i] = e.Type().String() + " " + e.Ident()
	}
	open, closing := "{ ", " }"
	switch c.Typ.(type) {
	case *VectorType:
		open, closing = "<", ">"
	case *ArrayType:
		open, closing = "[", "]"
	}
	return open + strings.Join(parts, ", ") + closing
}

// Splat returns the common element of a vector whose elements are all identical.
func (c *ConstAggregate) Splat() (Constant, bool) {
	if _, ok := c.Typ.(*VectorType); !ok || len(c.Elems) == 0 {
		return nil, false
	}
	for _, e := range c.Elems[1:] {
		if e != c.Elems[0] {
			return nil, false
		}
	}
	return c.Elems[0], true
}

// SplatInt returns the integer held by a scalar constant, a splat vector or a
// zeroinitializer of integer type.
func SplatInt(v Value) (*ConstInt, bool) {
	switch c := v.(type) {
	case *ConstInt:
		return c, true
	case *ConstAggregate:
		if e, ok := c.Splat(); ok {
			return SplatInt(e)
		}
	case *ConstZero:
		if it, ok := ScalarType(c.Typ).(*IntType); ok {
			return &ConstInt{Typ: it, V: new(big.Int)}, true
		}
	}
	return nil, false
}

// SplatFloat is SplatInt for floating-point constants.
func SplatFloat(v Value) (*ConstFloat, bool) {
	switch c := v.(type) {
	case *ConstFloat:
		return c, true
	case *ConstAggregate:
		if e, ok := c.Splat(); ok {
			return SplatFloat(e)
		}
	case *ConstZero:
		if ft, ok := ScalarType(c.Typ).(*FloatType); ok {
			return &ConstFloat{Typ: ft, V: 0, Exact: true}, true
		}
	}
	return nil, false
}

// ConstExpr is a constant expression kept in textual form, e.g. a constant getelementptr.
type ConstExpr struct {
	Typ  Type
	Text string
}

func (c *ConstExpr) Type() Type    { return c.Typ }
func (c *ConstExpr) Ident() string { return c.Text }
func (*ConstExpr) isConstant()     {}

// Opaque is an operand the model never inspects: metadata, inline asm, block addresses.
type Opaque struct {
	Typ  Type
	Text string
}

func (o *Opaque) Type() Type    { return o.Typ }
func (o *Opaque) Ident() string { return o.Text }

func localIdent(name string) string  { return "%" + quoteIdent(name) }
func globalIdent(name string) string { return "@" + quoteIdent(name) }

func quoteIdent(name string) string {
	for _, r := range name {
		if !(r == '.' || r == '_' || r == '$' || r == '-' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return strconv.Quote(name)
		}
	}
	return name
}
