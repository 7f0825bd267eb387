package ir

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Module is a parsed translation unit. It is read-only once built.
type Module struct {
	SourceFile string
	Layout     *DataLayout
	Funcs      []*Function
	Types      map[string]*StructType

	symbols map[string]Value
	consts  map[string]Constant
}

func NewModule() *Module {
	return &Module{
		Layout:  DefaultLayout(),
		Types:   make(map[string]*StructType),
		symbols: make(map[string]Value),
		consts:  make(map[string]Constant),
	}
}

// Lookup returns the function or global variable named name, if declared.
func (m *Module) Lookup(name string) (Value, bool) {
	v, ok := m.symbols[name]
	return v, ok
}

// Declare registers a global symbol; redeclaring a name returns the existing one.
func (m *Module) Declare(name string, v Value) Value {
	if old, ok := m.symbols[name]; ok {
		return old
	}
	m.symbols[name] = v
	if fn, ok := v.(*Function); ok {
		fn.Module = m
		m.Funcs = append(m.Funcs, fn)
	}
	return v
}

func (m *Module) intern(key string, build func() Constant) Constant {
	if c, ok := m.consts[key]; ok {
		return c
	}
	c := build()
	m.consts[key] = c
	return c
}

// Int returns the unique integer constant of type t with value v (taken modulo 2^t.Bits).
func (m *Module) Int(t *IntType, v *big.Int) *ConstInt {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(t.Bits))
	norm := new(big.Int).Mod(v, mod)
	key := t.String() + " " + norm.String()
	return m.intern(key, func() Constant {
		return &ConstInt{Typ: &IntType{Bits: t.Bits}, V: norm}
	}).(*ConstInt)
}

// IntValue is Int for small values.
func (m *Module) IntValue(bits uint32, v int64) *ConstInt {
	return m.Int(&IntType{Bits: bits}, big.NewInt(v))
}

// Float returns the unique floating-point constant of type t.
func (m *Module) Float(t *FloatType, v float64, exact bool) *ConstFloat {
	c := &ConstFloat{Typ: &FloatType{Kind: t.Kind}, V: v, Exact: exact}
	key := fmt.Sprintf("%s %016x %t", t, math.Float64bits(v), exact)
	return m.intern(key, func() Constant { return c }).(*ConstFloat)
}

func (m *Module) Null(t Type) *ConstNull {
	return m.intern(t.String()+" null", func() Constant { return &ConstNull{Typ: t} }).(*ConstNull)
}

func (m *Module) Undef(t Type, poison bool) *ConstUndef {
	c := &ConstUndef{Typ: t, Poison: poison}
	return m.intern(t.String()+" "+c.Ident(), func() Constant { return c }).(*ConstUndef)
}

func (m *Module) Zero(t Type) *ConstZero {
	return m.intern(t.String()+" zeroinitializer", func() Constant { return &ConstZero{Typ: t} }).(*ConstZero)
}

func (m *Module) Aggregate(t Type, elems []Constant) *ConstAggregate {
	c := &ConstAggregate{Typ: t, Elems: elems}
	return m.intern(t.String()+" "+c.Ident(), func() Constant { return c }).(*ConstAggregate)
}

func (m *Module) Expr(t Type, text string) *ConstExpr {
	return m.intern(t.String()+" "+text, func() Constant { return &ConstExpr{Typ: t, Text: text} }).(*ConstExpr)
}

// Function is a defined or declared function; its address is a constant.
type Function struct {
	Name      string
	Sig       *FuncType
	Params    []*Argument
	Blocks    []*Block
	Attrs     Attrs
	Intrinsic IntrinsicID
	Module    *Module
}

func (f *Function) Type() Type    { return Ptr }
func (f *Function) Ident() string { return globalIdent(f.Name) }
func (*Function) isConstant()     {}

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool { return len(f.Blocks) == 0 }

func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// InstCount returns the number of instructions across all blocks.
func (f *Function) InstCount() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Insts)
	}
	return n
}

// Block is a basic block; its last instruction is the terminator.
type Block struct {
	Name   string
	Insts  []*Inst
	Parent *Function
}

func (b *Block) Ident() string { return localIdent(b.Name) }

// Terminator returns the block's terminator, or nil for a malformed block.
func (b *Block) Terminator() *Inst {
	if len(b.Insts) == 0 {
		return nil
	}
	last := b.Insts[len(b.Insts)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Succs returns the successor blocks in terminator order.
func (b *Block) Succs() []*Block {
	if t := b.Terminator(); t != nil {
		return t.Succs
	}
	return nil
}

// Phis returns the leading phi instructions.
func (b *Block) Phis() []*Inst {
	n := 0
	for n < len(b.Insts) && b.Insts[n].Op == OpPhi {
		n++
	}
	return b.Insts[:n]
}

// FirstNonPhi returns the first instruction that is not a phi.
func (b *Block) FirstNonPhi() *Inst {
	if phis := b.Phis(); len(phis) < len(b.Insts) {
		return b.Insts[len(phis)]
	}
	return nil
}

func (f *Function) String() string {
	var sb strings.Builder
	writeFunction(&sb, f)
	return sb.String()
}
