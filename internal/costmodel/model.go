// Package costmodel estimates what a function would cost on the target instruction set.
//
// For each function the estimator walks the reachable blocks in post-order and the
// instructions of each block in reverse. An instruction is charged only if a later
// instruction asked for its result or if deleting it would change behaviour. Each rule
// charges the instruction and requests the operands it cannot fold into an immediate
// field. Requested constants are charged once more at the end for being materialized.
package costmodel

import (
	"fmt"

	"github.com/dtcxzyw/r6/internal/analysis"
	"github.com/dtcxzyw/r6/internal/immediate"
	"github.com/dtcxzyw/r6/internal/ir"
	"github.com/dtcxzyw/r6/internal/isa"
	"github.com/dtcxzyw/r6/pkg/log"
)

// Model is a cost model for one instruction set revision. It holds no per-function
// state and may be shared between goroutines.
type Model struct {
	imm     immediate.Checker
	variant Variant
}

func New(p isa.Params, v Variant) *Model {
	return &Model{imm: immediate.NewChecker(p), variant: v}
}

func (m *Model) Params() isa.Params { return m.imm.Params() }
func (m *Model) Variant() Variant   { return m.variant }

// Summary is the result of estimating a whole module.
type Summary struct {
	Cost      uint64
	Functions int
	// Constants counts the materialized integer constants by value, one per function
	// that requested them.
	Constants map[int64]uint64
}

// Charge is one line of a Breakdown: an instruction, or a materialized value when
// Inst is nil.
type Charge struct {
	Inst  *ir.Inst
	Value ir.Value
	Cost  uint64
}

func (c Charge) String() string {
	if c.Inst != nil {
		return c.Inst.String()
	}
	return c.Value.Type().String() + " " + c.Value.Ident()
}

// Breakdown itemizes the cost of one function in visiting order.
type Breakdown struct {
	Function     string
	Total        uint64
	Insts        []Charge
	Materialized []Charge
}

// EstimateModule sums the cost of every function with a body.
func (m *Model) EstimateModule(mod *ir.Module) Summary {
	s := Summary{Constants: make(map[int64]uint64)}
	for _, fn := range mod.Funcs {
		if fn.IsDeclaration() {
			continue
		}
		e := m.newEstimator(fn, false)
		cost := e.run()
		s.Cost += cost
		s.Functions++
		for _, v := range e.order {
			if c, ok := v.(*ir.ConstInt); ok && c.Width() <= 64 {
				s.Constants[c.SExt()]++
			}
		}
		log.Engine.Debug().Str("module", mod.SourceFile).Str("function", fn.Name).
			Uint64("cost", cost).Msg("function estimated")
	}
	return s
}

// Estimate returns the cost of a single function. Declarations cost nothing.
func (m *Model) Estimate(fn *ir.Function) uint64 {
	if fn.IsDeclaration() {
		return 0
	}
	return m.newEstimator(fn, false).run()
}

// Explain is Estimate with an itemized result.
func (m *Model) Explain(fn *ir.Function) Breakdown {
	if fn.IsDeclaration() {
		return Breakdown{Function: fn.Name}
	}
	e := m.newEstimator(fn, true)
	e.breakdown.Total = e.run()
	return *e.breakdown
}

// estimator is the state of one function's analysis.
type estimator struct {
	m   *Model
	imm immediate.Checker
	fn  *ir.Function
	mod *ir.Module

	cost      uint64
	requested map[ir.Value]struct{}
	// order keeps requests in insertion order so itemized output is stable.
	order     []ir.Value
	breakdown *Breakdown
}

func (m *Model) newEstimator(fn *ir.Function, explain bool) *estimator {
	e := &estimator{
		m:         m,
		imm:       m.imm,
		fn:        fn,
		mod:       fn.Module,
		requested: make(map[ir.Value]struct{}),
	}
	if e.mod == nil {
		e.mod = ir.NewModule()
	}
	if explain {
		e.breakdown = &Breakdown{Function: fn.Name}
	}
	return e
}

func (e *estimator) add(k uint64) { e.cost += k }

func (e *estimator) request(v ir.Value) {
	if _, ok := e.requested[v]; ok {
		return
	}
	e.requested[v] = struct{}{}
	e.order = append(e.order, v)
}

func (e *estimator) isRequested(v ir.Value) bool {
	_, ok := e.requested[v]
	return ok
}

// addOperands charges k and requests every operand of inst.
func (e *estimator) addOperands(inst *ir.Inst, k uint64) {
	e.add(k)
	for _, v := range inst.Ops {
		e.request(v)
	}
}

func (e *estimator) run() uint64 {
	order := analysis.PostOrder(e.fn)

	// A live block keeps its phis, and a phi keeps all of its incoming values.
	for _, b := range order {
		for _, phi := range b.Phis() {
			for _, v := range phi.Ops {
				e.request(v)
			}
		}
	}

	for _, b := range order {
		for i := len(b.Insts) - 1; i >= 0; i-- {
			inst := b.Insts[i]
			if e.isRequested(inst) || !analysis.WouldBeTriviallyDead(inst) {
				e.visit(inst)
			}
		}
	}

	for _, v := range e.order {
		k := e.materialize(v)
		e.add(k)
		if e.breakdown != nil && k > 0 {
			e.breakdown.Materialized = append(e.breakdown.Materialized, Charge{Value: v, Cost: k})
		}
	}
	return e.cost
}

func (e *estimator) visit(inst *ir.Inst) {
	if inst.Op >= ir.NumOpcodes || rules[inst.Op] == nil {
		panic(fmt.Sprintf("costmodel: unhandled instruction: %s", inst))
	}
	before := e.cost
	rules[inst.Op](e, inst)
	if e.breakdown != nil {
		e.breakdown.Insts = append(e.breakdown.Insts, Charge{Inst: inst, Value: inst, Cost: e.cost - before})
	}
}

// materialize returns the cost of making a requested value available in a register.
// Instruction results and arguments are already there.
func (e *estimator) materialize(v ir.Value) uint64 {
	if e.m.variant == Legacy {
		switch c := v.(type) {
		case *ir.ConstInt:
			if c.Width() <= 64 {
				return CostLoadStore
			}
		case *ir.ConstFloat:
			return CostLoadStore
		case *ir.GlobalVar, *ir.Function:
			return CostGlobal
		}
		return 0
	}

	switch c := v.(type) {
	case *ir.ConstInt:
		if c.Width() > 64 {
			return 0
		}
		val := c.SExt()
		switch {
		case e.imm.LargeImm(val):
			return 1
		case e.imm.BitPattern(c):
			return 1
		case e.imm.LargeImmWithFixup(val):
			return 2
		}
		return CostLoadStore
	case *ir.ConstFloat:
		if e.imm.FPHalf(c) {
			return CostCheapFloat
		}
		return CostLoadStore
	}
	return 0
}
