package costmodel

import "github.com/dtcxzyw/r6/internal/ir"

var intrinsicRules = map[ir.IntrinsicID]rule{
	ir.IntrinsicCtlz:  bitCount,
	ir.IntrinsicCttz:  bitCount,
	ir.IntrinsicCtpop: bitCount,
	ir.IntrinsicAbs:   (*estimator).abs,

	ir.IntrinsicBswap:      unaryWithCost(1),
	ir.IntrinsicBitreverse: unaryWithCost(1),

	ir.IntrinsicSMax: (*estimator).minMax,
	ir.IntrinsicSMin: (*estimator).minMax,
	ir.IntrinsicUMax: (*estimator).minMax,
	ir.IntrinsicUMin: (*estimator).minMax,

	ir.IntrinsicCopysign:  (*estimator).copysign,
	ir.IntrinsicFAbs:      unaryWithCost(CostCheapFloat),
	ir.IntrinsicIsFPClass: unaryWithCost(CostCheapFloat),
	ir.IntrinsicMinNum:    unaryWithCost(CostCheapFloat),
	ir.IntrinsicMaxNum:    unaryWithCost(CostCheapFloat),
	ir.IntrinsicMinimum:   unaryWithCost(CostCheapFloat),
	ir.IntrinsicMaximum:   unaryWithCost(CostCheapFloat),
	ir.IntrinsicSqrt:      unaryWithCost(CostFDiv),

	ir.IntrinsicFMA:     fma,
	ir.IntrinsicFMulAdd: fma,
	ir.IntrinsicFShl:    (*estimator).funnelShift,
	ir.IntrinsicFShr:    (*estimator).funnelShift,
}

// call charges calls by callee: intrinsics the instruction set implements natively
// have their own rules, assume is free and everything else is a real call. Any other
// intrinsic, lifetime markers and debug records included, is charged as a call plus the
// unsupported penalty.
func (e *estimator) call(inst *ir.Inst) {
	id := inst.IntrinsicID()
	switch {
	case id == ir.NotIntrinsic:
		e.callBase(inst)
	case id == ir.IntrinsicAssume:
	case intrinsicRules[id] != nil:
		intrinsicRules[id](e, inst)
	default:
		e.add(CostUnsupported)
		e.callBase(inst)
	}
}

func unaryWithCost(k uint64) rule {
	return func(e *estimator, inst *ir.Inst) {
		e.add(k)
		e.request(inst.Ops[0])
	}
}

func bitCount(e *estimator, inst *ir.Inst) {
	e.add(CostBitCount)
	e.request(inst.Ops[0])
}

// abs of a difference is a single absolute-difference instruction.
func (e *estimator) abs(inst *ir.Inst) {
	e.add(1)
	if sub, ok := inst.Ops[0].(*ir.Inst); ok && sub.Op == ir.OpSub {
		e.request(sub.Ops[0])
		e.request(sub.Ops[1])
		return
	}
	e.request(inst.Ops[0])
}

func (e *estimator) minMax(inst *ir.Inst) {
	e.add(1)
	e.request(inst.Ops[0])
	if !e.imm.MinMax(inst.Ops[1]) {
		e.request(inst.Ops[1])
	}
}

// copysign folds an fneg of the sign operand.
func (e *estimator) copysign(inst *ir.Inst) {
	e.add(CostCheapFloat)
	mag, sign := inst.Ops[0], inst.Ops[1]
	if !e.imm.FPSmall(mag) {
		e.request(mag)
	}
	if x, ok := fnegOperand(sign); ok {
		sign = x
	}
	e.request(sign)
}

func fma(e *estimator, inst *ir.Inst) {
	e.add(CostFMul)
	for _, v := range inst.Ops[:3] {
		e.request(v)
	}
}

func (e *estimator) funnelShift(inst *ir.Inst) {
	e.add(1)
	e.request(inst.Ops[0])
	e.request(inst.Ops[1])
	if !e.imm.ShiftAmount(inst.Ops[2]) {
		e.request(inst.Ops[2])
	}
}
