package llparse

import (
	"github.com/dtcxzyw/r6/internal/ir"
)

// instFlags are the keywords that may follow an opcode. Only some are recorded.
var instFlags = map[string]ir.Flags{
	"nuw":      ir.FlagNUW,
	"nsw":      ir.FlagNSW,
	"exact":    ir.FlagExact,
	"nneg":     ir.FlagNNeg,
	"disjoint": ir.FlagDisjoint,
	"inbounds": ir.FlagInBounds,
	"volatile": ir.FlagVolatile,
	"atomic":   ir.FlagAtomic,
	// recognised and dropped
	"nusw":       0,
	"samesign":   0,
	"weak":       0,
	"inalloca":   0,
	"swifterror": 0,
	"nnan":       0,
	"ninf":       0,
	"nsz":        0,
	"arcp":       0,
	"contract":   0,
	"afn":        0,
	"reassoc":    0,
	"fast":       0,
}

func (p *parser) parseFlags(inst *ir.Inst) error {
	for p.peek().kind == tokWord {
		w := p.peek().text
		if w == "inrange" {
			p.next()
			if _, err := p.skipBalanced(); err != nil {
				return err
			}
			continue
		}
		f, ok := instFlags[w]
		if !ok {
			return nil
		}
		inst.Flags |= f
		p.next()
	}
	return nil
}

// parseInst reads one instruction, including an optional "%name =" prefix, and
// skips trailing alignment, ordering and metadata attachments.
func (p *parser) parseInst() (*ir.Inst, error) {
	var inst *ir.Inst
	name := ""
	if p.peek().kind == tokLocal && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "=" {
		name = p.next().text
		p.next()
		var err error
		if inst, err = p.define(name); err != nil {
			return nil, err
		}
	} else {
		inst = &ir.Inst{}
	}
	for p.atWord("tail") || p.atWord("musttail") || p.atWord("notail") {
		p.next()
	}
	opTok := p.next()
	op, ok := ir.OpcodeByName(opTok.text)
	if opTok.kind != tokWord || !ok {
		return nil, p.errorf("unknown instruction %s", opTok)
	}
	inst.Op, inst.Name, inst.Typ = op, name, nil
	if err := p.parseOperands(inst); err != nil {
		return nil, err
	}
	if inst.Typ == nil {
		inst.Typ = ir.Void
	}
	p.skipLine()
	return inst, nil
}

func (p *parser) parseOperands(inst *ir.Inst) error {
	if err := p.parseFlags(inst); err != nil {
		return err
	}
	switch op := inst.Op; {
	case op.IsBinary():
		x, y, err := p.parsePair()
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = []ir.Value{x, y}, x.Type()
	case op == ir.OpFNeg || op == ir.OpFreeze || op == ir.OpResume:
		x, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		inst.Ops = []ir.Value{x}
		if op != ir.OpResume {
			inst.Typ = x.Type()
		}
	case op.IsCast():
		x, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if err := p.expectWord("to"); err != nil {
			return err
		}
		t, err := p.parseType()
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = []ir.Value{x}, t
	case op == ir.OpICmp || op == ir.OpFCmp:
		predTok := p.next()
		pred, ok := ir.PredByName(predTok.text, op == ir.OpFCmp)
		if predTok.kind != tokWord || !ok {
			return p.errorf("unknown %s predicate %s", op, predTok)
		}
		x, y, err := p.parsePair()
		if err != nil {
			return err
		}
		inst.Pred, inst.Ops, inst.Typ = pred, []ir.Value{x, y}, boolLike(x.Type())
	case op == ir.OpSelect:
		ops, err := p.parseTypedList(3)
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = ops, ops[1].Type()
	case op == ir.OpPhi:
		return p.parsePhi(inst)
	case op == ir.OpAlloca:
		t, err := p.parseType()
		if err != nil {
			return err
		}
		inst.ElemType, inst.Typ = t, ir.Ptr
		if p.atPunct(",") && !p.peekIsWord(1, "align") && !p.peekIsWord(1, "addrspace") && p.peekAt(1).kind != tokMeta {
			p.next()
			n, err := p.parseTypedValue()
			if err != nil {
				return err
			}
			inst.Ops = []ir.Value{n}
		}
	case op == ir.OpLoad:
		t, err := p.parseType()
		if err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		ptr, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = []ir.Value{ptr}, t
	case op == ir.OpStore:
		ops, err := p.parseTypedList(2)
		if err != nil {
			return err
		}
		inst.Ops = ops
	case op == ir.OpGetElementPtr:
		return p.parseGEP(inst)
	case op == ir.OpFence:
		p.skipLine()
	case op == ir.OpCmpXchg:
		ops, err := p.parseTypedList(3)
		if err != nil {
			return err
		}
		inst.Ops = ops
		inst.Typ = &ir.StructType{Fields: []ir.Type{ops[1].Type(), ir.I1}}
	case op == ir.OpAtomicRMW:
		if p.peek().kind != tokWord {
			return p.errorf("expected atomicrmw operation, found %s", p.peek())
		}
		p.next()
		ops, err := p.parseTypedList(2)
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = ops, ops[1].Type()
	case op == ir.OpRet:
		if p.acceptWord("void") {
			return nil
		}
		x, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		inst.Ops = []ir.Value{x}
	case op == ir.OpBr:
		return p.parseBr(inst)
	case op == ir.OpSwitch:
		return p.parseSwitch(inst)
	case op == ir.OpIndirectBr:
		addr, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		succs, err := p.parseLabelList()
		if err != nil {
			return err
		}
		inst.Ops, inst.Succs = []ir.Value{addr}, succs
	case op == ir.OpUnreachable:
	case op == ir.OpCall || op == ir.OpInvoke || op == ir.OpCallBr:
		return p.parseCall(inst)
	case op == ir.OpVAArg:
		ap, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		t, err := p.parseType()
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = []ir.Value{ap}, t
	case op == ir.OpExtractElement:
		ops, err := p.parseTypedList(2)
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = ops, ir.ScalarType(ops[0].Type())
	case op == ir.OpInsertElement:
		ops, err := p.parseTypedList(3)
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = ops, ops[0].Type()
	case op == ir.OpShuffleVector:
		ops, err := p.parseTypedList(3)
		if err != nil {
			return err
		}
		inst.Ops, inst.Typ = ops, ops[0].Type()
		if mask, ok := ops[2].Type().(*ir.VectorType); ok {
			inst.Typ = &ir.VectorType{Len: mask.Len, Elem: ir.ScalarType(ops[0].Type()), Scalable: mask.Scalable}
		}
	case op == ir.OpExtractValue || op == ir.OpInsertValue:
		return p.parseAggregateOp(inst)
	case op == ir.OpLandingPad:
		return p.parseLandingPad(inst)
	case op == ir.OpCleanupPad || op == ir.OpCatchPad || op == ir.OpCatchSwitch:
		return p.parsePad(inst)
	case op == ir.OpCatchRet || op == ir.OpCleanupRet:
		return p.parsePadRet(inst)
	default:
		return p.errorf("unsupported instruction %s", op)
	}
	return nil
}

func (p *parser) peekIsWord(n int, w string) bool {
	t := p.peekAt(n)
	return t.kind == tokWord && t.text == w
}

// boolLike returns i1, or a vector of i1 shaped like t.
func boolLike(t ir.Type) ir.Type {
	if vt, ok := t.(*ir.VectorType); ok {
		return &ir.VectorType{Len: vt.Len, Elem: ir.I1, Scalable: vt.Scalable}
	}
	return ir.I1
}

// parsePair reads "ty x, y".
func (p *parser) parsePair() (ir.Value, ir.Value, error) {
	x, err := p.parseTypedValue()
	if err != nil {
		return nil, nil, err
	}
	if err := p.expectPunct(","); err != nil {
		return nil, nil, err
	}
	y, err := p.parseValue(x.Type())
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// parseTypedList reads exactly n comma separated typed operands.
func (p *parser) parseTypedList(n int) ([]ir.Value, error) {
	ops := make([]ir.Value, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		v, err := p.parseTypedValue()
		if err != nil {
			return nil, err
		}
		ops = append(ops, v)
	}
	return ops, nil
}

// atTrailer reports whether the comma at the cursor starts an attachment such as
// ", align 4" or ", !dbg !7" rather than another operand.
func (p *parser) atTrailer() bool {
	next := p.peekAt(1)
	if next.kind == tokMeta {
		return true
	}
	return next.kind == tokWord && !isTypeWord(next.text)
}

func (p *parser) parsePhi(inst *ir.Inst) error {
	t, err := p.parseType()
	if err != nil {
		return err
	}
	inst.Typ = t
	for {
		if err := p.expectPunct("["); err != nil {
			return err
		}
		v, err := p.parseValue(t)
		if err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		blk := p.next()
		if blk.kind != tokLocal {
			return p.errorf("expected incoming block, found %s", blk)
		}
		if err := p.expectPunct("]"); err != nil {
			return err
		}
		inst.Ops = append(inst.Ops, v)
		inst.Incoming = append(inst.Incoming, p.block(blk.text))
		if !p.atPunct(",") || !(p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "[") {
			return nil
		}
		p.next()
	}
}

func (p *parser) parseGEP(inst *ir.Inst) error {
	t, err := p.parseType()
	if err != nil {
		return err
	}
	inst.ElemType = t
	for p.atPunct(",") && !p.atTrailer() {
		p.next()
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		inst.Ops = append(inst.Ops, v)
	}
	if len(inst.Ops) == 0 {
		return p.errorf("getelementptr without base pointer")
	}
	inst.Typ = inst.Ops[0].Type()
	if _, isVec := inst.Typ.(*ir.VectorType); !isVec {
		for _, idx := range inst.Ops[1:] {
			if vt, ok := idx.Type().(*ir.VectorType); ok {
				inst.Typ = &ir.VectorType{Len: vt.Len, Elem: inst.Typ, Scalable: vt.Scalable}
				break
			}
		}
	}
	return nil
}

func (p *parser) parseBr(inst *ir.Inst) error {
	if p.atWord("label") {
		dest, err := p.parseLabel()
		if err != nil {
			return err
		}
		inst.Succs = []*ir.Block{dest}
		return nil
	}
	cond, err := p.parseTypedValue()
	if err != nil {
		return err
	}
	succs := make([]*ir.Block, 2)
	for i := range succs {
		if err := p.expectPunct(","); err != nil {
			return err
		}
		if succs[i], err = p.parseLabel(); err != nil {
			return err
		}
	}
	inst.Ops, inst.Succs = []ir.Value{cond}, succs
	return nil
}

func (p *parser) parseSwitch(inst *ir.Inst) error {
	cond, err := p.parseTypedValue()
	if err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	def, err := p.parseLabel()
	if err != nil {
		return err
	}
	inst.Ops, inst.Succs = []ir.Value{cond}, []*ir.Block{def}
	if err := p.expectPunct("["); err != nil {
		return err
	}
	for !p.acceptPunct("]") {
		c, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		dest, err := p.parseLabel()
		if err != nil {
			return err
		}
		inst.Ops = append(inst.Ops, c)
		inst.Succs = append(inst.Succs, dest)
	}
	return nil
}

// parseLabelList reads "[label %a, label %b]".
func (p *parser) parseLabelList() ([]*ir.Block, error) {
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var succs []*ir.Block
	for !p.acceptPunct("]") {
		if len(succs) > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		b, err := p.parseLabel()
		if err != nil {
			return nil, err
		}
		succs = append(succs, b)
	}
	return succs, nil
}

func (p *parser) parseCall(inst *ir.Inst) error {
	if err := p.skipAttrs(); err != nil {
		return err
	}
	ret, err := p.parseType()
	if err != nil {
		return err
	}
	if p.atPunct("(") {
		// explicit function type; only its return type matters
		if _, err := p.skipBalanced(); err != nil {
			return err
		}
	}
	callee, err := p.parseValue(ir.Ptr)
	if err != nil {
		return err
	}
	inst.Callee, inst.Typ = callee, ret
	if err := p.expectPunct("("); err != nil {
		return err
	}
	for !p.acceptPunct(")") {
		if len(inst.Ops) > 0 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		t, err := p.parseType()
		if err != nil {
			return err
		}
		if err := p.skipAttrs(); err != nil {
			return err
		}
		arg, err := p.parseValue(t)
		if err != nil {
			return err
		}
		inst.Ops = append(inst.Ops, arg)
	}

	// function attributes and operand bundles
	for !p.atEnd() && !p.atWord("to") && !p.atPunct(",") {
		if p.atPunct("[") {
			if _, err := p.skipBalanced(); err != nil {
				return err
			}
			continue
		}
		if err := p.parseFnAttr(&inst.Attrs); err != nil {
			return err
		}
	}

	if inst.Op == ir.OpInvoke || inst.Op == ir.OpCallBr {
		p.skipNewlines()
	}
	switch inst.Op {
	case ir.OpInvoke:
		if err := p.expectWord("to"); err != nil {
			return err
		}
		normal, err := p.parseLabel()
		if err != nil {
			return err
		}
		if err := p.expectWord("unwind"); err != nil {
			return err
		}
		unwind, err := p.parseLabel()
		if err != nil {
			return err
		}
		inst.Succs = []*ir.Block{normal, unwind}
	case ir.OpCallBr:
		if err := p.expectWord("to"); err != nil {
			return err
		}
		fallthroughDest, err := p.parseLabel()
		if err != nil {
			return err
		}
		indirect, err := p.parseLabelList()
		if err != nil {
			return err
		}
		inst.Succs = append([]*ir.Block{fallthroughDest}, indirect...)
	}
	return nil
}

func (p *parser) parseAggregateOp(inst *ir.Inst) error {
	agg, err := p.parseTypedValue()
	if err != nil {
		return err
	}
	inst.Ops, inst.Typ = []ir.Value{agg}, agg.Type()
	if inst.Op == ir.OpInsertValue {
		if err := p.expectPunct(","); err != nil {
			return err
		}
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		inst.Ops = append(inst.Ops, v)
	}
	for p.atPunct(",") && p.peekAt(1).kind == tokInt {
		p.next()
		idx, err := p.expectInt()
		if err != nil {
			return err
		}
		inst.Indices = append(inst.Indices, idx)
	}
	if len(inst.Indices) == 0 {
		return p.errorf("%s without indices", inst.Op)
	}
	if inst.Op == ir.OpInsertValue {
		return nil
	}
	t := agg.Type()
	for _, idx := range inst.Indices {
		switch at := t.(type) {
		case *ir.StructType:
			if idx >= uint64(len(at.Fields)) {
				return p.errorf("extractvalue index %d out of range for %s", idx, at)
			}
			t = at.Fields[idx]
		case *ir.ArrayType:
			t = at.Elem
		default:
			return p.errorf("extractvalue from non-aggregate %s", t)
		}
	}
	inst.Typ = t
	return nil
}

func (p *parser) parseLandingPad(inst *ir.Inst) error {
	t, err := p.parseType()
	if err != nil {
		return err
	}
	inst.Typ = t
	// clauses are usually printed on their own lines
	for {
		save := p.pos
		p.skipNewlines()
		switch {
		case p.acceptWord("cleanup"):
		case p.acceptWord("catch") || p.acceptWord("filter"):
			v, err := p.parseTypedValue()
			if err != nil {
				return err
			}
			inst.Ops = append(inst.Ops, v)
		default:
			p.pos = save
			return nil
		}
	}
}

// parsePad reads "within %parent [args]" for catchpad and cleanuppad, and
// "within %parent [label ...] unwind ..." for catchswitch.
func (p *parser) parsePad(inst *ir.Inst) error {
	if err := p.expectWord("within"); err != nil {
		return err
	}
	parent, err := p.parseValue(ir.Token)
	if err != nil {
		return err
	}
	inst.Ops, inst.Typ = []ir.Value{parent}, ir.Token
	if inst.Op == ir.OpCatchSwitch {
		handlers, err := p.parseLabelList()
		if err != nil {
			return err
		}
		inst.Succs = handlers
		return p.parseUnwindDest(inst)
	}
	if err := p.expectPunct("["); err != nil {
		return err
	}
	for !p.acceptPunct("]") {
		if len(inst.Ops) > 1 {
			if err := p.expectPunct(","); err != nil {
				return err
			}
		}
		v, err := p.parseTypedValue()
		if err != nil {
			return err
		}
		inst.Ops = append(inst.Ops, v)
	}
	return nil
}

func (p *parser) parsePadRet(inst *ir.Inst) error {
	if err := p.expectWord("from"); err != nil {
		return err
	}
	pad, err := p.parseValue(ir.Token)
	if err != nil {
		return err
	}
	inst.Ops = []ir.Value{pad}
	if inst.Op == ir.OpCleanupRet {
		return p.parseUnwindDest(inst)
	}
	if err := p.expectWord("to"); err != nil {
		return err
	}
	dest, err := p.parseLabel()
	if err != nil {
		return err
	}
	inst.Succs = []*ir.Block{dest}
	return nil
}

// parseUnwindDest reads "unwind label %x" or "unwind to caller".
func (p *parser) parseUnwindDest(inst *ir.Inst) error {
	if err := p.expectWord("unwind"); err != nil {
		return err
	}
	if p.acceptWord("to") {
		return p.expectWord("caller")
	}
	dest, err := p.parseLabel()
	if err != nil {
		return err
	}
	inst.Succs = append(inst.Succs, dest)
	return nil
}
