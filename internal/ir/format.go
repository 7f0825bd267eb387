package ir

import (
	"fmt"
	"strings"
)

func typedOperand(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Type().String() + " " + v.Ident()
}

// String renders the instruction in textual IR form. Attributes and metadata are omitted.
func (i *Inst) String() string {
	var sb strings.Builder
	if i.Name != "" {
		sb.WriteString(i.Ident())
		sb.WriteString(" = ")
	}
	sb.WriteString(i.Op.String())

	flags := []struct {
		f    Flags
		name string
	}{
		{FlagVolatile, "volatile"}, {FlagAtomic, "atomic"}, {FlagNUW, "nuw"},
		{FlagNSW, "nsw"}, {FlagExact, "exact"}, {FlagNNeg, "nneg"},
		{FlagDisjoint, "disjoint"}, {FlagInBounds, "inbounds"},
	}
	for _, fl := range flags {
		if i.Flags.Has(fl.f) {
			sb.WriteString(" " + fl.name)
		}
	}

	switch {
	case i.Op == OpICmp || i.Op == OpFCmp:
		fmt.Fprintf(&sb, " %s %s, %s", i.Pred, typedOperand(i.Ops[0]), i.Ops[1].Ident())
	case i.Op.IsBinary():
		fmt.Fprintf(&sb, " %s, %s", typedOperand(i.Ops[0]), i.Ops[1].Ident())
	case i.Op.IsCast():
		fmt.Fprintf(&sb, " %s to %s", typedOperand(i.Ops[0]), i.Typ)
	case i.Op == OpPhi:
		fmt.Fprintf(&sb, " %s", i.Typ)
		for n, v := range i.Ops {
			if n > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, " [ %s, %s ]", v.Ident(), i.Incoming[n].Ident())
		}
	case i.Op == OpCall || i.Op == OpInvoke:
		args := make([]string, len(i.Ops))
		for n, a := range i.Ops {
			args[n] = typedOperand(a)
		}
		callee := "<nil>"
		if i.Callee != nil {
			callee = i.Callee.Ident()
		}
		fmt.Fprintf(&sb, " %s %s(%s)", i.Typ, callee, strings.Join(args, ", "))
		if i.Op == OpInvoke && len(i.Succs) == 2 {
			fmt.Fprintf(&sb, " to label %s unwind label %s", i.Succs[0].Ident(), i.Succs[1].Ident())
		}
	case i.Op == OpGetElementPtr || i.Op == OpAlloca || i.Op == OpLoad:
		parts := []string{}
		if i.ElemType != nil {
			parts = append(parts, i.ElemType.String())
		}
		for _, v := range i.Ops {
			parts = append(parts, typedOperand(v))
		}
		sb.WriteString(" " + strings.Join(parts, ", "))
	case i.Op == OpBr:
		switch len(i.Succs) {
		case 1:
			fmt.Fprintf(&sb, " label %s", i.Succs[0].Ident())
		case 2:
			fmt.Fprintf(&sb, " %s, label %s, label %s", typedOperand(i.Ops[0]), i.Succs[0].Ident(), i.Succs[1].Ident())
		}
	case i.Op == OpSwitch:
		fmt.Fprintf(&sb, " %s, label %s [", typedOperand(i.Ops[0]), i.Succs[0].Ident())
		for n, c := range i.Ops[1:] {
			fmt.Fprintf(&sb, " %s, label %s", typedOperand(c), i.Succs[n+1].Ident())
		}
		sb.WriteString(" ]")
	case i.Op == OpExtractValue || i.Op == OpInsertValue:
		parts := make([]string, 0, len(i.Ops)+len(i.Indices))
		for _, v := range i.Ops {
			parts = append(parts, typedOperand(v))
		}
		for _, idx := range i.Indices {
			parts = append(parts, fmt.Sprint(idx))
		}
		sb.WriteString(" " + strings.Join(parts, ", "))
	default:
		parts := make([]string, 0, len(i.Ops)+len(i.Succs))
		for _, v := range i.Ops {
			parts = append(parts, typedOperand(v))
		}
		for _, b := range i.Succs {
			parts = append(parts, "label "+b.Ident())
		}
		if len(parts) > 0 {
			sb.WriteString(" " + strings.Join(parts, ", "))
		} else if i.Op == OpRet {
			sb.WriteString(" void")
		}
	}
	return sb.String()
}

func writeFunction(sb *strings.Builder, f *Function) {
	keyword := "define"
	if f.IsDeclaration() {
		keyword = "declare"
	}
	params := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		params = append(params, p.String())
	}
	if f.Sig != nil && f.Sig.Variadic {
		params = append(params, "...")
	}
	var ret Type = Void
	if f.Sig != nil {
		ret = f.Sig.Ret
	}
	fmt.Fprintf(sb, "%s %s %s(%s)", keyword, ret, f.Ident(), strings.Join(params, ", "))
	if f.IsDeclaration() {
		sb.WriteByte('\n')
		return
	}
	sb.WriteString(" {\n")
	for n, b := range f.Blocks {
		if n > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(sb, "%s:\n", quoteIdent(b.Name))
		for _, inst := range b.Insts {
			sb.WriteString("  ")
			sb.WriteString(inst.String())
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
}
