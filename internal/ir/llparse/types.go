package llparse

import (
	"strconv"
	"strings"

	"github.com/dtcxzyw/r6/internal/ir"
)

var floatKinds = map[string]ir.FloatKind{
	"half":      ir.Half,
	"bfloat":    ir.BFloat,
	"float":     ir.Float,
	"double":    ir.Double,
	"x86_fp80":  ir.X86FP80,
	"fp128":     ir.FP128,
	"ppc_fp128": ir.PPCFP128,
}

func isTypeWord(w string) bool {
	switch w {
	case "void", "ptr", "label", "metadata", "token", "x86_amx", "x86_mmx", "target":
		return true
	}
	if _, ok := floatKinds[w]; ok {
		return true
	}
	return isIntTypeWord(w)
}

func isIntTypeWord(w string) bool {
	if len(w) < 2 || w[0] != 'i' {
		return false
	}
	_, err := strconv.ParseUint(w[1:], 10, 32)
	return err == nil
}

var valueWords = map[string]bool{
	"null": true, "undef": true, "poison": true, "zeroinitializer": true, "none": true,
	"true": true, "false": true, "splat": true, "asm": true, "blockaddress": true,
	"dso_local_equivalent": true, "no_cfi": true, "ptrauth": true,
}

// isValueWord reports whether w starts a constant rather than an attribute.
func isValueWord(w string) bool {
	if valueWords[w] {
		return true
	}
	if _, ok := ir.OpcodeByName(w); ok {
		return true
	}
	return strings.HasPrefix(w, "s0x") || strings.HasPrefix(w, "u0x")
}

// parseType reads a first-class type. Function types are handled by the call parser.
func (p *parser) parseType() (ir.Type, error) {
	t, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	// typed pointers from older producers
	for p.acceptPunct("*") {
		t = ir.Ptr
	}
	return t, nil
}

func (p *parser) parseBaseType() (ir.Type, error) {
	t := p.next()
	switch t.kind {
	case tokLocal:
		return p.namedType(t.text), nil
	case tokPunct:
		switch t.text {
		case "[":
			n, err := p.expectInt()
			if err != nil {
				return nil, err
			}
			if err := p.expectWord("x"); err != nil {
				return nil, err
			}
			elem, err := p.parseType()
			if err != nil {
				return nil, err
			}
			return &ir.ArrayType{Len: n, Elem: elem}, p.expectPunct("]")
		case "<":
			if p.atPunct("{") {
				p.next()
				fields, err := p.parseFields()
				if err != nil {
					return nil, err
				}
				return &ir.StructType{Fields: fields, Packed: true}, p.expectPunct(">")
			}
			scalable := p.acceptWord("vscale")
			if scalable {
				if err := p.expectWord("x"); err != nil {
					return nil, err
				}
			}
			n, err := p.expectInt()
			if err != nil {
				return nil, err
			}
			if err := p.expectWord("x"); err != nil {
				return nil, err
			}
			elem, err := p.parseType()
			if err != nil {
				return nil, err
			}
			return &ir.VectorType{Len: n, Elem: elem, Scalable: scalable}, p.expectPunct(">")
		case "{":
			fields, err := p.parseFields()
			if err != nil {
				return nil, err
			}
			return &ir.StructType{Fields: fields}, nil
		}
	case tokWord:
		if k, ok := floatKinds[t.text]; ok {
			return &ir.FloatType{Kind: k}, nil
		}
		if isIntTypeWord(t.text) {
			bits, _ := strconv.ParseUint(t.text[1:], 10, 32)
			if bits == 0 || bits > 1<<23 {
				return nil, p.errorf("invalid integer width %s", t.text)
			}
			return &ir.IntType{Bits: uint32(bits)}, nil
		}
		switch t.text {
		case "void":
			return ir.Void, nil
		case "label":
			return ir.Label, nil
		case "metadata":
			return ir.Metadata, nil
		case "token":
			return ir.Token, nil
		case "ptr":
			if p.acceptWord("addrspace") {
				if err := p.expectPunct("("); err != nil {
					return nil, err
				}
				as, err := p.expectInt()
				if err != nil {
					return nil, err
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				if as != 0 {
					return &ir.PointerType{AddrSpace: uint32(as)}, nil
				}
			}
			return ir.Ptr, nil
		case "x86_amx", "x86_mmx":
			return &ir.StructType{Name: t.text, Opaque: true}, nil
		case "target":
			text, err := p.skipBalanced()
			if err != nil {
				return nil, err
			}
			return &ir.StructType{Name: "target" + text, Opaque: true}, nil
		}
	}
	if t.kind != tokEOF {
		p.pos--
	}
	return nil, p.errorf("expected type, found %s", t)
}

// parseFields reads struct fields after the opening brace, up to and including "}".
func (p *parser) parseFields() ([]ir.Type, error) {
	var fields []ir.Type
	for !p.acceptPunct("}") {
		if len(fields) > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		f, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// atType reports whether the next token can start a type.
func (p *parser) atType() bool {
	t := p.peek()
	switch t.kind {
	case tokLocal:
		return true
	case tokWord:
		return isTypeWord(t.text)
	case tokPunct:
		return t.text == "[" || t.text == "<" || t.text == "{"
	}
	return false
}
