package llparse

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/dtcxzyw/r6/internal/ir"
)

func (p *parser) parseTypedValue() (ir.Value, error) {
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return p.parseValue(t)
}

// parseValue reads an operand of type t.
func (p *parser) parseValue(t ir.Type) (ir.Value, error) {
	if t == ir.Metadata {
		return p.parseMetadata()
	}
	tok := p.next()
	switch tok.kind {
	case tokLocal:
		if p.locals == nil {
			return nil, p.errorf("local value %%%s outside a function", tok.text)
		}
		return p.local(tok.text, t), nil
	case tokGlobal:
		v, ok := p.m.Lookup(tok.text)
		if !ok {
			return nil, p.errorf("use of undefined global @%s", tok.text)
		}
		return v, nil
	case tokInt:
		return p.intConst(t, tok.text)
	case tokFloat:
		return p.floatConst(t, tok.text)
	case tokString:
		return p.m.Expr(t, "c"+strconv.Quote(tok.text)), nil
	case tokMeta:
		p.pos--
		return p.parseMetadata()
	case tokPunct:
		switch tok.text {
		case "<":
			if p.acceptPunct("{") {
				elems, err := p.parseConstList("}")
				if err != nil {
					return nil, err
				}
				return p.m.Aggregate(t, elems), p.expectPunct(">")
			}
			elems, err := p.parseConstList(">")
			if err != nil {
				return nil, err
			}
			return p.m.Aggregate(t, elems), nil
		case "[", "{":
			closing := "]"
			if tok.text == "{" {
				closing = "}"
			}
			elems, err := p.parseConstList(closing)
			if err != nil {
				return nil, err
			}
			return p.m.Aggregate(t, elems), nil
		}
	case tokWord:
		return p.parseWordConst(t, tok)
	}
	if tok.kind != tokEOF {
		p.pos--
	}
	return nil, p.errorf("expected value, found %s", tok)
}

func (p *parser) parseWordConst(t ir.Type, tok token) (ir.Value, error) {
	switch tok.text {
	case "true", "false":
		it, ok := t.(*ir.IntType)
		if !ok {
			return nil, p.errorf("boolean constant of type %s", t)
		}
		v := int64(0)
		if tok.text == "true" {
			v = 1
		}
		return p.m.Int(it, big.NewInt(v)), nil
	case "null", "none":
		return p.m.Null(t), nil
	case "undef", "poison":
		return p.m.Undef(t, tok.text == "poison"), nil
	case "zeroinitializer":
		return p.m.Zero(t), nil
	case "splat":
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		v, err := p.parseTypedValue()
		if err != nil {
			return nil, err
		}
		elem, ok := v.(ir.Constant)
		vt, isVec := t.(*ir.VectorType)
		if !ok || !isVec || vt.Scalable {
			return nil, p.errorf("invalid splat of type %s", t)
		}
		elems := make([]ir.Constant, vt.Len)
		for i := range elems {
			elems[i] = elem
		}
		return p.m.Aggregate(t, elems), p.expectPunct(")")
	case "asm":
		return p.parseInlineAsm(t)
	}
	if hex, ok := strings.CutPrefix(tok.text, "s0x"); ok {
		return p.hexInt(t, hex)
	}
	if hex, ok := strings.CutPrefix(tok.text, "u0x"); ok {
		return p.hexInt(t, hex)
	}
	if !isValueWord(tok.text) {
		p.pos--
		return nil, p.errorf("expected value, found %s", tok)
	}
	return p.parseConstExpr(t, tok.text)
}

// parseConstExpr keeps a constant expression such as getelementptr (...) as text.
func (p *parser) parseConstExpr(t ir.Type, keyword string) (ir.Value, error) {
	parts := []string{keyword}
	for {
		switch {
		case p.atWord("inrange") && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "(":
			p.next()
			args, err := p.skipBalanced()
			if err != nil {
				return nil, err
			}
			parts = append(parts, "inrange"+args)
		case p.peek().kind == tokWord:
			parts = append(parts, p.next().text)
		case p.atPunct("("):
			args, err := p.skipBalanced()
			if err != nil {
				return nil, err
			}
			parts = append(parts, args)
			return p.m.Expr(t, strings.Join(parts, " ")), nil
		case p.peek().kind == tokGlobal:
			parts = append(parts, tokenText(p.next()))
			return p.m.Expr(t, strings.Join(parts, " ")), nil
		default:
			return nil, p.errorf("malformed constant expression after %q", keyword)
		}
	}
}

func (p *parser) parseInlineAsm(t ir.Type) (ir.Value, error) {
	parts := []string{"asm"}
	for p.peek().kind == tokWord {
		parts = append(parts, p.next().text)
	}
	body := p.next()
	if body.kind != tokString {
		return nil, p.errorf("expected inline asm string")
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	constraints := p.next()
	if constraints.kind != tokString {
		return nil, p.errorf("expected inline asm constraints")
	}
	parts = append(parts, strconv.Quote(body.text)+",", strconv.Quote(constraints.text))
	return &ir.Opaque{Typ: t, Text: strings.Join(parts, " ")}, nil
}

// parseConstList reads typed constants separated by commas up to closing.
func (p *parser) parseConstList(closing string) ([]ir.Constant, error) {
	var elems []ir.Constant
	for !p.acceptPunct(closing) {
		if len(elems) > 0 {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		v, err := p.parseTypedValue()
		if err != nil {
			return nil, err
		}
		c, ok := v.(ir.Constant)
		if !ok {
			return nil, p.errorf("non-constant %s in aggregate constant", v.Ident())
		}
		elems = append(elems, c)
	}
	return elems, nil
}

// parseMetadata consumes a metadata operand. Values wrapped in metadata are not uses.
func (p *parser) parseMetadata() (ir.Value, error) {
	var text string
	switch tok := p.peek(); {
	case tok.kind == tokMeta:
		p.next()
		text = tok.text
		if p.atPunct("(") || p.atPunct("{") {
			args, err := p.skipBalanced()
			if err != nil {
				return nil, err
			}
			text += args
		}
	case p.atType():
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		v := p.next()
		text = t.String() + " " + tokenText(v)
		if p.atPunct("(") {
			args, err := p.skipBalanced()
			if err != nil {
				return nil, err
			}
			text += args
		}
	default:
		return nil, p.errorf("expected metadata, found %s", tok)
	}
	return &ir.Opaque{Typ: ir.Metadata, Text: text}, nil
}

func (p *parser) intConst(t ir.Type, text string) (ir.Value, error) {
	switch t := t.(type) {
	case *ir.IntType:
		v, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return nil, p.errorf("bad integer literal %q", text)
		}
		return p.m.Int(t, v), nil
	case *ir.FloatType:
		return p.floatConst(t, text)
	}
	return nil, p.errorf("integer literal %s for type %s", text, t)
}

func (p *parser) hexInt(t ir.Type, hex string) (ir.Value, error) {
	it, ok := t.(*ir.IntType)
	if !ok {
		return nil, p.errorf("hex integer literal for type %s", t)
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, p.errorf("bad hex integer literal %q", hex)
	}
	return p.m.Int(it, v), nil
}

func (p *parser) floatConst(t ir.Type, text string) (ir.Value, error) {
	ft, ok := t.(*ir.FloatType)
	if !ok {
		return nil, p.errorf("floating-point literal %s for type %s", text, t)
	}
	v, exact, err := decodeFloat(ft.Kind, text)
	if err != nil {
		return nil, p.errorf("bad floating-point literal %q", text)
	}
	return p.m.Float(ft, v, exact), nil
}

// decodeFloat converts a floating-point literal of the given kind to float64.
// exact is false when the value does not survive the conversion.
func decodeFloat(kind ir.FloatKind, text string) (v float64, exact bool, err error) {
	hex, isHex := strings.CutPrefix(text, "0x")
	if !isHex {
		v, err = strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, false, err
		}
		exact = kind <= ir.Double || (v == math.Trunc(v) && math.Abs(v) < 1<<53)
		return v, exact, nil
	}
	prefix := byte(0)
	if hex != "" && hex[0] >= 'H' && hex[0] <= 'R' {
		prefix, hex = hex[0], hex[1:]
	}
	hi, lo, err := splitHex(hex, prefix)
	if err != nil {
		return 0, false, err
	}
	switch prefix {
	case 0:
		return math.Float64frombits(lo), true, nil
	case 'H':
		return halfToFloat64(uint16(lo)), true, nil
	case 'R':
		return float64(math.Float32frombits(uint32(lo) << 16)), true, nil
	case 'K':
		v, exact = extendedToFloat64(uint16(hi), lo)
		return v, exact, nil
	case 'L':
		v, exact = quadToFloat64(hi, lo)
		return v, exact, nil
	case 'M':
		v, exact = doubleDoubleToFloat64(hi, lo)
		return v, exact, nil
	}
	return 0, false, strconv.ErrSyntax
}

// splitHex decodes the digits of a hexadecimal float literal. For fp128 the low word
// is written first; for x86_fp80 the 16-bit sign and exponent come first; ppc_fp128
// writes the leading double first.
func splitHex(hex string, prefix byte) (hi, lo uint64, err error) {
	parse := func(s string) (uint64, error) { return strconv.ParseUint(s, 16, 64) }
	switch prefix {
	case 'K':
		if len(hex) != 20 {
			return 0, 0, strconv.ErrSyntax
		}
		if hi, err = parse(hex[:4]); err != nil {
			return 0, 0, err
		}
		lo, err = parse(hex[4:])
		return hi, lo, err
	case 'L', 'M':
		if len(hex) != 32 {
			return 0, 0, strconv.ErrSyntax
		}
		first, err := parse(hex[:16])
		if err != nil {
			return 0, 0, err
		}
		second, err := parse(hex[16:])
		if err != nil {
			return 0, 0, err
		}
		if prefix == 'L' {
			return second, first, nil
		}
		return first, second, nil
	default:
		if hex == "" || len(hex) > 16 {
			return 0, 0, strconv.ErrSyntax
		}
		lo, err = parse(hex)
		return 0, lo, err
	}
}

func halfToFloat64(h uint16) float64 {
	sign := 1.0
	if h&0x8000 != 0 {
		sign = -1
	}
	exp := int(h>>10) & 0x1f
	mant := float64(h & 0x3ff)
	switch exp {
	case 0:
		return sign * math.Ldexp(mant, -24)
	case 0x1f:
		if mant == 0 {
			return math.Inf(int(sign))
		}
		return math.NaN()
	}
	return sign * math.Ldexp(mant+1024, exp-25)
}

func extendedToFloat64(signExp uint16, mant uint64) (float64, bool) {
	neg := signExp&0x8000 != 0
	exp := int(signExp & 0x7fff)
	if exp == 0x7fff {
		if mant<<1 == 0 {
			return signedInf(neg), true
		}
		return math.NaN(), true
	}
	if exp == 0 {
		exp = 1
	}
	f := new(big.Float).SetPrec(64).SetUint64(mant)
	return toFloat64(f, exp-16383-63, neg)
}

func quadToFloat64(hi, lo uint64) (float64, bool) {
	neg := hi>>63 != 0
	exp := int(hi>>48) & 0x7fff
	m := new(big.Int).SetUint64(hi & (1<<48 - 1))
	m.Lsh(m, 64).Or(m, new(big.Int).SetUint64(lo))
	if exp == 0x7fff {
		if m.Sign() == 0 {
			return signedInf(neg), true
		}
		return math.NaN(), true
	}
	if exp == 0 {
		exp = 1
	} else {
		m.SetBit(m, 112, 1)
	}
	f := new(big.Float).SetPrec(113).SetInt(m)
	return toFloat64(f, exp-16383-112, neg)
}

func doubleDoubleToFloat64(hi, lo uint64) (float64, bool) {
	a, b := math.Float64frombits(hi), math.Float64frombits(lo)
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return a, true
	}
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return a, false
	}
	sum := new(big.Float).SetPrec(2200).SetFloat64(a)
	sum.Add(sum, new(big.Float).SetFloat64(b))
	v, acc := sum.Float64()
	return v, acc == big.Exact
}

func toFloat64(f *big.Float, exp int, neg bool) (float64, bool) {
	f.SetMantExp(f, exp)
	if neg {
		f.Neg(f)
	}
	v, acc := f.Float64()
	return v, acc == big.Exact
}

func signedInf(neg bool) float64 {
	if neg {
		return math.Inf(-1)
	}
	return math.Inf(1)
}
