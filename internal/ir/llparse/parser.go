// Package llparse reads the textual LLVM IR emitted by optimizing compilers into the
// ir object model. It understands the instruction set, types and constants the cost
// model looks at; metadata, comdats and debug records are skipped.
package llparse

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dtcxzyw/r6/internal/ir"
)

var ErrSyntax = errors.New("syntax error")

// ParseFile reads and parses the module stored at path.
func ParseFile(path string) (*ir.Module, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src)
}

type body struct {
	fn        *ir.Function
	text      string
	firstLine int
}

// Parse builds a module from IR text. name is recorded as the module's source file.
func Parse(name string, src []byte) (*ir.Module, error) {
	p := &parser{
		m:      ir.NewModule(),
		groups: make(map[string]ir.Attrs),
	}
	p.m.SourceFile = name

	lines := strings.Split(string(src), "\n")
	for n := range lines {
		lines[n] = strings.TrimRight(lines[n], " \t\r")
	}

	// Types, attribute groups and the data layout come first so that function
	// headers can refer to them. Top-level entities start in the first column.
	for n, line := range lines {
		var err error
		switch {
		case strings.HasPrefix(line, "target datalayout"):
			err = p.parseDataLayout(line, n+1)
		case strings.HasPrefix(line, "%") && strings.Contains(line, "= type "):
			err = p.parseTypeDef(line, n+1)
		case strings.HasPrefix(line, "attributes #"):
			err = p.parseAttrGroup(line, n+1)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	var bodies []body
	for n := 0; n < len(lines); n++ {
		line := lines[n]
		switch {
		case strings.HasPrefix(line, "define "):
			fn, err := p.parseHeader(line, n+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			start := n + 1
			for n++; n < len(lines) && lines[n] != "}"; n++ {
			}
			if n >= len(lines) {
				return nil, fmt.Errorf("%s: line %d: unterminated function body: %w", name, start, ErrSyntax)
			}
			bodies = append(bodies, body{fn: fn, text: strings.Join(lines[start:n], "\n"), firstLine: start + 1})
		case strings.HasPrefix(line, "declare "):
			if _, err := p.parseHeader(line, n+1); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		case strings.HasPrefix(line, "@"):
			if err := p.parseGlobal(line, n+1); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	for _, b := range bodies {
		if err := p.parseBody(b); err != nil {
			return nil, fmt.Errorf("%s: @%s: %w", name, b.fn.Name, err)
		}
	}
	return p.m, nil
}

type parser struct {
	m      *ir.Module
	groups map[string]ir.Attrs

	toks []token
	pos  int

	// per-function state
	fn      *ir.Function
	locals  map[string]ir.Value
	pending map[string]*ir.Inst
	blocks  map[string]*ir.Block
	defined map[*ir.Block]bool
}

func (p *parser) reset(text string, line int) error {
	toks, err := tokenize(text, line)
	if err != nil {
		return err
	}
	p.toks, p.pos = toks, 0
	return nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) atWord(s string) bool {
	t := p.peek()
	return t.kind == tokWord && t.text == s
}

func (p *parser) atEnd() bool {
	k := p.peek().kind
	return k == tokNewline || k == tokEOF
}

func (p *parser) acceptPunct(s string) bool {
	if p.atPunct(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptWord(s string) bool {
	if p.atWord(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s: %w", p.peek().line, fmt.Sprintf(format, args...), ErrSyntax)
}

func (p *parser) expectPunct(s string) error {
	if !p.acceptPunct(s) {
		return p.errorf("expected %q, found %s", s, p.peek())
	}
	return nil
}

func (p *parser) expectWord(s string) error {
	if !p.acceptWord(s) {
		return p.errorf("expected %q, found %s", s, p.peek())
	}
	return nil
}

func (p *parser) expectInt() (uint64, error) {
	t := p.peek()
	if t.kind != tokInt {
		return 0, p.errorf("expected integer, found %s", t)
	}
	p.pos++
	n, err := strconv.ParseUint(t.text, 10, 64)
	if err != nil {
		return 0, p.errorf("bad integer %q", t.text)
	}
	return n, nil
}

// skipBalanced consumes a bracketed group starting at the current opening bracket
// and returns its tokens rendered back to text.
func (p *parser) skipBalanced() (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		t := p.next()
		if t.kind == tokEOF {
			return "", p.errorf("unbalanced brackets")
		}
		if sb.Len() > 0 && !(t.kind == tokPunct && (t.text == ")" || t.text == "]" || t.text == "}" || t.text == ",")) &&
			!strings.HasSuffix(sb.String(), "(") {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokenText(t))
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		if depth == 0 {
			return sb.String(), nil
		}
	}
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.pos++
	}
}

// skipLine consumes the rest of the current line.
func (p *parser) skipLine() {
	for !p.atEnd() {
		p.pos++
	}
}

func tokenText(t token) string {
	switch t.kind {
	case tokLocal:
		return "%" + quote(t.text)
	case tokGlobal:
		return "@" + quote(t.text)
	case tokString:
		return strconv.Quote(t.text)
	case tokLabel:
		return t.text + ":"
	}
	return t.text
}

func quote(name string) string {
	for i := 0; i < len(name); i++ {
		if !isWordChar(name[i]) {
			return strconv.Quote(name)
		}
	}
	return name
}

func (p *parser) parseDataLayout(line string, n int) error {
	if err := p.reset(line, n); err != nil {
		return err
	}
	p.next() // target
	p.next() // datalayout
	if err := p.expectPunct("="); err != nil {
		return err
	}
	t := p.next()
	if t.kind != tokString {
		return p.errorf("expected datalayout string")
	}
	dl, err := ir.ParseLayout(t.text)
	if err != nil {
		return fmt.Errorf("line %d: %w", n, err)
	}
	p.m.Layout = dl
	return nil
}

func (p *parser) parseTypeDef(line string, n int) error {
	if err := p.reset(line, n); err != nil {
		return err
	}
	name := p.next().text
	if err := p.expectPunct("="); err != nil {
		return err
	}
	if err := p.expectWord("type"); err != nil {
		return err
	}
	st := p.namedType(name)
	if p.acceptWord("opaque") {
		return nil
	}
	t, err := p.parseType()
	if err != nil {
		return err
	}
	body, ok := t.(*ir.StructType)
	if !ok {
		return p.errorf("named type %%%s is not a struct", name)
	}
	st.Fields, st.Packed, st.Opaque = body.Fields, body.Packed, false
	return nil
}

func (p *parser) namedType(name string) *ir.StructType {
	if st, ok := p.m.Types[name]; ok {
		return st
	}
	st := &ir.StructType{Name: name, Opaque: true}
	p.m.Types[name] = st
	return st
}

func (p *parser) parseAttrGroup(line string, n int) error {
	if err := p.reset(line, n); err != nil {
		return err
	}
	p.next() // attributes
	id := p.next()
	if id.kind != tokHash {
		return p.errorf("expected attribute group id")
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	var attrs ir.Attrs
	for !p.atPunct("}") && !p.atEnd() {
		if err := p.parseFnAttr(&attrs); err != nil {
			return err
		}
	}
	p.groups[id.text] = attrs
	return nil
}

// parseFnAttr consumes one function attribute and folds it into attrs.
func (p *parser) parseFnAttr(attrs *ir.Attrs) error {
	t := p.next()
	switch t.kind {
	case tokHash:
		if g, ok := p.groups[t.text]; ok {
			*attrs = attrs.Merge(g)
		}
	case tokWord:
		if p.atPunct("(") {
			args, err := p.skipBalanced()
			if err != nil {
				return err
			}
			attrs.Apply(t.text + args)
			return nil
		}
		attrs.Apply(t.text)
		if (t.text == "alignstack" || t.text == "align") && p.peek().kind == tokInt {
			p.next()
		}
	case tokString:
		// "key"="value"
		if p.acceptPunct("=") {
			p.next()
		}
	case tokPunct:
		if t.text == "(" || t.text == "[" || t.text == "{" {
			p.pos--
			_, err := p.skipBalanced()
			return err
		}
	}
	return nil
}

// parseGlobal registers the name of a global variable, alias or ifunc. Initializers
// are not needed by the cost model and are left unread.
func (p *parser) parseGlobal(line string, n int) error {
	end := strings.Index(line, " = ")
	if strings.HasPrefix(line, `@"`) {
		if q := strings.IndexByte(line[2:], '"'); q >= 0 {
			end = q + 3
		}
	}
	if end < 0 {
		return fmt.Errorf("line %d: malformed global: %w", n, ErrSyntax)
	}
	if err := p.reset(line[:end], n); err != nil {
		return err
	}
	name := p.next()
	if name.kind != tokGlobal {
		return p.errorf("expected global name, found %s", name)
	}
	p.m.Declare(name.text, &ir.GlobalVar{Name: name.text})
	return nil
}

// parseHeader reads a define or declare line and registers the function.
func (p *parser) parseHeader(line string, n int) (*ir.Function, error) {
	if err := p.reset(line, n); err != nil {
		return nil, err
	}
	define := p.next().text == "define"
	if err := p.skipAttrs(); err != nil {
		return nil, err
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok := p.next()
	if nameTok.kind != tokGlobal {
		return nil, p.errorf("expected function name, found %s", nameTok)
	}
	fn := &ir.Function{
		Name:      nameTok.text,
		Sig:       &ir.FuncType{Ret: ret},
		Intrinsic: ir.LookupIntrinsic(nameTok.text),
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	unnamed := 0
	for !p.acceptPunct(")") {
		if len(fn.Params) > 0 || fn.Sig.Variadic {
			if err := p.expectPunct(","); err != nil {
				return nil, err
			}
		}
		if p.acceptPunct("...") {
			fn.Sig.Variadic = true
			continue
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.skipAttrs(); err != nil {
			return nil, err
		}
		arg := &ir.Argument{Typ: t, Index: len(fn.Params), Parent: fn}
		if p.peek().kind == tokLocal {
			arg.Name = p.next().text
		} else {
			arg.Name = strconv.Itoa(unnamed)
			unnamed++
		}
		fn.Params = append(fn.Params, arg)
		fn.Sig.Params = append(fn.Sig.Params, t)
	}
	for !p.atEnd() && !p.atPunct("{") {
		switch {
		case p.atWord("personality") || p.atWord("prefix") || p.atWord("prologue"):
			// the operand may name a function declared further down
			p.next()
			if _, err := p.parseType(); err != nil {
				return nil, err
			}
			p.next()
			if p.atPunct("(") {
				if _, err := p.skipBalanced(); err != nil {
					return nil, err
				}
			}
		case p.peek().kind == tokMeta:
			p.next()
		default:
			if err := p.parseFnAttr(&fn.Attrs); err != nil {
				return nil, err
			}
		}
	}
	if define && !p.atPunct("{") {
		return nil, p.errorf("expected '{' after function header")
	}

	if old, ok := p.m.Lookup(fn.Name); ok {
		prev, isFn := old.(*ir.Function)
		if !isFn || !prev.IsDeclaration() || !define {
			return nil, p.errorf("redefinition of @%s", fn.Name)
		}
		*prev = *fn
		prev.Module = p.m
		for _, a := range prev.Params {
			a.Parent = prev
		}
		return prev, nil
	}
	p.m.Declare(fn.Name, fn)
	return fn, nil
}

// skipAttrs consumes linkage, calling convention and parameter or return attributes
// up to the next type or value.
func (p *parser) skipAttrs() error {
	for {
		t := p.peek()
		switch {
		case t.kind == tokString && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "=":
			// "key"="value" string attributes
			p.pos += 3
		case t.kind == tokWord && !isTypeWord(t.text) && !isValueWord(t.text):
			p.next()
			if p.atPunct("(") {
				if _, err := p.skipBalanced(); err != nil {
					return err
				}
			}
			if (t.text == "align" || t.text == "cc" || t.text == "dereferenceable") && p.peek().kind == tokInt {
				p.next()
			}
		default:
			return nil
		}
	}
}

func (p *parser) parseBody(b body) error {
	if err := p.reset(b.text, b.firstLine); err != nil {
		return err
	}
	p.fn = b.fn
	p.locals = make(map[string]ir.Value)
	p.pending = make(map[string]*ir.Inst)
	p.blocks = make(map[string]*ir.Block)
	p.defined = make(map[*ir.Block]bool)
	for _, a := range b.fn.Params {
		p.locals[a.Name] = a
	}

	var cur *ir.Block
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return p.finishBody()
		case t.kind == tokNewline:
			p.next()
			continue
		case t.kind == tokLabel:
			p.next()
			blk := p.block(t.text)
			if p.defined[blk] {
				return p.errorf("redefinition of block %%%s", t.text)
			}
			p.defined[blk] = true
			p.fn.Blocks = append(p.fn.Blocks, blk)
			cur = blk
			continue
		case t.kind == tokHash && strings.HasPrefix(t.text, "#dbg_"),
			t.kind == tokWord && strings.HasPrefix(t.text, "uselistorder"):
			p.skipLine()
			continue
		}
		if cur == nil {
			cur = p.block(strconv.Itoa(unnamedParams(p.fn)))
			p.defined[cur] = true
			p.fn.Blocks = append(p.fn.Blocks, cur)
		}
		inst, err := p.parseInst()
		if err != nil {
			return err
		}
		inst.Parent = cur
		cur.Insts = append(cur.Insts, inst)
	}
}

// unnamedParams counts the parameters that took a slot in the implicit numbering.
func unnamedParams(fn *ir.Function) int {
	n := 0
	for _, a := range fn.Params {
		if _, err := strconv.Atoi(a.Name); err == nil {
			n++
		}
	}
	return n
}

func (p *parser) finishBody() error {
	if len(p.pending) > 0 {
		name := slices.Sorted(maps.Keys(p.pending))[0]
		return fmt.Errorf("use of undefined value %%%s: %w", name, ErrSyntax)
	}
	for _, name := range slices.Sorted(maps.Keys(p.blocks)) {
		if !p.defined[p.blocks[name]] {
			return fmt.Errorf("use of undefined block %%%s: %w", name, ErrSyntax)
		}
	}
	for _, blk := range p.fn.Blocks {
		if blk.Terminator() == nil {
			return fmt.Errorf("block %%%s has no terminator: %w", blk.Name, ErrSyntax)
		}
	}
	return nil
}

func (p *parser) block(name string) *ir.Block {
	if b, ok := p.blocks[name]; ok {
		return b
	}
	b := &ir.Block{Name: name, Parent: p.fn}
	p.blocks[name] = b
	return b
}

func (p *parser) parseLabel() (*ir.Block, error) {
	if err := p.expectWord("label"); err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind != tokLocal {
		return nil, p.errorf("expected block name, found %s", t)
	}
	return p.block(t.text), nil
}

// local resolves a function-local value, creating a placeholder for forward references.
func (p *parser) local(name string, t ir.Type) ir.Value {
	if v, ok := p.locals[name]; ok {
		return v
	}
	inst := &ir.Inst{Name: name, Typ: t}
	p.pending[name] = inst
	p.locals[name] = inst
	return inst
}

// define returns the instruction that will carry the result named name.
func (p *parser) define(name string) (*ir.Inst, error) {
	if inst, ok := p.pending[name]; ok {
		delete(p.pending, name)
		return inst, nil
	}
	if _, ok := p.locals[name]; ok {
		return nil, p.errorf("redefinition of %%%s", name)
	}
	inst := &ir.Inst{Name: name}
	p.locals[name] = inst
	return inst, nil
}
