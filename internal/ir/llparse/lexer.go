package llparse

import (
	"fmt"
	"strings"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNewline
	tokLocal  // %name
	tokGlobal // @name
	tokLabel  // name:
	tokWord   // keywords and type names
	tokInt    // 42, -7
	tokFloat  // 1.5e+00, 0x3FF0000000000000, 0xH3C00
	tokString // "text", the literal has the quotes stripped
	tokMeta   // !name, !42, !"str", or a bare ! before {
	tokHash   // #0, #dbg_value
	tokPunct  // = , ( ) [ ] { } < > * ... :
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	}
	return fmt.Sprintf("%q", t.text)
}

// tokenizer splits IR text into tokens. Newlines are reported only outside brackets,
// so every instruction ends at a tokNewline even when it spans lines.
type tokenizer struct {
	input  string
	pos    int
	line   int
	depth  int
	tokens []token
}

func tokenize(input string, firstLine int) ([]token, error) {
	t := &tokenizer{input: input, line: firstLine}
	for {
		t.skipBlanks()
		if t.pos >= len(t.input) {
			t.add(tokEOF, "")
			return t.tokens, nil
		}
		ch := t.input[t.pos]
		var err error
		switch {
		case ch == '\n':
			t.pos++
			if t.depth == 0 {
				t.add(tokNewline, "")
			}
			t.line++
		case ch == '%' || ch == '@':
			err = t.readIdent(ch)
		case ch == '!':
			err = t.readMeta()
		case ch == '#':
			t.pos++
			t.add(tokHash, "#"+t.readWordChars())
		case ch == '"':
			var s string
			s, err = t.readString()
			if err == nil {
				if t.peekByte() == ':' {
					t.pos++
					t.add(tokLabel, s)
				} else {
					t.add(tokString, s)
				}
			}
		case strings.HasPrefix(t.input[t.pos:], "..."):
			t.pos += 3
			t.add(tokPunct, "...")
		case ch == '-' || isDigit(ch):
			err = t.readNumber()
		case isWordStart(ch):
			err = t.readWord()
		default:
			err = t.readPunct()
		}
		if err != nil {
			return nil, err
		}
	}
}

func (t *tokenizer) add(kind tokenKind, text string) {
	t.tokens = append(t.tokens, token{kind: kind, text: text, line: t.line})
}

func (t *tokenizer) peekByte() byte {
	if t.pos < len(t.input) {
		return t.input[t.pos]
	}
	return 0
}

func (t *tokenizer) skipBlanks() {
	for t.pos < len(t.input) {
		switch ch := t.input[t.pos]; {
		case ch == ' ' || ch == '\t' || ch == '\r':
			t.pos++
		case ch == ';':
			for t.pos < len(t.input) && t.input[t.pos] != '\n' {
				t.pos++
			}
		default:
			return
		}
	}
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
func isHex(ch byte) bool   { return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') }
func isWordStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '.' || ch == '$'
}
func isWordChar(ch byte) bool { return isWordStart(ch) || isDigit(ch) || ch == '-' }

func (t *tokenizer) readWordChars() string {
	start := t.pos
	for t.pos < len(t.input) && isWordChar(t.input[t.pos]) {
		t.pos++
	}
	return t.input[start:t.pos]
}

func (t *tokenizer) readString() (string, error) {
	start := t.line
	t.pos++ // opening quote
	begin := t.pos
	for t.pos < len(t.input) && t.input[t.pos] != '"' {
		if t.input[t.pos] == '\n' {
			t.line++
		}
		t.pos++
	}
	if t.pos >= len(t.input) {
		return "", fmt.Errorf("line %d: unterminated string: %w", start, ErrSyntax)
	}
	s := t.input[begin:t.pos]
	t.pos++
	return unescape(s), nil
}

// unescape resolves the \XX hex escapes used in quoted names and strings.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			out = append(out, hexVal(s[i+1])<<4|hexVal(s[i+2]))
			i += 2
			continue
		}
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\\' {
			out = append(out, '\\')
			i++
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func hexVal(ch byte) byte {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0'
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10
	default:
		return ch - 'A' + 10
	}
}

func (t *tokenizer) readIdent(sigil byte) error {
	kind := tokLocal
	if sigil == '@' {
		kind = tokGlobal
	}
	t.pos++
	if t.peekByte() == '"' {
		s, err := t.readString()
		if err != nil {
			return err
		}
		t.add(kind, s)
		return nil
	}
	name := t.readWordChars()
	if name == "" {
		return fmt.Errorf("line %d: empty identifier after %q: %w", t.line, sigil, ErrSyntax)
	}
	t.add(kind, name)
	return nil
}

func (t *tokenizer) readMeta() error {
	t.pos++
	if t.peekByte() == '"' {
		s, err := t.readString()
		if err != nil {
			return err
		}
		t.add(tokMeta, "!"+s)
		return nil
	}
	start := t.pos
	for t.pos < len(t.input) && (isWordChar(t.input[t.pos]) || t.input[t.pos] == '\\') {
		t.pos++
	}
	t.add(tokMeta, "!"+t.input[start:t.pos])
	return nil
}

func (t *tokenizer) readNumber() error {
	start := t.pos
	if t.input[t.pos] == '-' {
		t.pos++
		if !isDigit(t.peekByte()) {
			return fmt.Errorf("line %d: stray '-': %w", t.line, ErrSyntax)
		}
	}
	if t.input[t.pos] == '0' && t.pos+1 < len(t.input) && t.input[t.pos+1] == 'x' {
		t.pos += 2
		if c := t.peekByte(); c == 'K' || c == 'L' || c == 'M' || c == 'H' || c == 'R' {
			t.pos++
		}
		for t.pos < len(t.input) && isHex(t.input[t.pos]) {
			t.pos++
		}
		t.add(tokFloat, t.input[start:t.pos])
		return nil
	}
	kind := tokInt
	for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
		t.pos++
	}
	if t.peekByte() == '.' {
		kind = tokFloat
		t.pos++
		for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
			t.pos++
		}
	}
	if c := t.peekByte(); c == 'e' || c == 'E' {
		kind = tokFloat
		t.pos++
		if c := t.peekByte(); c == '+' || c == '-' {
			t.pos++
		}
		for t.pos < len(t.input) && isDigit(t.input[t.pos]) {
			t.pos++
		}
	}
	text := t.input[start:t.pos]
	if kind == tokInt && t.peekByte() == ':' {
		t.pos++
		t.add(tokLabel, text)
		return nil
	}
	// numeric-looking label names such as "1.lr.ph:" continue as words
	if isWordChar(t.peekByte()) {
		text += t.readWordChars()
		if t.peekByte() == ':' {
			t.pos++
			t.add(tokLabel, text)
			return nil
		}
		t.add(tokWord, text)
		return nil
	}
	t.add(kind, text)
	return nil
}

func (t *tokenizer) readWord() error {
	if c := t.input[t.pos]; (c == 'c') && t.pos+1 < len(t.input) && t.input[t.pos+1] == '"' {
		t.pos++
		s, err := t.readString()
		if err != nil {
			return err
		}
		t.add(tokString, s)
		return nil
	}
	word := t.readWordChars()
	if t.peekByte() == ':' {
		t.pos++
		t.add(tokLabel, word)
		return nil
	}
	t.add(tokWord, word)
	return nil
}

func (t *tokenizer) readPunct() error {
	ch := t.input[t.pos]
	switch ch {
	case '(', '[', '{':
		t.depth++
	case ')', ']', '}':
		if t.depth > 0 {
			t.depth--
		}
	case '=', ',', '<', '>', '*', ':', '|':
	default:
		return fmt.Errorf("line %d: unexpected character %q: %w", t.line, ch, ErrSyntax)
	}
	t.pos++
	t.add(tokPunct, string(ch))
	return nil
}
