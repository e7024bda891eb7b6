package parser

import (
	"fmt"
	"strings"
)

// LexError is a lexer error with a source offset, per spec.md §4.1.
type LexError struct {
	Msg    string
	Offset int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Msg)
}

type lexer struct {
	src []rune
	pos int
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

func isPathStopChar(r rune) bool {
	return r == '(' || r == ')' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// Lex tokenizes src per spec.md §4.1.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: []rune(src)}
	var toks []Token
	for {
		l.skipSpace()
		if l.atEOF() {
			toks = append(toks, Token{Kind: TokEOF, Offset: l.pos})
			return toks, nil
		}
		start := l.pos
		r := l.cur()
		switch {
		case r == '(':
			l.pos++
			toks = append(toks, Token{Kind: TokLParen, Offset: start})
		case r == ')':
			l.pos++
			toks = append(toks, Token{Kind: TokRParen, Offset: start})
		case r == '[':
			l.pos++
			if !l.atEOF() && l.cur() == ']' && (len(toks) == 0 || toks[len(toks)-1].Kind == TokRBracket) {
				// "[]" after a call's function part is an empty argument list;
				// with nothing preceding it, or in the output position right
				// after an argument list, it is an accumulator marker with no
				// name (a named accumulator suffix is handled in lexIdentLike).
				return nil, &LexError{Msg: "unexpected empty accumulator marker", Offset: start}
			}
			toks = append(toks, Token{Kind: TokLBracket, Offset: start})
		case r == ']':
			l.pos++
			toks = append(toks, Token{Kind: TokRBracket, Offset: start})
		case r == '"':
			s, err := l.lexString()
			if err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokString, Text: s, Offset: start})
		case r == '%':
			if err := l.expectLiteral("%init_peer_id%"); err != nil {
				return nil, err
			}
			toks = append(toks, Token{Kind: TokInitPeer, Offset: start})
		case isIdentChar(r):
			tok, err := l.lexIdentLike(start)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		default:
			return nil, &LexError{Msg: fmt.Sprintf("unexpected character %q", r), Offset: start}
		}
	}
}

func (l *lexer) atEOF() bool { return l.pos >= len(l.src) }
func (l *lexer) cur() rune  { return l.src[l.pos] }

func (l *lexer) skipSpace() {
	for !l.atEOF() {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) lexString() (string, error) {
	start := l.pos
	l.pos++ // consume opening quote
	var b strings.Builder
	for {
		if l.atEOF() {
			return "", &LexError{Msg: "unclosed string literal", Offset: start}
		}
		r := l.cur()
		if r == '"' {
			l.pos++
			return b.String(), nil
		}
		if r == '\\' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '"' {
			b.WriteRune('"')
			l.pos += 2
			continue
		}
		b.WriteRune(r)
		l.pos++
	}
}

func (l *lexer) expectLiteral(lit string) error {
	start := l.pos
	runes := []rune(lit)
	if l.pos+len(runes) > len(l.src) {
		return &LexError{Msg: fmt.Sprintf("expected %q", lit), Offset: start}
	}
	for i, r := range runes {
		if l.src[l.pos+i] != r {
			return &LexError{Msg: fmt.Sprintf("expected %q", lit), Offset: start}
		}
	}
	l.pos += len(runes)
	return nil
}

// lexIdentLike scans an identifier and then looks, with no intervening
// whitespace, for an accumulator marker "[]" or a JSON-path suffix
// beginning with '.'.
func (l *lexer) lexIdentLike(start int) (Token, error) {
	identStart := l.pos
	for !l.atEOF() && isIdentChar(l.cur()) {
		l.pos++
	}
	ident := string(l.src[identStart:l.pos])
	if ident == "" {
		return Token{}, &LexError{Msg: "expected identifier", Offset: start}
	}

	if !l.atEOF() && l.cur() == '[' && l.pos+1 < len(l.src) && l.src[l.pos+1] == ']' {
		if ident == "" {
			return Token{}, &LexError{Msg: "empty accumulator name", Offset: start}
		}
		l.pos += 2
		return Token{Kind: TokAccum, Text: ident, Offset: start}, nil
	}

	if !l.atEOF() && l.cur() == '.' {
		pathStart := l.pos
		depth := 0
		for !l.atEOF() && !isPathStopChar(l.cur()) {
			switch l.cur() {
			case '[':
				depth++
			case ']':
				if depth == 0 {
					goto pathDone
				}
				depth--
			}
			l.pos++
		}
	pathDone:
		path := string(l.src[pathStart:l.pos])
		if path == "." || path == "" {
			return Token{}, &LexError{Msg: "malformed json path", Offset: start}
		}
		return Token{Kind: TokJSONPath, Text: ident, Path: path, Offset: start}, nil
	}

	if keywords[ident] {
		return Token{Kind: TokKeyword, Text: ident, Offset: start}, nil
	}
	return Token{Kind: TokIdent, Text: ident, Offset: start}, nil
}
