package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexer walks source text rune by rune, tracking positions.
type lexer struct {
	src   string
	track *tracker
}

// Lex tokenizes one statement. The token slice always ends with an EOF
// token carrying the final position.
func Lex(src string) ([]Token, error) {
	lx := &lexer{src: src, track: newTracker()}
	var tokens []Token

	for {
		lx.skipSpace()
		if lx.done() {
			break
		}
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	tokens = append(tokens, Token{Kind: TokenEOF, Pos: lx.track.mark()})
	return tokens, nil
}

func (lx *lexer) done() bool {
	return lx.track.offset >= len(lx.src)
}

func (lx *lexer) peek() (rune, int) {
	return utf8.DecodeRuneInString(lx.src[lx.track.offset:])
}

func (lx *lexer) skipSpace() {
	for !lx.done() {
		r, size := lx.peek()
		if !unicode.IsSpace(r) {
			return
		}
		lx.track.advance(r, size)
	}
}

func (lx *lexer) next() (Token, error) {
	pos := lx.track.mark()
	r, size := lx.peek()

	if kind, ok := punctKind(r); ok {
		lx.track.advance(r, size)
		return Token{Kind: kind, Text: string(r), Raw: string(r), Pos: pos}, nil
	}

	switch {
	case r == '$':
		lx.track.advance(r, size)
		name := lx.takeWhile(isIdentRune)
		if name == "" {
			return Token{}, NewParseError(ErrorKindSyntax, "a variable needs a name after $").
				WithPosition(pos).
				WithSuggestion("write variables as $X")
		}
		return Token{Kind: TokenVariable, Text: strings.ToUpper(name), Raw: "$" + name, Pos: pos}, nil

	case unicode.IsLetter(r) || r == '_':
		word := lx.takeWhile(isIdentRune)
		upper := strings.ToUpper(word)
		kind := TokenIdent
		if keywords[upper] {
			kind = TokenKeyword
		}
		return Token{Kind: kind, Text: upper, Raw: word, Pos: pos}, nil

	case unicode.IsDigit(r):
		// Numbers and date-like literals share one shape: 0.7,
		// 2024-01-02, 15:04, 2024-01-02T15:04:05Z.
		word := lx.takeWhile(isNumberRune)
		return Token{Kind: TokenNumber, Text: word, Raw: word, Pos: pos}, nil
	}

	return Token{}, NewParseError(ErrorKindSyntax, fmt.Sprintf("unexpected character %q", r)).
		WithPosition(pos)
}

func (lx *lexer) takeWhile(pred func(rune) bool) string {
	start := lx.track.offset
	for !lx.done() {
		r, size := lx.peek()
		if !pred(r) {
			break
		}
		lx.track.advance(r, size)
	}
	return lx.src[start:lx.track.offset]
}

func punctKind(r rune) (TokenKind, bool) {
	switch r {
	case '(':
		return TokenLParen, true
	case ')':
		return TokenRParen, true
	case '[':
		return TokenLBracket, true
	case ']':
		return TokenRBracket, true
	case ',':
		return TokenComma, true
	case ':':
		return TokenColon, true
	case '=':
		return TokenEquals, true
	case '?':
		return TokenQuestion, true
	case '@':
		return TokenAt, true
	}
	return 0, false
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// isNumberRune admits the characters of numeric and date-like literals.
// Colons stay inside so clock times lex whole; a structural colon always
// follows an identifier or ')', never a digit.
func isNumberRune(r rune) bool {
	return unicode.IsDigit(r) || unicode.IsLetter(r) ||
		r == ':' || r == '-' || r == '+' || r == '.' || r == '/'
}
