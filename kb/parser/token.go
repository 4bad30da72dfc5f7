package parser

import "strings"

// TokenKind classifies lexed tokens.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenVariable // $X
	TokenNumber   // bare numbers and date-like literals
	TokenKeyword
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenColon
	TokenEquals
	TokenQuestion
	TokenAt
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:      "end of input",
	TokenIdent:    "identifier",
	TokenVariable: "variable",
	TokenNumber:   "number",
	TokenKeyword:  "keyword",
	TokenLParen:   "'('",
	TokenRParen:   "')'",
	TokenLBracket: "'['",
	TokenRBracket: "']'",
	TokenComma:    "','",
	TokenColon:    "':'",
	TokenEquals:   "'='",
	TokenQuestion: "'?'",
	TokenAt:       "'@'",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "token"
}

// Token is one lexed unit with its source position. Text carries the
// canonical form (keywords and idents uppercased, variables without the
// leading $); Raw preserves the original spelling for error messages.
type Token struct {
	Kind TokenKind
	Text string
	Raw  string
	Pos  Position
}

func (t Token) String() string {
	if t.Raw != "" {
		return t.Raw
	}
	return t.Kind.String()
}

// keywords recognized by the lexer. Truth literals lex as keywords too;
// the parser gives them meaning by position.
var keywords = map[string]bool{
	"FORALL": true, "EXISTS": true,
	"IF": true, "THEN": true,
	"AND": true, "OR": true, "NOT": true,
	"NAND": true, "NOR": true, "XOR": true, "XNOR": true, "IMPLIES": true,
	"TRUE": true, "FALSE": true, "UNKNOWN": true, "MAYBE": true,
	"CONTEXT": true, "IS": true,
	"FROM": true, "TO": true,
}

// IsKeyword reports whether a word is reserved by the statement grammar.
func IsKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}
