// Package parser turns statement text into executable operations.
//
// The surface grammar:
//
//	statement   := assignment | query | definition
//	assignment  := expr '=' truthlit temporal?
//	query       := expr '?' ('@' timeexpr | 'FROM' timeexpr ('TO' timeexpr)?)?
//	definition  := 'CONTEXT' IDENT ':' expr
//	             | 'IF' expr 'THEN' predicate '=' truthlit
//	             | ('FORALL'|'EXISTS') '(' VAR (',' VAR)* ')' ':' statement
//	expr        := predicate | IDENT 'IS' IDENT | 'NOT' expr
//	             | expr CONNECTIVE expr | '(' expr ')' | '[' IDENT ']'
//	truthlit    := 'TRUE' | 'FALSE' | 'UNKNOWN' | 'MAYBE' '(' number ')'
//	temporal    := 'FROM' timeexpr ('TO' timeexpr)?
//
// Parsing produces an AST; Compile lowers it to ops a session executes.
// The parser is a boundary: nothing in here mutates the knowledge base.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/doxa/kb/contexts"
	"github.com/teranos/doxa/kb/temporal"
	"github.com/teranos/doxa/kb/truth"
)

// connectiveKeywords maps binary operator keywords to connectives, in
// precedence order from loosest to tightest binding.
var connectivePrecedence = []struct {
	word string
	conn truth.Connective
}{
	{"IMPLIES", truth.ConnImplies},
	{"XNOR", truth.ConnXnor},
	{"XOR", truth.ConnXor},
	{"NOR", truth.ConnNor},
	{"NAND", truth.ConnNand},
	{"OR", truth.ConnOr},
	{"AND", truth.ConnAnd},
}

// Parse reads one statement. Errors are always *ParseError.
func Parse(src string) (Statement, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	if p.at(TokenEOF) {
		return nil, NewParseError(ErrorKindSyntax, "empty statement")
	}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	if !p.at(TokenEOF) {
		return nil, NewParseError(ErrorKindSyntax, "unexpected input after statement").
			WithToken(p.cur())
	}
	return stmt, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) at(kind TokenKind) bool {
	return p.cur().Kind == kind
}

func (p *parser) atKeyword(words ...string) bool {
	if p.cur().Kind != TokenKeyword {
		return false
	}
	for _, w := range words {
		if p.cur().Text == w {
			return true
		}
	}
	return false
}

func (p *parser) advance() Token {
	tok := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind, where string) (Token, error) {
	if !p.at(kind) {
		return Token{}, NewParseError(ErrorKindSyntax,
			fmt.Sprintf("expected %s %s", kind, where)).
			WithToken(p.cur())
	}
	return p.advance(), nil
}

func (p *parser) statement() (Statement, error) {
	switch {
	case p.atKeyword("FORALL", "EXISTS"):
		return p.quantified()
	case p.atKeyword("IF"):
		return p.conditional()
	case p.atKeyword("CONTEXT"):
		return p.contextDef()
	}

	target, err := p.expr()
	if err != nil {
		return nil, err
	}

	switch {
	case p.at(TokenEquals):
		p.advance()
		return p.assignment(target)
	case p.at(TokenQuestion):
		p.advance()
		return p.query(target)
	}
	return nil, NewParseError(ErrorKindSyntax, "expected '=' or '?' after expression").
		WithToken(p.cur()).
		WithSuggestion("assert with '= TRUE' or ask with '?'")
}

func (p *parser) assignment(target Expr) (Statement, error) {
	value, err := p.truthLit()
	if err != nil {
		return nil, err
	}
	stmt := Assign{Target: target, Value: value}

	switch {
	case p.atKeyword("FROM"):
		p.advance()
		start, err := p.timeExpr()
		if err != nil {
			return nil, err
		}
		iv := temporal.From(start)
		if p.atKeyword("TO") {
			p.advance()
			end, err := p.timeExpr()
			if err != nil {
				return nil, err
			}
			if !end.After(start) {
				return nil, NewParseError(ErrorKindTemporal,
					fmt.Sprintf("interval start %s is not before its end %s",
						start.Format(time.RFC3339), end.Format(time.RFC3339)))
			}
			iv = temporal.Span(start, end)
		}
		stmt.Window = iv
		stmt.HasWindow = true
	case p.at(TokenAt):
		return nil, NewParseError(ErrorKindSemantic, "an assertion covers an interval, not an instant").
			WithToken(p.cur()).
			WithSuggestion("use FROM <start> [TO <end>]")
	}
	return stmt, nil
}

func (p *parser) query(target Expr) (Statement, error) {
	stmt := Query{Target: target}

	switch {
	case p.at(TokenAt):
		p.advance()
		at, err := p.timeExpr()
		if err != nil {
			return nil, err
		}
		stmt.At = &at
	case p.atKeyword("FROM"):
		p.advance()
		start, err := p.timeExpr()
		if err != nil {
			return nil, err
		}
		iv := temporal.From(start)
		if p.atKeyword("TO") {
			p.advance()
			end, err := p.timeExpr()
			if err != nil {
				return nil, err
			}
			if !end.After(start) {
				return nil, NewParseError(ErrorKindTemporal,
					fmt.Sprintf("interval start %s is not before its end %s",
						start.Format(time.RFC3339), end.Format(time.RFC3339)))
			}
			iv = temporal.Span(start, end)
		}
		stmt.Over = &iv
	}
	return stmt, nil
}

func (p *parser) contextDef() (Statement, error) {
	p.advance() // CONTEXT
	name, err := p.expect(TokenIdent, "after CONTEXT")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon, "after the context name"); err != nil {
		return nil, err
	}
	body, err := p.expr()
	if err != nil {
		return nil, err
	}
	return ContextDef{Name: name.Text, Body: body}, nil
}

func (p *parser) conditional() (Statement, error) {
	p.advance() // IF
	antecedent, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("THEN") {
		return nil, NewParseError(ErrorKindSyntax, "expected THEN after the condition").
			WithToken(p.cur())
	}
	p.advance()

	consequent, err := p.expr()
	if err != nil {
		return nil, err
	}
	pred, ok := consequent.(Pred)
	if !ok {
		return nil, NewParseError(ErrorKindSemantic,
			"a conditional derives a single predicate").
			WithSuggestion("write IF <condition> THEN TYPE(SUBJECT, OBJECT) = <value>")
	}

	if _, err := p.expect(TokenEquals, "after the conclusion"); err != nil {
		return nil, err
	}
	value, err := p.truthLit()
	if err != nil {
		return nil, err
	}
	return Conditional{Antecedent: antecedent, Consequent: pred, Value: value}, nil
}

func (p *parser) quantified() (Statement, error) {
	quant, _ := contexts.ParseQuantifier(p.advance().Text)

	if _, err := p.expect(TokenLParen, "after the quantifier"); err != nil {
		return nil, err
	}
	var vars []string
	for {
		v, err := p.expect(TokenVariable, "inside the quantifier")
		if err != nil {
			return nil, err
		}
		vars = append(vars, v.Text)
		if !p.at(TokenComma) {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenRParen, "after the quantifier variables"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon, "after the quantifier"); err != nil {
		return nil, err
	}

	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return Quantified{Quant: quant, Vars: vars, Body: body}, nil
}

// expr parses the connective precedence chain. Binary operators are
// left-associative; IMPLIES binds loosest, AND tightest, NOT tighter
// still.
func (p *parser) expr() (Expr, error) {
	return p.binary(0)
}

func (p *parser) binary(level int) (Expr, error) {
	if level == len(connectivePrecedence) {
		return p.unary()
	}
	op := connectivePrecedence[level]

	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for p.atKeyword(op.word) {
		p.advance()
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = Bin{Op: op.conn, L: left, R: right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	switch {
	case p.atKeyword("NOT"):
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case p.at(TokenLParen):
		p.advance()
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "to close the group"); err != nil {
			return nil, err
		}
		return x, nil
	}
	return p.atom()
}

func (p *parser) atom() (Expr, error) {
	switch {
	case p.at(TokenIdent) && p.peek().Kind == TokenLParen:
		return p.predicate()
	case p.atKeyword("IS") && p.peek().Kind == TokenLParen:
		// IS written as an ordinary predicate: IS(FIDO, DOG).
		return p.predicate()
	case p.at(TokenIdent):
		name := p.advance().Text
		if p.atKeyword("IS") {
			p.advance()
			parent, err := p.isOperand()
			if err != nil {
				return nil, err
			}
			return IsA{Child: name, Parent: parent}, nil
		}
		return Ident{Name: name}, nil
	case p.at(TokenVariable) && p.peek().Kind == TokenKeyword && p.peek().Text == "IS":
		child := "$" + p.advance().Text
		p.advance() // IS
		parent, err := p.isOperand()
		if err != nil {
			return nil, err
		}
		return IsA{Child: child, Parent: parent}, nil
	case p.at(TokenLBracket):
		p.advance()
		name, err := p.expect(TokenIdent, "inside the context reference")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRBracket, "to close the context reference"); err != nil {
			return nil, err
		}
		return CtxRef{Name: name.Text}, nil
	case p.at(TokenVariable):
		return nil, NewParseError(ErrorKindSemantic, "a variable is not a proposition on its own").
			WithToken(p.cur()).
			WithSuggestion("variables appear as predicate arguments: LIKES($X, MARY)")
	}
	return nil, NewParseError(ErrorKindSyntax, "expected a predicate, name, or group").
		WithToken(p.cur())
}

func (p *parser) predicate() (Expr, error) {
	name := p.advance().Text
	p.advance() // (

	var args []Arg
	for {
		arg, err := p.arg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.at(TokenComma) {
			break
		}
		p.advance()
	}
	closing, err := p.expect(TokenRParen, "to close the predicate")
	if err != nil {
		return nil, err
	}

	if len(args) != 2 {
		return nil, NewParseError(ErrorKindSemantic,
			fmt.Sprintf("%s takes exactly two arguments, got %d", name, len(args))).
			WithToken(closing).
			WithSuggestion("relations are binary: TYPE(SUBJECT, OBJECT)")
	}
	return Pred{Name: name, Subject: args[0], Object: args[1]}, nil
}

func (p *parser) arg() (Arg, error) {
	switch {
	case p.at(TokenIdent):
		return Arg{Text: p.advance().Text}, nil
	case p.at(TokenVariable):
		return Arg{Text: p.advance().Text, Variable: true}, nil
	}
	return Arg{}, NewParseError(ErrorKindSyntax, "expected an entity name or $variable").
		WithToken(p.cur())
}

// isOperand reads the right side of an IS phrase, which may be an
// entity name or a quantified variable.
func (p *parser) isOperand() (string, error) {
	switch {
	case p.at(TokenIdent):
		return p.advance().Text, nil
	case p.at(TokenVariable):
		return "$" + p.advance().Text, nil
	}
	return "", NewParseError(ErrorKindSyntax, "expected an entity name or $variable after IS").
		WithToken(p.cur())
}

func (p *parser) truthLit() (truth.Value, error) {
	tok := p.cur()
	if tok.Kind != TokenKeyword {
		return truth.Value{}, NewParseError(ErrorKindSyntax, "expected a truth value").
			WithToken(tok).
			WithSuggestion("TRUE, FALSE, UNKNOWN, or MAYBE(0.7)")
	}

	switch tok.Text {
	case "TRUE":
		p.advance()
		return truth.True, nil
	case "FALSE":
		p.advance()
		return truth.False, nil
	case "UNKNOWN":
		p.advance()
		return truth.Unknown, nil
	case "MAYBE":
		p.advance()
		if _, err := p.expect(TokenLParen, "after MAYBE"); err != nil {
			return truth.Value{}, err
		}
		num, err := p.expect(TokenNumber, "inside MAYBE")
		if err != nil {
			return truth.Value{}, err
		}
		w, convErr := strconv.ParseFloat(num.Text, 64)
		if convErr != nil {
			return truth.Value{}, NewParseError(ErrorKindSyntax,
				fmt.Sprintf("%q is not a weight", num.Raw)).
				WithToken(num)
		}
		if _, err := p.expect(TokenRParen, "to close MAYBE"); err != nil {
			return truth.Value{}, err
		}
		parsed, weightErr := truth.ParseWeight(w)
		if weightErr != nil {
			return truth.Value{}, NewParseError(ErrorKindSemantic,
				fmt.Sprintf("weight %v is outside [0, 1]", w)).
				WithToken(num).
				WithUnderlying(weightErr)
		}
		return truth.Superposed(parsed), nil
	}
	return truth.Value{}, NewParseError(ErrorKindSyntax, "expected a truth value").
		WithToken(tok).
		WithSuggestion("TRUE, FALSE, UNKNOWN, or MAYBE(0.7)")
}

// timeExpr collects a temporal phrase token by token, then resolves it.
// Collection stops at TO, '?', '=', or the first token that cannot
// continue a time expression.
func (p *parser) timeExpr() (time.Time, error) {
	start := p.cur()
	var words []string
	for {
		tok := p.cur()
		if tok.Kind == TokenEOF || p.atKeyword("TO") {
			break
		}
		if !isTemporalContinuation(tok) {
			break
		}
		words = append(words, tok.Raw)
		p.advance()
	}

	if len(words) == 0 {
		return time.Time{}, NewParseError(ErrorKindTemporal, "expected a time expression").
			WithToken(start).
			WithSuggestion("use a date like 2024-01-15 or a phrase like '3 days ago'")
	}

	t, err := ParseTemporalExpression(strings.Join(words, " "))
	if err != nil {
		if pe, ok := IsParseError(err); ok {
			return time.Time{}, pe.WithPosition(start.Pos)
		}
		return time.Time{}, err
	}
	return t, nil
}
