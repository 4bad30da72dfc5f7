package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenKinds(tokens []Token) []TokenKind {
	kinds := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestLexStatement(t *testing.T) {
	tokens, err := Lex("LOVES(JOHN, MARY) = TRUE")
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{
		TokenIdent, TokenLParen, TokenIdent, TokenComma, TokenIdent,
		TokenRParen, TokenEquals, TokenKeyword, TokenEOF,
	}, tokenKinds(tokens))
	assert.Equal(t, "LOVES", tokens[0].Text)
	assert.Equal(t, "TRUE", tokens[7].Text)
}

func TestLexNormalizesCase(t *testing.T) {
	tokens, err := Lex("likes(john, mary) = true")
	require.NoError(t, err)

	assert.Equal(t, "LIKES", tokens[0].Text)
	assert.Equal(t, "likes", tokens[0].Raw)

	last := tokens[len(tokens)-2]
	assert.Equal(t, TokenKeyword, last.Kind)
	assert.Equal(t, "TRUE", last.Text)
	assert.Equal(t, "true", last.Raw)
}

func TestLexVariables(t *testing.T) {
	tokens, err := Lex("$x AND $guest_2")
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{TokenVariable, TokenKeyword, TokenVariable, TokenEOF}, tokenKinds(tokens))
	assert.Equal(t, "X", tokens[0].Text)
	assert.Equal(t, "$x", tokens[0].Raw)
	assert.Equal(t, "GUEST_2", tokens[2].Text)
	assert.Equal(t, "$guest_2", tokens[2].Raw)
}

func TestLexBareDollar(t *testing.T) {
	_, err := Lex("$ LIKES")
	require.Error(t, err)

	pe, ok := IsParseError(err)
	require.True(t, ok)
	assert.Equal(t, ErrorKindSyntax, pe.Kind)
	assert.Contains(t, pe.Message, "variable needs a name")
	assert.Contains(t, pe.Suggestions, "write variables as $X")
	require.NotNil(t, pe.Pos)
	assert.Equal(t, Position{Line: 1, Column: 0, Offset: 0}, *pe.Pos)
}

func TestLexDatelikeLiteralsStayWhole(t *testing.T) {
	for _, src := range []string{
		"3",
		"0.7",
		"15:04",
		"2024-01-02",
		"2024/01/02",
		"2024-01-02T15:04:05Z",
	} {
		tokens, err := Lex(src)
		require.NoError(t, err, "input %q", src)
		require.Len(t, tokens, 2, "input %q", src)
		assert.Equal(t, TokenNumber, tokens[0].Kind, "input %q", src)
		assert.Equal(t, src, tokens[0].Text, "input %q", src)
	}
}

func TestLexPositionTracking(t *testing.T) {
	tokens, err := Lex("LIKES(A, B)\n= TRUE")
	require.NoError(t, err)
	require.Len(t, tokens, 9)

	assert.Equal(t, Position{Line: 1, Column: 0, Offset: 0}, tokens[0].Pos)
	assert.Equal(t, Position{Line: 1, Column: 9, Offset: 9}, tokens[4].Pos) // B
	assert.Equal(t, Position{Line: 2, Column: 0, Offset: 12}, tokens[6].Pos)
	assert.Equal(t, Position{Line: 2, Column: 2, Offset: 14}, tokens[7].Pos)
	assert.Equal(t, Position{Line: 2, Column: 6, Offset: 18}, tokens[8].Pos) // EOF
}

func TestLexUnexpectedCharacter(t *testing.T) {
	_, err := Lex("A(B, C) & D")
	require.Error(t, err)

	pe, ok := IsParseError(err)
	require.True(t, ok)
	assert.Contains(t, pe.Message, `unexpected character '&'`)
	require.NotNil(t, pe.Pos)
	assert.Equal(t, 8, pe.Pos.Column)
}

func TestLexPunctuation(t *testing.T) {
	tokens, err := Lex("[MOOD] : @ ? =")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{
		TokenLBracket, TokenIdent, TokenRBracket,
		TokenColon, TokenAt, TokenQuestion, TokenEquals, TokenEOF,
	}, tokenKinds(tokens))
}

func TestIsKeyword(t *testing.T) {
	assert.True(t, IsKeyword("and"))
	assert.True(t, IsKeyword("Forall"))
	assert.False(t, IsKeyword("ALICE"))
}
