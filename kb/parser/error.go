package parser

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// ErrorSeverity grades parser diagnostics.
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityHint    ErrorSeverity = "hint"
)

// ErrorKind categorizes parser errors for programmatic handling.
type ErrorKind string

const (
	ErrorKindSyntax   ErrorKind = "syntax"   // malformed statement
	ErrorKindSemantic ErrorKind = "semantic" // well-formed but not executable
	ErrorKindTemporal ErrorKind = "temporal" // unparseable time expression
)

// ErrorContext selects how a ParseError renders: with ANSI colors for a
// terminal, or plain for logs and wire payloads.
type ErrorContext string

const (
	ErrorContextTerminal ErrorContext = "terminal"
	ErrorContextPlain    ErrorContext = "plain"
)

// ParseError is a structured parser diagnostic with position, offending
// token, and suggested fixes.
type ParseError struct {
	Err         error
	Kind        ErrorKind
	Severity    ErrorSeverity
	Message     string
	Pos         *Position
	Token       *Token
	Suggestions []string
}

// NewParseError starts a ParseError of the given kind; chain the WithX
// builders to attach detail.
func NewParseError(kind ErrorKind, message string) *ParseError {
	return &ParseError{
		Kind:     kind,
		Severity: SeverityError,
		Message:  message,
	}
}

// WithPosition records where in the source the error occurred.
func (e *ParseError) WithPosition(pos Position) *ParseError {
	e.Pos = &pos
	return e
}

// WithToken records the offending token (and its position).
func (e *ParseError) WithToken(tok Token) *ParseError {
	e.Token = &tok
	e.Pos = &tok.Pos
	return e
}

// WithSuggestion appends a possible fix.
func (e *ParseError) WithSuggestion(s string) *ParseError {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

// WithSeverity overrides the default error severity.
func (e *ParseError) WithSeverity(sev ErrorSeverity) *ParseError {
	e.Severity = sev
	return e
}

// WithUnderlying attaches the causing error for errors.Is/As chains.
func (e *ParseError) WithUnderlying(err error) *ParseError {
	e.Err = err
	return e
}

// Error implements error with the plain rendering.
func (e *ParseError) Error() string {
	return e.Format(ErrorContextPlain)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Format renders the diagnostic for the given display context.
func (e *ParseError) Format(ctx ErrorContext) string {
	if ctx == ErrorContextTerminal {
		return e.formatTerminal()
	}
	return e.formatPlain()
}

func (e *ParseError) formatPlain() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Pos != nil {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Pos.Line, e.Pos.Column)
	}
	if e.Token != nil && e.Token.Raw != "" {
		fmt.Fprintf(&b, " near %q", e.Token.Raw)
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, ". Suggestions: %s", strings.Join(e.Suggestions, "; "))
	}
	return b.String()
}

func (e *ParseError) formatTerminal() string {
	var base string
	switch e.Severity {
	case SeverityWarning:
		base = pterm.Yellow(e.Message)
	case SeverityHint:
		base = pterm.LightCyan(e.Message)
	default:
		base = pterm.Red(e.Message)
	}

	var b strings.Builder
	b.WriteString(base)
	if e.Pos != nil || e.Token != nil {
		fmt.Fprintf(&b, "\n\n%s", pterm.LightCyan("Context:"))
		if e.Pos != nil {
			fmt.Fprintf(&b, "\n  %s line %d, column %d", pterm.Yellow("Position:"), e.Pos.Line, e.Pos.Column)
		}
		if e.Token != nil && e.Token.Raw != "" {
			fmt.Fprintf(&b, "\n  %s %q", pterm.Yellow("Token:"), e.Token.Raw)
		}
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, "\n\n%s", pterm.Green("Suggestions:"))
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  - %s", s)
		}
	}
	return b.String()
}

// IsParseError extracts a ParseError from an error chain.
func IsParseError(err error) (*ParseError, bool) {
	pe, ok := err.(*ParseError)
	return pe, ok
}
