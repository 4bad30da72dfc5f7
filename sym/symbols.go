// Package sym defines canonical glyphs for doxa subsystems and truth
// states. These symbols are stable across CLI output, logs, and
// documentation.
package sym

import "github.com/teranos/doxa/kb/truth"

// Truth state glyphs.
const (
	True          = "⊤" // definitely true
	False         = "⊥" // definitely false
	Unknown       = "◇" // no evidence either way
	Superposition = "◬" // weighted, unresolved
)

// Subsystem glyphs used in command output and banners.
const (
	Assert  = "+" // assert a fact
	Query   = "?" // point or range query
	Infer   = "⊢" // inference run
	Context = "≡" // named context expression
	Rule    = "⟶" // conditional rule
	Watch   = "✦" // standing watcher
	Graph   = "⋈" // graph visualization
	DB      = "⊔" // database/storage layer
	Clock   = "◷" // temporal window
)

// ForState returns the glyph for a truth state.
func ForState(s truth.State) string {
	switch s {
	case truth.StateTrue:
		return True
	case truth.StateFalse:
		return False
	case truth.StateSuperposition:
		return Superposition
	default:
		return Unknown
	}
}

// ForValue returns the glyph for a value's state.
func ForValue(v truth.Value) string {
	return ForState(v.State)
}
