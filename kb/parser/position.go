package parser

// Position is a location in source text: 1-based line, 0-based column,
// 0-based byte offset.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Range is a source span from Start up to but not including End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// tracker advances a Position over source text during lexing.
type tracker struct {
	line   int
	column int
	offset int
}

func newTracker() *tracker {
	return &tracker{line: 1}
}

// advance consumes one rune, keeping line/column in step. Newlines reset
// the column.
func (t *tracker) advance(r rune, size int) {
	if r == '\n' {
		t.line++
		t.column = 0
	} else {
		t.column++
	}
	t.offset += size
}

func (t *tracker) mark() Position {
	return Position{Line: t.line, Column: t.column, Offset: t.offset}
}
