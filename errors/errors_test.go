package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestIs(t *testing.T) {
	err1 := New("error 1")
	err2 := New("error 2")
	wrapped := Wrap(err1, "wrapped")

	assert.True(t, Is(wrapped, err1))
	assert.False(t, Is(wrapped, err2))
	assert.False(t, Is(nil, err1))
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "try this fix")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithHint(nil, "hint"))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrDuplicateEntity,
		ErrUnknownEntity,
		ErrDuplicateRelation,
		ErrUnknownRelation,
		ErrOverlappingInterval,
		ErrInvalidInterval,
		ErrInvalidWeight,
		ErrStructural,
		ErrContradiction,
		ErrNonTermination,
		ErrSnapshotVersion,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				assert.True(t, Is(a, b))
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"duplicate entity direct", ErrDuplicateEntity, IsDuplicateEntity, true},
		{"duplicate entity wrapped", Wrap(ErrDuplicateEntity, "creating FIDO"), IsDuplicateEntity, true},
		{"unknown entity wrapped twice", Wrap(Wrap(ErrUnknownEntity, "inner"), "outer"), IsUnknownEntity, true},
		{"overlap wrapped", Wrapf(ErrOverlappingInterval, "[0,5) vs [3,8)"), IsOverlappingInterval, true},
		{"wrong kind", ErrDuplicateEntity, IsUnknownEntity, false},
		{"nil", nil, IsContradiction, false},
		{"contradiction", Wrap(ErrContradiction, "TRUE vs FALSE"), IsContradiction, true},
		{"non-termination", Wrap(ErrNonTermination, "after 100 rounds"), IsNonTermination, true},
		{"structural", NewStructural("cycle: %s", "A -> B -> A"), IsStructural, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestWrapUnknownEntity(t *testing.T) {
	err := WrapUnknownEntity("FIDO")

	require.Error(t, err)
	assert.True(t, IsUnknownEntity(err))
	assert.Contains(t, err.Error(), `"FIDO"`)
}

func TestWrapUnknownRelation(t *testing.T) {
	err := WrapUnknownRelation("JOHN", "LIKES", "MARY")

	require.Error(t, err)
	assert.True(t, IsUnknownRelation(err))
	assert.Contains(t, err.Error(), "LIKES(JOHN, MARY)")
}

func TestNewStructuralPreservesKind(t *testing.T) {
	err := NewStructural("context %q references itself", "SELF")

	assert.True(t, Is(err, ErrStructural))
	assert.Contains(t, err.Error(), `"SELF"`)
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func ExampleWrap() {
	baseErr := New("connection failed")
	err := Wrap(baseErr, "failed to open database")
	fmt.Println(err)
	// Output: failed to open database: connection failed
}
