package truth

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/errors"
)

func TestNotDefinite(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want Value
	}{
		{"true flips", True, False},
		{"false flips", False, True},
		{"unknown stays", Unknown, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Not(tt.in).Equal(tt.want))
		})
	}
}

func TestAndKleene(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Value
	}{
		{"T and T", True, True, True},
		{"T and F", True, False, False},
		{"F and T", False, True, False},
		{"F and F", False, False, False},
		{"U and T", Unknown, True, Unknown},
		{"T and U", True, Unknown, Unknown},
		{"U and F absorbs to false", Unknown, False, False},
		{"F and U absorbs to false", False, Unknown, False},
		{"U and U", Unknown, Unknown, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, And(tt.a, tt.b).Equal(tt.want),
				"And(%s, %s) = %s, want %s", tt.a, tt.b, And(tt.a, tt.b), tt.want)
		})
	}
}

func TestOrKleene(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Value
	}{
		{"T or T", True, True, True},
		{"T or F", True, False, True},
		{"F or F", False, False, False},
		{"U or F", Unknown, False, Unknown},
		{"U or T absorbs to true", Unknown, True, True},
		{"T or U absorbs to true", True, Unknown, True},
		{"U or U", Unknown, Unknown, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Or(tt.a, tt.b).Equal(tt.want),
				"Or(%s, %s) = %s, want %s", tt.a, tt.b, Or(tt.a, tt.b), tt.want)
		})
	}
}

func TestSuperpositionArithmetic(t *testing.T) {
	tests := []struct {
		name string
		got  Value
		want Value
	}{
		{"not complements weight", Not(Superposed(0.3)), Superposed(0.7)},
		{"and multiplies", And(Superposed(0.5), Superposed(0.5)), Superposed(0.25)},
		{"or complements product", Or(Superposed(0.5), Superposed(0.5)), Superposed(0.75)},
		{"and with true keeps weight", And(Superposed(0.8), True), Superposed(0.8)},
		{"and with false collapses", And(Superposed(0.8), False), False},
		{"or with true collapses", Or(Superposed(0.8), True), True},
		{"or with false keeps weight", Or(Superposed(0.8), False), Superposed(0.8)},
		{"and with unknown", And(Superposed(0.8), Unknown), Unknown},
		{"or with unknown", Or(Superposed(0.8), Unknown), Unknown},
		{"unknown never swallows definite collapse", And(Unknown, False), False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.got.Equal(tt.want), "got %s, want %s", tt.got, tt.want)
		})
	}
}

func TestDeMorganOverWeights(t *testing.T) {
	weights := []struct{ a, b float64 }{
		{0.5, 0.5},
		{0.2, 0.9},
		{0.33, 0.67},
		{0.01, 0.99},
	}

	for _, w := range weights {
		a, b := Superposed(w.a), Superposed(w.b)

		// NOT(a AND b) == NOT(a) OR NOT(b)
		left := Not(And(a, b))
		right := Or(Not(a), Not(b))
		assert.True(t, left.Equal(right), "De Morgan AND: %s vs %s", left, right)

		// NOT(a OR b) == NOT(a) AND NOT(b)
		left = Not(Or(a, b))
		right = And(Not(a), Not(b))
		assert.True(t, left.Equal(right), "De Morgan OR: %s vs %s", left, right)
	}
}

func TestSuperposedNormalization(t *testing.T) {
	tests := []struct {
		name string
		w    float64
		want Value
	}{
		{"zero collapses to false", 0, False},
		{"one collapses to true", 1, True},
		{"clamped below", -0.5, False},
		{"clamped above", 1.5, True},
		{"epsilon from zero", WeightEpsilon / 2, False},
		{"epsilon from one", 1 - WeightEpsilon/2, True},
		{"nan becomes unknown", math.NaN(), Unknown},
		{"interior weight kept", 0.5, Value{State: StateSuperposition, Weight: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Superposed(tt.w).Equal(tt.want))
		})
	}
}

func TestWeightedChainNeverShortCircuits(t *testing.T) {
	// A three-way conjunction must multiply all weights, which only happens
	// if every operand is inspected.
	v, err := ConnAnd.Apply(Superposed(0.5), Superposed(0.5), Superposed(0.5))
	require.NoError(t, err)
	assert.True(t, v.Equal(Superposed(0.125)), "got %s", v)

	v, err = ConnOr.Apply(Superposed(0.5), Superposed(0.5), Superposed(0.5))
	require.NoError(t, err)
	assert.True(t, v.Equal(Superposed(0.875)), "got %s", v)
}

func TestDerivedConnectives(t *testing.T) {
	tests := []struct {
		name string
		got  Value
		want Value
	}{
		{"implies T T", Implies(True, True), True},
		{"implies T F", Implies(True, False), False},
		{"implies F F", Implies(False, False), True},
		{"implies F T", Implies(False, True), True},
		{"implies U T", Implies(Unknown, True), True},
		{"implies T U", Implies(True, Unknown), Unknown},
		{"xor same is false", Xor(True, True), False},
		{"xor differs is true", Xor(True, False), True},
		{"xor with unknown", Xor(Unknown, True), Unknown},
		{"nand T T", Nand(True, True), False},
		{"nand T F", Nand(True, False), True},
		{"nor F F", Nor(False, False), True},
		{"nor T F", Nor(True, False), False},
		{"xnor same is true", Xnor(False, False), True},
		{"xnor differs is false", Xnor(True, False), False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.got.Equal(tt.want), "got %s, want %s", tt.got, tt.want)
		})
	}
}

func TestEqualEpsilon(t *testing.T) {
	a := Superposed(0.5)
	b := Superposed(0.5 + WeightEpsilon/2)
	c := Superposed(0.6)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(True))
	assert.True(t, True.Equal(True))
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, True.Confidence())
	assert.Equal(t, 1.0, False.Confidence())
	assert.Equal(t, 0.0, Unknown.Confidence())
	assert.InDelta(t, 0.8, Superposed(0.8).Confidence(), WeightEpsilon)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Value
		wantErr bool
	}{
		{"lower true", "true", True, false},
		{"upper false", "FALSE", False, false},
		{"unknown", "Unknown", Unknown, false},
		{"maybe with weight", "maybe(0.8)", Superposed(0.8), false},
		{"superposition spelled out", "SUPERPOSITION(0.25)", Superposed(0.25), false},
		{"weight with spaces", "MAYBE( 0.5 )", Superposed(0.5), false},
		{"weight above one", "maybe(1.5)", Unknown, true},
		{"weight below zero", "maybe(-0.1)", Unknown, true},
		{"maybe without weight", "maybe", Unknown, true},
		{"definite with weight", "true(0.5)", Unknown, true},
		{"garbage", "perhaps", Unknown, true},
		{"unclosed paren", "maybe(0.5", Unknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParseValueInvalidWeightKind(t *testing.T) {
	_, err := ParseValue("maybe(2.0)")
	assert.True(t, errors.Is(err, errors.ErrInvalidWeight))
}

func TestValueJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Value
	}{
		{"true", True},
		{"false", False},
		{"unknown", Unknown},
		{"superposition", Superposed(0.8)},
		{"deontic true", True.WithModality(Deontic)},
		{"epistemic superposition", Superposed(0.42).WithModality(Epistemic)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)

			var got Value
			require.NoError(t, json.Unmarshal(data, &got))
			assert.True(t, got.Equal(tt.in))
			assert.Equal(t, tt.in.Modality, got.Modality)
			assert.Equal(t, tt.in.Weight, got.Weight)
		})
	}
}

func TestValueJSONWeightExact(t *testing.T) {
	// Weights must survive serialization bit-exactly.
	in := Superposed(0.1 + 0.2) // 0.30000000000000004
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var got Value
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, in.Weight, got.Weight)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "TRUE", True.String())
	assert.Equal(t, "FALSE", False.String())
	assert.Equal(t, "UNKNOWN", Unknown.String())
	assert.Equal(t, "SUPERPOSITION(0.80)", Superposed(0.8).String())
}

func TestModalityMetadataOnly(t *testing.T) {
	// Modality rides along on assertions but never changes combination results.
	a := True.WithModality(Deontic)
	b := Superposed(0.5).WithModality(Epistemic)

	got := And(a, b)
	assert.True(t, got.Equal(Superposed(0.5)))
	assert.Equal(t, Alethic, got.Modality)
}

func TestParseModality(t *testing.T) {
	m, err := ParseModality("deontic")
	require.NoError(t, err)
	assert.Equal(t, Deontic, m)

	m, err = ParseModality("")
	require.NoError(t, err)
	assert.Equal(t, Alethic, m)

	_, err = ParseModality("subjunctive")
	assert.Error(t, err)
}
