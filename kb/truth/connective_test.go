package truth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/doxa/errors"
)

func TestConnectiveApply(t *testing.T) {
	tests := []struct {
		name string
		conn Connective
		vals []Value
		want Value
	}{
		{"not true", ConnNot, []Value{True}, False},
		{"and binary", ConnAnd, []Value{True, False}, False},
		{"and folds left", ConnAnd, []Value{True, True, False}, False},
		{"or folds left", ConnOr, []Value{False, False, True}, True},
		{"xor three-way", ConnXor, []Value{True, True, True}, True},
		{"implies", ConnImplies, []Value{True, False}, False},
		{"nand", ConnNand, []Value{True, True}, False},
		{"nor", ConnNor, []Value{False, False}, True},
		{"xnor", ConnXnor, []Value{True, True}, True},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.conn.Apply(tt.vals...)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestConnectiveArityErrors(t *testing.T) {
	tests := []struct {
		name string
		conn Connective
		vals []Value
	}{
		{"not with two operands", ConnNot, []Value{True, False}},
		{"not with none", ConnNot, nil},
		{"and with one operand", ConnAnd, []Value{True}},
		{"or with none", ConnOr, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.conn.Apply(tt.vals...)
			require.Error(t, err)
			assert.True(t, errors.IsStructural(err))
		})
	}
}

func TestParseConnective(t *testing.T) {
	tests := []struct {
		in      string
		want    Connective
		wantErr bool
	}{
		{"and", ConnAnd, false},
		{"AND", ConnAnd, false},
		{"Not", ConnNot, false},
		{"xor", ConnXor, false},
		{"NAND", ConnNand, false},
		{"nor", ConnNor, false},
		{"XNOR", ConnXnor, false},
		{"implies", ConnImplies, false},
		{"butfor", ConnNot, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseConnective(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectiveJSON(t *testing.T) {
	for _, conn := range []Connective{ConnNot, ConnAnd, ConnOr, ConnXor, ConnNand, ConnNor, ConnXnor, ConnImplies} {
		data, err := json.Marshal(conn)
		require.NoError(t, err)

		var got Connective
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, conn, got)
	}
}

func TestConnectiveStringRoundTrip(t *testing.T) {
	for _, conn := range []Connective{ConnNot, ConnAnd, ConnOr, ConnXor, ConnNand, ConnNor, ConnXnor, ConnImplies} {
		parsed, err := ParseConnective(conn.String())
		require.NoError(t, err)
		assert.Equal(t, conn, parsed)
	}
}
