package roster

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMembers = []Member{"a", "b", "c"}

func TestDecodeEmptyDocumentGivesDefaults(t *testing.T) {
	codec := NewCodec(testMembers)

	for _, rows := range [][][]any{nil, {}, {{}}, {{}, {}}} {
		state, err := codec.Decode(rows)
		require.NoError(t, err)
		require.Len(t, state, len(testMembers))
		for _, m := range testMembers {
			assert.Equal(t, Status{}, state[m], "member %s", m)
		}
	}
}

func TestDecodeShortRows(t *testing.T) {
	codec := NewCodec(testMembers)

	state, err := codec.Decode([][]any{{"TRUE"}, {"lunch"}})
	require.NoError(t, err)

	assert.Equal(t, Status{Present: true, Comment: "lunch"}, state["a"])
	assert.Equal(t, Status{}, state["b"])
	assert.Equal(t, Status{}, state["c"])
}

func TestDecodePresenceRequiresExactToken(t *testing.T) {
	codec := NewCodec(testMembers)

	state, err := codec.Decode([][]any{{"TRUE", "true", "yes"}})
	require.NoError(t, err)

	assert.True(t, state["a"].Present)
	assert.False(t, state["b"].Present)
	assert.False(t, state["c"].Present)
}

func TestDecodeMalformed(t *testing.T) {
	codec := NewCodec(testMembers)

	cases := map[string][][]any{
		"too many rows":    {{"TRUE"}, {""}, {"extra"}},
		"too many columns": {{"TRUE", "FALSE", "FALSE", "TRUE"}},
		"non-string cell":  {{"TRUE", 42.0}},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(rows)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.Equal(t, KindMalformed, KindOf(err))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec(testMembers)

	state := State{
		"a": {Present: true, Comment: ""},
		"b": {Present: false, Comment: "a, b; c\t|d"},
		"c": {Present: true, Comment: "line one\nline two\n" + strings.Repeat("長", 5000)},
	}

	rows := codec.Encode(state)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"TRUE", "FALSE", "TRUE"}, rows[0])

	decoded, err := codec.Decode(rows)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
}

func TestEncodeFillsMissingMembers(t *testing.T) {
	codec := Codec{Members: testMembers, PresentToken: "in", AbsentToken: "out"}

	rows := codec.Encode(State{"b": {Present: true, Comment: "x"}})

	assert.Equal(t, []any{"out", "in", "out"}, rows[0])
	assert.Equal(t, []any{"", "x", ""}, rows[1])
}
