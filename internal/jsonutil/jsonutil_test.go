package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
	}{
		{"", KindMissing},
		{"  {\"a\":1}", KindObject},
		{"[1]", KindArray},
		{`"x"`, KindString},
		{"true", KindBool},
		{"null", KindNull},
		{"-1.5", KindNumber},
		{"?", KindMissing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(json.RawMessage(tt.raw)), "raw %q", tt.raw)
	}
}

func TestIntegral(t *testing.T) {
	n, ok := Integral(json.RawMessage("42"))
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = Integral(json.RawMessage("1.5"))
	assert.False(t, ok)
	_, ok = Integral(json.RawMessage(`"42"`))
	assert.False(t, ok)
}

func TestText(t *testing.T) {
	assert.Equal(t, "Started", Text(json.RawMessage(`"Started"`), "def"))
	assert.Equal(t, "7", Text(json.RawMessage("7"), "def"))
	assert.Equal(t, "false", Text(json.RawMessage("false"), "def"))
	assert.Equal(t, "def", Text(json.RawMessage("null"), "def"))
	assert.Equal(t, "def", Text(nil, "def"))
	assert.Equal(t, "def", Text(json.RawMessage(`{"a":1}`), "def"))
}

func TestFieldsKeepsSourceOrder(t *testing.T) {
	fields, ok := Fields(json.RawMessage(`{"b":1,"a":{"x":[1,2]},"c":"s"}`))
	require.True(t, ok)
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{fields[0].Name, fields[1].Name, fields[2].Name})
	assert.JSONEq(t, `{"x":[1,2]}`, string(fields[1].Value))

	_, ok = Fields(json.RawMessage(`[1]`))
	assert.False(t, ok)
}

func TestPath(t *testing.T) {
	raw := json.RawMessage(`{"Meeting":{"Name":"Monaco","Circuit":{"Key":22}},"Type":"Race"}`)
	assert.Equal(t, "Monaco", Text(Path(raw, "Meeting", "Name"), ""))
	assert.Equal(t, "22", Text(Path(raw, "Meeting", "Circuit", "Key"), ""))
	assert.Nil(t, Path(raw, "Meeting", "Missing", "Key"))
	assert.Nil(t, Path(raw, "Type", "Name"))
	assert.Equal(t, raw, Path(raw))
}

func TestElements(t *testing.T) {
	items, ok := Elements(json.RawMessage(`[{"a":1},"x",3]`))
	require.True(t, ok)
	assert.Len(t, items, 3)

	_, ok = Elements(json.RawMessage(`{}`))
	assert.False(t, ok)
}
