package signalr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassembler(t *testing.T) {
	var r Reassembler

	_, done := r.Add(`{"C":"a",`, false)
	assert.False(t, done)
	assert.True(t, r.Pending())
	_, done = r.Add(`"S":1,`, false)
	assert.False(t, done)

	msg, done := r.Add(`"M":[]}`, true)
	require.True(t, done)
	assert.Equal(t, `{"C":"a","S":1,"M":[]}`, msg)
	assert.False(t, r.Pending())

	r.Add(`{"partial":`, false)
	r.Reset()
	msg, done = r.Add(`{}`, true)
	require.True(t, done)
	assert.Equal(t, `{}`, msg)
}
