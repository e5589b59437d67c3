package signalr

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "ascii", text: `{"Position":[{"Timestamp":"2024-01-01T00:00:00Z"}]}`},
		{name: "utf8", text: "Grand Prix de Monaco éè 日本"},
		{name: "long", text: strings.Repeat(`{"Entries":{"1":{"Channels":{"0":11000}}}}`, 500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Deflate(tt.text)
			require.NoError(t, err)

			got, err := Inflate(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.text, got)
		})
	}
}

func TestInflateErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad base64", input: "not*base64!"},
		// valid base64, but 0xff is not a valid DEFLATE block header
		{name: "corrupt stream", input: "/////w=="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inflate(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecompression))
		})
	}
}
