package signalr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

// ErrDecompression is returned by Inflate for malformed base64 or a corrupt
// DEFLATE stream.
var ErrDecompression = errors.New("decompressing payload")

// Inflate decodes a base64 string and inflates the raw DEFLATE stream it
// contains (no zlib or gzip header) into UTF-8 text.
func Inflate(compressed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(compressed))
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrDecompression, err)
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	var out strings.Builder
	if _, err := io.Copy(&out, r); err != nil {
		return "", fmt.Errorf("%w: deflate: %v", ErrDecompression, err)
	}
	return out.String(), nil
}

// Deflate compresses text with raw DEFLATE and encodes it as base64. It is
// the inverse of Inflate and is used by the mock hub.
func Deflate(text string) (string, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", fmt.Errorf("creating deflate writer: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return "", fmt.Errorf("writing deflate stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing deflate stream: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
