// Package jsonutil provides helpers for inspecting raw JSON values without a
// full decode.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind is the JSON type of a raw value, judged by its first significant byte.
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// KindOf returns the JSON type of raw. An empty value is KindMissing.
func KindOf(raw json.RawMessage) Kind {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return KindMissing
	}
	switch c := trimmed[0]; {
	case c == '{':
		return KindObject
	case c == '[':
		return KindArray
	case c == '"':
		return KindString
	case c == 't' || c == 'f':
		return KindBool
	case c == 'n':
		return KindNull
	case c == '-' || (c >= '0' && c <= '9'):
		return KindNumber
	default:
		return KindMissing
	}
}

// IsObject reports whether raw holds a JSON object.
func IsObject(raw json.RawMessage) bool { return KindOf(raw) == KindObject }

// IsArray reports whether raw holds a JSON array.
func IsArray(raw json.RawMessage) bool { return KindOf(raw) == KindArray }

// IsTextual reports whether raw holds a JSON string.
func IsTextual(raw json.RawMessage) bool { return KindOf(raw) == KindString }

// Integral returns the value of raw if it is a number without fraction or
// exponent.
func Integral(raw json.RawMessage) (int64, bool) {
	if KindOf(raw) != KindNumber {
		return 0, false
	}
	s := string(bytes.TrimSpace(raw))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Text returns the string value of raw. Non-string scalars are returned as
// their literal text, and null, missing, objects and arrays yield def.
func Text(raw json.RawMessage, def string) string {
	switch KindOf(raw) {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return def
		}
		return s
	case KindNumber, KindBool:
		return string(bytes.TrimSpace(raw))
	default:
		return def
	}
}

// Fields decodes raw as an object, keeping every value as raw text in source
// order. It returns false when raw is not an object.
func Fields(raw json.RawMessage) ([]Field, bool) {
	if !IsObject(raw) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		fields = append(fields, Field{Name: key, Value: value})
	}
	return fields, true
}

// Path walks nested objects by key and returns the value found, or nil when
// any step is missing or not an object.
func Path(raw json.RawMessage, keys ...string) json.RawMessage {
	cur := raw
	for _, key := range keys {
		if !IsObject(cur) {
			return nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

// Field is one member of a JSON object.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Elements decodes raw as an array of raw values. It returns false when raw
// is not an array.
func Elements(raw json.RawMessage) ([]json.RawMessage, bool) {
	if !IsArray(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}
