package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// ErrNoData is returned when an upstream answer is well-formed but carries
// nothing to apply (empty array, null, missing summary).
var ErrNoData = errors.New("no data")

var jsonNull = []byte("null")

// cloneRaw copies b so the caller's buffer can be reused.
func cloneRaw(b []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(b)
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out
}

func isNull(b []byte) bool {
	trimmed := bytes.TrimSpace(b)
	return len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull)
}

// ParseID normalizes a JSON id (number or string) into its text form.
// Numbers keep their literal spelling, so 200 and "200" compare equal.
func ParseID(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}

	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '{', '[':
		return "", false
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
}

// parseFloat accepts a JSON number or a numeric string.
func parseFloat(raw json.RawMessage) (*float64, bool) {
	if isNull(raw) {
		return nil, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

func parseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
