package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "excel-mcp/internal/errors"
)

// Args holds the raw arguments of one tool call.
type Args map[string]json.RawMessage

// ParseArgs decodes a JSON object of arguments. Empty input and null give
// an empty set.
func ParseArgs(raw json.RawMessage) (Args, error) {
	args := Args{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return args, nil
	}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, apperrors.NewValidationError("arguments", nil, "must be a JSON object")
	}
	return args, nil
}

func (a Args) has(key string) bool {
	raw, ok := a[key]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// String returns a text argument, "" when absent. Numbers are accepted and
// returned as their literal text.
func (a Args) String(key string) (string, error) {
	if !a.has(key) {
		return "", nil
	}
	raw := bytes.TrimSpace(a[key])

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", apperrors.NewValidationError(key, string(raw), "expected a string")
}

// Required is String that rejects a missing or blank value.
func (a Args) Required(key string) (string, error) {
	s, err := a.String(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", apperrors.NewValidationError(key, nil, "required")
	}
	return s, nil
}

// Int returns an integer argument or def when absent. Numeric strings are
// accepted.
func (a Args) Int(key string, def int) (int, error) {
	if !a.has(key) {
		return def, nil
	}
	raw := bytes.TrimSpace(a[key])

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return def, nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, nil
		}
	}
	return 0, apperrors.NewValidationError(key, string(raw), "expected an integer")
}

// JSON decodes a structured argument into dst. Agents send structured
// values as JSON-encoded strings; a native JSON value is accepted as well.
// Numbers decode as json.Number.
func (a Args) JSON(key string, dst any) error {
	if !a.has(key) {
		return apperrors.NewValidationError(key, nil, "required")
	}
	raw := bytes.TrimSpace(a[key])

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = []byte(strings.TrimSpace(encoded))
		if len(raw) == 0 {
			return apperrors.NewValidationError(key, nil, "required")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewValidationError(key, truncate(string(raw), 120), fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return apperrors.NewValidationError(key, truncate(string(raw), 120), "trailing data after JSON value")
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
