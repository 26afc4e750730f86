package datatypes

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Match is an OpenFlow match: field name to value. Values are either int64 or
// string; anything that parses as an integer is stored as one.
type Match map[string]any

// ParseMatch reads the canonical "field=value,field=value" form.
func ParseMatch(s string) (Match, error) {
	m := Match{}
	s = strings.TrimSpace(s)
	if s == "" {
		return m, nil
	}
	for _, token := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(token), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Invalidf(errors.ErrInvalidData, "invalid match token %q", token)
		}
		if _, dup := m[key]; dup {
			return nil, errors.Invalidf(errors.ErrInvalidData, "duplicate match field %q", key)
		}
		m[key] = normalizeMatchValue(strings.TrimSpace(value))
	}
	return m, nil
}

func normalizeMatchValue(v string) any {
	if n, err := strconv.ParseInt(v, 0, 64); err == nil {
		return n
	}
	return v
}

// String returns the canonical form: sorted keys, comma separated.
func (m Match) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, ",")
}

// Key is the hashable canonical form.
func (m Match) Key() string { return m.String() }

// Equivalent reports whether both matches name the same fields with the same values.
func (m Match) Equivalent(other Match) bool { return m.Key() == other.Key() }

// MarshalText implements encoding.TextMarshaler.
func (m Match) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalJSON accepts either the canonical string or a JSON object.
func (m *Match) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseMatch(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Invalidf(errors.ErrInvalidData, "match must be a string or object")
	}
	out := Match{}
	for k, v := range raw {
		switch val := v.(type) {
		case float64:
			out[k] = int64(val)
		case string:
			out[k] = normalizeMatchValue(val)
		default:
			return errors.Invalidf(errors.ErrInvalidData, "unsupported value for match field %q", k)
		}
	}
	*m = out
	return nil
}

// MarshalJSON emits the canonical string form.
func (m Match) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }
