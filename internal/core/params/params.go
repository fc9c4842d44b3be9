// Package params holds the raw request parameter bag and its typed accessors.
// Accessors fail with an *apperr.ValidationError on type mismatch instead of
// falling back to a default.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/apperr"
)

// Raw is the untyped mapping of query-string and body fields.
type Raw map[string]any

// FromQuery converts query-string values. "key[]" is stored under "key" as a
// list; repeated plain keys become lists too. When both forms are sent the
// plain values come first. Single values of the flags keys that parse as a
// boolean are stored as bool.
func FromQuery(v url.Values, flags ...string) Raw {
	out := make(Raw, len(v))
	// "key" sorts before "key[]"
	for _, k := range slices.Sorted(maps.Keys(v)) {
		vals := v[k]
		name, isList := strings.CutSuffix(k, "[]")
		if name == "" {
			continue
		}
		prev, exists := out[name]
		if !isList && len(vals) == 1 && !exists {
			out[name] = vals[0]
			if slices.Contains(flags, name) {
				if b, err := strconv.ParseBool(strings.TrimSpace(vals[0])); err == nil {
					out[name] = b
				}
			}
			continue
		}
		var list []any
		switch t := prev.(type) {
		case []any:
			list = t
		case string:
			list = []any{t}
		}
		for _, s := range vals {
			list = append(list, s)
		}
		out[name] = list
	}
	return out
}

// FromJSON decodes a JSON object body. An empty body yields an empty bag.
func FromJSON(r io.Reader) (Raw, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return Raw{}, nil
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if body == nil {
		return Raw{}, nil
	}
	return Raw(body), nil
}

// Merge returns a new bag with over's keys taking precedence over base.
func Merge(base, over Raw) Raw {
	out := make(Raw, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (p Raw) lookup(key string) (any, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Str returns nil when absent.
func (p Raw) Str(key string) (*string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, apperr.Field(key, "must be a string")
	}
	return &s, nil
}

// Int accepts JSON integers and decimal strings. Negative values pass.
func (p Raw) Int(key string) (*int, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	n, err := toInt(v)
	if err != nil {
		return nil, apperr.Field(key, "must be an integer")
	}
	return &n, nil
}

func (p Raw) Float(key string) (*float64, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, apperr.Field(key, "must be a number")
	}
	return &f, nil
}

// BoolOr is lenient: anything that is not a boolean yields def. Query-string
// flags are already booleans when FromQuery was given their names.
func (p Raw) BoolOr(key string, def bool) bool {
	if b, ok := p[key].(bool); ok {
		return b
	}
	return def
}

// Strings returns nil when absent. A single string counts as a one-element
// list. Order and duplicates are preserved.
func (p Raw) Strings(key string) ([]string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, apperr.Field(fmt.Sprintf("%s[%d]", key, i), "must be a string")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, apperr.Field(key, "must be an array of strings")
	}
}

// Object returns nil when absent.
func (p Raw) Object(key string) (map[string]any, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperr.Field(key, "must be an object")
	}
	return m, nil
}

// Lookup walks nested objects. It reports false when any segment is missing
// or is not an object.
func Lookup(v any, path ...string) (any, bool) {
	cur := v
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse int: %w", err)
		}
		return int(n), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, errors.New("not an integer")
		}
		return int(t), nil
	case int:
		return t, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("parse int: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// Number converts a decoded JSON number. Strings are rejected.
func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("parse float: %w", err)
		}
		return f, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("parse float: %w", err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, errors.New("not finite")
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
