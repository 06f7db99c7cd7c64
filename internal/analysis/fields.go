package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fields is a decoded model response. Accessors never fail: missing, null or
// mistyped values fall back to the supplied default.
type fields map[string]any

func decodeFields(text string) (fields, error) {
	var f fields
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	return f, nil
}

func (f fields) str(key, def string) string {
	switch v := f[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case float64, bool:
		return fmt.Sprint(v)
	}
	return def
}

func (f fields) optionalStr(key string) *string {
	s, ok := f[key].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	return &s
}

func (f fields) float(key string, def float64) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n
		}
	}
	return def
}

func (f fields) boolean(key string, def bool) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func (f fields) strs(key string) []string {
	out := []string{}
	switch v := f[key].(type) {
	case []any:
		for _, elem := range v {
			if s, ok := elem.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (f fields) object(key string) fields {
	if m, ok := f[key].(map[string]any); ok {
		return fields(m)
	}
	return fields{}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func unit(v float64) float64 {
	return clamp(v, 0, 1)
}
