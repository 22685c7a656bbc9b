package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// pick returns the first present, non-null value among keys.
func pick(obj map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := obj[key]; ok && value != nil {
			return value, true
		}
	}
	return nil, false
}

func pickString(obj map[string]any, keys ...string) string {
	value, ok := pick(obj, keys...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(toString(value))
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(body)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(value any) (int, bool) {
	f, ok := toFloat(value)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func toBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
		n, ok := toInt(v)
		return ok && n != 0
	default:
		n, ok := toInt(v)
		return ok && n != 0
	}
}

// optionalText reads a code/text field that may be null, a string, or an
// array of strings (latest last).
func optionalText(obj map[string]any, keys ...string) *string {
	value, ok := pick(obj, keys...)
	if !ok {
		return nil
	}

	var text string
	switch v := value.(type) {
	case []any:
		for i := len(v) - 1; i >= 0; i-- {
			if s := strings.TrimSpace(toString(v[i])); s != "" {
				text = s
				break
			}
		}
	case map[string]any:
		text = pickString(v, "code", "text")
	default:
		text = strings.TrimSpace(toString(v))
	}

	if text == "" {
		return nil
	}
	return &text
}

// timestampText keeps string timestamps verbatim and renders unix seconds as RFC3339.
func timestampText(value any) string {
	switch v := value.(type) {
	case json.Number, float64, int:
		seconds, ok := toInt(v)
		if !ok || seconds <= 0 {
			return ""
		}
		return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
	default:
		return strings.TrimSpace(toString(v))
	}
}

func discountText(value any, present bool) string {
	if !present {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	if f, ok := toFloat(value); ok {
		return strconv.FormatFloat(f, 'f', 2, 64)
	}
	return ""
}
