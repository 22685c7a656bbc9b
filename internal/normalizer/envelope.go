// Package normalizer turns the provider's raw responses into stable typed
// values. Every payload is first classified into one closed set of shapes,
// then each operation resolves the shapes it accepts.
package normalizer

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Shape is the detected physical form of an upstream payload
type Shape int

const (
	// ShapeSentinel is plain text whose prefix encodes a failure.
	ShapeSentinel Shape = iota + 1
	// ShapeText is plain text that is not JSON.
	ShapeText
	// ShapeScalar is a JSON string, number, bool or null.
	ShapeScalar
	// ShapeErrorObject is a JSON object with status == "error".
	ShapeErrorObject
	// ShapeIndexedObject is a JSON object whose keys are all decimal digits.
	ShapeIndexedObject
	// ShapeObject is any other JSON object.
	ShapeObject
	// ShapeArray is a JSON array.
	ShapeArray
)

var shapeNames = map[Shape]string{
	ShapeSentinel:      "sentinel",
	ShapeText:          "text",
	ShapeScalar:        "scalar",
	ShapeErrorObject:   "error_object",
	ShapeIndexedObject: "indexed_object",
	ShapeObject:        "object",
	ShapeArray:         "array",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return "unknown"
}

// Envelope is a classified upstream payload
type Envelope struct {
	Shape Shape
	Raw   string
	// Text is the trimmed payload, or the string value of a JSON string scalar.
	Text   string
	Scalar any
	// Object is set for ShapeObject, ShapeIndexedObject and ShapeErrorObject.
	Object map[string]any
	// Items holds the elements of ShapeArray, or the values of
	// ShapeIndexedObject in ascending numeric key order.
	Items []any

	ErrorCode    string
	ErrorMessage string
}

// Classify detects the shape of raw. It never fails: text that is not JSON
// is ShapeText.
func Classify(raw string) Envelope {
	text := strings.TrimSpace(raw)
	env := Envelope{Raw: raw, Text: text}

	if isSentinel(text) {
		env.Shape = ShapeSentinel
		return env
	}

	value, ok := decodeJSON(text)
	if !ok {
		env.Shape = ShapeText
		return env
	}

	switch v := value.(type) {
	case map[string]any:
		env.Object = v
		switch {
		case isErrorObject(v):
			env.Shape = ShapeErrorObject
			env.ErrorCode, env.ErrorMessage = errorDetails(v)
		case isIndexed(v):
			env.Shape = ShapeIndexedObject
			env.Items = indexedValues(v)
		default:
			env.Shape = ShapeObject
		}
	case []any:
		env.Shape = ShapeArray
		env.Items = v
	case string:
		env.Text = strings.TrimSpace(v)
		if isSentinel(env.Text) {
			env.Shape = ShapeSentinel
			return env
		}
		env.Shape = ShapeScalar
		env.Scalar = v
	default:
		env.Shape = ShapeScalar
		env.Scalar = v
	}

	return env
}

func decodeJSON(text string) (any, bool) {
	if text == "" || !json.Valid([]byte(text)) {
		return nil, false
	}
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, false
	}
	return value, true
}

func isErrorObject(obj map[string]any) bool {
	status, ok := obj["status"].(string)
	return ok && strings.EqualFold(strings.TrimSpace(status), "error")
}

func errorDetails(obj map[string]any) (string, string) {
	code := ""
	if value, ok := pick(obj, "error", "code", "error_code"); ok {
		code = strings.TrimSpace(toString(value))
	}
	message := ""
	if value, ok := pick(obj, "message", "msg", "details", "description"); ok {
		message = strings.TrimSpace(toString(value))
	}
	if message == "" {
		message = code
	}
	return code, message
}

func isIndexed(obj map[string]any) bool {
	if len(obj) == 0 {
		return false
	}
	for key := range obj {
		if !isDigits(key) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// indexedValues returns the values of a dictionary-as-array in numeric key order.
func indexedValues(obj map[string]any) []any {
	keys := sortedNumericKeys(obj)
	values := make([]any, 0, len(keys))
	for _, key := range keys {
		values = append(values, obj[key])
	}
	return values
}

func sortedNumericKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseUint(keys[i], 10, 64)
		b, errB := strconv.ParseUint(keys[j], 10, 64)
		if errA != nil || errB != nil || a == b {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}
