package decoder

import (
	"encoding/json"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// guestJSON encodes settings for the guest.
var guestJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// recordJSON decodes guest metadata keeping numbers exact until normalize.
var recordJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Record is a metadata mapping of field name to value. Values are int64,
// float64, string, bool, nil, []any or map[string]any.
type Record map[string]any

// DecodeRecord parses a guest JSON object. Integral numbers become int64,
// the rest float64.
func DecodeRecord(data []byte) (Record, error) {
	var raw map[string]any
	if err := recordJSON.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	for k, v := range raw {
		raw[k] = normalize(v)
	}
	return Record(raw), nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	default:
		return v
	}
}

// MarshalJSON renders the record with sorted keys.
func (r Record) MarshalJSON() ([]byte, error) {
	return recordJSON.Marshal(map[string]any(r))
}

// Int returns the field as an integer when it holds an integral number.
func (r Record) Int(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return ToInt64(v)
}

// Float returns the field as a float when it holds any number.
func (r Record) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return ToFloat64(v)
}

// String returns the field when it holds a string.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// Sub returns a nested object field such as color_data, or nil.
func (r Record) Sub(key string) Record {
	switch m := r[key].(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	}
	return nil
}

// ToInt64 converts any Go or wire number holding an integral value.
// Fractional floats and non-numbers report false.
func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), x <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ToFloat64 converts any Go or wire number.
func ToFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		return 0, false
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	if u, ok := v.(uint64); ok {
		return float64(u), true
	}
	return 0, false
}

// Stringify renders a field value the way a script would coerce it to text.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	if i, ok := ToInt64(v); ok {
		return strconv.FormatInt(i, 10)
	}
	if data, err := guestJSON.Marshal(v); err == nil {
		return string(data)
	}
	return ""
}
