package decoder

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"iso_speed":100,"shutter":0.008,"camera_make":"Fake",` +
		`"flash":false,"lens":null,"cam_mul":[2,1.5],"color_data":{"black":0,"fnorm":0.25}}`))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}

	want := Record{
		"iso_speed":   int64(100),
		"shutter":     0.008,
		"camera_make": "Fake",
		"flash":       false,
		"lens":        nil,
		"cam_mul":     []any{int64(2), 1.5},
		"color_data":  map[string]any{"black": int64(0), "fnorm": 0.25},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("DecodeRecord mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecord_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array", `[1,2]`},
		{"truncated", `{"a":`},
		{"string", `"x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRecord([]byte(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}

	rec, err := DecodeRecord([]byte(`null`))
	if err != nil || rec != nil {
		t.Errorf("null = %v, %v; want nil record", rec, err)
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int", 6, 6, true},
		{"int64", int64(-1), -1, true},
		{"uint64", uint64(3), 3, true},
		{"uint64 overflow", uint64(math.MaxUint64), 0, false},
		{"integral float", 2.0, 2, true},
		{"fractional float", 1.5, 0, false},
		{"nan", math.NaN(), 0, false},
		{"json number", json.Number("5"), 5, true},
		{"json float number", json.Number("5.5"), 0, false},
		{"string", "1", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToInt64(tt.in)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("ToInt64(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRecord_Accessors(t *testing.T) {
	rec := Record{
		"width":      int64(4),
		"aperture":   2.8,
		"camera":     "Fake",
		"color_data": map[string]any{"black": int64(7)},
	}

	if v, ok := rec.Int("width"); !ok || v != 4 {
		t.Errorf("Int(width) = %d, %v", v, ok)
	}
	if _, ok := rec.Int("aperture"); ok {
		t.Error("Int(aperture) should fail for a fractional value")
	}
	if v, ok := rec.Float("width"); !ok || v != 4 {
		t.Errorf("Float(width) = %v, %v", v, ok)
	}
	if v, ok := rec.String("camera"); !ok || v != "Fake" {
		t.Errorf("String(camera) = %q, %v", v, ok)
	}
	if _, ok := rec.String("missing"); ok {
		t.Error("String(missing) should fail")
	}
	if v, ok := rec.Sub("color_data").Int("black"); !ok || v != 7 {
		t.Errorf("Sub(color_data).Int(black) = %d, %v", v, ok)
	}
	if rec.Sub("camera") != nil {
		t.Error("Sub on a string should be nil")
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	data, err := Record{"b": int64(1), "a": "x"}.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `{"a":"x","b":1}` {
		t.Errorf("MarshalJSON = %s", data)
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"  padded ", "  padded "},
		{int64(42), "42"},
		{uint64(42), "42"},
		{2.5, "2.5"},
		{true, "true"},
		{nil, "null"},
		{[]any{int64(1), "a"}, `[1,"a"]`},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
