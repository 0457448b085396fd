package libraw

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/libraw-wasm/decoder"
)

func TestPostprocess_ThumbFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{int64(0), "unknown"},
		{int64(1), "jpeg"},
		{int64(2), "bitmap"},
		{int64(3), "bitmap16"},
		{int64(4), "layer"},
		{int64(5), "rollei"},
		{int64(6), "h265"},
		{int64(99), "unknown"},
		{int64(-1), "unknown"},
		{2.5, "unknown"},
		{"jpeg", "unknown"},
	}
	for _, tt := range tests {
		rec := postprocess(decoder.Record{"thumb_format": tt.in})
		if got := rec["thumb_format"]; got != tt.want {
			t.Errorf("thumb_format %#v -> %#v, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostprocess_Desc(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"  test shot \n", "test shot"},
		{"\t\n", ""},
		{"plain", "plain"},
		{int64(42), "42"},
		{nil, "null"},
	}
	for _, tt := range tests {
		rec := postprocess(decoder.Record{"desc": tt.in})
		if got := rec["desc"]; got != tt.want {
			t.Errorf("desc %#v -> %#v, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPostprocess_Timestamp(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"epoch", int64(0), time.Unix(0, 0).UTC()},
		{"seconds", int64(1700000000), time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)},
		{"fraction", 1.5, time.Unix(1, 5e8).UTC()},
		{"negative", int64(-86400), time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postprocess(decoder.Record{"timestamp": tt.in})
			got, ok := Timestamp(rec)
			if !ok || !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("timestamp %#v -> %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	rec := postprocess(decoder.Record{"timestamp": "yesterday"})
	if rec["timestamp"] != "yesterday" {
		t.Errorf("non-numeric timestamp rewritten to %#v", rec["timestamp"])
	}
}

func TestPostprocess_AbsentFields(t *testing.T) {
	if postprocess(nil) != nil {
		t.Error("nil record should stay nil")
	}

	rec := postprocess(decoder.Record{"iso_speed": int64(100)})
	if diff := cmp.Diff(decoder.Record{"iso_speed": int64(100)}, rec); diff != "" {
		t.Errorf("untouched fields changed (-want +got):\n%s", diff)
	}
}
