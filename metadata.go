package libraw

import (
	"math"
	"strings"
	"time"

	"github.com/wippyai/libraw-wasm/decoder"
)

// postprocess rewrites the fields the decoder reports in raw form.
// Absent fields stay absent.
func postprocess(rec decoder.Record) decoder.Record {
	if rec == nil {
		return nil
	}
	if v, ok := rec["thumb_format"]; ok {
		rec["thumb_format"] = decoder.ThumbFormatLabel(v)
	}
	if v, ok := rec["desc"]; ok {
		rec["desc"] = strings.TrimSpace(decoder.Stringify(v))
	}
	if v, ok := rec["timestamp"]; ok {
		if secs, ok := decoder.ToFloat64(v); ok {
			rec["timestamp"] = unixTime(secs)
		}
	}
	return rec
}

// unixTime converts seconds since the epoch, keeping any fraction, to UTC.
func unixTime(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// Timestamp returns the capture time from a post-processed record.
func Timestamp(rec decoder.Record) (time.Time, bool) {
	t, ok := rec["timestamp"].(time.Time)
	return t, ok
}
