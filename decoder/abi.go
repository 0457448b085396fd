package decoder

import "github.com/wippyai/libraw-wasm/engine"

// Guest exports of the decoder module, beyond engine's memory/malloc/free.
//
//	libraw_init() -> i32                                          optional
//	libraw_open(buf, len, settings, settings_len i32) -> i32      takes ownership of buf
//	libraw_metadata(full, retptr i32) -> i32                      JSON object
//	libraw_image_data(retptr i32) -> i32                          image header + samples
//	libraw_thumbnail_data(retptr i32) -> i32                      thumbnail header + bytes
//	libraw_last_error(retptr i32) -> i32                          UTF-8 message
//
// Status 0 is success. retptr receives (ptr u32, len u32) of a guest-owned
// result valid until the next call; len 0 means no result.
const (
	ExportInit          = "libraw_init"
	ExportOpen          = "libraw_open"
	ExportMetadata      = "libraw_metadata"
	ExportImageData     = "libraw_image_data"
	ExportThumbnailData = "libraw_thumbnail_data"
	ExportLastError     = "libraw_last_error"
)

var requiredExports = []string{
	engine.ExportMalloc,
	engine.ExportFree,
	ExportOpen,
	ExportMetadata,
	ExportImageData,
	ExportThumbnailData,
	ExportLastError,
}
