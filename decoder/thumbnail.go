package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
)

// Thumbnail formats as labeled by thumbnailData.
const (
	ThumbJPEG     = "jpeg"
	ThumbBitmap   = "bitmap"
	ThumbBitmap16 = "bitmap16"
	ThumbUnknown  = "unknown"
)

// thumbFormatLabels maps LibRaw's thumbnail format codes to labels for the
// thumb_format metadata field.
var thumbFormatLabels = [...]string{
	0: "unknown",
	1: "jpeg",
	2: "bitmap",
	3: "bitmap16",
	4: "layer",
	5: "rollei",
	6: "h265",
}

// ThumbFormatLabel maps a thumb_format metadata value to its label.
// Values outside 0..6, and non-integers, are "unknown".
func ThumbFormatLabel(v any) string {
	code, ok := ToInt64(v)
	if !ok || code < 0 || code >= int64(len(thumbFormatLabels)) {
		return ThumbUnknown
	}
	return thumbFormatLabels[code]
}

// thumbnailFormat labels the format code of a thumbnail payload. Only the
// three decodable formats get a label.
func thumbnailFormat(code uint32) string {
	switch code {
	case 1:
		return ThumbJPEG
	case 2:
		return ThumbBitmap
	case 3:
		return ThumbBitmap16
	}
	return ThumbUnknown
}

// Thumbnail is the embedded preview as returned by thumbnailData.
type Thumbnail struct {
	Format string `cbor:"format"`
	Data   []byte `cbor:"data"`
	Width  int    `cbor:"width"`
	Height int    `cbor:"height"`
}

// Decode returns the thumbnail as an image. Bitmaps are packed RGB, 8 or
// 16 bits per sample.
func (t *Thumbnail) Decode() (image.Image, error) {
	switch t.Format {
	case ThumbJPEG:
		return jpeg.Decode(bytes.NewReader(t.Data))
	case ThumbBitmap, ThumbBitmap16:
		img := &Image{Width: t.Width, Height: t.Height, Colors: 3, Bits: 8, Data: t.Data}
		if t.Format == ThumbBitmap16 {
			img.Bits = 16
		}
		return img.ToImage()
	}
	return nil, fmt.Errorf("cannot decode %s thumbnail", t.Format)
}

// Extension is the conventional file extension for the thumbnail's bytes.
func (t *Thumbnail) Extension() string {
	switch t.Format {
	case ThumbJPEG:
		return ".jpg"
	case ThumbBitmap, ThumbBitmap16:
		return ".ppm"
	}
	return ".bin"
}

// parseThumbnail decodes the guest thumbnail payload: a 16-byte header
// (width u32, height u32, format u32, length u32) and the bytes.
func parseThumbnail(payload []byte) (*Thumbnail, error) {
	if len(payload) < thumbHeaderSize {
		return nil, fmt.Errorf("thumbnail header too short: %d bytes", len(payload))
	}
	n := binary.LittleEndian.Uint32(payload[12:])
	if uint64(n) > uint64(len(payload)-thumbHeaderSize) {
		return nil, fmt.Errorf("thumbnail length %d exceeds payload of %d bytes", n, len(payload)-thumbHeaderSize)
	}
	return &Thumbnail{
		Width:  int(binary.LittleEndian.Uint32(payload[0:])),
		Height: int(binary.LittleEndian.Uint32(payload[4:])),
		Format: thumbnailFormat(binary.LittleEndian.Uint32(payload[8:])),
		Data:   payload[thumbHeaderSize : thumbHeaderSize+int(n) : thumbHeaderSize+int(n)],
	}, nil
}

const thumbHeaderSize = 16
