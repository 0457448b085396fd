package decoder

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Image is a processed image as returned by imageData.
// For Bits == 16 the samples in Data are little-endian uint16.
type Image struct {
	Data   []byte `cbor:"data"`
	Width  int    `cbor:"width"`
	Height int    `cbor:"height"`
	Colors int    `cbor:"colors"`
	Bits   int    `cbor:"bits"`
}

// DataSize reports the sample buffer length in bytes.
func (img *Image) DataSize() int {
	return len(img.Data)
}

// Samples16 decodes Data as 16-bit samples. It returns nil unless Bits is 16.
func (img *Image) Samples16() []uint16 {
	if img.Bits != 16 {
		return nil
	}
	out := make([]uint16, len(img.Data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(img.Data[2*i:])
	}
	return out
}

// ToImage converts to a standard image: Gray or RGBA for 8 bits, Gray16 or
// RGBA64 for 16 bits. Only 1 and 3 color images are supported.
func (img *Image) ToImage() (image.Image, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("image has no pixels: %dx%d", img.Width, img.Height)
	}
	if img.Bits != 8 && img.Bits != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d", img.Bits)
	}
	if img.Colors != 1 && img.Colors != 3 {
		return nil, fmt.Errorf("unsupported color count %d", img.Colors)
	}

	bps := img.Bits / 8
	need := img.Width * img.Height * img.Colors * bps
	if len(img.Data) < need {
		return nil, fmt.Errorf("image data too short: have %d bytes, need %d", len(img.Data), need)
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	n := img.Width * img.Height

	switch {
	case img.Colors == 1 && bps == 1:
		out := image.NewGray(rect)
		copy(out.Pix, img.Data[:n])
		return out, nil

	case img.Colors == 3 && bps == 1:
		out := image.NewRGBA(rect)
		for i := 0; i < n; i++ {
			s := img.Data[3*i:]
			out.Pix[4*i+0] = s[0]
			out.Pix[4*i+1] = s[1]
			out.Pix[4*i+2] = s[2]
			out.Pix[4*i+3] = 0xFF
		}
		return out, nil

	case img.Colors == 1:
		out := image.NewGray16(rect)
		for i := 0; i < n; i++ {
			out.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: binary.LittleEndian.Uint16(img.Data[2*i:])})
		}
		return out, nil

	default:
		out := image.NewRGBA64(rect)
		for i := 0; i < n; i++ {
			s := img.Data[6*i:]
			out.SetRGBA64(i%img.Width, i/img.Width, color.RGBA64{
				R: binary.LittleEndian.Uint16(s[0:]),
				G: binary.LittleEndian.Uint16(s[2:]),
				B: binary.LittleEndian.Uint16(s[4:]),
				A: 0xFFFF,
			})
		}
		return out, nil
	}
}

// parseImage decodes the guest image payload: a 16-byte header
// (width u32, height u32, colors u16, bits u16, data_size u32) and samples.
func parseImage(payload []byte) (*Image, error) {
	if len(payload) < imageHeaderSize {
		return nil, fmt.Errorf("image header too short: %d bytes", len(payload))
	}
	size := binary.LittleEndian.Uint32(payload[12:])
	if uint64(size) > uint64(len(payload)-imageHeaderSize) {
		return nil, fmt.Errorf("image data_size %d exceeds payload of %d bytes", size, len(payload)-imageHeaderSize)
	}
	return &Image{
		Width:  int(binary.LittleEndian.Uint32(payload[0:])),
		Height: int(binary.LittleEndian.Uint32(payload[4:])),
		Colors: int(binary.LittleEndian.Uint16(payload[8:])),
		Bits:   int(binary.LittleEndian.Uint16(payload[10:])),
		Data:   payload[imageHeaderSize : imageHeaderSize+int(size) : imageHeaderSize+int(size)],
	}, nil
}

const imageHeaderSize = 16
