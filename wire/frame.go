package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFrameSize bounds a single frame. Decoded RAW images reach a few
// hundred megabytes.
const DefaultMaxFrameSize = 1 << 30

const headerSize = 4

// WriteFrame writes a little-endian uint32 length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return fmt.Errorf("frame of %d bytes exceeds the length prefix", len(payload))
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame. A clean end of stream before the header is
// io.EOF; a stream cut inside a frame is io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit of %d", size, maxSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
