package decoder

import "context"

// Operation names, shared by the execution context's dispatch table and the
// client proxy.
const (
	OpOpen          = "open"
	OpMetadata      = "metadata"
	OpImageData     = "imageData"
	OpThumbnailData = "thumbnailData"
)

// Decoder is a handle on one native decoder. At most one buffer is open at a
// time; opening another replaces it. Implementations are not safe for
// concurrent use.
type Decoder interface {
	// Open loads buf with optional settings. The decoder takes ownership of
	// buf: the caller must not read or write it afterwards.
	Open(ctx context.Context, buf []byte, settings *Settings) error

	// Metadata describes the open buffer. full adds color data, common maker
	// notes and per-vendor sections. A nil Record means the decoder produced
	// nothing.
	Metadata(ctx context.Context, full bool) (Record, error)

	// ImageData unpacks and processes the open buffer. nil means no image.
	ImageData(ctx context.Context) (*Image, error)

	// ThumbnailData unpacks the embedded thumbnail. nil means no thumbnail.
	ThumbnailData(ctx context.Context) (*Thumbnail, error)

	Close(ctx context.Context) error
}
