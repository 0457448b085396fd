// Package decoder defines the decoder handle and its typed results, and
// implements the handle on top of a WASM build of LibRaw.
//
// A Decoder exposes four operations. Each one returns a typed value:
//
//	Open(buf, settings)   -> nothing
//	Metadata(full)        -> Record
//	ImageData()           -> *Image
//	ThumbnailData()       -> *Thumbnail
//
// Every failure the native library reports becomes an *errors.Error of kind
// operation_failed whose Detail is the library's message, unchanged.
//
// # Ownership
//
// Results are copied out of guest memory exactly once. Image.Data and
// Thumbnail.Data are fresh slices owned by the caller; nothing else holds
// them.
//
// # Usage
//
//	dec, err := decoder.NewWASM(ctx, nil, librawWasm)
//	if err != nil {
//	    return err
//	}
//	defer dec.Close(ctx)
//
//	if err := dec.Open(ctx, raw, &decoder.Settings{HalfSize: decoder.Ptr(1)}); err != nil {
//	    return err
//	}
//	meta, err := dec.Metadata(ctx, false)
package decoder
