package worker

import (
	"context"

	"github.com/wippyai/libraw-wasm/decoder"
)

type operation func(ctx context.Context, dec decoder.Decoder, args Args) (*Out, error)

// operations maps request function names to decoder calls.
var operations = map[string]operation{
	decoder.OpOpen: func(ctx context.Context, dec decoder.Decoder, args Args) (*Out, error) {
		return nil, dec.Open(ctx, args.Buffer, args.Settings)
	},
	decoder.OpMetadata: func(ctx context.Context, dec decoder.Decoder, args Args) (*Out, error) {
		rec, err := dec.Metadata(ctx, args.Full)
		if err != nil || rec == nil {
			return nil, err
		}
		return &Out{Metadata: rec}, nil
	},
	decoder.OpImageData: func(ctx context.Context, dec decoder.Decoder, _ Args) (*Out, error) {
		img, err := dec.ImageData(ctx)
		if err != nil || img == nil {
			return nil, err
		}
		return &Out{Image: img}, nil
	},
	decoder.OpThumbnailData: func(ctx context.Context, dec decoder.Decoder, _ Args) (*Out, error) {
		thumb, err := dec.ThumbnailData(ctx)
		if err != nil || thumb == nil {
			return nil, err
		}
		return &Out{Thumbnail: thumb}, nil
	},
}

// Functions lists the request names the worker understands.
func Functions() []string {
	return []string{decoder.OpOpen, decoder.OpMetadata, decoder.OpImageData, decoder.OpThumbnailData}
}

// WASMFactory returns a Factory that loads wasm into a private engine.
func WASMFactory(wasm []byte, opts ...decoder.Option) Factory {
	return func(ctx context.Context) (decoder.Decoder, error) {
		return decoder.NewWASM(ctx, nil, wasm, opts...)
	}
}
