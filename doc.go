// Package libraw runs a WebAssembly build of LibRaw behind an asynchronous
// client proxy.
//
// The decoder lives on an execution context that owns it exclusively: a
// worker goroutine in the calling process, or a child process speaking
// framed CBOR on stdio. The Client forwards each operation as a message and
// blocks until the matching reply arrives.
//
// # Architecture Overview
//
//	libraw/            Client proxy, metadata post-processing, transports
//	├── worker/        Execution context: request queue, dispatch, Serve
//	├── decoder/       Decoder interface and the WASM implementation
//	├── engine/        wazero runtime, WASI and env host shims, guest memory
//	├── wire/          Length-prefixed CBOR frames
//	├── errors/        Structured error types
//	└── cmd/           rawinfo and rawworker
//
// # Quick Start
//
//	c, err := libraw.New(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	if err := c.Ready(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Open(ctx, raw, &decoder.Settings{HalfSize: decoder.Ptr(1)}); err != nil {
//	    log.Fatal(err)
//	}
//	meta, err := c.Metadata(ctx, false)
//	img, err := c.ImageData(ctx)
//
// # Single Flight
//
// A Client has one request slot. Calling a method while another is in
// flight returns an error of kind busy instead of queueing. When a call's
// context ends the call returns early, but the slot stays taken until the
// execution context answers.
//
// # Errors
//
// Every failure reported by the native decoder has kind operation_failed
// and carries the decoder's message verbatim:
//
//	if errors.Is(err, liberrors.ErrOperationFailed) {
//	    fmt.Println(liberrors.Message(err))
//	}
package libraw
