// Package worker is the execution context of the decoder bridge.
//
// A Worker owns exactly one decoder.Decoder on its own goroutine. It builds
// the decoder once through a Factory, then answers Requests strictly in
// submission order, one at a time:
//
//	w, _ := worker.New(worker.Config{Factory: worker.WASMFactory(bin)})
//	w.Start(ctx)
//	_ = w.Submit(ctx, worker.Request{ID: 1, Fn: decoder.OpOpen, Args: worker.Args{Buffer: raw}})
//	resp := <-w.Replies()
//
// Failures are flattened into a Fault carrying a kind and the native
// message. When initialization fails every request is answered with that
// failure.
//
// Serve runs the same loop over a framed CBOR stream, which is how
// cmd/rawworker hosts the decoder in a separate process.
package worker
