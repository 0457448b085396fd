// Package wire carries messages between a client and an execution context
// running in another process.
//
// Each message is one frame: a little-endian uint32 byte count followed by
// that many bytes of CBOR. Byte slices travel as CBOR byte strings, so
// image buffers cross the pipe without base64 or per-element encoding.
//
//	conn := wire.NewConn(stdout, stdin)
//	if err := conn.Send(req); err != nil { ... }
//	var resp Response
//	if err := conn.Receive(&resp); err != nil { ... }
package wire
