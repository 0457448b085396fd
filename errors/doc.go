// Package errors provides structured error types for the libraw-wasm module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Every failure reported by the native decoder collapses into KindOperationFailed
// with the decoder's message kept verbatim in Detail; there is no finer taxonomy.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
//		Op("metadata").
//		Detail("truncated payload: %d bytes", n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OperationFailed("open", "LibRaw: open_buffer() failed with code -2")
//	err := errors.Busy("metadata", "open")
//
// All errors implement the standard error interface and support errors.Is/As.
// Sentinels like ErrBusy match on kind regardless of phase:
//
//	if errors.Is(err, liberrors.ErrBusy) { ... }
package errors
