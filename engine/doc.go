// Package engine hosts core WebAssembly modules on wazero.
//
// It is the layer under the decoder: compile a module, link the host modules
// it imports, instantiate it, and move bytes in and out of guest memory with
// the guest's own allocator.
//
// # Architecture
//
//	Engine   - wraps one wazero runtime, shared WASI and env host modules
//	Module   - a compiled module, can create instances
//	Instance - a running instance: exported calls, malloc/free, memory
//
// # Module Requirements
//
// Modules are expected to be reactors (Emscripten STANDALONE_WASM with
// --no-entry, or any toolchain's equivalent): exported _initialize runs once
// on instantiation, and a module exporting only _start is rejected because a
// command exits and closes its instance. Guest memory is reached through the
// exported "memory", and allocations through exported malloc(size) and
// free(ptr).
//
// Imports from wasi_snapshot_preview1 are served by wazero's implementation.
// From env only the shims in this package are available; any other env
// import fails at Load.
//
// # Ownership
//
// WriteBytes copies a Go slice into a fresh guest allocation; ReadBytes copies
// guest bytes into a fresh Go slice. Neither result aliases the other side.
//
// # Thread Safety
//
// Engine and Module are safe for concurrent use.
// Instance is NOT thread-safe and should be used by a single goroutine.
package engine
