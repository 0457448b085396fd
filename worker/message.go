package worker

import (
	"github.com/wippyai/libraw-wasm/decoder"
	"github.com/wippyai/libraw-wasm/errors"
)

// FnReady names the unsolicited message Serve sends once initialization
// has finished. Its ID is always 0 and Error is set when it failed.
const FnReady = "ready"

// Args carries the inputs of every operation. Only the fields an
// operation reads are set.
type Args struct {
	Settings *decoder.Settings `cbor:"settings,omitempty"`
	Buffer   []byte            `cbor:"buffer,omitempty"`
	Full     bool              `cbor:"full,omitempty"`
}

// Request asks the execution context to run Fn. ID correlates the reply.
type Request struct {
	Fn   string `cbor:"fn"`
	Args Args   `cbor:"args"`
	ID   uint64 `cbor:"id"`
}

// Out holds the result of a successful operation. open leaves it empty.
type Out struct {
	Metadata  decoder.Record     `cbor:"metadata,omitempty"`
	Image     *decoder.Image     `cbor:"image,omitempty"`
	Thumbnail *decoder.Thumbnail `cbor:"thumbnail,omitempty"`
}

// Fault describes a failed request. Message is the native decoder's text
// for operation_failed.
type Fault struct {
	Kind    errors.Kind `cbor:"kind"`
	Message string      `cbor:"message"`
}

// Response answers the Request with the same ID. Exactly one of Out and
// Error is meaningful.
type Response struct {
	Out   *Out   `cbor:"out,omitempty"`
	Error *Fault `cbor:"error,omitempty"`
	Fn    string `cbor:"fn"`
	ID    uint64 `cbor:"id"`
}

// Err turns a fault back into a structured error, or nil on success.
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error.err(r.Fn)
}

func (f *Fault) err(fn string) error {
	kind := f.Kind
	if kind == "" {
		kind = errors.KindOperationFailed
	}
	phase := errors.PhaseCall
	switch kind {
	case errors.KindNotInitialized:
		phase = errors.PhaseInit
	case errors.KindTransport:
		phase = errors.PhaseTransport
	case errors.KindInvalidData:
		phase = errors.PhaseDecode
	}
	return &errors.Error{Phase: phase, Kind: kind, Op: fn, Detail: f.Message}
}

// faultOf flattens err for the wire. operation_failed keeps only the
// native message; other kinds keep the full chain.
func faultOf(err error) *Fault {
	kind := errors.KindOf(err)
	switch kind {
	case "", errors.KindOperationFailed:
		return &Fault{Kind: errors.KindOperationFailed, Message: errors.Message(err)}
	case errors.KindNotInitialized:
		return &Fault{Kind: kind, Message: errors.Message(err)}
	}
	return &Fault{Kind: kind, Message: err.Error()}
}
