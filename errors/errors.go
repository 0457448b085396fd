package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // module compile and instantiate
	PhaseInit      Phase = "init"      // decoder construction
	PhaseCall      Phase = "call"      // native operation
	PhaseDecode    Phase = "decode"    // guest payload to Go
	PhaseEncode    Phase = "encode"    // Go to guest payload
	PhaseTransport Phase = "transport" // client <-> execution context
	PhaseClient    Phase = "client"    // client proxy bookkeeping
)

// Kind categorizes the error
type Kind string

const (
	KindOperationFailed Kind = "operation_failed"
	KindBusy            Kind = "busy"
	KindClosed          Kind = "closed"
	KindNotInitialized  Kind = "not_initialized"
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidData     Kind = "invalid_data"
	KindNotFound        Kind = "not_found"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindAllocation      Kind = "allocation"
	KindTransport       Kind = "transport"
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Op     string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase != "" && e.Phase != t.Phase {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the operation name
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is matching on kind alone.
var (
	ErrOperationFailed = &Error{Kind: KindOperationFailed}
	ErrBusy            = &Error{Kind: KindBusy}
	ErrClosed          = &Error{Kind: KindClosed}
	ErrNotInitialized  = &Error{Kind: KindNotInitialized}
)

// OperationFailed creates the single error kind every native failure maps to.
// msg is the native module's message, kept verbatim in Detail.
func OperationFailed(op, msg string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindOperationFailed,
		Op:     op,
		Detail: msg,
	}
}

// Busy creates the error returned when a call is issued while another is pending
func Busy(op, pending string) *Error {
	return &Error{
		Phase:  PhaseClient,
		Kind:   KindBusy,
		Op:     op,
		Detail: fmt.Sprintf("%s still in flight", pending),
	}
}

// Closed creates a use-after-close error
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " closed",
	}
}

// NotInitialized creates an initialization failure error
func NotInitialized(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, op, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Op:     op,
		Detail: detail,
	}
}

// OutOfBounds creates a guest memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("guest memory access offset=%d length=%d out of bounds", offset, length),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// Transport creates a transport error
func Transport(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseTransport,
		Kind:   KindTransport,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Message returns the detail of a structured error, or err.Error() otherwise.
// For operation_failed errors this is the native module's message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return err.Error()
}

// KindOf returns the kind of the first structured error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
