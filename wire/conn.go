package wire

import (
	"bufio"
	"io"
	"sync"

	"github.com/wippyai/libraw-wasm/errors"
)

// Conn exchanges CBOR messages over a reader and writer pair, typically a
// child process's stdout and stdin. Send is safe for concurrent use;
// Receive must be called from one goroutine.
type Conn struct {
	r       *bufio.Reader
	w       *bufio.Writer
	closer  io.Closer
	maxSize uint32
	mu      sync.Mutex
}

// NewConn binds r and w. If w is an io.Closer, Close closes it.
func NewConn(r io.Reader, w io.Writer) *Conn {
	c := &Conn{
		r:       bufio.NewReaderSize(r, 64<<10),
		w:       bufio.NewWriterSize(w, 64<<10),
		maxSize: DefaultMaxFrameSize,
	}
	if cl, ok := w.(io.Closer); ok {
		c.closer = cl
	}
	return c
}

// SetMaxFrameSize changes the largest frame Receive accepts. 0 disables the limit.
func (c *Conn) SetMaxFrameSize(n uint32) {
	c.maxSize = n
}

// Send encodes v and writes it as one frame.
func (c *Conn) Send(v any) error {
	payload, err := Marshal(v)
	if err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindInvalidInput, err, "encode message")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := WriteFrame(c.w, payload); err != nil {
		return errors.Transport("write frame", err)
	}
	if err := c.w.Flush(); err != nil {
		return errors.Transport("flush frame", err)
	}
	return nil
}

// Receive reads one frame into v. It returns io.EOF unwrapped when the
// peer closed the stream between messages.
func (c *Conn) Receive(v any) error {
	payload, err := ReadFrame(c.r, c.maxSize)
	if err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return errors.Transport("read frame", err)
	}
	if err := Unmarshal(payload, v); err != nil {
		return errors.Wrap(errors.PhaseTransport, errors.KindInvalidData, err, "decode message")
	}
	return nil
}

// Close closes the write side when it is closable, signalling end of stream.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}
