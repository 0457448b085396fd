package libraw

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/decoder"
	"github.com/wippyai/libraw-wasm/errors"
	"github.com/wippyai/libraw-wasm/worker"
)

// Client is the caller-facing proxy for one decoder running on its own
// execution context. All methods are safe for concurrent use, but only
// one operation may be in flight at a time: a second call made while the
// first is pending fails with a busy error.
type Client struct {
	logger *zap.Logger
	t      transport
	seq    atomic.Uint64
	done   chan struct{}

	mu      sync.Mutex
	pending *call
	closed  bool
}

// call is the single in-flight request slot.
type call struct {
	reply chan worker.Response
	fn    string
	id    uint64
	start time.Time
}

// New starts an in-process execution context for the decoder module wasm.
func New(ctx context.Context, wasm []byte) (*Client, error) {
	return NewWithConfig(ctx, &Config{WASM: wasm})
}

// NewWithConfig starts the execution context described by cfg. It returns
// once the context is launched; initialization continues in the
// background and its outcome is reported by Ready. ctx only carries
// values to the execution context: use Close to stop it.
func NewWithConfig(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.InvalidInput(errors.PhaseInit, "nil config")
	}
	logger := cfg.logger()

	var t transport
	if len(cfg.WorkerCommand) > 0 {
		p, err := startProcess(cfg.WorkerCommand, logger)
		if err != nil {
			return nil, err
		}
		t = p
	} else {
		factory := cfg.Factory
		if factory == nil {
			if len(cfg.WASM) == 0 {
				return nil, errors.InvalidInput(errors.PhaseInit, "no decoder module, factory or worker command")
			}
			factory = worker.WASMFactory(cfg.WASM,
				decoder.WithLogger(logger),
				decoder.WithEngineConfig(cfg.Engine))
		}
		w, err := worker.New(worker.Config{
			Factory:    factory,
			Logger:     logger,
			QueueDepth: cfg.QueueDepth,
		})
		if err != nil {
			return nil, err
		}
		w.Start(context.WithoutCancel(ctx))
		t = w
	}

	return newClient(t, logger), nil
}

func newClient(t transport, logger *zap.Logger) *Client {
	c := &Client{
		logger: logger,
		t:      t,
		done:   make(chan struct{}),
	}
	go c.receive()
	return c
}

// Ready waits for the execution context to finish initializing and returns
// the initialization error, if any. Once it has failed every operation
// fails with the same not_initialized error.
func (c *Client) Ready(ctx context.Context) error {
	return c.t.Ready(ctx)
}

// Open hands buf to the decoder together with optional settings. buf is
// moved: the caller must not use it afterwards.
func (c *Client) Open(ctx context.Context, buf []byte, settings *decoder.Settings) error {
	_, err := c.call(ctx, decoder.OpOpen, worker.Args{Buffer: buf, Settings: settings})
	return err
}

// Metadata describes the open buffer. full adds color data, maker notes
// and vendor sections. thumb_format is replaced by its label, desc is
// trimmed and timestamp becomes a time.Time. A nil Record means the
// decoder produced nothing.
func (c *Client) Metadata(ctx context.Context, full bool) (decoder.Record, error) {
	out, err := c.call(ctx, decoder.OpMetadata, worker.Args{Full: full})
	if err != nil || out == nil {
		return nil, err
	}
	return postprocess(out.Metadata), nil
}

// ImageData unpacks and processes the open buffer. nil means no image.
func (c *Client) ImageData(ctx context.Context) (*decoder.Image, error) {
	out, err := c.call(ctx, decoder.OpImageData, worker.Args{})
	if err != nil || out == nil {
		return nil, err
	}
	return out.Image, nil
}

// ThumbnailData returns the embedded thumbnail. nil means none.
func (c *Client) ThumbnailData(ctx context.Context) (*decoder.Thumbnail, error) {
	out, err := c.call(ctx, decoder.OpThumbnailData, worker.Args{})
	if err != nil || out == nil {
		return nil, err
	}
	return out.Thumbnail, nil
}

// Close stops the execution context and releases the decoder. A pending
// call fails with a closed error.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	err := c.t.Close(ctx)
	select {
	case <-c.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// call claims the slot, submits the request and waits for its reply. If ctx
// ends first the slot stays claimed until the reply arrives, because the
// execution context still runs the request.
func (c *Client) call(ctx context.Context, fn string, args worker.Args) (*worker.Out, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.Closed(errors.PhaseClient, "client")
	}
	if c.pending != nil {
		pending := c.pending.fn
		c.mu.Unlock()
		return nil, errors.Busy(fn, pending)
	}
	p := &call{
		reply: make(chan worker.Response, 1),
		fn:    fn,
		id:    c.seq.Inc(),
		start: time.Now(),
	}
	c.pending = p
	c.mu.Unlock()

	if err := c.t.Submit(ctx, worker.Request{ID: p.id, Fn: fn, Args: args}); err != nil {
		c.release(p)
		return nil, err
	}

	select {
	case resp, ok := <-p.reply:
		if !ok {
			return nil, errors.Closed(errors.PhaseClient, "execution context")
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}
		return resp.Out, nil
	case <-ctx.Done():
		c.logger.Debug("caller stopped waiting",
			zap.String("fn", fn),
			zap.Uint64("id", p.id),
			zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

func (c *Client) release(p *call) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

// receive routes replies to the pending call. Replies for anything else
// are stale and dropped.
func (c *Client) receive() {
	defer close(c.done)

	for resp := range c.t.Replies() {
		c.mu.Lock()
		p := c.pending
		if p == nil || p.id != resp.ID {
			c.mu.Unlock()
			c.logger.Warn("dropping unexpected reply",
				zap.Uint64("id", resp.ID),
				zap.String("fn", resp.Fn))
			continue
		}
		c.pending = nil
		c.mu.Unlock()

		c.logger.Debug("reply",
			zap.String("fn", p.fn),
			zap.Uint64("id", p.id),
			zap.Bool("failed", resp.Error != nil),
			zap.Duration("elapsed", time.Since(p.start)))
		p.reply <- resp
	}

	c.mu.Lock()
	c.closed = true
	if p := c.pending; p != nil {
		c.pending = nil
		close(p.reply)
	}
	c.mu.Unlock()
}
