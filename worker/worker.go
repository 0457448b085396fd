package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/decoder"
	"github.com/wippyai/libraw-wasm/errors"
)

// DefaultQueueDepth bounds the request queue when Config.QueueDepth is 0.
const DefaultQueueDepth = 16

// Factory builds the decoder. It runs once, on the worker goroutine.
type Factory func(ctx context.Context) (decoder.Decoder, error)

// Config configures a Worker.
type Config struct {
	Factory    Factory
	Logger     *zap.Logger
	QueueDepth int
}

// State is the lifecycle stage of a Worker.
type State int32

const (
	StateInitializing State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Stats counts answered requests.
type Stats struct {
	Served uint64
	Failed uint64
}

// Worker is the execution context: one goroutine that owns the decoder and
// answers requests in the order they were submitted.
type Worker struct {
	factory Factory
	logger  *zap.Logger
	dec     decoder.Decoder
	initErr error

	requests chan Request
	replies  chan Response
	ready    chan struct{}
	done     chan struct{}
	abort    chan struct{}

	state  atomic.Int32
	served atomic.Uint64
	failed atomic.Uint64

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	closeOnce sync.Once
	abortOnce sync.Once
}

// New creates a worker. Call Start to begin initialization.
func New(cfg Config) (*Worker, error) {
	if cfg.Factory == nil {
		return nil, errors.InvalidInput(errors.PhaseInit, "worker requires a decoder factory")
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		factory:  cfg.Factory,
		logger:   logger,
		requests: make(chan Request, depth),
		replies:  make(chan Response, depth),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		abort:    make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. ctx bounds initialization and every
// decoder call; cancelling it stops the worker. Start is a no-op after the
// first call or after Close.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.replies)

	w.initialize(ctx)
	close(w.ready)

	defer func() {
		if w.dec == nil {
			return
		}
		if err := w.dec.Close(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("close decoder", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.state.Store(int32(StateClosed))
			return
		case <-w.abort:
			return
		case req, ok := <-w.requests:
			if !ok {
				return
			}
			resp := w.handle(ctx, req)
			select {
			case w.replies <- resp:
			case <-w.abort:
				return
			}
		}
	}
}

func (w *Worker) initialize(ctx context.Context) {
	start := time.Now()
	dec, err := w.build(ctx)
	if err != nil {
		w.initErr = &errors.Error{
			Phase:  errors.PhaseInit,
			Kind:   errors.KindNotInitialized,
			Detail: errors.Message(err),
			Cause:  err,
		}
		w.state.Store(int32(StateFailed))
		w.logger.Error("decoder initialization failed", zap.Error(err))
		return
	}
	w.dec = dec
	w.state.Store(int32(StateReady))
	w.logger.Debug("decoder initialized", zap.Duration("elapsed", time.Since(start)))
}

func (w *Worker) build(ctx context.Context) (dec decoder.Decoder, err error) {
	defer func() {
		if r := recover(); r != nil {
			dec, err = nil, fmt.Errorf("decoder factory panicked: %v", r)
		}
	}()
	dec, err = w.factory(ctx)
	if err == nil && dec == nil {
		err = errors.InvalidInput(errors.PhaseInit, "decoder factory returned nil")
	}
	return dec, err
}

func (w *Worker) handle(ctx context.Context, req Request) Response {
	start := time.Now()
	resp := Response{ID: req.ID, Fn: req.Fn}

	out, err := w.dispatch(ctx, req)
	if err != nil {
		resp.Error = faultOf(err)
		w.failed.Inc()
		w.logger.Debug("request failed",
			zap.Uint64("id", req.ID),
			zap.String("fn", req.Fn),
			zap.String("kind", string(resp.Error.Kind)),
			zap.String("message", resp.Error.Message))
		return resp
	}

	resp.Out = out
	w.served.Inc()
	w.logger.Debug("request served",
		zap.Uint64("id", req.ID),
		zap.String("fn", req.Fn),
		zap.Duration("elapsed", time.Since(start)))
	return resp
}

func (w *Worker) dispatch(ctx context.Context, req Request) (out *Out, err error) {
	if w.initErr != nil {
		return nil, w.initErr
	}
	op, ok := operations[req.Fn]
	if !ok {
		return nil, errors.OperationFailed(req.Fn, fmt.Sprintf("unknown function %q", req.Fn))
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("operation panicked", zap.String("fn", req.Fn), zap.Any("panic", r))
			out, err = nil, errors.OperationFailed(req.Fn, fmt.Sprint(r))
		}
	}()
	return op(ctx, w.dec, req.Args)
}

// Submit queues req. It blocks while the queue is full until ctx ends.
func (w *Worker) Submit(ctx context.Context, req Request) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errors.Closed(errors.PhaseTransport, "worker")
	}
	select {
	case w.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return errors.Closed(errors.PhaseTransport, "worker")
	}
}

// Replies delivers responses in processing order. It is closed when the
// worker stops.
func (w *Worker) Replies() <-chan Response {
	return w.replies
}

// Ready waits for initialization and returns its error.
func (w *Worker) Ready(ctx context.Context) error {
	select {
	case <-w.ready:
		return w.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the current lifecycle stage.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Stats returns the served and failed counters.
func (w *Worker) Stats() Stats {
	return Stats{Served: w.served.Load(), Failed: w.failed.Load()}
}

// Close stops accepting requests, lets queued ones finish and waits for the
// worker to release the decoder. If ctx ends first the remaining requests
// are dropped and ctx's error is returned; a call already running inside
// the decoder still completes in the background.
func (w *Worker) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.requests)
		w.mu.Unlock()

		w.startOnce.Do(func() {
			w.initErr = errors.Closed(errors.PhaseInit, "worker")
			close(w.ready)
			close(w.replies)
			close(w.done)
		})
	})

	select {
	case <-w.done:
		w.state.Store(int32(StateClosed))
		return nil
	case <-ctx.Done():
		w.abortOnce.Do(func() { close(w.abort) })
		return ctx.Err()
	}
}
