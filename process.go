package libraw

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/libraw-wasm/errors"
	"github.com/wippyai/libraw-wasm/worker"
	"github.com/wippyai/libraw-wasm/wire"
)

// process runs the execution context in a child process and talks to it
// over framed CBOR on the child's stdin and stdout. The child's stderr is
// forwarded to the logger line by line.
type process struct {
	cmd     *exec.Cmd
	conn    *wire.Conn
	logger  *zap.Logger
	replies chan worker.Response

	ready     chan struct{}
	readyErr  error
	readyOnce sync.Once

	exited  chan struct{}
	exitErr error

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func startProcess(argv []string, logger *zap.Logger) (*process, error) {
	if len(argv) == 0 {
		return nil, errors.InvalidInput(errors.PhaseTransport, "empty worker command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Transport("worker stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Transport("worker stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Transport("worker stderr", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Transport("start worker "+argv[0], err)
	}

	p := &process{
		cmd:     cmd,
		conn:    wire.NewConn(stdout, stdin),
		logger:  logger.With(zap.Int("pid", cmd.Process.Pid)),
		replies: make(chan worker.Response, worker.DefaultQueueDepth),
		ready:   make(chan struct{}),
		exited:  make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(p.pump)
	g.Go(func() error { return p.forward(stderr) })
	go func() {
		// Wait must follow the last read from the pipes.
		pumpErr := g.Wait()
		waitErr := cmd.Wait()
		if pumpErr != nil {
			p.exitErr = pumpErr
		} else if waitErr != nil {
			p.exitErr = errors.Transport("worker exited", waitErr)
		}
		p.logger.Debug("worker process exited", zap.Error(p.exitErr))
		close(p.exited)
	}()

	p.logger.Debug("worker process started", zap.Strings("argv", argv))
	return p, nil
}

func (p *process) resolve(err error) {
	p.readyOnce.Do(func() {
		p.readyErr = err
		close(p.ready)
	})
}

// pump reads replies until the child closes its stdout.
func (p *process) pump() error {
	defer close(p.replies)
	defer p.resolve(errors.Transport("worker exited before it was ready", nil))

	for {
		var resp worker.Response
		err := p.conn.Receive(&resp)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if resp.ID == 0 && resp.Fn == worker.FnReady {
			p.resolve(resp.Err())
			continue
		}
		p.replies <- resp
	}
}

func (p *process) forward(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		p.logger.Info("worker", zap.String("stderr", scanner.Text()))
	}
	return nil
}

// Submit writes req to the child. The write is not interruptible by ctx.
func (p *process) Submit(ctx context.Context, req worker.Request) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.Closed(errors.PhaseTransport, "worker process")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.conn.Send(req)
}

func (p *process) Replies() <-chan worker.Response {
	return p.replies
}

func (p *process) Ready(ctx context.Context) error {
	select {
	case <-p.ready:
		return p.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the child's request stream and waits for it to exit. If ctx
// ends first the child is killed.
func (p *process) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("close worker stdin", zap.Error(err))
		}
	})

	select {
	case <-p.exited:
		return p.exitErr
	case <-ctx.Done():
		if err := p.cmd.Process.Kill(); err != nil {
			p.logger.Warn("kill worker", zap.Error(err))
		}
		<-p.exited
		return ctx.Err()
	}
}
