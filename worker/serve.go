package worker

import (
	"context"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/libraw-wasm/wire"
)

// Serve runs a worker over a framed CBOR stream: requests are read from r
// and replies written to w. The first message written is a FnReady
// response reporting initialization. Serve returns nil when r reaches end
// of stream after every queued request was answered.
func Serve(ctx context.Context, cfg Config, r io.Reader, w io.Writer) error {
	wk, err := New(cfg)
	if err != nil {
		return err
	}
	logger := wk.logger
	conn := wire.NewConn(r, w)
	defer conn.Close()

	wk.Start(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			var req Request
			err := conn.Receive(&req)
			if err == io.EOF {
				logger.Debug("request stream closed")
				return wk.Close(gctx)
			}
			if err != nil {
				return err
			}
			if err := wk.Submit(gctx, req); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		ready := Response{Fn: FnReady}
		if err := wk.Ready(gctx); err != nil {
			ready.Error = faultOf(err)
		}
		if err := conn.Send(ready); err != nil {
			return err
		}
		for resp := range wk.Replies() {
			if err := conn.Send(resp); err != nil {
				return err
			}
		}
		return nil
	})

	err = g.Wait()
	go func() {
		for range wk.Replies() {
		}
	}()
	if cerr := wk.Close(context.WithoutCancel(ctx)); cerr != nil {
		logger.Warn("close worker", zap.Error(cerr))
	}
	stats := wk.Stats()
	logger.Info("worker stopped",
		zap.Uint64("served", stats.Served),
		zap.Uint64("failed", stats.Failed))
	return err
}
