package libraw

import (
	"context"

	"github.com/wippyai/libraw-wasm/worker"
)

// transport carries requests to an execution context and replies back.
// *worker.Worker is the in-process implementation.
type transport interface {
	Submit(ctx context.Context, req worker.Request) error
	Replies() <-chan worker.Response
	Ready(ctx context.Context) error
	Close(ctx context.Context) error
}

var (
	_ transport = (*worker.Worker)(nil)
	_ transport = (*process)(nil)
)
