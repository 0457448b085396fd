package libraw

import (
	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/engine"
	"github.com/wippyai/libraw-wasm/worker"
)

// Config configures a Client. Exactly one of WASM, Factory and
// WorkerCommand selects the execution context.
type Config struct {
	// Logger receives client and worker logs. Nil discards.
	Logger *zap.Logger

	// Engine configures the wazero engine that runs WASM. Nil uses defaults.
	Engine *engine.Config

	// Factory builds the decoder instead of loading WASM.
	Factory worker.Factory

	// WASM is the compiled decoder module, run on an in-process worker.
	WASM []byte

	// WorkerCommand runs the execution context as a child process speaking
	// the wire protocol on stdio, e.g. {"rawworker", "--wasm", "libraw.wasm"}.
	WorkerCommand []string

	// QueueDepth bounds the in-process request queue. 0 uses
	// worker.DefaultQueueDepth.
	QueueDepth int
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
