// Command rawworker hosts the LibRaw decoder in its own process. It reads
// framed CBOR requests on stdin and writes replies on stdout until stdin
// is closed. Logs go to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/decoder"
	"github.com/wippyai/libraw-wasm/engine"
	"github.com/wippyai/libraw-wasm/worker"
)

var (
	wasmFile    = pflag.String("wasm", os.Getenv("LIBRAW_WASM"), "Path to the LibRaw decoder module (default $LIBRAW_WASM)")
	cacheDir    = pflag.String("cache-dir", "", "Directory for the wazero compilation cache")
	memoryPages = pflag.Uint32("memory-pages", 0, "Guest memory limit in 64KiB pages (0 = 4GiB)")
	queueDepth  = pflag.Int("queue-depth", worker.DefaultQueueDepth, "Requests buffered ahead of the decoder")
	logLevel    = pflag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	pflag.Parse()
	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: rawworker --wasm libraw.wasm")
		os.Exit(2)
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("worker failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func run(ctx context.Context, logger *zap.Logger) error {
	wasm, err := os.ReadFile(*wasmFile)
	if err != nil {
		return fmt.Errorf("read decoder module: %w", err)
	}

	engine.SetLogger(logger.Named("engine"))
	factory := worker.WASMFactory(wasm,
		decoder.WithLogger(logger.Named("decoder")),
		// stdout carries the protocol, so guest output goes to stderr
		decoder.WithEngineConfig(&engine.Config{
			Stdout:           os.Stderr,
			Stderr:           os.Stderr,
			CacheDir:         *cacheDir,
			MemoryLimitPages: *memoryPages,
		}))

	return worker.Serve(ctx, worker.Config{
		Factory:    factory,
		Logger:     logger,
		QueueDepth: *queueDepth,
	}, os.Stdin, os.Stdout)
}
