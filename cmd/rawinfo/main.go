package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	libraw "github.com/wippyai/libraw-wasm"
	"github.com/wippyai/libraw-wasm/decoder"
	"github.com/wippyai/libraw-wasm/engine"
)

var (
	wasmFile    = pflag.String("wasm", os.Getenv("LIBRAW_WASM"), "Path to the LibRaw decoder module (default $LIBRAW_WASM)")
	full        = pflag.Bool("full", false, "Include color data, maker notes and vendor sections")
	asJSON      = pflag.Bool("json", false, "Print metadata as JSON")
	thumbOut    = pflag.String("thumb", "", "Write the embedded thumbnail to `path`")
	imageOut    = pflag.String("image", "", "Write the processed image to `path` (.png or .tiff)")
	halfSize    = pflag.Bool("half-size", false, "Decode at half resolution")
	bps         = pflag.Int("bps", 8, "Output bits per sample (8 or 16)")
	workerCmd   = pflag.String("worker", "", "Run the decoder in a child process started with `command`")
	cacheDir    = pflag.String("cache-dir", "", "Directory for the wazero compilation cache")
	logLevel    = pflag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	interactive = pflag.BoolP("interactive", "i", false, "Browse metadata in an interactive TUI")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rawinfo --wasm libraw.wasm [flags] FILE")
		fmt.Fprintln(os.Stderr, "       rawinfo --worker 'rawworker --wasm libraw.wasm' [flags] FILE")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 || (*wasmFile == "" && *workerCmd == "") {
		pflag.Usage()
		os.Exit(2)
	}
	if *bps != 8 && *bps != 16 {
		fmt.Fprintln(os.Stderr, "Error: --bps must be 8 or 16")
		os.Exit(2)
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *interactive {
		err = runInteractive(ctx, logger, pflag.Arg(0))
	} else {
		err = run(ctx, logger, pflag.Arg(0))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// clientConfig builds the client configuration from flags.
func clientConfig(logger *zap.Logger) (*libraw.Config, error) {
	cfg := &libraw.Config{
		Logger: logger,
		Engine: &engine.Config{CacheDir: *cacheDir},
	}
	if *workerCmd != "" {
		cfg.WorkerCommand = strings.Fields(*workerCmd)
		return cfg, nil
	}
	data, err := os.ReadFile(*wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read decoder module: %w", err)
	}
	cfg.WASM = data
	return cfg, nil
}

func settings() *decoder.Settings {
	s := &decoder.Settings{OutputBps: decoder.Ptr(*bps)}
	if *halfSize {
		s.HalfSize = decoder.Ptr(1)
	}
	return s
}

// openClient starts a client and opens path on it.
func openClient(ctx context.Context, logger *zap.Logger, path string) (*libraw.Client, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw file: %w", err)
	}
	cfg, err := clientConfig(logger)
	if err != nil {
		return nil, err
	}
	c, err := libraw.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	if err := c.Ready(ctx); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("initialize decoder: %w", err)
	}
	if err := c.Open(ctx, raw, settings()); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return c, nil
}

func run(ctx context.Context, logger *zap.Logger, path string) error {
	c, err := openClient(ctx, logger, path)
	if err != nil {
		return err
	}
	defer c.Close(context.WithoutCancel(ctx))

	meta, err := c.Metadata(ctx, *full)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if *asJSON {
		if err := printJSON(os.Stdout, meta); err != nil {
			return err
		}
	} else {
		printMetadata(os.Stdout, path, meta, isTerminal(os.Stdout))
	}

	if *thumbOut != "" {
		thumb, err := c.ThumbnailData(ctx)
		if err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		if thumb == nil {
			return fmt.Errorf("%s has no thumbnail", path)
		}
		written, err := writeThumbnail(*thumbOut, thumb)
		if err != nil {
			return err
		}
		logger.Info("thumbnail written", zap.String("path", written), zap.String("format", thumb.Format))
	}

	if *imageOut != "" {
		img, err := c.ImageData(ctx)
		if err != nil {
			return fmt.Errorf("image: %w", err)
		}
		if img == nil {
			return fmt.Errorf("%s produced no image", path)
		}
		if err := writeImage(*imageOut, img); err != nil {
			return err
		}
		logger.Info("image written",
			zap.String("path", *imageOut),
			zap.Int("width", img.Width),
			zap.Int("height", img.Height),
			zap.Int("bits", img.Bits))
	}
	return nil
}
