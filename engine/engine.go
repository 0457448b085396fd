package engine

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/errors"
)

// Engine owns one wazero runtime. Modules loaded from the same engine share
// its host modules and compilation cache.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	cfg      Config
	hostMu   sync.Mutex
	wasiDone atomic.Bool
	envDone  atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// Stdout and Stderr receive guest output. nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// CacheDir enables wazero's on-disk compilation cache. Compiling the full
	// decoder is the slowest step of start-up, so CLIs set this.
	CacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone aborts a running guest call when its context ends.
	// Left false, a started call always runs to completion.
	CloseOnContextDone bool
}

// NewEngine creates a new wazero-based engine. A nil cfg uses defaults.
func NewEngine(ctx context.Context, cfg *Config) (*Engine, error) {
	e := &Engine{}
	if cfg != nil {
		e.cfg = *cfg
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if e.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	if e.cfg.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}
	if e.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(e.cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "compilation cache")
		}
		e.cache = cache
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// Load compiles a core module and links the host modules it imports.
func (e *Engine) Load(ctx context.Context, wasmBytes []byte) (*Module, error) {
	if e.runtime == nil {
		return nil, errors.Closed(errors.PhaseLoad, "engine")
	}
	if len(wasmBytes) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}

	exports := compiled.ExportedFunctions()
	if _, ok := exports[ExportStart]; ok {
		if _, reactor := exports[ExportInitialize]; !reactor {
			_ = compiled.Close(ctx)
			return nil, errors.InvalidInput(errors.PhaseLoad,
				"command module: build the decoder as a reactor (_initialize, no _start)")
		}
	}

	if err := e.linkHosts(ctx, compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	Logger().Debug("module compiled",
		zap.Int("bytes", len(wasmBytes)),
		zap.Int("exports", len(exports)),
		zap.Int("imports", len(compiled.ImportedFunctions())))

	return &Module{engine: e, compiled: compiled}, nil
}

func (e *Engine) linkHosts(ctx context.Context, compiled wazero.CompiledModule) error {
	var needWASI, needEnv bool
	for _, def := range compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		switch mod {
		case ModuleWASI:
			needWASI = true
		case ModuleEnv:
			if _, ok := envShims[name]; !ok {
				return errors.NotFound(errors.PhaseLoad, "env import", name)
			}
			needEnv = true
		}
	}

	if needWASI {
		if err := e.InitWASI(ctx); err != nil {
			return err
		}
	}
	if needEnv {
		if err := e.initEnv(ctx); err != nil {
			return err
		}
	}
	return nil
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiDone.Load() {
		return nil
	}

	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	if e.wasiDone.Load() {
		return nil
	}

	if e.runtime.Module(ModuleWASI) == nil {
		if _, err := instantiateWASI(ctx, e.runtime); err != nil {
			return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "instantiate WASI")
		}
	}

	e.wasiDone.Store(true)
	return nil
}

func (e *Engine) initEnv(ctx context.Context) error {
	if e.envDone.Load() {
		return nil
	}

	e.hostMu.Lock()
	defer e.hostMu.Unlock()

	if e.envDone.Load() {
		return nil
	}

	if e.runtime.Module(ModuleEnv) == nil {
		if _, err := instantiateEnv(ctx, e.runtime); err != nil {
			return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "instantiate env shims")
		}
	}

	e.envDone.Store(true)
	return nil
}

// Close releases the runtime, every module and instance created from it,
// and the compilation cache.
func (e *Engine) Close(ctx context.Context) error {
	if e.runtime == nil {
		return nil
	}
	err := e.runtime.Close(ctx)
	e.runtime = nil
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); err == nil {
			err = cerr
		}
		e.cache = nil
	}
	return err
}

func (e *Engine) stdout() io.Writer {
	if e.cfg.Stdout == nil {
		return io.Discard
	}
	return e.cfg.Stdout
}

func (e *Engine) stderr() io.Writer {
	if e.cfg.Stderr == nil {
		return io.Discard
	}
	return e.cfg.Stderr
}
