package engine

import (
	"bytes"
	"context"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/errors"
)

// Module is a compiled WASM module
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// ExportNames returns the module's exported function names, sorted.
func (m *Module) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates an anonymous instance and runs _initialize when exported.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	if m.engine.runtime == nil {
		return nil, errors.Closed(errors.PhaseLoad, "engine")
	}

	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous so one engine can host several decoders
		WithStartFunctions(ExportInitialize).
		WithStdout(m.engine.stdout()).
		WithStderr(m.engine.stderr()).
		WithSysWalltime().
		WithSysNanotime()

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		if exitErr, ok := err.(*sys.ExitError); ok && exitErr.ExitCode() == 0 {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Detail("module exited during initialization").Build()
		}
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("instantiate failed").Cause(err).Build()
	}
	if mod.IsClosed() {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("module exited during initialization").Build()
	}

	inst := &Instance{
		module:    mod,
		funcCache: make(map[string]api.Function),
		stackBuf:  make([]uint64, 4),
	}
	if mem := mod.Memory(); mem != nil {
		inst.memory = &Memory{mem: mem}
	}
	inst.mallocFn = mod.ExportedFunction(ExportMalloc)
	inst.freeFn = mod.ExportedFunction(ExportFree)

	return inst, nil
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	if m.compiled == nil {
		return nil
	}
	err := m.compiled.Close(ctx)
	m.compiled = nil
	return err
}

// Instance is a running WASM instance.
// It is NOT safe for concurrent use from multiple goroutines.
// Each goroutine should have its own Instance, or access must be synchronized externally.
type Instance struct {
	module    api.Module
	memory    *Memory
	mallocFn  api.Function
	freeFn    api.Function
	funcCache map[string]api.Function
	stackBuf  []uint64
}

func (i *Instance) function(name string) api.Function {
	if fn, ok := i.funcCache[name]; ok {
		return fn
	}
	fn := i.module.ExportedFunction(name)
	if fn != nil {
		i.funcCache[name] = fn
	}
	return fn
}

// HasExport reports whether the instance exports a function named name.
func (i *Instance) HasExport(name string) bool {
	if i.module == nil {
		return false
	}
	return i.function(name) != nil
}

// Call invokes an exported function. Traps and guest exits are returned as
// operation_failed errors carrying the runtime's message.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.module == nil {
		return nil, errors.Closed(errors.PhaseCall, "instance")
	}
	fn := i.function(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}

	results, err := fn.Call(ctx, args...)
	if err != nil {
		debugf("call %s failed: %v", name, err)
		return nil, errors.New(errors.PhaseCall, errors.KindOperationFailed).
			Op(name).
			Detail("%s", err.Error()).
			Cause(err).
			Build()
	}
	return results, nil
}

// Call32 invokes a function returning a single i32.
func (i *Instance) Call32(ctx context.Context, name string, args ...uint64) (uint32, error) {
	results, err := i.Call(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, errors.New(errors.PhaseCall, errors.KindInvalidData).
			Op(name).Detail("no result").Build()
	}
	return api.DecodeU32(results[0]), nil
}

// Memory returns the instance's exported memory, or nil.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// Alloc reserves size bytes with the guest's malloc.
func (i *Instance) Alloc(ctx context.Context, size uint32) (uint32, error) {
	if i.mallocFn == nil {
		return 0, errors.NotFound(errors.PhaseEncode, "export", ExportMalloc)
	}

	i.stackBuf[0] = uint64(size)
	if err := i.mallocFn.CallWithStack(ctx, i.stackBuf[:1]); err != nil {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, err)
	}
	ptr := api.DecodeU32(i.stackBuf[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, nil)
	}
	return ptr, nil
}

// Free returns ptr to the guest allocator. Failures are logged, not returned.
func (i *Instance) Free(ctx context.Context, ptr uint32) {
	if i.freeFn == nil || ptr == 0 {
		return
	}
	i.stackBuf[0] = uint64(ptr)
	if err := i.freeFn.CallWithStack(ctx, i.stackBuf[:1]); err != nil {
		Logger().Warn("Free: guest free failed",
			zap.Uint32("ptr", ptr),
			zap.Error(err))
	}
}

// WriteBytes allocates guest memory and copies data into it. An empty slice
// yields pointer 0 without allocating.
func (i *Instance) WriteBytes(ctx context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if i.memory == nil {
		return 0, errors.NotFound(errors.PhaseEncode, "export", ExportMemory)
	}
	ptr, err := i.Alloc(ctx, uint32(len(data)))
	if err != nil {
		return 0, err
	}
	if err := i.memory.Write(ptr, data); err != nil {
		i.Free(ctx, ptr)
		return 0, err
	}
	return ptr, nil
}

// ReadBytes copies length bytes out of guest memory. The result never
// aliases guest memory.
func (i *Instance) ReadBytes(ptr, length uint32) ([]byte, error) {
	if i.memory == nil {
		return nil, errors.NotFound(errors.PhaseDecode, "export", ExportMemory)
	}
	if length == 0 {
		return []byte{}, nil
	}
	view, err := i.memory.Read(ptr, length)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(view), nil
}

// ReadU32 reads a little-endian u32 from guest memory.
func (i *Instance) ReadU32(ptr uint32) (uint32, error) {
	if i.memory == nil {
		return 0, errors.NotFound(errors.PhaseDecode, "export", ExportMemory)
	}
	return i.memory.ReadU32(ptr)
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *Instance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	var err error
	if i.module != nil {
		err = i.module.Close(ctx)
		i.module = nil
	}
	// Clear references to help GC
	i.funcCache = nil
	i.memory = nil
	i.mallocFn = nil
	i.freeFn = nil
	return err
}
