package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// instantiateWASI instantiates WASI preview1. Emscripten standalone builds
// import fd_write, clock_time_get, environ_* and proc_exit from it.
func instantiateWASI(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleWASI)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	return builder.Instantiate(ctx)
}

type envShim struct {
	fn      api.GoModuleFunc
	params  []api.ValueType
	results []api.ValueType
}

// envShims are the env imports a standalone Emscripten reactor may carry.
var envShims = map[string]envShim{
	// Called after memory.grow so JS views can be refreshed. wazero reads
	// memory directly, so there is nothing to refresh.
	"emscripten_notify_memory_growth": {
		fn: func(_ context.Context, mod api.Module, stack []uint64) {
			if mem := mod.Memory(); mem != nil {
				Logger().Debug("guest memory grew",
					zap.Uint32("index", api.DecodeU32(stack[0])),
					zap.Uint32("bytes", mem.Size()))
			}
		},
		params: []api.ValueType{api.ValueTypeI32},
	},
}

func instantiateEnv(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleEnv)
	for name, shim := range envShims {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(shim.fn, shim.params, shim.results).
			Export(name)
	}
	return builder.Instantiate(ctx)
}
