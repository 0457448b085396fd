package engine

// Export names the engine binds on every instance.
const (
	ExportMemory = "memory"
	ExportMalloc = "malloc"
	ExportFree   = "free"

	// ExportInitialize is the reactor entry point run on instantiation.
	ExportInitialize = "_initialize"
	// ExportStart marks a command module, which exits on start and cannot
	// be called afterwards.
	ExportStart = "_start"
)

// Host module names
const (
	ModuleWASI = "wasi_snapshot_preview1"
	ModuleEnv  = "env"
)
