package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/libraw-wasm/errors"
	"github.com/wippyai/libraw-wasm/internal/fakeraw"
	"github.com/wippyai/libraw-wasm/internal/wasmgen"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	ctx := context.Background()
	eng, err := NewEngine(ctx, cfg)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })
	return eng
}

func newFakeInstance(t *testing.T, eng *Engine, bin []byte) *Instance {
	t.Helper()
	ctx := context.Background()
	mod, err := eng.Load(ctx, bin)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{CloseOnContextDone: true}, "close on context done"},
		{&Config{CacheDir: t.TempDir()}, "compilation cache"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng, err := NewEngine(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewEngine failed: %v", err)
			}
			if eng.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
			if err := eng.Close(ctx); err != nil {
				t.Errorf("Close: %v", err)
			}
			if err := eng.Close(ctx); err != nil {
				t.Errorf("second Close: %v", err)
			}
		})
	}
}

func commandModule() []byte {
	var m wasmgen.Module
	m.ExportFunc("_start", m.AddFunc(wasmgen.FuncType{}, nil, wasmgen.NewCode().Bytes()))
	return m.Encode()
}

func unknownEnvImport() []byte {
	var m wasmgen.Module
	m.Imports = append(m.Imports, wasmgen.Import{
		Module:  "env",
		Name:    "__cxa_throw",
		TypeIdx: m.AddType(wasmgen.FuncType{}),
	})
	return m.Encode()
}

func TestEngine_LoadRejects(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, nil)

	tests := []struct {
		name string
		bin  []byte
		kind errors.Kind
	}{
		{"empty", nil, errors.KindInvalidInput},
		{"garbage", []byte("definitely not wasm"), errors.KindInvalidData},
		{"command module", commandModule(), errors.KindInvalidInput},
		{"unknown env import", unknownEnvImport(), errors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Load(ctx, tt.bin)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v, want %v (%v)", got, tt.kind, err)
			}
		})
	}
}

func TestEngine_LoadAfterClose(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, nil)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	eng.Close(ctx)

	if _, err := eng.Load(ctx, fakeraw.Build()); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("Load after Close = %v, want closed", err)
	}
}

func TestModule_ExportNames(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, nil)
	mod, err := eng.Load(ctx, fakeraw.Build())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer mod.Close(ctx)

	names := mod.ExportNames()
	want := map[string]bool{"malloc": false, "free": false, "libraw_open": false, "libraw_last_error": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Errorf("export %q missing from %v", n, names)
		}
	}
}

func TestInstance_BytesRoundTrip(t *testing.T) {
	ctx := context.Background()
	inst := newFakeInstance(t, newTestEngine(t, nil), fakeraw.Build())

	data := []byte("hello guest")
	ptr, err := inst.WriteBytes(ctx, data)
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if ptr == 0 {
		t.Fatal("WriteBytes returned null pointer")
	}

	got, err := inst.ReadBytes(ptr, uint32(len(data)))
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadBytes = %q, want %q", got, data)
	}

	// the copy must not alias guest memory
	got[0] = 'X'
	again, _ := inst.ReadBytes(ptr, 1)
	if again[0] != 'h' {
		t.Error("ReadBytes result aliases guest memory")
	}
	inst.Free(ctx, ptr)

	if ptr, err := inst.WriteBytes(ctx, nil); err != nil || ptr != 0 {
		t.Errorf("WriteBytes(nil) = %d, %v", ptr, err)
	}
	if _, err := inst.ReadBytes(inst.MemorySize(), 4); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Errorf("ReadBytes past end = %v, want out_of_bounds", err)
	}
}

func TestInstance_CallFake(t *testing.T) {
	ctx := context.Background()
	inst := newFakeInstance(t, newTestEngine(t, nil), fakeraw.Build())

	if !inst.HasExport("libraw_open") {
		t.Fatal("libraw_open not exported")
	}
	if inst.HasExport("libraw_close") {
		t.Error("unexpected export libraw_close")
	}

	input := fakeraw.Input()
	ptr, err := inst.WriteBytes(ctx, input)
	if err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	status, err := inst.Call32(ctx, "libraw_open", uint64(ptr), uint64(len(input)), 0, 0)
	if err != nil || status != 0 {
		t.Fatalf("libraw_open = %d, %v", status, err)
	}

	ret, err := inst.Alloc(ctx, 8)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := inst.Call32(ctx, "libraw_metadata", 0, uint64(ret)); err != nil {
		t.Fatalf("libraw_metadata: %v", err)
	}
	n, err := inst.ReadU32(ret + 4)
	if err != nil {
		t.Fatalf("ReadU32: %v", err)
	}
	if int(n) != len(fakeraw.BasicMetadata) {
		t.Errorf("metadata length = %d, want %d", n, len(fakeraw.BasicMetadata))
	}
}

func TestInstance_CallErrors(t *testing.T) {
	ctx := context.Background()
	inst := newFakeInstance(t, newTestEngine(t, nil), fakeraw.Build())

	_, err := inst.Call(ctx, "no_such_export")
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("missing export = %v, want not_found", err)
	}

	ptr, _ := inst.WriteBytes(ctx, []byte(fakeraw.TrapMagic+"...."))
	_, err = inst.Call(ctx, "libraw_open", uint64(ptr), 8, 0, 0)
	if !stderrors.Is(err, errors.ErrOperationFailed) {
		t.Fatalf("trap = %v, want operation_failed", err)
	}
	if errors.Message(err) == "" {
		t.Error("trap message is empty")
	}

	// a trap leaves the instance usable
	input := fakeraw.Input()
	ptr, _ = inst.WriteBytes(ctx, input)
	if status, err := inst.Call32(ctx, "libraw_open", uint64(ptr), uint64(len(input)), 0, 0); err != nil || status != 0 {
		t.Errorf("open after trap = %d, %v", status, err)
	}
}

func TestInstance_Reactor(t *testing.T) {
	ctx := context.Background()
	inst := newFakeInstance(t, newTestEngine(t, nil), fakeraw.BuildWith(fakeraw.Options{Reactor: true}))

	started, err := inst.Call32(ctx, "fake_started")
	if err != nil {
		t.Fatalf("fake_started: %v", err)
	}
	if started != 1 {
		t.Error("_initialize did not run on instantiation")
	}
}

func TestInstance_EnvShim(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, nil)
	bin := fakeraw.BuildWith(fakeraw.Options{ImportNotify: true})

	// two instances share the env module
	a := newFakeInstance(t, eng, bin)
	b := newFakeInstance(t, eng, bin)

	for _, inst := range []*Instance{a, b} {
		before := inst.MemorySize()
		if _, err := inst.Alloc(ctx, 2*wasmgen.PageSize); err != nil {
			t.Fatalf("Alloc: %v", err)
		}
		if inst.MemorySize() <= before {
			t.Errorf("memory did not grow: %d -> %d", before, inst.MemorySize())
		}
	}
}

func TestInstance_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	inst := newFakeInstance(t, newTestEngine(t, &Config{MemoryLimitPages: 3}), fakeraw.Build())

	_, err := inst.Alloc(ctx, 4*wasmgen.PageSize)
	if errors.KindOf(err) != errors.KindAllocation {
		t.Errorf("Alloc over limit = %v, want allocation error", err)
	}
}

func TestInstance_Close(t *testing.T) {
	ctx := context.Background()
	inst := newFakeInstance(t, newTestEngine(t, nil), fakeraw.Build())

	if err := inst.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := inst.Call(ctx, "libraw_init"); !stderrors.Is(err, errors.ErrClosed) {
		t.Errorf("Call after Close = %v, want closed", err)
	}
	if inst.HasExport("libraw_init") {
		t.Error("HasExport after Close should be false")
	}
	if err := inst.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	eng := newTestEngine(t, nil)
	if _, err := eng.Load(context.Background(), fakeraw.Build()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if logs.FilterMessage("module compiled").Len() != 1 {
		t.Errorf("expected one compile log entry, got %v", logs.All())
	}
}
