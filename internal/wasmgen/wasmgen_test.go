package wasmgen

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestWriter_LEB128(t *testing.T) {
	tests := []struct {
		name string
		fn   func(w *Writer)
		want []byte
	}{
		{"u32 zero", func(w *Writer) { w.WriteU32(0) }, []byte{0x00}},
		{"u32 127", func(w *Writer) { w.WriteU32(127) }, []byte{0x7f}},
		{"u32 128", func(w *Writer) { w.WriteU32(128) }, []byte{0x80, 0x01}},
		{"u32 624485", func(w *Writer) { w.WriteU32(624485) }, []byte{0xe5, 0x8e, 0x26}},
		{"s32 -1", func(w *Writer) { w.WriteS32(-1) }, []byte{0x7f}},
		{"s32 63", func(w *Writer) { w.WriteS32(63) }, []byte{0x3f}},
		{"s32 64", func(w *Writer) { w.WriteS32(64) }, []byte{0xc0, 0x00}},
		{"s32 -128", func(w *Writer) { w.WriteS32(-128) }, []byte{0x80, 0x7f}},
		{"name", func(w *Writer) { w.WriteName("env") }, []byte{0x03, 'e', 'n', 'v'}},
		{"u32 le", func(w *Writer) { w.WriteU32LE(0x01020304) }, []byte{0x04, 0x03, 0x02, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Writer
			tt.fn(&w)
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Errorf("got % x, want % x", w.Bytes(), tt.want)
			}
		})
	}
}

func TestEncodeEmptyModule(t *testing.T) {
	data := (&Module{}).Encode()
	if !bytes.Equal(data, []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}) {
		t.Errorf("empty module = % x", data)
	}
}

func TestAddType_Dedup(t *testing.T) {
	var m Module
	a := m.AddType(FuncType{Params: []ValType{I32}, Results: []ValType{I32}})
	b := m.AddType(FuncType{Params: []ValType{I32}})
	c := m.AddType(FuncType{Params: []ValType{I32}, Results: []ValType{I32}})
	if a != c || a == b || len(m.Types) != 2 {
		t.Errorf("indices a=%d b=%d c=%d, types=%d", a, b, c, len(m.Types))
	}
}

func TestModule_RunsUnderWazero(t *testing.T) {
	ctx := context.Background()

	var m Module
	m.Memory = &Memory{Min: 1}
	m.Exports = append(m.Exports, Export{Name: "memory", Kind: KindMemory})
	counter := m.AddGlobal(40)

	i32 := []ValType{I32}
	add := m.AddFunc(FuncType{Params: []ValType{I32, I32}, Results: i32}, nil,
		NewCode().LocalGet(0).LocalGet(1).I32Add().Bytes())
	m.ExportFunc("add", add)

	bump := m.AddFunc(FuncType{Results: i32}, nil,
		NewCode().GlobalGet(counter).I32Const(2).I32Add().GlobalSet(counter).GlobalGet(counter).Bytes())
	m.ExportFunc("bump", bump)

	// sum bytes of the data segment with a loop
	sum := m.AddFunc(FuncType{Params: []ValType{I32, I32}, Results: i32}, []ValType{I32},
		NewCode().
			Block().Loop().
			LocalGet(1).I32Eqz().BrIf(1).
			LocalGet(2).LocalGet(0).I32Load8U(0).I32Add().LocalSet(2).
			LocalGet(0).I32Const(1).I32Add().LocalSet(0).
			LocalGet(1).I32Const(1).I32Sub().LocalSet(1).
			Br(0).
			End().End().
			LocalGet(2).Bytes())
	m.ExportFunc("sum", sum)
	m.Data = append(m.Data, Data{Offset: 16, Init: []byte{1, 2, 3, 4}})

	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, m.Encode())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	tests := []struct {
		fn   string
		args []uint64
		want uint32
	}{
		{"add", []uint64{2, 3}, 5},
		{"bump", nil, 42},
		{"bump", nil, 44},
		{"sum", []uint64{16, 4}, 10},
	}
	for _, tt := range tests {
		res, err := mod.ExportedFunction(tt.fn).Call(ctx, tt.args...)
		if err != nil {
			t.Fatalf("%s: %v", tt.fn, err)
		}
		if got := uint32(res[0]); got != tt.want {
			t.Errorf("%s(%v) = %d, want %d", tt.fn, tt.args, got, tt.want)
		}
	}
}
