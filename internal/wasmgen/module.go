// Package wasmgen assembles small core WebAssembly modules.
//
// It covers the MVP subset needed to hand-build test guests: function types,
// function imports, one linear memory, i32 globals, exports, code and active
// data segments. Function bodies are built with Code.
package wasmgen

// Binary format constants
const (
	Magic   uint32 = 0x6D736100 // \0asm
	Version uint32 = 0x01

	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11

	funcTypeByte byte = 0x60
)

// Export kinds
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
)

// PageSize is the wasm linear memory page size.
const PageSize = 65536

// ValType is a value type
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// FuncType is a function signature
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is a function import
type Import struct {
	Module  string
	Name    string
	TypeIdx uint32
}

// Func is a defined function. Body comes from Code.Bytes.
type Func struct {
	Locals  []ValType
	Body    []byte
	TypeIdx uint32
}

// Global is a mutable or immutable i32 global with a constant initializer
type Global struct {
	Init    int32
	Mutable bool
}

// Export names a module item
type Export struct {
	Name string
	Idx  uint32
	Kind byte
}

// Data is an active data segment for memory 0
type Data struct {
	Init   []byte
	Offset uint32
}

// Memory describes the single linear memory in pages
type Memory struct {
	Max *uint32
	Min uint32
}

// Module is an assemblable core module. Function indices count imports
// first, then Funcs in order.
type Module struct {
	Memory  *Memory
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Globals []Global
	Exports []Export
	Data    []Data
}

// AddType appends ft unless an identical signature exists and returns its index.
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if sameTypes(t.Params, ft.Params) && sameTypes(t.Results, ft.Results) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// AddFunc appends a function and returns its function index.
func (m *Module) AddFunc(ft FuncType, locals []ValType, body []byte) uint32 {
	m.Funcs = append(m.Funcs, Func{TypeIdx: m.AddType(ft), Locals: locals, Body: body})
	return uint32(len(m.Imports) + len(m.Funcs) - 1)
}

// AddGlobal appends a mutable i32 global and returns its index.
func (m *Module) AddGlobal(init int32) uint32 {
	m.Globals = append(m.Globals, Global{Init: init, Mutable: true})
	return uint32(len(m.Globals) - 1)
}

// ExportFunc exports function idx under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindFunc, Idx: idx})
}

func sameTypes(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Encode encodes the module to WebAssembly binary format
func (m *Module) Encode() []byte {
	var w Writer

	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(funcTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		writeSection(&w, sectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(KindFunc)
			sec.WriteU32(imp.TypeIdx)
		}
		writeSection(&w, sectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec.WriteU32(f.TypeIdx)
		}
		writeSection(&w, sectionFunction, sec.Bytes())
	}

	if m.Memory != nil {
		var sec Writer
		sec.WriteU32(1)
		if m.Memory.Max != nil {
			sec.Byte(0x01)
			sec.WriteU32(m.Memory.Min)
			sec.WriteU32(*m.Memory.Max)
		} else {
			sec.Byte(0x00)
			sec.WriteU32(m.Memory.Min)
		}
		writeSection(&w, sectionMemory, sec.Bytes())
	}

	if len(m.Globals) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			sec.Byte(byte(I32))
			if g.Mutable {
				sec.Byte(1)
			} else {
				sec.Byte(0)
			}
			sec.Byte(opI32Const)
			sec.WriteS32(g.Init)
			sec.Byte(opEnd)
		}
		writeSection(&w, sectionGlobal, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		writeSection(&w, sectionExport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body Writer
			// one run per local, no grouping
			body.WriteU32(uint32(len(f.Locals)))
			for _, l := range f.Locals {
				body.WriteU32(1)
				body.Byte(byte(l))
			}
			body.WriteBytes(f.Body)
			sec.WriteU32(uint32(body.Len()))
			sec.WriteBytes(body.Bytes())
		}
		writeSection(&w, sectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		var sec Writer
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.WriteU32(0) // active, memory 0
			sec.Byte(opI32Const)
			sec.WriteS32(int32(d.Offset))
			sec.Byte(opEnd)
			sec.WriteU32(uint32(len(d.Init)))
			sec.WriteBytes(d.Init)
		}
		writeSection(&w, sectionData, sec.Bytes())
	}

	return w.Bytes()
}

func writeSection(w *Writer, id byte, data []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(data)))
	w.WriteBytes(data)
}

func writeValTypes(w *Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}
