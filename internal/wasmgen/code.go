package wasmgen

// Opcodes
const (
	opUnreachable byte = 0x00
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opElse        byte = 0x05
	opEnd         byte = 0x0B
	opBr          byte = 0x0C
	opBrIf        byte = 0x0D
	opReturn      byte = 0x0F
	opCall        byte = 0x10
	opDrop        byte = 0x1A
	opLocalGet    byte = 0x20
	opLocalSet    byte = 0x21
	opLocalTee    byte = 0x22
	opGlobalGet   byte = 0x23
	opGlobalSet   byte = 0x24
	opI32Load     byte = 0x28
	opI32Load8U   byte = 0x2D
	opI32Store    byte = 0x36
	opI32Store8   byte = 0x3A
	opMemorySize  byte = 0x3F
	opMemoryGrow  byte = 0x40
	opI32Const    byte = 0x41
	opI32Eqz      byte = 0x45
	opI32Eq       byte = 0x46
	opI32Ne       byte = 0x47
	opI32LtU      byte = 0x49
	opI32GtU      byte = 0x4B
	opI32Add      byte = 0x6A
	opI32Sub      byte = 0x6B
	opI32And      byte = 0x71
	opI32Shl      byte = 0x74
	opI32ShrU     byte = 0x76
	opPrefixFC    byte = 0xFC

	fcMemoryCopy uint32 = 10

	blockVoid byte = 0x40
)

// Code builds a function body. Calls chain; Bytes appends the final end.
type Code struct {
	w Writer
}

// NewCode returns an empty body builder.
func NewCode() *Code {
	return &Code{}
}

// Bytes returns the encoded body terminated by end.
func (c *Code) Bytes() []byte {
	out := make([]byte, 0, c.w.Len()+1)
	out = append(out, c.w.Bytes()...)
	return append(out, opEnd)
}

func (c *Code) op(b ...byte) *Code {
	c.w.Byte(b...)
	return c
}

func (c *Code) opU32(b byte, v uint32) *Code {
	c.w.Byte(b)
	c.w.WriteU32(v)
	return c
}

func (c *Code) memarg(b byte, align, offset uint32) *Code {
	c.w.Byte(b)
	c.w.WriteU32(align)
	c.w.WriteU32(offset)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Block() *Code { return c.op(opBlock, blockVoid) }
func (c *Code) Loop() *Code { return c.op(opLoop, blockVoid) }
func (c *Code) If() *Code { return c.op(opIf, blockVoid) }
func (c *Code) Else() *Code { return c.op(opElse) }
func (c *Code) End() *Code { return c.op(opEnd) }
func (c *Code) Br(depth uint32) *Code { return c.opU32(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code { return c.opU32(opBrIf, depth) }
func (c *Code) Return() *Code { return c.op(opReturn) }
func (c *Code) Call(idx uint32) *Code { return c.opU32(opCall, idx) }
func (c *Code) Drop() *Code { return c.op(opDrop) }

func (c *Code) LocalGet(idx uint32) *Code { return c.opU32(opLocalGet, idx) }
func (c *Code) LocalSet(idx uint32) *Code { return c.opU32(opLocalSet, idx) }
func (c *Code) LocalTee(idx uint32) *Code { return c.opU32(opLocalTee, idx) }
func (c *Code) GlobalGet(idx uint32) *Code { return c.opU32(opGlobalGet, idx) }
func (c *Code) GlobalSet(idx uint32) *Code { return c.opU32(opGlobalSet, idx) }

// I32Load loads with byte alignment so unaligned guest pointers are valid.
func (c *Code) I32Load(offset uint32) *Code { return c.memarg(opI32Load, 0, offset) }
func (c *Code) I32Load8U(offset uint32) *Code { return c.memarg(opI32Load8U, 0, offset) }
func (c *Code) I32Store(offset uint32) *Code { return c.memarg(opI32Store, 0, offset) }
func (c *Code) I32Store8(offset uint32) *Code { return c.memarg(opI32Store8, 0, offset) }

func (c *Code) MemorySize() *Code { return c.op(opMemorySize, 0x00) }
func (c *Code) MemoryGrow() *Code { return c.op(opMemoryGrow, 0x00) }

// MemoryCopy pops dst, src, n. Requires bulk memory.
func (c *Code) MemoryCopy() *Code {
	c.w.Byte(opPrefixFC)
	c.w.WriteU32(fcMemoryCopy)
	c.w.Byte(0x00, 0x00)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(opI32Const)
	c.w.WriteS32(v)
	return c
}

func (c *Code) I32Eqz() *Code { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code { return c.op(opI32Ne) }
func (c *Code) I32LtU() *Code { return c.op(opI32LtU) }
func (c *Code) I32GtU() *Code { return c.op(opI32GtU) }
func (c *Code) I32Add() *Code { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code { return c.op(opI32Sub) }
func (c *Code) I32And() *Code { return c.op(opI32And) }
func (c *Code) I32Shl() *Code { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code { return c.op(opI32ShrU) }
