package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/libraw-wasm/errors"
)

// Memory wraps a guest linear memory with bounds-checked accessors.
// Slices returned by Read alias guest memory and are invalidated by growth.
type Memory struct {
	mem api.Memory
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	val, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 2)
	}
	return val, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4)
	}
	return val, nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, 4)
	}
	return nil
}

func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
