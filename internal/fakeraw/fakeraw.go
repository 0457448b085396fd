// Package fakeraw builds a deterministic stand-in for the LibRaw decoder
// module. It speaks the same export ABI as the real build, serves canned
// metadata, image and thumbnail payloads, and rejects any buffer that does
// not start with Magic.
package fakeraw

import (
	"encoding/binary"

	"github.com/wippyai/libraw-wasm/internal/wasmgen"
)

// Magic prefixes every buffer the fake accepts.
const Magic = "FAKE"

// TrapMagic makes libraw_open hit an unreachable instruction.
const TrapMagic = "TRAP"

// Guest messages, matching the real wrapper's wording.
const (
	OpenError  = "LibRaw: open_buffer() failed with code -2"
	OrderError = "LibRaw: unpack() failed with code -4"
	ThumbError = "Failed to unpack thumbnail: Out of order call of libraw function"
	InitError  = "LibRaw not initialized"
)

// Canned image: 4x2 RGB, 8 bits per sample.
const (
	ImageWidth  = 4
	ImageHeight = 2
	ImageColors = 3
	ImageBits   = 8
)

// Canned thumbnail: 2x1 jpeg.
const (
	ThumbWidth  = 2
	ThumbHeight = 1
	ThumbFormat = 1
)

// BasicMetadata is returned by libraw_metadata(0).
const BasicMetadata = `{"width":4,"height":2,"raw_width":4,"raw_height":2,"top_margin":0,"left_margin":0,` +
	`"camera_make":"Fake","camera_model":"Sensor One","iso_speed":100,"shutter":0.008,"aperture":2.8,` +
	`"focal_len":35,"timestamp":1700000000,"shot_order":0,"desc":"  test shot \n","artist":"",` +
	`"thumb_width":2,"thumb_height":1,"thumb_format":1}`

// FullMetadata is returned by libraw_metadata(1).
const FullMetadata = `{"width":4,"height":2,"raw_width":4,"raw_height":2,"top_margin":0,"left_margin":0,` +
	`"camera_make":"Fake","camera_model":"Sensor One","iso_speed":100,"shutter":0.008,"aperture":2.8,` +
	`"focal_len":35,"timestamp":1700000000,"shot_order":0,"desc":"  test shot \n","artist":"",` +
	`"thumb_width":2,"thumb_height":1,"thumb_format":1,` +
	`"color_data":{"black":0,"data_maximum":4000,"maximum":4095,"cam_mul":[2,1,1.5,0],"pre_mul":[2,1,1.5,0],` +
	`"flash_used":0,"model2":"","raw_bps":12},` +
	`"metadata_common":{"FlashEC":0,"CameraTemperature":21.5},` +
	`"lens_info":{"MinFocal":35,"MaxFocal":35,"Lens":"Fake 35mm"}}`

// SettingsCap bounds the settings bytes the fake echoes back.
const SettingsCap = 4096

const heapStart = 2 * wasmgen.PageSize

// ImageData returns the canned sample bytes.
func ImageData() []byte {
	data := make([]byte, ImageWidth*ImageHeight*ImageColors)
	for i := range data {
		data[i] = byte(i*10 + 5)
	}
	return data
}

// ThumbData returns the canned thumbnail bytes.
func ThumbData() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0xFF, 0xD9}
}

// Input returns a buffer libraw_open accepts.
func Input() []byte {
	return append([]byte(Magic), "raw sensor payload"...)
}

// Options varies the generated module.
type Options struct {
	// FailInit makes libraw_init fail with InitError.
	FailInit bool
	// OmitInit leaves libraw_init unexported.
	OmitInit bool
	// Reactor exports _initialize, which sets the flag read by fake_started.
	Reactor bool
	// ImportNotify imports env.emscripten_notify_memory_growth and calls it on growth.
	ImportNotify bool
}

// Build returns the default fake decoder module.
func Build() []byte {
	return BuildWith(Options{})
}

// BuildWith returns a fake decoder module configured by opts.
func BuildWith(opts Options) []byte {
	b := &builder{m: &wasmgen.Module{}, opts: opts}
	return b.build()
}

type segment struct {
	off uint32
	len uint32
}

type builder struct {
	m    *wasmgen.Module
	opts Options

	next uint32

	heap, opened, errPtr, errLen, settingsLen, started uint32

	notify uint32

	errOpen, errOrder, errThumb, errInit segment
	basic, full, image, thumb          segment
	settings                           segment
}

func (b *builder) place(data []byte) segment {
	s := segment{off: b.next, len: uint32(len(data))}
	b.m.Data = append(b.m.Data, wasmgen.Data{Offset: s.off, Init: data})
	b.next = (s.off + s.len + 15) &^ 15
	return s
}

func (b *builder) build() []byte {
	m := b.m
	b.next = 1024

	var (
		none  []wasmgen.ValType
		i32   = []wasmgen.ValType{wasmgen.I32}
		i32x2 = []wasmgen.ValType{wasmgen.I32, wasmgen.I32}
		i32x4 = []wasmgen.ValType{wasmgen.I32, wasmgen.I32, wasmgen.I32, wasmgen.I32}
	)

	if b.opts.ImportNotify {
		m.Imports = append(m.Imports, wasmgen.Import{
			Module:  "env",
			Name:    "emscripten_notify_memory_growth",
			TypeIdx: m.AddType(wasmgen.FuncType{Params: i32}),
		})
		b.notify = 0
	}

	m.Memory = &wasmgen.Memory{Min: 2}
	m.Exports = append(m.Exports, wasmgen.Export{Name: "memory", Kind: wasmgen.KindMemory})

	b.heap = m.AddGlobal(heapStart)
	b.opened = m.AddGlobal(0)
	b.errPtr = m.AddGlobal(0)
	b.errLen = m.AddGlobal(0)
	b.settingsLen = m.AddGlobal(0)
	b.started = m.AddGlobal(0)

	b.errOpen = b.place([]byte(OpenError))
	b.errOrder = b.place([]byte(OrderError))
	b.errThumb = b.place([]byte(ThumbError))
	b.errInit = b.place([]byte(InitError))
	b.basic = b.place([]byte(BasicMetadata))
	b.full = b.place([]byte(FullMetadata))
	b.image = b.place(imagePayload())
	b.thumb = b.place(thumbPayload())
	b.settings = segment{off: b.next, len: SettingsCap}

	m.ExportFunc("malloc", m.AddFunc(wasmgen.FuncType{Params: i32, Results: i32}, i32x2, b.malloc()))
	m.ExportFunc("free", m.AddFunc(wasmgen.FuncType{Params: i32}, nil, wasmgen.NewCode().Bytes()))

	if !b.opts.OmitInit {
		m.ExportFunc("libraw_init", m.AddFunc(wasmgen.FuncType{Results: i32}, nil, b.initFn()))
	}
	m.ExportFunc("libraw_open", m.AddFunc(wasmgen.FuncType{Params: i32x4, Results: i32}, nil, b.open()))
	m.ExportFunc("libraw_metadata", m.AddFunc(wasmgen.FuncType{Params: i32x2, Results: i32}, nil, b.metadata()))
	m.ExportFunc("libraw_image_data", m.AddFunc(wasmgen.FuncType{Params: i32, Results: i32}, nil,
		b.payload(b.image, b.errOrder)))
	m.ExportFunc("libraw_thumbnail_data", m.AddFunc(wasmgen.FuncType{Params: i32, Results: i32}, nil,
		b.payload(b.thumb, b.errThumb)))
	m.ExportFunc("libraw_last_error", m.AddFunc(wasmgen.FuncType{Params: i32, Results: i32}, nil,
		b.storeGlobals(b.errPtr, b.errLen).I32Const(0).Bytes()))
	m.ExportFunc("fake_settings", m.AddFunc(wasmgen.FuncType{Params: i32, Results: i32}, nil,
		b.store(wasmgen.NewCode(), 0, b.settings.off).
			LocalGet(0).GlobalGet(b.settingsLen).I32Store(4).
			I32Const(0).Bytes()))
	m.ExportFunc("fake_started", m.AddFunc(wasmgen.FuncType{Results: i32}, nil,
		wasmgen.NewCode().GlobalGet(b.started).Bytes()))

	if b.opts.Reactor {
		m.ExportFunc("_initialize", m.AddFunc(wasmgen.FuncType{Params: none}, nil,
			wasmgen.NewCode().I32Const(1).GlobalSet(b.started).Bytes()))
	}

	return m.Encode()
}

// malloc(size) is a bump allocator growing memory on demand. Locals: 1 ptr, 2 top.
func (b *builder) malloc() []byte {
	c := wasmgen.NewCode().
		GlobalGet(b.heap).LocalSet(1).
		GlobalGet(b.heap).LocalGet(0).I32Add().I32Const(7).I32Add().I32Const(-8).I32And().LocalSet(2).
		LocalGet(2).MemorySize().I32Const(16).I32Shl().I32GtU().
		If().
		LocalGet(2).MemorySize().I32Const(16).I32Shl().I32Sub().I32Const(16).I32ShrU().I32Const(1).I32Add().
		MemoryGrow().
		I32Const(-1).I32Eq().
		If().I32Const(0).Return().End()
	if b.opts.ImportNotify {
		c.I32Const(0).Call(b.notify)
	}
	return c.End().
		LocalGet(2).GlobalSet(b.heap).
		LocalGet(1).Bytes()
}

func (b *builder) initFn() []byte {
	c := wasmgen.NewCode()
	if b.opts.FailInit {
		return b.fail(c, b.errInit).Bytes()
	}
	return c.I32Const(0).Bytes()
}

// open(buf, len, settings, settings_len)
func (b *builder) open() []byte {
	c := wasmgen.NewCode().
		I32Const(0).GlobalSet(b.opened).
		LocalGet(1).I32Const(4).I32LtU().
		If()
	b.fail(c, b.errOpen).End()

	c.LocalGet(0).I32Load(0).I32Const(magicWord(TrapMagic)).I32Eq().
		If().Unreachable().End()

	c.LocalGet(0).I32Load(0).I32Const(magicWord(Magic)).I32Ne().
		If()
	b.fail(c, b.errOpen).End()

	return c.
		LocalGet(3).I32Const(SettingsCap).I32GtU().
		If().I32Const(SettingsCap).LocalSet(3).End().
		I32Const(int32(b.settings.off)).LocalGet(2).LocalGet(3).MemoryCopy().
		LocalGet(3).GlobalSet(b.settingsLen).
		I32Const(1).GlobalSet(b.opened).
		I32Const(0).Bytes()
}

// metadata(full, retptr) yields nothing until a buffer is open.
func (b *builder) metadata() []byte {
	c := wasmgen.NewCode().
		GlobalGet(b.opened).I32Eqz().
		If()
	b.store(c, 1, 0).LocalGet(1).I32Const(0).I32Store(4).I32Const(0).Return().End()

	c.LocalGet(0).If()
	b.storeSegment(c, 1, b.full).Else()
	b.storeSegment(c, 1, b.basic).End()
	return c.I32Const(0).Bytes()
}

// payload(retptr) serves seg once a buffer is open, else fails with msg.
func (b *builder) payload(seg, msg segment) []byte {
	c := wasmgen.NewCode().
		GlobalGet(b.opened).I32Eqz().
		If()
	b.fail(c, msg).End()
	return b.storeSegment(c, 0, seg).I32Const(0).Bytes()
}

func (b *builder) fail(c *wasmgen.Code, msg segment) *wasmgen.Code {
	return c.
		I32Const(int32(msg.off)).GlobalSet(b.errPtr).
		I32Const(int32(msg.len)).GlobalSet(b.errLen).
		I32Const(1).Return()
}

// store writes v to *(local retptr).
func (b *builder) store(c *wasmgen.Code, local, v uint32) *wasmgen.Code {
	return c.LocalGet(local).I32Const(int32(v)).I32Store(0)
}

func (b *builder) storeSegment(c *wasmgen.Code, local uint32, seg segment) *wasmgen.Code {
	return b.store(c, local, seg.off).LocalGet(local).I32Const(int32(seg.len)).I32Store(4)
}

func (b *builder) storeGlobals(ptr, length uint32) *wasmgen.Code {
	return wasmgen.NewCode().
		LocalGet(0).GlobalGet(ptr).I32Store(0).
		LocalGet(0).GlobalGet(length).I32Store(4)
}

func magicWord(s string) int32 {
	return int32(binary.LittleEndian.Uint32([]byte(s)))
}

func imagePayload() []byte {
	data := ImageData()
	out := make([]byte, 16, 16+len(data))
	binary.LittleEndian.PutUint32(out[0:], ImageWidth)
	binary.LittleEndian.PutUint32(out[4:], ImageHeight)
	binary.LittleEndian.PutUint16(out[8:], ImageColors)
	binary.LittleEndian.PutUint16(out[10:], ImageBits)
	binary.LittleEndian.PutUint32(out[12:], uint32(len(data)))
	return append(out, data...)
}

func thumbPayload() []byte {
	data := ThumbData()
	out := make([]byte, 16, 16+len(data))
	binary.LittleEndian.PutUint32(out[0:], ThumbWidth)
	binary.LittleEndian.PutUint32(out[4:], ThumbHeight)
	binary.LittleEndian.PutUint32(out[8:], ThumbFormat)
	binary.LittleEndian.PutUint32(out[12:], uint32(len(data)))
	return append(out, data...)
}
