package decoder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/libraw-wasm/engine"
	"github.com/wippyai/libraw-wasm/errors"
)

// WASM is a Decoder backed by one instance of the decoder module.
type WASM struct {
	logger     *zap.Logger
	engineCfg  *engine.Config
	eng        *engine.Engine
	mod        *engine.Module
	inst       *engine.Instance
	retptr     uint32
	ownsEngine bool
}

// Option configures NewWASM.
type Option func(*WASM)

// WithLogger sets the decoder's logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(d *WASM) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithEngineConfig configures the private engine created when NewWASM is
// given a nil engine.
func WithEngineConfig(cfg *engine.Config) Option {
	return func(d *WASM) {
		d.engineCfg = cfg
	}
}

// NewWASM loads and instantiates the decoder module on eng and runs
// libraw_init when exported. A nil eng creates a private engine that Close
// releases.
func NewWASM(ctx context.Context, eng *engine.Engine, wasm []byte, opts ...Option) (*WASM, error) {
	d := &WASM{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}

	if eng == nil {
		var err error
		if eng, err = engine.NewEngine(ctx, d.engineCfg); err != nil {
			return nil, err
		}
		d.ownsEngine = true
	}
	d.eng = eng

	if err := d.init(ctx, wasm); err != nil {
		_ = d.Close(ctx)
		return nil, err
	}
	return d, nil
}

func (d *WASM) init(ctx context.Context, wasm []byte) error {
	start := time.Now()

	mod, err := d.eng.Load(ctx, wasm)
	if err != nil {
		return err
	}
	d.mod = mod

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return err
	}
	d.inst = inst

	for _, name := range requiredExports {
		if !inst.HasExport(name) {
			return errors.NotFound(errors.PhaseInit, "export", name)
		}
	}

	if d.retptr, err = inst.Alloc(ctx, 8); err != nil {
		return err
	}

	if inst.HasExport(ExportInit) {
		if err := d.status(ctx, "init", ExportInit); err != nil {
			return err
		}
	}

	d.logger.Debug("decoder ready",
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint32("memory", inst.MemorySize()))
	return nil
}

// status calls an export returning a status code and turns failure into
// operation_failed with the guest's message.
func (d *WASM) status(ctx context.Context, op, export string, args ...uint64) error {
	code, err := d.inst.Call32(ctx, export, args...)
	if err != nil {
		return errors.OperationFailed(op, errors.Message(err))
	}
	if code != 0 {
		msg := d.lastError(ctx)
		if msg == "" {
			msg = fmt.Sprintf("%s failed with status %d", export, int32(code))
		}
		return errors.OperationFailed(op, msg)
	}
	return nil
}

func (d *WASM) lastError(ctx context.Context) string {
	msg, err := d.result(ctx, ExportLastError)
	if err != nil {
		d.logger.Warn("read last error", zap.Error(err))
		return ""
	}
	return string(msg)
}

// result calls an export taking retptr last and copies out its result.
// A zero-length result is nil.
func (d *WASM) result(ctx context.Context, export string, args ...uint64) ([]byte, error) {
	code, err := d.inst.Call32(ctx, export, append(args, uint64(d.retptr))...)
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%s failed with status %d", export, int32(code))
	}
	return d.readResult()
}

func (d *WASM) readResult() ([]byte, error) {
	ptr, err := d.inst.ReadU32(d.retptr)
	if err != nil {
		return nil, err
	}
	n, err := d.inst.ReadU32(d.retptr + 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return d.inst.ReadBytes(ptr, n)
}

// call runs an export taking retptr last and returns its payload, mapping
// guest failures to operation_failed.
func (d *WASM) call(ctx context.Context, op, export string, args ...uint64) ([]byte, error) {
	if d.inst == nil {
		return nil, errors.Closed(errors.PhaseCall, "decoder")
	}
	start := time.Now()
	if err := d.status(ctx, op, export, append(args, uint64(d.retptr))...); err != nil {
		d.logger.Debug("decoder call failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
	payload, err := d.readResult()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, op+" result")
	}
	d.logger.Debug("decoder call",
		zap.String("op", op),
		zap.Int("bytes", len(payload)),
		zap.Duration("elapsed", time.Since(start)))
	return payload, nil
}

// Open copies buf into guest memory and hands it to libraw_open, which keeps
// it for the lifetime of the open image.
func (d *WASM) Open(ctx context.Context, buf []byte, settings *Settings) error {
	if d.inst == nil {
		return errors.Closed(errors.PhaseCall, "decoder")
	}

	encoded, err := settings.MarshalGuest()
	if err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindInvalidInput, err, "settings")
	}

	bufPtr, err := d.inst.WriteBytes(ctx, buf)
	if err != nil {
		return err
	}
	setPtr, err := d.inst.WriteBytes(ctx, encoded)
	if err != nil {
		d.inst.Free(ctx, bufPtr)
		return err
	}
	defer d.inst.Free(ctx, setPtr)

	return d.status(ctx, OpOpen, ExportOpen,
		uint64(bufPtr), uint64(len(buf)), uint64(setPtr), uint64(len(encoded)))
}

func (d *WASM) Metadata(ctx context.Context, full bool) (Record, error) {
	var flag uint64
	if full {
		flag = 1
	}
	payload, err := d.call(ctx, OpMetadata, ExportMetadata, flag)
	if err != nil || payload == nil {
		return nil, err
	}
	rec, err := DecodeRecord(payload)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Op(OpMetadata).Detail("metadata is not a JSON object").Cause(err).Build()
	}
	return rec, nil
}

func (d *WASM) ImageData(ctx context.Context) (*Image, error) {
	payload, err := d.call(ctx, OpImageData, ExportImageData)
	if err != nil || payload == nil {
		return nil, err
	}
	img, err := parseImage(payload)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, OpImageData, err.Error())
	}
	return img, nil
}

func (d *WASM) ThumbnailData(ctx context.Context) (*Thumbnail, error) {
	payload, err := d.call(ctx, OpThumbnailData, ExportThumbnailData)
	if err != nil || payload == nil {
		return nil, err
	}
	thumb, err := parseThumbnail(payload)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseDecode, OpThumbnailData, err.Error())
	}
	return thumb, nil
}

// Close releases the instance, the compiled module and a private engine.
func (d *WASM) Close(ctx context.Context) error {
	var firstErr error
	if d.inst != nil {
		firstErr = d.inst.Close(ctx)
		d.inst = nil
	}
	if d.mod != nil {
		if err := d.mod.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		d.mod = nil
	}
	if d.ownsEngine && d.eng != nil {
		if err := d.eng.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.eng = nil
	return firstErr
}

var _ Decoder = (*WASM)(nil)
