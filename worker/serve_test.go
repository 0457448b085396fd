package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/libraw-wasm/decoder"
	"github.com/wippyai/libraw-wasm/errors"
	"github.com/wippyai/libraw-wasm/internal/fakeraw"
	"github.com/wippyai/libraw-wasm/wire"
)

// serveConn runs Serve over a pair of pipes and returns the peer side.
func serveConn(t *testing.T, cfg Config) (*wire.Conn, <-chan error) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), cfg, reqR, respW)
	}()
	t.Cleanup(func() {
		reqW.Close()
		respR.Close()
	})
	return wire.NewConn(respR, reqW), done
}

func receive(t *testing.T, c *wire.Conn) Response {
	t.Helper()
	var resp Response
	if err := c.Receive(&resp); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	return resp
}

func TestServe(t *testing.T) {
	conn, done := serveConn(t, Config{Factory: WASMFactory(fakeraw.Build())})

	ready := receive(t, conn)
	if ready.Fn != FnReady || ready.Error != nil {
		t.Fatalf("ready message = %+v", ready)
	}

	settings := &decoder.Settings{HalfSize: decoder.Ptr(1)}
	requests := []Request{
		{ID: 1, Fn: decoder.OpOpen, Args: Args{Buffer: fakeraw.Input(), Settings: settings}},
		{ID: 2, Fn: decoder.OpMetadata, Args: Args{Full: true}},
		{ID: 3, Fn: decoder.OpImageData},
		{ID: 4, Fn: decoder.OpThumbnailData},
	}
	for _, req := range requests {
		if err := conn.Send(req); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	if resp := receive(t, conn); resp.ID != 1 || resp.Error != nil {
		t.Errorf("open = %+v", resp)
	}

	meta := receive(t, conn)
	want, _ := decoder.DecodeRecord([]byte(fakeraw.FullMetadata))
	if diff := cmp.Diff(want, meta.Out.Metadata); diff != "" {
		t.Errorf("metadata over the wire (-want +got):\n%s", diff)
	}

	img := receive(t, conn)
	wantImg := &decoder.Image{
		Width:  fakeraw.ImageWidth,
		Height: fakeraw.ImageHeight,
		Colors: fakeraw.ImageColors,
		Bits:   fakeraw.ImageBits,
		Data:   fakeraw.ImageData(),
	}
	if diff := cmp.Diff(wantImg, img.Out.Image); diff != "" {
		t.Errorf("image over the wire (-want +got):\n%s", diff)
	}

	thumb := receive(t, conn)
	wantThumb := &decoder.Thumbnail{Format: decoder.ThumbJPEG, Width: fakeraw.ThumbWidth, Height: fakeraw.ThumbHeight, Data: fakeraw.ThumbData()}
	if diff := cmp.Diff(wantThumb, thumb.Out.Thumbnail); diff != "" {
		t.Errorf("thumbnail over the wire (-want +got):\n%s", diff)
	}

	conn.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after end of stream")
	}

	var extra Response
	if err := conn.Receive(&extra); err != io.EOF {
		t.Errorf("after Serve returned: %v, want EOF", err)
	}
}

func TestServe_InitFailure(t *testing.T) {
	conn, _ := serveConn(t, Config{Factory: WASMFactory(fakeraw.BuildWith(fakeraw.Options{FailInit: true}))})

	ready := receive(t, conn)
	want := &Fault{Kind: errors.KindNotInitialized, Message: fakeraw.InitError}
	if diff := cmp.Diff(want, ready.Error); diff != "" {
		t.Fatalf("ready fault (-want +got):\n%s", diff)
	}

	if err := conn.Send(Request{ID: 1, Fn: decoder.OpMetadata}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if diff := cmp.Diff(want, receive(t, conn).Error); diff != "" {
		t.Errorf("request fault (-want +got):\n%s", diff)
	}
}

func TestServe_BadConfig(t *testing.T) {
	if err := Serve(context.Background(), Config{}, nil, io.Discard); err == nil {
		t.Error("Serve without factory should fail")
	}
}
