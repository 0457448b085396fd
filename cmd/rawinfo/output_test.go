package main

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/image/tiff"

	"github.com/wippyai/libraw-wasm/decoder"
)

func sampleRecord() decoder.Record {
	return decoder.Record{
		"camera_make":  "Fake",
		"iso_speed":    int64(100),
		"thumb_format": "jpeg",
		"timestamp":    time.Unix(1700000000, 0).UTC(),
		"color_data":   map[string]any{"maximum": int64(4095), "black": int64(0)},
	}
}

func TestPrintMetadata(t *testing.T) {
	var buf bytes.Buffer
	printMetadata(&buf, "/photos/shot.cr2", sampleRecord(), false)

	want := strings.Join([]string{
		"shot.cr2",
		`camera_make   "Fake"`,
		"color_data",
		"  black    0",
		"  maximum  4095",
		"iso_speed     100",
		`thumb_format  "jpeg"`,
		"timestamp     2023-11-14T22:13:20Z",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, decoder.Record{"b": int64(1), "a": map[string]any{"c": "x"}}); err != nil {
		t.Fatalf("printJSON: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "{\n") || !strings.HasSuffix(buf.String(), "}\n") {
		t.Errorf("output is not indented: %q", buf.String())
	}
	var back map[string]any
	if err := jsoniter.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := map[string]any{"a": map[string]any{"c": "x"}, "b": float64(1)}
	if diff := cmp.Diff(want, back); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
	if strings.Index(buf.String(), `"a"`) > strings.Index(buf.String(), `"b"`) {
		t.Error("keys are not sorted")
	}
}

func TestFlattenAndFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := newBrowserModel(ctx, nil, "x.nef")
	m.setFields(sampleRecord())

	var paths []string
	for _, f := range m.visible {
		paths = append(paths, f.path)
	}
	want := []string{"camera_make", "color_data.black", "color_data.maximum", "iso_speed", "thumb_format", "timestamp"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	m.selected = 5
	m.filter.SetValue("COLOR")
	m.applyFilter()
	if len(m.visible) != 2 || m.selected != 1 {
		t.Errorf("filtered to %d fields, selected %d", len(m.visible), m.selected)
	}
}

func TestWritePPM(t *testing.T) {
	var buf bytes.Buffer
	thumb := &decoder.Thumbnail{Format: decoder.ThumbBitmap16, Width: 1, Height: 1, Data: []byte{1, 2, 3, 4, 5, 6}}
	if err := writePPM(&buf, thumb, 16); err != nil {
		t.Fatalf("writePPM: %v", err)
	}
	want := append([]byte("P6\n1 1\n65535\n"), 2, 1, 4, 3, 6, 5)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("ppm = %q, want %q", buf.Bytes(), want)
	}
}

func TestWriteThumbnail_Extension(t *testing.T) {
	dir := t.TempDir()
	thumb := &decoder.Thumbnail{Format: decoder.ThumbJPEG, Width: 1, Height: 1, Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}

	path, err := writeThumbnail(filepath.Join(dir, "thumb"), thumb)
	if err != nil {
		t.Fatalf("writeThumbnail: %v", err)
	}
	if filepath.Ext(path) != ".jpg" {
		t.Errorf("path = %s, want .jpg extension", path)
	}
	data, _ := os.ReadFile(path)
	if !bytes.Equal(data, thumb.Data) {
		t.Error("jpeg thumbnail not written verbatim")
	}
}

func TestWriteImage(t *testing.T) {
	dir := t.TempDir()
	img := &decoder.Image{Width: 2, Height: 1, Colors: 3, Bits: 16, Data: make([]byte, 12)}

	pngPath := filepath.Join(dir, "out.png")
	if err := writeImage(pngPath, img); err != nil {
		t.Fatalf("writeImage png: %v", err)
	}
	f, _ := os.Open(pngPath)
	defer f.Close()
	if m, err := png.Decode(f); err != nil || m.Bounds().Dx() != 2 {
		t.Errorf("png decode = %v", err)
	}

	tiffPath := filepath.Join(dir, "out.TIFF")
	if err := writeImage(tiffPath, img); err != nil {
		t.Fatalf("writeImage tiff: %v", err)
	}
	g, _ := os.Open(tiffPath)
	defer g.Close()
	if m, err := tiff.Decode(g); err != nil || m.Bounds().Dy() != 1 {
		t.Errorf("tiff decode = %v", err)
	}

	if err := writeImage(filepath.Join(dir, "out.bmp"), img); err == nil {
		t.Error("unsupported extension should fail")
	}
}
