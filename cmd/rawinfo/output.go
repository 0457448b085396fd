package main

import (
	"bufio"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/image/tiff"
	"golang.org/x/term"

	"github.com/wippyai/libraw-wasm/decoder"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))
)

var prettyJSON = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func printJSON(w io.Writer, rec decoder.Record) error {
	data, err := prettyJSON.MarshalIndent(map[string]any(rec), "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// printMetadata lists fields in key order with nested sections indented.
func printMetadata(w io.Writer, path string, rec decoder.Record, color bool) {
	render := func(s lipgloss.Style, text string) string {
		if !color {
			return text
		}
		return s.Render(text)
	}

	fmt.Fprintln(w, render(titleStyle, filepath.Base(path)))
	if rec == nil {
		fmt.Fprintln(w, "no metadata")
		return
	}
	writeSection(w, rec, 0, render)
}

func writeSection(w io.Writer, rec map[string]any, depth int, render func(lipgloss.Style, string) string) {
	indent := strings.Repeat("  ", depth)
	keys := sortedKeys(rec)

	width := 0
	for _, k := range keys {
		if _, nested := asMap(rec[k]); !nested && len(k) > width {
			width = len(k)
		}
	}

	for _, k := range keys {
		if sub, nested := asMap(rec[k]); nested {
			fmt.Fprintf(w, "%s%s\n", indent, render(sectionStyle, k))
			writeSection(w, sub, depth+1, render)
			continue
		}
		fmt.Fprintf(w, "%s%s  %s\n", indent,
			render(keyStyle, fmt.Sprintf("%-*s", width, k)),
			render(valueStyle, formatValue(rec[k])))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case decoder.Record:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case string:
		return fmt.Sprintf("%q", x)
	}
	return decoder.Stringify(v)
}

// writeThumbnail saves thumb, adding an extension matching its format when
// path has none, and returns the path written.
func writeThumbnail(path string, thumb *decoder.Thumbnail) (string, error) {
	if filepath.Ext(path) == "" {
		path += thumb.Extension()
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create thumbnail: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	switch thumb.Format {
	case decoder.ThumbBitmap:
		err = writePPM(bw, thumb, 8)
	case decoder.ThumbBitmap16:
		err = writePPM(bw, thumb, 16)
	default:
		_, err = bw.Write(thumb.Data)
	}
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return path, f.Close()
}

// writePPM writes a packed RGB bitmap as binary PPM. 16-bit samples arrive
// little-endian and PPM stores them big-endian.
func writePPM(w io.Writer, thumb *decoder.Thumbnail, bits int) error {
	maxval := 255
	if bits == 16 {
		maxval = 65535
	}
	if _, err := fmt.Fprintf(w, "P6\n%d %d\n%d\n", thumb.Width, thumb.Height, maxval); err != nil {
		return err
	}
	if bits == 8 {
		_, err := w.Write(thumb.Data)
		return err
	}
	swapped := make([]byte, len(thumb.Data)&^1)
	for i := 0; i+1 < len(thumb.Data); i += 2 {
		swapped[i], swapped[i+1] = thumb.Data[i+1], thumb.Data[i]
	}
	_, err := w.Write(swapped)
	return err
}

// writeImage encodes the processed image by path extension.
func writeImage(path string, img *decoder.Image) error {
	m, err := img.ToImage()
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	var encode func(io.Writer) error
	switch ext {
	case ".png":
		encode = func(w io.Writer) error { return png.Encode(w, m) }
	case ".tif", ".tiff":
		encode = func(w io.Writer) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
	default:
		return fmt.Errorf("unsupported image extension %q (use .png or .tiff)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := encode(bw); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return f.Close()
}
