package imaging_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/wenyongqd/anniversary/internal/imaging"
	"github.com/wenyongqd/anniversary/internal/services"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, payload imaging.Payload) image.Image {
	t.Helper()
	if payload.ContentType != imaging.JPEGContentType {
		t.Fatalf("unexpected content type %q", payload.ContentType)
	}
	img, err := jpeg.Decode(bytes.NewReader(payload.Data))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	return img
}

func TestResizeImageBoundsLongestSide(t *testing.T) {
	payload, err := imaging.ResizeImage(bytes.NewReader(solidPNG(t, 400, 200, color.RGBA{R: 200, A: 255})), 100)
	if err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}
	img := decodeJPEG(t, payload)
	if got := img.Bounds(); got.Dx() != 100 || got.Dy() != 50 {
		t.Fatalf("unexpected size %dx%d", got.Dx(), got.Dy())
	}
}

func TestResizeImageDoesNotUpscale(t *testing.T) {
	payload, err := imaging.ResizeImage(bytes.NewReader(solidPNG(t, 40, 30, color.White)), 1024, imaging.WithQuality(60))
	if err != nil {
		t.Fatalf("ResizeImage: %v", err)
	}
	img := decodeJPEG(t, payload)
	if got := img.Bounds(); got.Dx() != 40 || got.Dy() != 30 {
		t.Fatalf("expected original size, got %dx%d", got.Dx(), got.Dy())
	}
}

func TestResizeImageRejectsNonImage(t *testing.T) {
	_, err := imaging.ResizeImage(strings.NewReader("not an image"), 100)
	if !errors.Is(err, services.ErrInvalidFormat) {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h, bw, bh int
		wantW, wantH int
	}{
		{"landscape", 2000, 1000, 1024, 1024, 1024, 512},
		{"portrait", 1000, 3000, 600, 600, 200, 600},
		{"inside", 300, 200, 1024, 1024, 300, 200},
		{"square", 5000, 5000, 10, 10, 10, 10},
		{"degenerate", 0, 10, 10, 10, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := imaging.FitWithin(tc.w, tc.h, tc.bw, tc.bh)
			if w != tc.wantW || h != tc.wantH {
				t.Fatalf("FitWithin = %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestGrid(t *testing.T) {
	tests := []struct{ n, cols, rows int }{
		{1, 1, 1},
		{2, 2, 1},
		{4, 2, 2},
		{5, 3, 2},
		{9, 3, 3},
		{10, 4, 3},
	}
	for _, tc := range tests {
		cols, rows := imaging.Grid(tc.n)
		if cols != tc.cols || rows != tc.rows {
			t.Fatalf("Grid(%d) = %d,%d want %d,%d", tc.n, cols, rows, tc.cols, tc.rows)
		}
	}
}

func TestCreateAlbumPageIsDeterministic(t *testing.T) {
	red, _ := imaging.Decode(solidPNG(t, 60, 40, color.RGBA{R: 255, A: 255}))
	blue, _ := imaging.Decode(solidPNG(t, 40, 60, color.RGBA{B: 255, A: 255}))
	tiles := []imaging.AlbumImage{
		{Label: "2019-06-01", Image: red},
		{Label: strings.Repeat("a very long caption ", 20), Image: blue},
	}
	opts := imaging.AlbumOptions{Width: 320, Height: 200, Quality: 90}

	first, err := imaging.CreateAlbumPage(tiles, opts)
	if err != nil {
		t.Fatalf("CreateAlbumPage: %v", err)
	}
	second, err := imaging.CreateAlbumPage(tiles, opts)
	if err != nil {
		t.Fatalf("CreateAlbumPage: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("expected identical output for identical input")
	}
	img := decodeJPEG(t, first)
	if got := img.Bounds(); got.Dx() != 320 || got.Dy() != 200 {
		t.Fatalf("unexpected canvas %dx%d", got.Dx(), got.Dy())
	}
}

func TestCreateAlbumPageRequiresImages(t *testing.T) {
	_, err := imaging.CreateAlbumPage(nil, imaging.AlbumOptions{Width: 10, Height: 10})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTruncateLabel(t *testing.T) {
	face := basicfont.Face7x13
	if got := imaging.TruncateLabel(face, "short", 100); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	got := imaging.TruncateLabel(face, "abcdefghijklmnopqrstuvwxyz", 70)
	if got != "abcdefg..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := imaging.TruncateLabel(face, "abc", 0); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
}

func TestDataURLRoundTrip(t *testing.T) {
	payload := imaging.Payload{ContentType: "image/png", Data: []byte{1, 2, 3, 250}}
	parsed, err := imaging.ParseDataURL(payload.DataURL())
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if parsed.ContentType != "image/png" || !bytes.Equal(parsed.Data, payload.Data) {
		t.Fatalf("unexpected payload %+v", parsed)
	}
	if _, err := imaging.ParseDataURL("http://example.com/a.png"); !errors.Is(err, services.ErrInvalidFormat) {
		t.Fatalf("expected invalid format, got %v", err)
	}
}
