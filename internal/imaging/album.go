package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wenyongqd/anniversary/internal/services"
)

const (
	albumPadding     = 16
	albumLabelHeight = 22
	labelEllipsis    = "..."
)

var (
	albumBackground = color.RGBA{R: 0xfa, G: 0xf6, B: 0xef, A: 0xff}
	albumLabelColor = color.RGBA{R: 0x3b, G: 0x2f, B: 0x2f, A: 0xff}
)

// AlbumImage is one labelled tile of an album sheet.
type AlbumImage struct {
	Label string
	Image image.Image
}

// AlbumOptions sizes the album canvas.
type AlbumOptions struct {
	Width   int
	Height  int
	Quality int
}

// Grid returns the column and row count used for n tiles: the smallest square
// grid that holds them, with empty trailing rows dropped.
func Grid(n int) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	cols = 1
	for cols*cols < n {
		cols++
	}
	rows = (n + cols - 1) / cols
	return cols, rows
}

// CreateAlbumPage draws every image with its label on a fixed-size canvas.
// Tiles are placed in slice order, left to right and top to bottom. Labels
// wider than their tile are truncated.
func CreateAlbumPage(images []AlbumImage, opts AlbumOptions) (Payload, error) {
	if len(images) == 0 {
		return Payload{}, services.Wrap(services.ErrValidation, "imaging", "album", "no images supplied", nil)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return Payload{}, services.Wrap(services.ErrValidation, "imaging", "album", "canvas size must be positive", nil)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(albumBackground), image.Point{}, draw.Src)

	cols, rows := Grid(len(images))
	cellW := opts.Width / cols
	cellH := opts.Height / rows
	face := basicfont.Face7x13

	for i, tile := range images {
		col := i % cols
		row := i / cols
		cell := image.Rect(col*cellW, row*cellH, (col+1)*cellW, (row+1)*cellH)
		inner := image.Rect(
			cell.Min.X+albumPadding,
			cell.Min.Y+albumPadding,
			cell.Max.X-albumPadding,
			cell.Max.Y-albumPadding-albumLabelHeight,
		)
		if inner.Dx() > 0 && inner.Dy() > 0 && tile.Image != nil {
			drawFitted(canvas, inner, tile.Image)
		}

		labelWidth := cell.Dx() - 2*albumPadding
		label := TruncateLabel(face, tile.Label, labelWidth)
		if label == "" {
			continue
		}
		textWidth := font.MeasureString(face, label).Ceil()
		drawer := font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(albumLabelColor),
			Face: face,
			Dot: fixed.P(
				cell.Min.X+(cell.Dx()-textWidth)/2,
				cell.Max.Y-albumPadding-(albumLabelHeight-face.Metrics().Ascent.Ceil())/2,
			),
		}
		drawer.DrawString(label)
	}

	return encodeJPEG(canvas, resolveOptions([]Option{WithQuality(opts.Quality)}))
}

func drawFitted(dst draw.Image, box image.Rectangle, src image.Image) {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw <= 0 || sh <= 0 {
		return
	}
	w, h := box.Dx(), box.Dy()
	if sw*h >= sh*w {
		h = max(sh*w/sw, 1)
	} else {
		w = max(sw*h/sh, 1)
	}
	x := box.Min.X + (box.Dx()-w)/2
	y := box.Min.Y + (box.Dy()-h)/2
	draw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+h), src, src.Bounds(), draw.Over, nil)
}

// TruncateLabel shortens label so it renders within maxWidth pixels, adding an
// ellipsis when characters are dropped.
func TruncateLabel(face font.Face, label string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if font.MeasureString(face, label).Ceil() <= maxWidth {
		return label
	}
	runes := []rune(label)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + labelEllipsis
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return ""
}
