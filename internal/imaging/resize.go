package imaging

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/wenyongqd/anniversary/internal/services"
)

// JPEGContentType is the MIME type of every encoded output.
const JPEGContentType = "image/jpeg"

// DefaultQuality is the JPEG quality used when no option overrides it.
const DefaultQuality = 85

type encodeOptions struct {
	quality int
}

// Option customizes encoding.
type Option func(*encodeOptions)

// WithQuality sets the JPEG quality (1-100). Out of range values are ignored.
func WithQuality(quality int) Option {
	return func(o *encodeOptions) {
		if quality >= 1 && quality <= 100 {
			o.quality = quality
		}
	}
}

func resolveOptions(opts []Option) encodeOptions {
	resolved := encodeOptions{quality: DefaultQuality}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

// Decode parses JPEG, PNG, GIF, BMP, or WebP data.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFormat, "imaging", "decode", "input is not a supported image", err)
	}
	return img, nil
}

// ResizeImage decodes r and scales it so neither side exceeds maxDimension,
// keeping the aspect ratio and never upscaling. The result is re-encoded as JPEG.
func ResizeImage(r io.Reader, maxDimension int, opts ...Option) (Payload, error) {
	if maxDimension <= 0 {
		return Payload{}, services.Wrap(services.ErrValidation, "imaging", "resize", "max dimension must be positive", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, services.Wrap(services.ErrValidation, "imaging", "resize", "read input", err)
	}
	src, err := Decode(data)
	if err != nil {
		return Payload{}, err
	}
	width, height := FitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxDimension, maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return encodeJPEG(dst, resolveOptions(opts))
}

// FitWithin returns the largest size with the aspect ratio of w x h that fits
// the box. Sizes already inside the box are returned unchanged.
func FitWithin(w, h, boxW, boxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= boxW && h <= boxH {
		return w, h
	}
	// Compare w/boxW against h/boxH without floating point.
	if w*boxH >= h*boxW {
		scaled := h * boxW / w
		return boxW, max(scaled, 1)
	}
	scaled := w * boxH / h
	return max(scaled, 1), boxH
}

func encodeJPEG(img image.Image, opts encodeOptions) (Payload, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.quality}); err != nil {
		return Payload{}, services.Wrap(services.ErrExternal, "imaging", "encode", "jpeg encode failed", err)
	}
	return Payload{ContentType: JPEGContentType, Data: buf.Bytes()}, nil
}
