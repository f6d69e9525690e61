// Package compress shrinks oversized images before upload: it decodes, scales the
// longer side into a bounding box and re-encodes as JPEG.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// OutputContentType is the only format Compress produces.
const OutputContentType = "image/jpeg"

var (
	// ErrDecode means the input bytes are not a decodable image.
	ErrDecode = errors.New("decode image")
	// ErrEncode means re-encoding the scaled image failed.
	ErrEncode = errors.New("encode image")
	// ErrInvalidOptions is returned for a non-positive box or a quality outside (0,1].
	ErrInvalidOptions = errors.New("invalid compression options")
)

// Options bound the output. Quality is a factor in (0,1].
type Options struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
}

func (o Options) validate() error {
	if o.MaxWidth <= 0 || o.MaxHeight <= 0 {
		return fmt.Errorf("%w: bounding box %dx%d", ErrInvalidOptions, o.MaxWidth, o.MaxHeight)
	}
	if o.Quality <= 0 || o.Quality > 1 {
		return fmt.Errorf("%w: quality %v", ErrInvalidOptions, o.Quality)
	}
	return nil
}

// jpegQuality maps (0,1] onto the encoder's 1..100 scale.
func (o Options) jpegQuality() int {
	q := int(math.Round(o.Quality * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Decode parses data as any registered image format (jpeg, png, gif, webp).
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// FitWithin returns the dimensions of a w×h image scaled so that it fits inside
// maxW×maxH with its aspect ratio preserved. Images already inside the box are unchanged.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Compress scales src into the bounding box and encodes it as JPEG.
// Transparent areas are flattened onto white.
func Compress(src image.Image, opt Options) ([]byte, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrEncode)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), opt.MaxWidth, opt.MaxHeight)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrEncode)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opt.jpegQuality()}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
