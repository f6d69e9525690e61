// Package testutil builds image fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"testing"
)

// Noise returns a w×h RGBA image of deterministic random pixels. Noise defeats
// entropy coding, which makes output sizes predictable enough for size thresholds.
func Noise(w, h int) *image.RGBA {
	rng := rand.New(rand.NewPCG(uint64(w), uint64(h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// Solid returns a w×h single-colour image.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// EncodeJPEG encodes img at quality q.
func EncodeJPEG(t testing.TB, img image.Image, q int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// NoiseJPEG grows a 4:3 noise image until its quality-100 JPEG encoding is at
// least minBytes. Each step multiplies the area by ~1.56, so the result stays
// below 1.6×minBytes once the start size is under minBytes.
func NoiseJPEG(t testing.TB, minBytes int) []byte {
	t.Helper()
	w, h := 800, 600
	for i := 0; i < 12; i++ {
		data := EncodeJPEG(t, Noise(w, h), 100)
		if len(data) >= minBytes {
			return data
		}
		w, h = w*5/4, h*5/4
	}
	t.Fatalf("could not build a %d byte jpeg", minBytes)
	return nil
}
