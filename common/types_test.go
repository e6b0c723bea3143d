package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeImageBytes(t *testing.T) {
	data := encodePNG(t, 3, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img, err := DecodeImageBytes("swatch", data, 0)
	if err != nil {
		t.Fatalf("DecodeImageBytes: %v", err)
	}
	if img.Width != 3 || img.Height != 2 || len(img.Pixels) != 3*2*4 {
		t.Fatalf("decoded %dx%d with %d bytes", img.Width, img.Height, len(img.Pixels))
	}
	if img.Pixels[0] != 10 || img.Pixels[1] != 20 || img.Pixels[2] != 30 || img.Pixels[3] != 255 {
		t.Errorf("first pixel = %v", img.Pixels[:4])
	}
	if img.Name != "swatch" {
		t.Errorf("name = %q", img.Name)
	}
}

func TestDecodeImageScalesDown(t *testing.T) {
	data := encodePNG(t, 64, 16, color.NRGBA{R: 255, A: 255})
	img, err := DecodeImageBytes("wide", data, 32)
	if err != nil {
		t.Fatalf("DecodeImageBytes: %v", err)
	}
	if img.Width != 32 || img.Height != 8 {
		t.Errorf("scaled to %dx%d, want 32x8", img.Width, img.Height)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImageBytes("junk", []byte{0, 1, 2}, 0); err == nil {
		t.Error("expected an error for undecodable data")
	}
}

func TestWhitePixel(t *testing.T) {
	img := WhitePixel()
	if img.Width != 1 || img.Height != 1 || !bytes.Equal(img.Pixels, []byte{255, 255, 255, 255}) {
		t.Errorf("white pixel = %+v", img)
	}
}
