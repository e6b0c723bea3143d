// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ImageData holds decoded RGBA8 pixels ready for GPU upload.
type ImageData struct {
	// Name is an identifier for the image, used in logs and GPU labels.
	Name string
	// Pixels is tightly packed RGBA data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the image width in pixels.
	Width uint32
	// Height is the image height in pixels.
	Height uint32
}

// WhitePixel returns a 1x1 opaque white image. It is the stand-in for any texture slot a material leaves empty.
//
// Returns:
//   - ImageData: the 1x1 white image
func WhitePixel() ImageData {
	return ImageData{Name: "white-pixel", Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1}
}

// DecodeImage decodes PNG, JPEG, BMP or WebP data into RGBA8 pixels.
// Images larger than maxSize along either axis are scaled down to fit, keeping the aspect ratio.
// A maxSize of 0 disables scaling.
//
// Parameters:
//   - name: identifier copied into the result
//   - r: the encoded image stream
//   - maxSize: the largest allowed width or height, or 0
//
// Returns:
//   - ImageData: the decoded pixels
//   - error: error if the format is unknown or the data is malformed
func DecodeImage(name string, r io.Reader, maxSize uint32) (ImageData, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to decode image %s: %w", name, err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSize > 0 && (uint32(width) > maxSize || uint32(height) > maxSize) {
		scale := float64(maxSize) / float64(max(width, height))
		width = max(1, int(float64(width)*scale))
		height = max(1, int(float64(height)*scale))
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	return ImageData{Name: name, Pixels: dst.Pix, Width: uint32(width), Height: uint32(height)}, nil
}

// DecodeImageBytes decodes an in-memory encoded image. See DecodeImage.
func DecodeImageBytes(name string, data []byte, maxSize uint32) (ImageData, error) {
	return DecodeImage(name, bytes.NewReader(data), maxSize)
}
