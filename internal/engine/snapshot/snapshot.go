// Package snapshot saves displayed sequence frames as PNG files.
package snapshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// Writer saves frames under Dir, named after the sequence and frame index.
type Writer struct {
	Dir string
}

// Filename returns the path a snapshot of frame index of sequence id is
// written to.
func (w Writer) Filename(id string, index int) string {
	name := strings.TrimSuffix(id, filepath.Ext(id))
	if name == "" {
		name = "frame"
	}
	filename := fmt.Sprintf("%s_%04d.png", name, index)
	if w.Dir != "" {
		filename = filepath.Join(w.Dir, filename)
	}
	return filename
}

// SavePixels writes bottom-up RGBA rows as read back from the framebuffer.
// The image is flipped so the first row in the file is the top of the view.
func (w Writer) SavePixels(pixels []byte, width, height int, id string, index int) (string, error) {
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("invalid snapshot size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}
	return w.Save(img, id, index)
}

// Save writes img and returns the file name.
func (w Writer) Save(img image.Image, id string, index int) (string, error) {
	if w.Dir != "" {
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := w.Filename(id, index)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, nil
}
