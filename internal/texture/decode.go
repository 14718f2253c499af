// Package texture decodes image files into RGBA pixels and defines the
// contract for turning those pixels into displayable textures.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// ErrUnsupportedFormat is returned for files no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decoder reads image files from disk.
type Decoder struct {
	// MaxSize bounds the longer edge of decoded images. Larger images are
	// downscaled preserving aspect ratio. Zero disables scaling.
	MaxSize int
}

// Decode reads and decodes the file at path. It is safe to call from many
// goroutines at once.
func (d Decoder) Decode(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := d.DecodeBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// DecodeBytes decodes in-memory image data. ext selects TGA handling.
func (d Decoder) DecodeBytes(data []byte, ext string) (*image.RGBA, error) {
	var img image.Image
	var err error
	if strings.EqualFold(ext, ".tga") {
		img, err = DecodeTGA(data)
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			err = ErrUnsupportedFormat
		}
	}
	if err != nil {
		return nil, err
	}
	return Fit(img, d.MaxSize), nil
}

// Fit converts img to RGBA with its origin at (0,0), downscaling it so
// neither edge exceeds maxSize. maxSize <= 0 only converts.
func Fit(img image.Image, maxSize int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxSize > 0 && (w > maxSize || h > maxSize) {
		if w >= h {
			h = max(1, h*maxSize/w)
			w = maxSize
		} else {
			w = max(1, w*maxSize/h)
			h = maxSize
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Pack returns img with rows stored back to back from Pix[0]. Sub-images
// keep their parent's stride and offset, so they are copied; anything else
// is returned as is.
func Pack(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	if img.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], src[:b.Dx()*4])
	}
	return out
}
