// Package gltex uploads decoded frames as OpenGL textures.
package gltex

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/petermattis/goid"
	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/texture"
)

// Texture is a GL texture object holding one frame.
type Texture struct {
	id     uint32
	name   string
	width  int
	height int
}

// ID returns the GL texture name.
func (t *Texture) ID() uint32 { return t.id }

// Name returns the source path.
func (t *Texture) Name() string { return t.name }

// Size returns the pixel dimensions.
func (t *Texture) Size() (int, int) { return t.width, t.height }

// Uploader creates and deletes GL textures. It must only be used on the
// goroutine that created it, which owns the GL context.
type Uploader struct {
	owner int64
	live  int
	bytes int64
	log   *zap.Logger
}

// ErrWrongGoroutine is returned by Upload when called off the GL goroutine.
var ErrWrongGoroutine = errors.New("gltex: called off the GL goroutine")

// New creates an uploader owned by the calling goroutine. A GL context must
// be current.
func New(log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{owner: goid.Get(), log: log}
}

func (u *Uploader) onOwner() bool {
	return goid.Get() == u.owner
}

// Upload copies img into a new texture.
func (u *Uploader) Upload(name string, img *image.RGBA) (texture.Texture, error) {
	if !u.onOwner() {
		return nil, fmt.Errorf("upload %s: %w", name, ErrWrongGoroutine)
	}
	if img == nil || len(img.Pix) == 0 {
		return nil, fmt.Errorf("upload %s: empty image", name)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	img = texture.Pack(img)

	var id uint32
	gl.GenTextures(1, &id)
	if id == 0 {
		return nil, fmt.Errorf("upload %s: %w", name, errNoTexture)
	}
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return nil, fmt.Errorf("upload %s: gl error 0x%x", name, code)
	}

	u.live++
	u.bytes += int64(w * h * 4)
	return &Texture{id: id, name: name, width: w, height: h}, nil
}

var errNoTexture = errors.New("glGenTextures returned no name")

// Release deletes the texture. Textures from other uploaders are ignored.
func (u *Uploader) Release(tex texture.Texture) {
	t, ok := tex.(*Texture)
	if !ok || t.id == 0 {
		return
	}
	if !u.onOwner() {
		u.log.Error("texture released off the GL goroutine, leaking it",
			zap.String("name", t.name),
			zap.Int64("goroutine", goid.Get()))
		return
	}
	gl.DeleteTextures(1, &t.id)
	t.id = 0
	u.live--
	u.bytes -= int64(t.width * t.height * 4)
}

// Live returns the number of textures not yet released and their size in
// bytes.
func (u *Uploader) Live() (count int, bytes int64) {
	return u.live, u.bytes
}

// LogStats writes the live texture totals.
func (u *Uploader) LogStats() {
	u.log.Debug("gl textures",
		zap.Int("live", u.live),
		zap.Float64("mb", float64(u.bytes)/(1024*1024)))
}
