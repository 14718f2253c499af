package texture

import (
	"fmt"
	"image"
	"sync"
)

// Texture is an image made available for display. Implementations are
// compared by identity.
type Texture interface {
	Name() string
	Size() (width, height int)
}

// Uploader turns decoded pixels into textures and frees them again. Both
// methods are called from the goroutine that owns the sequence registry,
// which for GPU uploaders must be the thread holding the graphics context.
type Uploader interface {
	Upload(name string, img *image.RGBA) (Texture, error)
	Release(tex Texture)
}

// Image is a CPU-resident texture.
type Image struct {
	name string
	RGBA *image.RGBA
}

// NewImage wraps img as a texture.
func NewImage(name string, img *image.RGBA) *Image {
	return &Image{name: name, RGBA: img}
}

// Name returns the source name.
func (i *Image) Name() string { return i.name }

// Size returns the pixel dimensions.
func (i *Image) Size() (int, int) {
	if i.RGBA == nil {
		return 0, 0
	}
	b := i.RGBA.Bounds()
	return b.Dx(), b.Dy()
}

// Memory is an Uploader that keeps textures in memory. It is used by
// headless tools and tests and tracks how many textures are live.
type Memory struct {
	mu       sync.Mutex
	live     map[Texture]struct{}
	uploaded int
	released int
}

// NewMemory creates an empty memory uploader.
func NewMemory() *Memory {
	return &Memory{live: make(map[Texture]struct{})}
}

// Upload wraps img without copying it.
func (m *Memory) Upload(name string, img *image.RGBA) (Texture, error) {
	if img == nil {
		return nil, fmt.Errorf("upload %s: nil image", name)
	}
	tex := NewImage(name, img)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[tex] = struct{}{}
	m.uploaded++
	return tex, nil
}

// Release forgets tex. Releasing an unknown texture is a no-op.
func (m *Memory) Release(tex Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[tex]; ok {
		delete(m.live, tex)
		m.released++
	}
}

// Live returns the number of uploaded textures not yet released.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Stats returns upload and release totals.
func (m *Memory) Stats() (uploaded, released int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploaded, m.released
}
