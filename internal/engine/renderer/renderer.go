// Package renderer draws sequence frames with OpenGL.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/engine/shader"
	"github.com/Faultbox/framereel/internal/logger"
	"github.com/Faultbox/framereel/internal/texture"
)

const vertexSrc = `
#version 410 core

uniform vec2 uScale;

out vec2 vUV;

void main() {
	// Four vertices as a strip covering the unit square.
	vec2 pos = vec2(gl_VertexID & 1, gl_VertexID >> 1);
	vUV = vec2(pos.x, 1.0 - pos.y);
	gl_Position = vec4((pos * 2.0 - 1.0) * uScale, 0.0, 1.0);
}
`

const fragmentSrc = `
#version 410 core

in vec2 vUV;

uniform sampler2D uMain;
uniform sampler2D uPrev;
uniform float uAlpha;

out vec4 FragColor;

void main() {
	FragColor = mix(texture(uPrev, vUV), texture(uMain, vUV), uAlpha);
}
`

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer draws one frame, optionally crossfaded with the previous one,
// letterboxed to the viewport.
type Renderer struct {
	config  Config
	program *shader.Program
	vao     uint32

	// Crossfade blends towards the next frame. When off, frames cut.
	Crossfade bool
}

// glTexture is implemented by textures backed by a GL texture object.
type glTexture interface {
	ID() uint32
}

// New creates a renderer. The GL context must already be current.
func New(cfg Config) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	r := &Renderer{config: cfg, Crossfade: true}

	var err error
	r.program, err = shader.Compile(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame shader: %w", err)
	}

	// Core profile needs a bound VAO even without vertex attributes.
	gl.GenVertexArrays(1, &r.vao)

	r.program.Use()
	gl.Uniform1i(r.program.Uniform("uMain"), 0)
	gl.Uniform1i(r.program.Uniform("uPrev"), 1)
	gl.UseProgram(0)

	gl.Disable(gl.DEPTH_TEST)
	gl.ClearColor(0, 0, 0, 1)
	r.Resize(cfg.Width, cfg.Height)

	logger.Debug("frame shader created", zap.Uint32("program", r.program.ID))
	return r, nil
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	if r.program != nil {
		r.program.Delete()
	}
}

// Resize sets the viewport to the drawable size.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height))
}

// Begin clears the frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// DrawFrame draws main over prev at alpha. Textures that are not GL backed
// are skipped; a missing prev is replaced by main.
func (r *Renderer) DrawFrame(main, prev texture.Texture, alpha float32) {
	mainTex, ok := main.(glTexture)
	if !ok {
		return
	}
	prevTex, ok := prev.(glTexture)
	if !ok {
		prevTex = mainTex
	}
	if !r.Crossfade {
		alpha = 1
	}

	w, h := main.Size()
	sx, sy := Fit(w, h, r.config.Width, r.config.Height)

	r.program.Use()
	gl.Uniform2f(r.program.Uniform("uScale"), sx, sy)
	gl.Uniform1f(r.program.Uniform("uAlpha"), alpha)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, mainTex.ID())
	gl.ActiveTexture(gl.TEXTURE1)
	gl.BindTexture(gl.TEXTURE_2D, prevTex.ID())

	gl.BindVertexArray(r.vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)

	gl.ActiveTexture(gl.TEXTURE0)
}

// ReadPixels returns the current viewport as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}
	pixels := make([]byte, w*h*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.UseProgram(0)
}

// Fit returns the quad scale in clip space that shows an image of size
// imgW x imgH inside a viewW x viewH viewport at its aspect ratio.
func Fit(imgW, imgH, viewW, viewH int) (float32, float32) {
	if imgW <= 0 || imgH <= 0 || viewW <= 0 || viewH <= 0 {
		return 1, 1
	}
	imgAspect := float32(imgW) / float32(imgH)
	viewAspect := float32(viewW) / float32(viewH)
	if imgAspect > viewAspect {
		return 1, viewAspect / imgAspect
	}
	return imgAspect / viewAspect, 1
}
