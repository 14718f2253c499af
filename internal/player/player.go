// Package player drives playback of one registered sequence from a clock
// and exposes the frames a renderer needs for a crossfade.
package player

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/sequence"
	"github.com/Faultbox/framereel/internal/texture"
)

// ErrNotLoaded is returned by operations that need a sequence before one
// has been requested.
var ErrNotLoaded = errors.New("player: no sequence loaded")

// Clock reports elapsed time since an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// SystemClock measures wall time from its creation.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now implements Clock.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// Config holds player settings.
type Config struct {
	Path         string
	LoadOnStart  bool
	UnloadOnStop bool
	Options      sequence.Options

	Clock  Clock
	Logger *zap.Logger
}

// Frame is what to draw: Main blended over Prev by Alpha.
type Frame struct {
	Main  texture.Texture
	Prev  texture.Texture
	Alpha float32
}

// Player owns the playback side of one sequence. Like the registry it
// belongs to a single goroutine.
type Player struct {
	cfg   Config
	reg   *sequence.Registry
	buf   *sequence.Buffer
	clock Clock
	last  time.Duration

	unsubscribe   []func()
	pendingUnload bool

	log *zap.Logger
}

// New creates a player for cfg.Path. Nothing is loaded until Start or Load.
func New(reg *sequence.Registry, cfg Config) *Player {
	if cfg.Clock == nil {
		cfg.Clock = NewSystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Player{
		cfg:   cfg,
		reg:   reg,
		clock: cfg.Clock,
		log:   cfg.Logger,
	}
}

// Start loads the sequence if LoadOnStart is set.
func (p *Player) Start() error {
	p.last = p.clock.Now()
	if !p.cfg.LoadOnStart {
		return nil
	}
	return p.Load()
}

// Load requests the sequence from the registry. Playback begins once every
// frame has been accounted for.
func (p *Player) Load() error {
	if p.buf != nil {
		return nil
	}

	buf, err := p.reg.GetOrLoad(p.cfg.Path, p.cfg.Options)
	if err != nil {
		return err
	}
	p.buf = buf
	p.pendingUnload = false

	p.unsubscribe = append(p.unsubscribe,
		buf.OnProgress(func(ev sequence.Event) {
			p.log.Debug("sequence load started",
				zap.String("sequence", ev.SequenceID),
				zap.Int("count", ev.Count))
		}),
		buf.OnCompleted(func(ev sequence.Event) {
			p.log.Info("sequence ready, playing",
				zap.String("sequence", ev.SequenceID),
				zap.Int("count", ev.Count))
			buf.Play()
		}),
	)

	// A cache hit may already be complete.
	if buf.IsFinished() {
		buf.Play()
	}
	return nil
}

// Stop pauses playback and, if UnloadOnStop is set, unloads the sequence.
// A sequence still loading is unloaded by Update once it finishes.
func (p *Player) Stop() {
	if p.buf == nil {
		return
	}
	p.buf.Pause()
	if p.cfg.UnloadOnStop {
		p.pendingUnload = true
		p.tryUnload()
	}
}

// Unload removes the sequence from the registry. It returns false if the
// sequence is still loading.
func (p *Player) Unload() bool {
	if p.buf == nil {
		return true
	}
	if !p.reg.Unload(p.cfg.Path) {
		return false
	}
	for _, fn := range p.unsubscribe {
		fn()
	}
	p.unsubscribe = nil
	p.buf = nil
	return true
}

func (p *Player) tryUnload() {
	if p.Unload() {
		p.pendingUnload = false
		return
	}
	p.log.Debug("sequence still loading, deferring unload",
		zap.String("path", p.cfg.Path))
}

// Update advances playback by the time elapsed since the previous call.
func (p *Player) Update() {
	now := p.clock.Now()
	dt := now - p.last
	p.last = now

	if p.buf == nil {
		return
	}
	if p.pendingUnload {
		if !p.buf.IsLoading() {
			p.tryUnload()
		}
		return
	}
	p.buf.Tick(dt.Seconds())
}

// Frame returns the textures to draw. Until the sequence is loaded both
// are the fallback.
func (p *Player) Frame() Frame {
	if p.buf == nil {
		return Frame{}
	}
	if !p.buf.IsFinished() {
		fb := p.buf.Fallback()
		return Frame{Main: fb, Prev: fb, Alpha: 1}
	}
	return Frame{
		Main:  p.buf.Current(),
		Prev:  p.buf.Previous(),
		Alpha: float32(p.buf.Blend()),
	}
}

// Buffer returns the sequence buffer, or nil before Load.
func (p *Player) Buffer() *sequence.Buffer { return p.buf }

// IsPlaying reports whether the sequence is advancing.
func (p *Player) IsPlaying() bool {
	return p.buf != nil && p.buf.IsPlaying()
}

// Play rewinds and starts playback.
func (p *Player) Play() error {
	if p.buf == nil {
		return ErrNotLoaded
	}
	p.buf.Play()
	return nil
}

// Pause stops advancing.
func (p *Player) Pause() {
	if p.buf != nil {
		p.buf.Pause()
	}
}

// Resume continues from the current frame.
func (p *Player) Resume() {
	if p.buf != nil {
		p.buf.Resume()
	}
}

// PauseResume toggles between paused and playing.
func (p *Player) PauseResume() {
	if p.buf != nil {
		p.buf.TogglePause()
	}
}

// Step moves one frame in playback order while paused.
func (p *Player) Step() {
	if p.buf != nil && !p.buf.IsPlaying() {
		p.buf.Advance()
	}
}
