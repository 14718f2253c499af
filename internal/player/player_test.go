package player

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/Faultbox/framereel/internal/loader"
	"github.com/Faultbox/framereel/internal/sequence"
	"github.com/Faultbox/framereel/internal/texture"
)

type fakeClock struct {
	now time.Duration
}

func (c *fakeClock) Now() time.Duration { return c.now }

func (c *fakeClock) advance(seconds float64) {
	c.now += time.Duration(seconds * float64(time.Second))
}

// heldLoader keeps loads pending until flush.
type heldLoader struct {
	pending []func()
}

func (h *heldLoader) LoadAsync(path string, done func(loader.Result)) {
	h.pending = append(h.pending, func() {
		done(loader.Result{Path: path, Image: image.NewRGBA(image.Rect(0, 0, 2, 2))})
	})
}

// flush completes up to n pending loads in order.
func (h *heldLoader) flush(n int) {
	for ; n > 0 && len(h.pending) > 0; n-- {
		next := h.pending[0]
		h.pending = h.pending[1:]
		next()
	}
}

type listEnumerator map[string][]string

func (e listEnumerator) List(path string) ([]string, error) {
	files, ok := e[path]
	if !ok {
		return nil, sequence.ErrPathNotFound
	}
	return files, nil
}

type rig struct {
	clock  *fakeClock
	loader *heldLoader
	mem    *texture.Memory
	sched  *sequence.Scheduler
	reg    *sequence.Registry
}

func newRig() *rig {
	r := &rig{
		clock:  &fakeClock{},
		loader: &heldLoader{},
		mem:    texture.NewMemory(),
	}
	r.sched = sequence.NewScheduler(r.loader, r.mem, sequence.SchedulerConfig{MaxConcurrent: 4})
	r.reg = sequence.NewRegistry(r.sched, sequence.RegistryConfig{
		Enumerator: listEnumerator{"clips/wave": {"a", "b", "c"}},
	})
	return r
}

func (r *rig) player(cfg Config) *Player {
	cfg.Clock = r.clock
	if cfg.Path == "" {
		cfg.Path = "clips/wave"
	}
	if cfg.Options.FrameInterval == 0 {
		cfg.Options.FrameInterval = 0.5
	}
	return New(r.reg, cfg)
}

// tick advances the clock, applies arrived completions and updates p.
func (r *rig) tick(p *Player, seconds float64) {
	r.clock.advance(seconds)
	r.sched.Process()
	p.Update()
}

func name(tex texture.Texture) string {
	if tex == nil {
		return "<nil>"
	}
	return tex.Name()
}

func TestPlayerPlaysAfterLoad(t *testing.T) {
	r := newRig()
	p := r.player(Config{LoadOnStart: true})

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Buffer() == nil {
		t.Fatal("Start did not load")
	}
	if f := p.Frame(); f.Main != nil || f.Prev != nil {
		t.Errorf("frame before any load = %+v", f)
	}

	r.loader.flush(1)
	r.tick(p, 0.1)
	if p.IsPlaying() {
		t.Fatal("playing before the sequence finished loading")
	}
	if f := p.Frame(); name(f.Main) != "a" || name(f.Prev) != "a" {
		t.Errorf("loading frame = %s/%s, want fallback a", name(f.Main), name(f.Prev))
	}

	r.loader.flush(2)
	r.tick(p, 0)
	if !p.IsPlaying() {
		t.Fatal("not playing after load")
	}

	r.tick(p, 0.25)
	f := p.Frame()
	if name(f.Main) != "a" || f.Alpha != 0.5 {
		t.Errorf("frame = %s alpha %v, want a at 0.5", name(f.Main), f.Alpha)
	}

	r.tick(p, 0.25)
	f = p.Frame()
	if name(f.Main) != "b" || name(f.Prev) != "a" || f.Alpha != 0 {
		t.Errorf("frame = %s over %s alpha %v, want b over a at 0", name(f.Main), name(f.Prev), f.Alpha)
	}
}

func TestPlayerControls(t *testing.T) {
	r := newRig()
	p := r.player(Config{LoadOnStart: true})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	r.loader.flush(3)
	r.tick(p, 0)

	p.Pause()
	r.tick(p, 2)
	if idx := p.Buffer().Index(); idx != 0 {
		t.Errorf("paused player advanced to %d", idx)
	}

	p.Step()
	if idx := p.Buffer().Index(); idx != 1 {
		t.Errorf("Step moved to %d, want 1", idx)
	}

	p.PauseResume()
	if !p.IsPlaying() {
		t.Error("PauseResume did not resume")
	}
	p.Step()
	if idx := p.Buffer().Index(); idx != 1 {
		t.Error("Step moved a playing sequence")
	}
	r.tick(p, 0.5)
	if idx := p.Buffer().Index(); idx != 2 {
		t.Errorf("index = %d, want 2", idx)
	}

	p.PauseResume()
	p.Resume()
	if !p.IsPlaying() {
		t.Error("Resume did not resume")
	}

	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	if idx := p.Buffer().Index(); idx != 0 {
		t.Errorf("Play left index at %d", idx)
	}
}

func TestPlayerStopUnloads(t *testing.T) {
	r := newRig()
	p := r.player(Config{LoadOnStart: true, UnloadOnStop: true})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	r.loader.flush(3)
	r.tick(p, 0)
	if r.mem.Live() != 3 {
		t.Fatalf("live textures = %d, want 3", r.mem.Live())
	}

	p.Stop()
	if p.Buffer() != nil || r.reg.Len() != 0 {
		t.Error("Stop did not unload")
	}
	if r.mem.Live() != 0 {
		t.Errorf("live textures = %d after stop", r.mem.Live())
	}
}

func TestPlayerStopWhileLoading(t *testing.T) {
	r := newRig()
	p := r.player(Config{LoadOnStart: true, UnloadOnStop: true})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	r.loader.flush(1)
	r.tick(p, 0)

	p.Stop()
	if p.Buffer() == nil || r.reg.Len() != 1 {
		t.Fatal("sequence unloaded while loading")
	}

	r.loader.flush(2)
	r.tick(p, 0.1)
	if p.Buffer() != nil || r.reg.Len() != 0 {
		t.Error("deferred unload did not happen")
	}
	if r.mem.Live() != 0 {
		t.Errorf("live textures = %d, want 0", r.mem.Live())
	}
}

func TestPlayerStopKeepsSequence(t *testing.T) {
	r := newRig()
	p := r.player(Config{LoadOnStart: true})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	r.loader.flush(3)
	r.tick(p, 0)

	p.Stop()
	if p.IsPlaying() || p.Buffer() == nil || r.reg.Len() != 1 {
		t.Error("Stop without UnloadOnStop should only pause")
	}
}

func TestPlayerWithoutSequence(t *testing.T) {
	r := newRig()
	p := r.player(Config{})

	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	if p.Buffer() != nil {
		t.Error("loaded without LoadOnStart")
	}
	if err := p.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Play() = %v, want ErrNotLoaded", err)
	}
	p.Update()
	p.Pause()
	p.Resume()
	p.PauseResume()
	p.Step()
	p.Stop()
	if f := p.Frame(); f != (Frame{}) {
		t.Errorf("Frame() = %+v, want zero", f)
	}
}

func TestPlayerLoadError(t *testing.T) {
	r := newRig()
	p := r.player(Config{Path: "clips/missing", LoadOnStart: true})

	if err := p.Start(); !errors.Is(err, sequence.ErrPathNotFound) {
		t.Errorf("Start() = %v, want ErrPathNotFound", err)
	}
	if p.Buffer() != nil {
		t.Error("buffer set after a failed load")
	}
}

func TestPlayerSharesCachedSequence(t *testing.T) {
	r := newRig()
	first := r.player(Config{LoadOnStart: true})
	if err := first.Start(); err != nil {
		t.Fatal(err)
	}
	r.loader.flush(3)
	r.tick(first, 0)

	second := r.player(Config{LoadOnStart: true})
	if err := second.Start(); err != nil {
		t.Fatal(err)
	}
	if second.Buffer() != first.Buffer() {
		t.Error("players got different buffers for one path")
	}
	if !second.IsPlaying() {
		t.Error("cached sequence did not start playing")
	}
}
