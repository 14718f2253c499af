// Package viewer implements the interactive sequence player: window, main
// loop and key handling.
package viewer

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/config"
	"github.com/Faultbox/framereel/internal/engine/gltex"
	"github.com/Faultbox/framereel/internal/engine/input"
	"github.com/Faultbox/framereel/internal/engine/renderer"
	"github.com/Faultbox/framereel/internal/engine/snapshot"
	"github.com/Faultbox/framereel/internal/engine/window"
	"github.com/Faultbox/framereel/internal/pipeline"
	"github.com/Faultbox/framereel/internal/player"
)

const title = "framereel"

// Viewer is the player application.
type Viewer struct {
	cfg     *config.Config
	running bool

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	textures *gltex.Uploader
	pipe     *pipeline.Pipeline
	player   *player.Player
	clock    *player.SystemClock
	snapshot snapshot.Writer

	snapshotPending bool

	log *zap.Logger
}

// New creates the window, GL state and load pipeline.
func New(cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("initializing viewer",
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height))

	v := &Viewer{
		cfg:   cfg,
		clock:    player.NewSystemClock(),
		snapshot: snapshot.Writer{Dir: cfg.Window.SnapshotDir},
		log:      log,
	}

	// Window first: it creates the GL context.
	var err error
	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
		Logger:     log.Named("window"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w, h := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{Width: w, Height: h})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.input = input.New()
	v.textures = gltex.New(log.Named("gltex"))
	v.pipe = pipeline.New(cfg.Loader, v.textures, log)

	log.Info("viewer initialized")
	return v, nil
}

// Open stops the current sequence and starts playing path.
func (v *Viewer) Open(path string) error {
	if v.player != nil {
		v.player.Stop()
	}

	v.cfg.Playback.Path = path
	v.player = player.New(v.pipe.Registry, player.Config{
		Path:         path,
		LoadOnStart:  v.cfg.Playback.LoadOnStart,
		UnloadOnStop: v.cfg.Playback.UnloadOnStop,
		Options:      v.cfg.Playback.Options(),
		Clock:        v.clock,
		Logger:       v.log.Named("player"),
	})
	if err := v.player.Start(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	v.window.SetTitle(fmt.Sprintf("%s - %s", title, filepath.Base(path)))
	return nil
}

// Run starts the main loop and returns when the window is closed.
func (v *Viewer) Run() error {
	v.running = true

	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting main loop")

	for v.running {
		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()

		v.pipe.Process()
		if v.player != nil {
			v.player.Update()
		}

		v.render()
		if v.snapshotPending {
			v.snapshotPending = false
			v.saveSnapshot()
		}
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.logStatus(frameCount)
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventDrop:
			if err := v.Open(event.Path); err != nil {
				v.log.Warn("cannot open dropped path", zap.String("path", event.Path), zap.Error(err))
			}
		}

		switch event.Action {
		case input.ActionQuit:
			v.running = false
		case input.ActionFullscreen:
			v.window.ToggleFullscreen()
		case input.ActionToggleCrossfade:
			v.renderer.Crossfade = !v.renderer.Crossfade
		case input.ActionSnapshot:
			v.snapshotPending = true
		}

		if v.player == nil {
			continue
		}
		switch event.Action {
		case input.ActionPauseResume:
			v.player.PauseResume()
		case input.ActionStepForward:
			v.player.Step()
		case input.ActionRestart:
			if err := v.player.Play(); err != nil {
				if err := v.player.Load(); err != nil {
					v.log.Warn("load failed", zap.Error(err))
				}
			}
		case input.ActionReload:
			path := v.cfg.Playback.Path
			v.player.Stop()
			if !v.player.Unload() {
				v.log.Info("sequence still loading, reload ignored")
				continue
			}
			if err := v.Open(path); err != nil {
				v.log.Warn("reload failed", zap.Error(err))
			}
		}
	}
}

func (v *Viewer) render() {
	v.renderer.Begin()
	if v.player != nil {
		f := v.player.Frame()
		if f.Main != nil {
			v.renderer.DrawFrame(f.Main, f.Prev, f.Alpha)
		}
	}
	v.renderer.End()
}

// saveSnapshot writes the back buffer, so it must run after render and
// before the swap.
func (v *Viewer) saveSnapshot() {
	id, index := "frame", 0
	if v.player != nil {
		if b := v.player.Buffer(); b != nil {
			id, index = b.ID(), b.Index()
		}
	}

	pixels, w, h := v.renderer.ReadPixels()
	name, err := v.snapshot.SavePixels(pixels, w, h, id, index)
	if err != nil {
		v.log.Warn("snapshot failed", zap.Error(err))
		return
	}
	v.log.Info("snapshot saved", zap.String("file", name))
}

func (v *Viewer) logStatus(fps int) {
	fields := []zap.Field{zap.Int("fps", fps)}
	if v.player != nil {
		if b := v.player.Buffer(); b != nil {
			fields = append(fields,
				zap.String("sequence", b.ID()),
				zap.Stringer("status", b.Status()),
				zap.Int("loaded", b.LoadedCount()),
				zap.Int("count", b.Len()),
				zap.Int("frame", b.Index()))
		}
	}
	st := v.pipe.Scheduler.Stats()
	fields = append(fields, zap.Int("in_flight", st.InFlight), zap.Int("queued", st.Queued))
	v.log.Debug("status", fields...)
	v.textures.LogStats()
}

// Close releases GL resources and closes the window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.pipe != nil {
		v.pipe.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
