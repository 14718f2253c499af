// Package config handles framereel configuration loading and management.
package config

import (
	"fmt"
	"runtime"

	"go.uber.org/multierr"

	"github.com/Faultbox/framereel/internal/sequence"
)

// Config holds all settings.
type Config struct {
	Loader   LoaderConfig   `yaml:"loader"`
	Playback PlaybackConfig `yaml:"playback"`
	Window   WindowConfig   `yaml:"window"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoaderConfig holds load scheduling and decoding settings.
type LoaderConfig struct {
	MaxConcurrent  int      `yaml:"max_concurrent"`   // In-flight decode ceiling
	Workers        int      `yaml:"workers"`          // Decode pool goroutines
	MaxTextureSize int      `yaml:"max_texture_size"` // Downscale bound in pixels, 0 = off
	Extensions     []string `yaml:"extensions"`       // Directory filter, empty = every file
}

// PlaybackConfig holds per-sequence playback settings.
type PlaybackConfig struct {
	Path           string  `yaml:"path"`
	PingPong       bool    `yaml:"ping_pong"`
	FrameInterval  float64 `yaml:"frame_interval"` // Seconds
	MaxImages      int     `yaml:"max_images"`
	TemporalStride int     `yaml:"temporal_stride"`
	LoadOnStart    bool    `yaml:"load_on_start"`
	UnloadOnStop   bool    `yaml:"unload_on_stop"`
}

// Options returns the sequence options these settings describe.
func (p PlaybackConfig) Options() sequence.Options {
	return sequence.Options{
		PingPong:       p.PingPong,
		FrameInterval:  p.FrameInterval,
		MaxImages:      p.MaxImages,
		TemporalStride: p.TemporalStride,
	}
}

// WindowConfig holds display settings for the player.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`

	SnapshotDir string `yaml:"snapshot_dir"` // Where S saves the displayed frame
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	seq := sequence.DefaultOptions()
	return &Config{
		Loader: LoaderConfig{
			MaxConcurrent:  16,
			Workers:        runtime.NumCPU(),
			MaxTextureSize: 0,
		},
		Playback: PlaybackConfig{
			PingPong:       seq.PingPong,
			FrameInterval:  seq.FrameInterval,
			MaxImages:      seq.MaxImages,
			TemporalStride: seq.TemporalStride,
			LoadOnStart:    true,
			UnloadOnStop:   true,
		},
		Window: WindowConfig{
			Width:       1280,
			Height:      720,
			Fullscreen:  false,
			VSync:       true,
			SnapshotDir: "snapshots",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.Loader.MaxConcurrent < 1 {
		err = multierr.Append(err, fmt.Errorf("loader.max_concurrent must be at least 1, got %d", c.Loader.MaxConcurrent))
	}
	if c.Loader.Workers < 1 {
		err = multierr.Append(err, fmt.Errorf("loader.workers must be at least 1, got %d", c.Loader.Workers))
	}
	if c.Loader.MaxTextureSize < 0 {
		err = multierr.Append(err, fmt.Errorf("loader.max_texture_size must not be negative, got %d", c.Loader.MaxTextureSize))
	}
	if c.Playback.FrameInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("playback.frame_interval must not be negative, got %g", c.Playback.FrameInterval))
	}
	if c.Playback.MaxImages < 0 {
		err = multierr.Append(err, fmt.Errorf("playback.max_images must not be negative, got %d", c.Playback.MaxImages))
	}
	if c.Playback.TemporalStride < 0 {
		err = multierr.Append(err, fmt.Errorf("playback.temporal_stride must not be negative, got %d", c.Playback.TemporalStride))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height))
	}
	return err
}
