package config

import "flag"

var (
	flagConfig        = flag.String("config", "", "Path to config file")
	flagDebug         = flag.Bool("debug", false, "Enable debug logging")
	flagPath          = flag.String("path", "", "Image directory or manifest file to play")
	flagMaxConcurrent = flag.Int("max-concurrent", 0, "Maximum decodes in flight")
	flagWorkers       = flag.Int("workers", 0, "Decode worker goroutines")
	flagInterval      = flag.Float64("interval", 0, "Seconds between frames")
	flagPingPong      = flag.Bool("pingpong", false, "Play forward then backward")
	flagNoPingPong    = flag.Bool("no-pingpong", false, "Loop from the last frame to the first")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagPath != "" {
		cfg.Playback.Path = *flagPath
	}
	if *flagMaxConcurrent > 0 {
		cfg.Loader.MaxConcurrent = *flagMaxConcurrent
	}
	if *flagWorkers > 0 {
		cfg.Loader.Workers = *flagWorkers
	}
	if *flagInterval > 0 {
		cfg.Playback.FrameInterval = *flagInterval
	}
	if *flagPingPong {
		cfg.Playback.PingPong = true
	}
	if *flagNoPingPong {
		cfg.Playback.PingPong = false
	}
}
