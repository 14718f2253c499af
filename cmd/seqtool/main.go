// seqtool is a CLI utility for inspecting and test-loading image sequences.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/config"
	"github.com/Faultbox/framereel/internal/logger"
	"github.com/Faultbox/framereel/internal/pipeline"
	"github.com/Faultbox/framereel/internal/sequence"
	"github.com/Faultbox/framereel/internal/texture"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "list", "ls":
		cmdList(args)
	case "preload", "load":
		cmdPreload(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`seqtool - image sequence utility

Usage:
  seqtool <command> [options] <path>

<path> is a directory of frames, a text manifest with one file per line,
or an .hcl manifest (base, frames, pattern).

Commands:
  list <path>       Print the frames that would be loaded, in order
  preload <path>    Decode every frame with the configured concurrency
                    and report failures and timing

Options (both commands):
  -config <file>    YAML config file
  -pingpong         Keep the first half plus one of the frames
                    (default from config)
  -max <n>          Cap the frame count (0 = all)
  -stride <n>       Keep every n-th frame

Examples:
  seqtool list ./renders/intro
  seqtool list -stride 1 -pingpong=false shots.txt
  seqtool list -a intro.hcl
  seqtool preload -j 8 -workers 4 ./renders/intro`)
}

type commonFlags struct {
	config   *string
	pingPong *bool
	max      *int
	stride   *int
}

func addCommon(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:   fs.String("config", "", "YAML config file"),
		pingPong: fs.Bool("pingpong", false, "Ping-pong truncation"),
		max:      fs.Int("max", -1, "Frame cap (-1 = from config)"),
		stride:   fs.Int("stride", -1, "Temporal stride (-1 = from config)"),
	}
}

// load reads the config and applies the flags the user set explicitly.
func (c commonFlags) load(fs *flag.FlagSet) *config.Config {
	cfg, err := config.LoadFile(*c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "pingpong" {
			cfg.Playback.PingPong = *c.pingPong
		}
	})
	if *c.max >= 0 {
		cfg.Playback.MaxImages = *c.max
	}
	if *c.stride >= 0 {
		cfg.Playback.TemporalStride = *c.stride
	}
	return cfg
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	common := addCommon(fs)
	all := fs.Bool("a", false, "List every file, ignoring playback options")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: seqtool list [options] <path>")
		os.Exit(1)
	}
	cfg := common.load(fs)
	path := fs.Arg(0)

	enum := sequence.DirEnumerator{Extensions: cfg.Loader.Extensions}
	files, err := enum.List(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	selected := files
	if !*all {
		selected = cfg.Playback.Options().Apply(files)
	}
	for _, f := range selected {
		fmt.Println(f)
	}

	fmt.Fprintf(os.Stderr, "\n%s: %d of %d files\n", sequence.SequenceID(path), len(selected), len(files))
}

func cmdPreload(args []string) {
	fs := flag.NewFlagSet("preload", flag.ExitOnError)
	common := addCommon(fs)
	jobs := fs.Int("j", 0, "Maximum decodes in flight (0 = from config)")
	workers := fs.Int("workers", 0, "Decode goroutines (0 = from config)")
	size := fs.Int("size", -1, "Downscale bound in pixels (-1 = from config)")
	timeout := fs.Duration("timeout", 0, "Give up after this long (0 = never)")
	verbose := fs.Bool("v", false, "Debug logging")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: seqtool preload [options] <path>")
		os.Exit(1)
	}
	cfg := common.load(fs)
	if *jobs > 0 {
		cfg.Loader.MaxConcurrent = *jobs
	}
	if *workers > 0 {
		cfg.Loader.Workers = *workers
	}
	if *size >= 0 {
		cfg.Loader.MaxTextureSize = *size
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	if err := preload(ctx, cfg, fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func preload(ctx context.Context, cfg *config.Config, path string) error {
	mem := texture.NewMemory()
	pipe := pipeline.New(cfg.Loader, mem, logger.Log)
	defer pipe.Close()

	start := time.Now()
	buf, err := pipe.Registry.GetOrLoad(path, cfg.Playback.Options())
	if err != nil {
		return err
	}

	var firstFrame time.Duration
	buf.OnProgress(func(sequence.Event) {
		firstFrame = time.Since(start)
	})

	fmt.Printf("Sequence: %s\n", buf.ID())
	fmt.Printf("Frames:   %d\n", buf.Len())
	fmt.Printf("Workers:  %d, in flight: %d\n", pipe.Pool.Workers(), pipe.Scheduler.MaxConcurrent())

	for {
		step, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := pipe.Scheduler.Wait(step)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("preload interrupted at %d/%d: %w", buf.LoadedCount(), buf.Len(), ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintf(os.Stderr, "\r  %d/%d", buf.LoadedCount(), buf.Len())
		}
	}
	elapsed := time.Since(start)

	st := pipe.Scheduler.Stats()
	missing := buf.Len() - mem.Live()
	var bytes int64
	for _, f := range buf.Files() {
		if info, err := os.Stat(f); err == nil {
			bytes += info.Size()
		}
	}

	fmt.Fprintln(os.Stderr)
	fmt.Printf("Loaded:   %d/%d (%d failed)\n", buf.Len()-missing, buf.Len(), st.Failed)
	fmt.Printf("First:    %s\n", firstFrame.Round(time.Millisecond))
	fmt.Printf("Total:    %s\n", elapsed.Round(time.Millisecond))
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("Rate:     %.1f frames/s, %.2f MB/s\n",
			float64(buf.Len())/secs, float64(bytes)/(1024*1024)/secs)
	}

	if st.Failed > 0 {
		logger.Warn("sequence has missing frames",
			zap.String("sequence", buf.ID()),
			zap.Int("failed", st.Failed),
			zap.String("dir", filepath.Dir(buf.Files()[0])))
	}
	return nil
}
