// Package pipeline assembles the load path from configuration: decode pool,
// loader, scheduler and registry.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/config"
	"github.com/Faultbox/framereel/internal/loader"
	"github.com/Faultbox/framereel/internal/sequence"
	"github.com/Faultbox/framereel/internal/texture"
)

// Pipeline owns the pool and the registry built on top of it.
type Pipeline struct {
	Pool      *loader.Pool
	Loader    *loader.Loader
	Scheduler *sequence.Scheduler
	Registry  *sequence.Registry

	log *zap.Logger
}

// New builds a pipeline that uploads through up. The returned pipeline
// must be used from one goroutine, which must also be the one allowed to
// call up.
func New(cfg config.LoaderConfig, up texture.Uploader, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}

	pool := loader.NewPool(cfg.Workers)
	dec := texture.Decoder{MaxSize: cfg.MaxTextureSize}
	ld := loader.New(pool, dec.Decode, loader.WithLogger(log.Named("loader")))

	sched := sequence.NewScheduler(ld, up, sequence.SchedulerConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		Logger:        log.Named("scheduler"),
	})
	reg := sequence.NewRegistry(sched, sequence.RegistryConfig{
		Enumerator: sequence.DirEnumerator{Extensions: cfg.Extensions},
		Logger:     log.Named("registry"),
	})

	log.Debug("pipeline ready",
		zap.Int("workers", pool.Workers()),
		zap.Int("max_concurrent", sched.MaxConcurrent()),
		zap.Int("max_texture_size", cfg.MaxTextureSize))

	return &Pipeline{
		Pool:      pool,
		Loader:    ld,
		Scheduler: sched,
		Registry:  reg,
		log:       log,
	}
}

// Process applies finished loads. Call it once per frame.
func (p *Pipeline) Process() int {
	return p.Scheduler.Process()
}

// Close releases every sequence and stops the pool. Loads still running
// finish before Close returns and are discarded.
func (p *Pipeline) Close() {
	p.Registry.Close()
	p.Pool.Close()
	// Drain what the workers posted while stopping.
	p.Scheduler.Process()
	p.log.Debug("pipeline closed", zap.Any("stats", p.Scheduler.Stats()))
}
