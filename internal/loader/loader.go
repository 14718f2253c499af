// Package loader decodes single image files on a shared worker pool.
//
// A load either yields pixels or an error value; failures never cross the
// worker boundary as panics. There are no retries: a failed load is final.
package loader

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
)

// DecodeFunc decodes the image at path. It must be safe for concurrent use.
type DecodeFunc func(path string) (*image.RGBA, error)

// Result is the outcome of one load.
type Result struct {
	Path     string
	Image    *image.RGBA
	Err      error
	Duration time.Duration
}

// OK reports whether the load produced an image.
func (r Result) OK() bool {
	return r.Err == nil && r.Image != nil
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) {
		ld.log = l
	}
}

// Loader runs decodes on a Pool.
type Loader struct {
	pool   *Pool
	decode DecodeFunc
	log    *zap.Logger
}

// New creates a loader. The pool is shared and not owned by the loader.
func New(pool *Pool, decode DecodeFunc, opts ...Option) *Loader {
	l := &Loader{
		pool:   pool,
		decode: decode,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAsync decodes path on a pool worker and calls done from that worker.
// If the pool is closed, done is called on the caller's goroutine with
// ErrPoolClosed.
func (l *Loader) LoadAsync(path string, done func(Result)) {
	ok := l.pool.Submit(func() {
		done(l.LoadBlocking(path))
	})
	if !ok {
		done(Result{Path: path, Err: fmt.Errorf("load %s: %w", path, ErrPoolClosed)})
	}
}

// Load is LoadAsync in future form. The channel yields exactly one Result.
func (l *Loader) Load(path string) <-chan Result {
	ch := make(chan Result, 1)
	l.LoadAsync(path, func(r Result) {
		ch <- r
	})
	return ch
}

// LoadBlocking decodes path on the calling goroutine.
func (l *Loader) LoadBlocking(path string) (res Result) {
	start := time.Now()
	res.Path = path

	defer func() {
		if p := recover(); p != nil {
			res.Image = nil
			res.Err = fmt.Errorf("decode %s: panic: %v", path, p)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			l.log.Warn("image load failed",
				zap.String("path", path),
				zap.Error(res.Err))
		}
	}()

	img, err := l.decode(path)
	switch {
	case err != nil:
		res.Err = fmt.Errorf("decode %s: %w", path, err)
	case img == nil:
		res.Err = fmt.Errorf("decode %s: no image returned", path)
	default:
		res.Image = img
	}
	return res
}
