// Package sequence loads ordered image sequences with bounded concurrency
// and plays them back.
//
// A Registry maps sequence paths to Buffers and hands new buffers to a
// Scheduler. The Scheduler keeps one FIFO queue of per-file requests and
// never has more than MaxConcurrent decodes in flight. Decodes run on
// loader pool goroutines; their results are posted back and applied by
// Process on the goroutine that owns the Registry, so buffers need no
// locking. In a GL program that goroutine is the render thread, which also
// makes it the only place textures are uploaded.
package sequence

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/loader"
	"github.com/Faultbox/framereel/internal/texture"
)

// DefaultMaxConcurrent is the in-flight ceiling when none is configured.
const DefaultMaxConcurrent = 16

// AsyncLoader starts a decode and reports its result through done, possibly
// from another goroutine. *loader.Loader implements it.
type AsyncLoader interface {
	LoadAsync(path string, done func(loader.Result))
}

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	MaxConcurrent int
	Logger        *zap.Logger
}

// Stats counts scheduler activity since creation.
type Stats struct {
	Queued     int // Requests waiting for a slot
	InFlight   int // Dispatched, not yet processed
	Dispatched int
	Completed  int
	Failed     int // Decode or upload failures
	Discarded  int // Dropped because their buffer was released
}

// request asks for item index of buf. gen pins it to one load pass of the
// buffer so results for a released buffer can be recognised.
type request struct {
	buf   *Buffer
	index int
	gen   uint64
}

func (r request) stale() bool {
	return r.buf.gen != r.gen || r.buf.status == Unloaded
}

type completion struct {
	req request
	res loader.Result
}

// Scheduler dispatches sequence loads in FIFO order under a concurrency cap.
// Except for the completion channel it is confined to its owning goroutine.
type Scheduler struct {
	loader   AsyncLoader
	uploader texture.Uploader
	max      int

	queue    []request
	inFlight int
	done     chan completion

	stats Stats
	log   *zap.Logger
}

// NewScheduler creates a scheduler that decodes with ld and turns decoded
// images into textures with up.
func NewScheduler(ld AsyncLoader, up texture.Uploader, cfg SchedulerConfig) *Scheduler {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		loader:   ld,
		uploader: up,
		max:      cfg.MaxConcurrent,
		// At most max loads are outstanding, so workers never block here.
		done: make(chan completion, cfg.MaxConcurrent),
		log:  cfg.Logger,
	}
}

// MaxConcurrent returns the in-flight ceiling.
func (s *Scheduler) MaxConcurrent() int { return s.max }

// InFlight returns the number of dispatched loads not yet processed.
func (s *Scheduler) InFlight() int { return s.inFlight }

// Pending returns the number of queued requests.
func (s *Scheduler) Pending() int { return len(s.queue) }

// IsLoading reports whether any request is queued or in flight.
func (s *Scheduler) IsLoading() bool {
	return s.inFlight > 0 || len(s.queue) > 0
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Queued = len(s.queue)
	st.InFlight = s.inFlight
	return st
}

// Enqueue queues every item of b and starts dispatching. It returns false
// if b is already queued, loading or loaded.
func (s *Scheduler) Enqueue(b *Buffer) bool {
	if b.status != Unloaded {
		s.log.Warn("sequence already scheduled",
			zap.String("sequence", b.id),
			zap.Stringer("status", b.status))
		return false
	}

	if b.free == nil {
		b.free = s.uploader.Release
	}
	b.enqueued()

	if len(b.files) == 0 {
		b.finishEmpty()
		return true
	}

	for i := range b.files {
		s.queue = append(s.queue, request{buf: b, index: i, gen: b.gen})
	}
	s.log.Debug("sequence enqueued",
		zap.String("sequence", b.id),
		zap.Int("count", len(b.files)),
		zap.Int("queued", len(s.queue)))

	s.pump()
	return true
}

// pump dispatches queued requests while slots are free.
func (s *Scheduler) pump() {
	for s.inFlight < s.max && len(s.queue) > 0 {
		req := s.queue[0]
		s.queue[0] = request{}
		s.queue = s.queue[1:]

		if req.stale() {
			s.stats.Discarded++
			continue
		}

		s.inFlight++
		s.stats.Dispatched++
		s.loader.LoadAsync(req.buf.files[req.index], func(res loader.Result) {
			s.done <- completion{req: req, res: res}
		})
	}
	if len(s.queue) == 0 {
		// Let the backing array go once drained.
		s.queue = nil
	}
}

// Process applies every completion that has arrived and returns how many
// it handled. It never blocks. Call it once per frame from the owning
// goroutine.
func (s *Scheduler) Process() int {
	handled := 0
	for {
		select {
		case c := <-s.done:
			s.complete(c)
			handled++
		default:
			return handled
		}
	}
}

// Wait processes completions until nothing is queued or in flight, or ctx
// is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.pump()
	for s.IsLoading() {
		select {
		case c := <-s.done:
			s.complete(c)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// complete frees the request's slot, hands the result to its buffer and
// backfills the slot from the queue.
func (s *Scheduler) complete(c completion) {
	s.inFlight--
	s.stats.Completed++

	req := c.req
	if req.stale() {
		s.stats.Discarded++
		s.log.Debug("discarding completion for released sequence",
			zap.String("sequence", req.buf.id),
			zap.Int("index", req.index))
		s.pump()
		return
	}

	var tex texture.Texture
	if c.res.OK() {
		t, err := s.uploader.Upload(c.res.Path, c.res.Image)
		if err != nil {
			s.stats.Failed++
			s.log.Warn("texture upload failed",
				zap.String("sequence", req.buf.id),
				zap.String("path", c.res.Path),
				zap.Error(err))
		} else {
			tex = t
		}
	} else {
		s.stats.Failed++
	}

	if !req.buf.onSlotLoaded(req.index, tex) && tex != nil {
		s.uploader.Release(tex)
	}

	s.pump()
}
