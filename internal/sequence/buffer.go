package sequence

import (
	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/texture"
)

// Status is the load state of a Buffer.
type Status int

// Buffer states. A buffer moves Unloaded → Enqueued → Loading → Loaded and
// returns to Unloaded when released.
const (
	Unloaded Status = iota
	Enqueued
	Loading
	Loaded
)

func (s Status) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Enqueued:
		return "enqueued"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	}
	return "unknown"
}

// Buffer is one ordered image sequence: its load slots and its playback
// cursor.
//
// A Buffer belongs to the goroutine that owns its Scheduler and Registry
// and is not safe for concurrent use.
type Buffer struct {
	id    string
	files []string
	opts  Options

	slots  []texture.Texture
	filled []bool
	loaded int
	status Status
	gen    uint64

	cursor  int
	reverse bool
	playing bool
	accum   float64

	// fallback is the first texture loaded, shown while frames are missing.
	// It is not owned; after Release it is the frame that was on screen.
	fallback texture.Texture
	retained bool
	free     func(texture.Texture)

	progress  listeners
	completed listeners

	log *zap.Logger
}

// NewBuffer creates an unloaded buffer over files.
func NewBuffer(id string, files []string, opts Options) *Buffer {
	return &Buffer{
		id:    id,
		files: append([]string(nil), files...),
		opts:  opts,
		log:   zap.NewNop(),
	}
}

// ID returns the sequence id.
func (b *Buffer) ID() string { return b.id }

// Files returns the ordered file list. The slice must not be modified.
func (b *Buffer) Files() []string { return b.files }

// Options returns the options the buffer was created with.
func (b *Buffer) Options() Options { return b.opts }

// Len returns the number of items N.
func (b *Buffer) Len() int { return len(b.files) }

// LoadedCount returns how many items have completed, successfully or not.
func (b *Buffer) LoadedCount() int { return b.loaded }

// Status returns the load state.
func (b *Buffer) Status() Status { return b.status }

// IsLoading reports whether completions are arriving.
func (b *Buffer) IsLoading() bool { return b.status == Loading }

// IsFinished reports whether every item has been accounted for.
func (b *Buffer) IsFinished() bool { return b.status == Loaded }

// IsEmpty reports whether the buffer has no items.
func (b *Buffer) IsEmpty() bool { return len(b.files) == 0 }

// IsPlaying reports whether Tick advances the cursor.
func (b *Buffer) IsPlaying() bool { return b.playing }

// OnProgress subscribes fn to the first slot fill. It returns an
// unsubscribe func.
func (b *Buffer) OnProgress(fn func(Event)) func() {
	return b.progress.add(fn)
}

// OnCompleted subscribes fn to the last slot fill. It returns an
// unsubscribe func.
func (b *Buffer) OnCompleted(fn func(Event)) func() {
	return b.completed.add(fn)
}

// enqueued resets load state for a fresh pass.
func (b *Buffer) enqueued() {
	b.status = Enqueued
	b.slots = nil
	b.filled = nil
	b.loaded = 0
}

// finishEmpty completes a buffer that has nothing to load.
func (b *Buffer) finishEmpty() {
	b.status = Loaded
	b.cursor = 0
	b.completed.emit(Event{Count: 0, SequenceID: b.id})
}

// onSlotLoaded records the outcome for index. tex is nil for a failed load.
// It reports whether the result was accepted; rejected textures are still
// owned by the caller.
func (b *Buffer) onSlotLoaded(index int, tex texture.Texture) bool {
	n := len(b.files)

	if b.status != Enqueued && b.status != Loading {
		b.log.Debug("discarding completion for inactive sequence",
			zap.Int("index", index),
			zap.Stringer("status", b.status))
		return false
	}
	if index < 0 || index >= n {
		b.log.Error("completion index out of range",
			zap.Int("index", index),
			zap.Int("count", n))
		return false
	}

	started := b.status == Enqueued
	if started {
		b.status = Loading
		if len(b.slots) != n {
			b.slots = make([]texture.Texture, n)
			b.filled = make([]bool, n)
		}
	}

	if b.filled[index] {
		b.log.Error("slot already filled",
			zap.Int("index", index),
			zap.String("file", b.files[index]))
		return false
	}

	b.filled[index] = true
	b.loaded++
	if tex != nil {
		b.slots[index] = tex
		if b.fallback == nil || b.retained {
			b.replaceFallback(tex)
		}
	} else {
		b.log.Warn("frame failed to load, slot left empty",
			zap.Int("index", index),
			zap.String("file", b.files[index]))
	}

	if started {
		b.progress.emit(Event{Count: n, SequenceID: b.id})
	}

	if b.loaded == n {
		b.status = Loaded
		b.cursor = b.begin()
		b.log.Info("sequence loaded",
			zap.Int("count", n),
			zap.Int("missing", n-b.present()))
		b.completed.emit(Event{Count: n, SequenceID: b.id})
	}
	return true
}

func (b *Buffer) present() int {
	count := 0
	for _, tex := range b.slots {
		if tex != nil {
			count++
		}
	}
	return count
}

// begin is the start position for the current direction.
func (b *Buffer) begin() int {
	if b.reverse && len(b.files) > 0 {
		return len(b.files) - 1
	}
	return 0
}

// Advance moves the cursor one step and returns it. Linear playback wraps
// from N-1 to 0. Ping-pong playback turns around at both ends without
// repeating them, so N=4 plays 0,1,2,3,2,1,0,1,...
func (b *Buffer) Advance() int {
	n := len(b.files)
	switch {
	case n == 0:
		b.cursor = 0
	case n == 1:
		b.cursor = 0
	case !b.opts.PingPong:
		b.cursor = (b.cursor + 1) % n
	case !b.reverse:
		b.cursor++
		if b.cursor >= n-1 {
			b.cursor = n - 1
			b.reverse = true
		}
	default:
		b.cursor--
		if b.cursor <= 0 {
			b.cursor = 0
			b.reverse = false
		}
	}
	return b.cursor
}

// Tick accumulates dt seconds and advances once when a frame interval has
// passed. Excess time is dropped, not carried into the next frame.
func (b *Buffer) Tick(dt float64) {
	if !b.playing {
		return
	}
	b.accum += dt
	if b.accum >= b.opts.FrameInterval {
		b.Advance()
		b.accum = 0
	}
}

// Blend returns how far playback is between the previous and current frame,
// in [0, 1]. It drives crossfades.
func (b *Buffer) Blend() float64 {
	if b.opts.FrameInterval <= 0 {
		return 1
	}
	return min(max(b.accum/b.opts.FrameInterval, 0), 1)
}

// Index returns the cursor.
func (b *Buffer) Index() int { return b.cursor }

// SetIndex moves the cursor, clamped to [0, N-1].
func (b *Buffer) SetIndex(i int) {
	b.cursor = b.clamp(i)
}

// GoToBegin rewinds to the start of the current direction.
func (b *Buffer) GoToBegin() {
	b.cursor = b.begin()
}

// Play rewinds and starts advancing on Tick.
func (b *Buffer) Play() {
	b.GoToBegin()
	b.accum = 0
	b.playing = true
}

// Pause stops advancing.
func (b *Buffer) Pause() { b.playing = false }

// Resume continues from the current frame.
func (b *Buffer) Resume() { b.playing = true }

// TogglePause pauses a playing buffer and resumes a paused one.
func (b *Buffer) TogglePause() { b.playing = !b.playing }

func (b *Buffer) clamp(i int) int {
	n := len(b.files)
	if n == 0 || i < 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}

// Fallback returns the substitute texture. It may be nil.
func (b *Buffer) Fallback() texture.Texture { return b.fallback }

// Current returns the frame at the cursor.
func (b *Buffer) Current() texture.Texture {
	return b.at(b.cursor)
}

// Previous returns the frame playback is moving away from.
func (b *Buffer) Previous() texture.Texture {
	return b.at(b.neighbour(-1))
}

// Next returns the frame playback is moving towards.
func (b *Buffer) Next() texture.Texture {
	return b.at(b.neighbour(1))
}

// neighbour returns the index step frames ahead in playback order. Linear
// playback wraps; ping-pong follows the current direction and reflects at
// the ends.
func (b *Buffer) neighbour(step int) int {
	n := len(b.files)
	if n == 0 {
		return 0
	}
	if !b.opts.PingPong {
		return ((b.cursor+step)%n + n) % n
	}
	if b.reverse {
		step = -step
	}
	i := b.cursor + step
	if i < 0 {
		i = -i
	}
	if i > n-1 {
		i = 2*(n-1) - i
	}
	return b.clamp(i)
}

// at returns slot i, or the fallback when the sequence is not fully
// loaded or the slot is empty.
func (b *Buffer) at(i int) texture.Texture {
	if b.status != Loaded || i < 0 || i >= len(b.slots) {
		return b.fallback
	}
	if tex := b.slots[i]; tex != nil {
		return tex
	}
	return b.fallback
}

// Release drops the loaded frames and returns the buffer to Unloaded. The
// frame on screen is kept as the fallback so displays do not go blank. It
// refuses and returns false while the buffer is Loading.
func (b *Buffer) Release() bool {
	if b.status == Loading {
		b.log.Warn("cannot release sequence while it is loading",
			zap.Int("loaded", b.loaded),
			zap.Int("count", len(b.files)))
		return false
	}
	b.release()
	return true
}

// release drops frames regardless of state. Completions still in flight
// are discarded through the generation bump.
func (b *Buffer) release() {
	keep := b.Current()
	if b.free != nil {
		for _, tex := range b.slots {
			if tex != nil && tex != keep {
				b.free(tex)
			}
		}
	}

	b.fallback = keep
	b.retained = keep != nil
	b.slots = nil
	b.filled = nil
	b.loaded = 0
	b.status = Unloaded
	b.gen++
	b.cursor = 0
	b.reverse = false
	b.playing = false
	b.accum = 0
}

// replaceFallback installs tex, freeing a fallback kept from an earlier pass.
func (b *Buffer) replaceFallback(tex texture.Texture) {
	if b.retained && b.fallback != nil && b.free != nil {
		b.free(b.fallback)
	}
	b.fallback = tex
	b.retained = false
}

// dropFallback frees the retained fallback texture.
func (b *Buffer) dropFallback() {
	if b.retained && b.fallback != nil && b.free != nil {
		b.free(b.fallback)
	}
	b.fallback = nil
	b.retained = false
}
