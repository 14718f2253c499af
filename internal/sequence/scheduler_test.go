package sequence

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/Faultbox/framereel/internal/loader"
	"github.com/Faultbox/framereel/internal/texture"
)

type pendingLoad struct {
	path string
	done func(loader.Result)
}

// manualLoader records loads and completes them only when told to.
type manualLoader struct {
	pending []pendingLoad
}

func (m *manualLoader) LoadAsync(path string, done func(loader.Result)) {
	m.pending = append(m.pending, pendingLoad{path: path, done: done})
}

// finish completes the load of path, successfully when ok is set.
func (m *manualLoader) finish(t *testing.T, path string, ok bool) {
	t.Helper()
	for i, p := range m.pending {
		if p.path != path {
			continue
		}
		m.pending = append(m.pending[:i], m.pending[i+1:]...)
		if ok {
			p.done(loader.Result{Path: path, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))})
		} else {
			p.done(loader.Result{Path: path, Err: errors.New("corrupt")})
		}
		return
	}
	t.Fatalf("no pending load for %s", path)
}

func (m *manualLoader) paths() []string {
	out := make([]string, len(m.pending))
	for i, p := range m.pending {
		out[i] = p.path
	}
	return out
}

// failingUploader rejects uploads of one name.
type failingUploader struct {
	*texture.Memory
	reject string
}

func (f failingUploader) Upload(name string, img *image.RGBA) (texture.Texture, error) {
	if name == f.reject {
		return nil, errors.New("out of texture memory")
	}
	return f.Memory.Upload(name, img)
}

func newTestScheduler(limit int) (*Scheduler, *manualLoader, *texture.Memory) {
	ld := &manualLoader{}
	mem := texture.NewMemory()
	return NewScheduler(ld, mem, SchedulerConfig{MaxConcurrent: limit}), ld, mem
}

func TestSchedulerPartialFailure(t *testing.T) {
	s, ld, mem := newTestScheduler(2)
	b := NewBuffer("clip", []string{"a", "b", "c"}, Options{})

	if !s.Enqueue(b) {
		t.Fatal("Enqueue refused a fresh buffer")
	}
	if got := ld.paths(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("dispatched %v, want [a b]", got)
	}
	if s.InFlight() != 2 || s.Pending() != 1 {
		t.Fatalf("inFlight = %d pending = %d", s.InFlight(), s.Pending())
	}

	ld.finish(t, "a", true)
	s.Process()
	if got := ld.paths(); len(got) != 2 || got[1] != "c" {
		t.Fatalf("after first completion pending = %v, want [b c]", got)
	}
	first := b.Fallback()
	if first == nil || first.Name() != "a" {
		t.Fatalf("fallback = %v, want a", first)
	}

	ld.finish(t, "c", true)
	s.Process()
	if b.Status() != Loading || b.LoadedCount() != 2 {
		t.Fatalf("status = %v loaded = %d", b.Status(), b.LoadedCount())
	}
	if b.slots[1] != nil {
		t.Error("slot 1 filled before its load finished")
	}

	ld.finish(t, "b", false)
	s.Process()
	if b.Status() != Loaded || b.LoadedCount() != 3 {
		t.Fatalf("status = %v loaded = %d", b.Status(), b.LoadedCount())
	}
	if b.slots[1] != nil {
		t.Error("failed slot holds a texture")
	}
	if b.Fallback() != first {
		t.Error("fallback changed after the first success")
	}
	b.SetIndex(1)
	if b.Current() != first {
		t.Error("failed slot should show the fallback")
	}

	if s.IsLoading() {
		t.Error("scheduler still loading")
	}
	st := s.Stats()
	if st.Dispatched != 3 || st.Completed != 3 || st.Failed != 1 || st.Discarded != 0 {
		t.Errorf("stats = %+v", st)
	}
	if mem.Live() != 2 {
		t.Errorf("live textures = %d, want 2", mem.Live())
	}
}

func TestSchedulerRespectsCap(t *testing.T) {
	s, ld, _ := newTestScheduler(3)
	a := NewBuffer("a", []string{"a0", "a1", "a2", "a3", "a4"}, Options{})
	b := NewBuffer("b", []string{"b0", "b1", "b2", "b3"}, Options{})
	s.Enqueue(a)
	s.Enqueue(b)

	var order []string
	for s.IsLoading() {
		if s.InFlight() > 3 {
			t.Fatalf("inFlight = %d exceeds cap", s.InFlight())
		}
		if len(ld.pending) != s.InFlight() {
			t.Fatalf("pending loads = %d, inFlight = %d", len(ld.pending), s.InFlight())
		}
		// Complete the newest load to exercise out-of-order completion.
		p := ld.pending[len(ld.pending)-1]
		order = append(order, p.path)
		ld.finish(t, p.path, true)
		s.Process()
	}

	if !a.IsFinished() || !b.IsFinished() {
		t.Fatalf("a = %v b = %v", a.Status(), b.Status())
	}
	if len(order) != 9 {
		t.Errorf("completed %d loads, want 9", len(order))
	}
	if st := s.Stats(); st.Dispatched != 9 || st.InFlight != 0 || st.Queued != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSchedulerFIFO(t *testing.T) {
	s, ld, _ := newTestScheduler(1)
	a := NewBuffer("a", []string{"a0", "a1"}, Options{})
	b := NewBuffer("b", []string{"b0"}, Options{})
	s.Enqueue(a)
	s.Enqueue(b)

	var order []string
	for len(ld.pending) > 0 {
		p := ld.pending[0]
		order = append(order, p.path)
		ld.finish(t, p.path, true)
		s.Process()
	}

	want := []string{"a0", "a1", "b0"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestSchedulerEnqueueTwice(t *testing.T) {
	s, ld, _ := newTestScheduler(4)
	b := NewBuffer("clip", fileNames(2), Options{})

	if !s.Enqueue(b) {
		t.Fatal("first Enqueue refused")
	}
	if s.Enqueue(b) {
		t.Error("second Enqueue accepted while enqueued")
	}
	if len(ld.pending) != 2 {
		t.Errorf("pending loads = %d, want 2", len(ld.pending))
	}
}

func TestSchedulerEmptySequence(t *testing.T) {
	s, ld, _ := newTestScheduler(2)
	b := NewBuffer("empty", nil, Options{})

	completed := 0
	b.OnCompleted(func(ev Event) {
		completed++
		if ev.Count != 0 {
			t.Errorf("event count = %d, want 0", ev.Count)
		}
	})

	if !s.Enqueue(b) {
		t.Fatal("Enqueue refused an empty buffer")
	}
	if completed != 1 || !b.IsFinished() {
		t.Errorf("completed = %d status = %v", completed, b.Status())
	}
	if len(ld.pending) != 0 || s.IsLoading() {
		t.Error("empty sequence dispatched loads")
	}
}

func TestSchedulerDiscardsAfterRelease(t *testing.T) {
	s, ld, mem := newTestScheduler(2)
	b := NewBuffer("clip", fileNames(4), Options{})
	s.Enqueue(b)

	// Enqueued but nothing arrived yet: release is allowed.
	if !b.Release() {
		t.Fatal("Release refused while enqueued")
	}

	ld.finish(t, "frame_000.png", true)
	ld.finish(t, "frame_001.png", true)
	s.Process()

	if b.Status() != Unloaded || b.LoadedCount() != 0 {
		t.Errorf("released buffer changed: %v loaded %d", b.Status(), b.LoadedCount())
	}
	if len(ld.pending) != 0 {
		t.Errorf("queued requests of a released buffer dispatched: %v", ld.paths())
	}
	if s.IsLoading() {
		t.Error("scheduler still loading")
	}
	if st := s.Stats(); st.Discarded != 4 {
		t.Errorf("discarded = %d, want 4", st.Discarded)
	}
	if mem.Live() != 0 {
		t.Errorf("live textures = %d, want 0", mem.Live())
	}

	// A new pass works normally.
	if !s.Enqueue(b) {
		t.Fatal("re-enqueue refused")
	}
	for len(ld.pending) > 0 {
		ld.finish(t, ld.pending[0].path, true)
		s.Process()
	}
	if !b.IsFinished() || mem.Live() != 4 {
		t.Errorf("status = %v live = %d", b.Status(), mem.Live())
	}
}

func TestSchedulerUploadFailure(t *testing.T) {
	ld := &manualLoader{}
	mem := texture.NewMemory()
	s := NewScheduler(ld, failingUploader{Memory: mem, reject: "b"}, SchedulerConfig{MaxConcurrent: 4})
	b := NewBuffer("clip", []string{"a", "b"}, Options{})
	s.Enqueue(b)

	ld.finish(t, "b", true)
	ld.finish(t, "a", true)
	s.Process()

	if !b.IsFinished() {
		t.Fatalf("status = %v", b.Status())
	}
	if b.slots[1] != nil {
		t.Error("slot with failed upload holds a texture")
	}
	if b.Fallback() == nil || b.Fallback().Name() != "a" {
		t.Errorf("fallback = %v, want a", b.Fallback())
	}
	if st := s.Stats(); st.Failed != 1 {
		t.Errorf("failed = %d, want 1", st.Failed)
	}
}

func TestSchedulerDefaults(t *testing.T) {
	s := NewScheduler(&manualLoader{}, texture.NewMemory(), SchedulerConfig{})
	if s.MaxConcurrent() != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent() = %d, want %d", s.MaxConcurrent(), DefaultMaxConcurrent)
	}
}

func TestSchedulerWithPool(t *testing.T) {
	pool := loader.NewPool(4)
	defer pool.Close()

	decode := func(path string) (*image.RGBA, error) {
		if path == "frame_007.png" {
			return nil, errors.New("truncated")
		}
		return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
	}
	ld := loader.New(pool, decode)
	mem := texture.NewMemory()
	s := NewScheduler(ld, mem, SchedulerConfig{MaxConcurrent: 3})

	b := NewBuffer("clip", fileNames(20), Options{})
	done := make(chan Event, 1)
	b.OnCompleted(func(ev Event) { done <- ev })
	s.Enqueue(b)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	select {
	case ev := <-done:
		if ev.Count != 20 || ev.SequenceID != "clip" {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Fatal("no completion event")
	}
	if mem.Live() != 19 {
		t.Errorf("live textures = %d, want 19", mem.Live())
	}
	if st := s.Stats(); st.Failed != 1 || st.Completed != 20 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSchedulerWaitCancelled(t *testing.T) {
	s, _, _ := newTestScheduler(2)
	s.Enqueue(NewBuffer("clip", fileNames(3), Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}
