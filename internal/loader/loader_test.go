package loader

import (
	"errors"
	"image"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fakeDecode(path string) (*image.RGBA, error) {
	switch path {
	case "missing.png":
		return nil, os.ErrNotExist
	case "panic.png":
		panic("corrupt header")
	case "empty.png":
		return nil, nil
	}
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func TestLoadBlocking(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()
	l := New(pool, fakeDecode)

	tests := []struct {
		path    string
		ok      bool
		wantErr error
	}{
		{path: "frame_000.png", ok: true},
		{path: "missing.png", wantErr: os.ErrNotExist},
		{path: "panic.png"},
		{path: "empty.png"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res := l.LoadBlocking(tt.path)
			if res.OK() != tt.ok {
				t.Fatalf("OK() = %v, want %v (err %v)", res.OK(), tt.ok, res.Err)
			}
			if res.Path != tt.path {
				t.Errorf("expected path %s, got %s", tt.path, res.Path)
			}
			if !tt.ok && res.Err == nil {
				t.Error("expected an error for failed load")
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, res.Err)
			}
		})
	}
}

func TestLoadAsyncRunsOnPool(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()
	l := New(pool, fakeDecode)

	const n = 32
	var wg sync.WaitGroup
	var okCount, failCount atomic.Int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		path := "frame.png"
		if i%4 == 0 {
			path = "panic.png"
		}
		l.LoadAsync(path, func(r Result) {
			defer wg.Done()
			if r.OK() {
				okCount.Add(1)
			} else {
				failCount.Add(1)
			}
		})
	}
	wg.Wait()

	if okCount.Load() != 24 || failCount.Load() != 8 {
		t.Errorf("expected 24 ok and 8 failed, got %d and %d", okCount.Load(), failCount.Load())
	}
}

func TestLoadFuture(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()
	l := New(pool, fakeDecode)

	select {
	case r := <-l.Load("frame.png"):
		if !r.OK() {
			t.Errorf("expected success, got %v", r.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load")
	}
}

func TestLoadAfterClose(t *testing.T) {
	pool := NewPool(1)
	pool.Close()
	l := New(pool, fakeDecode)

	r := <-l.Load("frame.png")
	if !errors.Is(r.Err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", r.Err)
	}
}

func TestPoolBoundsWorkers(t *testing.T) {
	pool := NewPool(3)

	var running, peak atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	const jobs = 10
	wg.Add(jobs)
	for i := 0; i < jobs; i++ {
		pool.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
	}

	// Give the workers a chance to pick up jobs before releasing them.
	deadline := time.Now().Add(2 * time.Second)
	for running.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
	pool.Close()

	if peak.Load() != 3 {
		t.Errorf("expected peak concurrency 3, got %d", peak.Load())
	}
	if pool.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", pool.Pending())
	}
	if pool.Submit(func() {}) {
		t.Error("expected Submit to fail after Close")
	}
}
