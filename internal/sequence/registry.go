package sequence

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/framereel/internal/texture"
)

// RegistryConfig holds registry settings.
type RegistryConfig struct {
	Enumerator Enumerator
	Logger     *zap.Logger
}

// Registry owns the buffers of every known sequence, keyed by SequenceID.
// It is confined to the goroutine that calls Scheduler.Process.
type Registry struct {
	sched   *Scheduler
	enum    Enumerator
	buffers map[string]*Buffer
	log     *zap.Logger
}

// NewRegistry creates an empty registry that loads through s.
func NewRegistry(s *Scheduler, cfg RegistryConfig) *Registry {
	if cfg.Enumerator == nil {
		cfg.Enumerator = DirEnumerator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Registry{
		sched:   s,
		enum:    cfg.Enumerator,
		buffers: make(map[string]*Buffer),
		log:     cfg.Logger,
	}
}

// GetOrLoad returns the buffer for path, creating and enqueueing it on
// first use. A known id returns the existing buffer and opts are ignored
// for it; if that buffer was released it is enqueued again.
func (r *Registry) GetOrLoad(path string, opts Options) (*Buffer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}

	id := SequenceID(path)
	if b, ok := r.buffers[id]; ok {
		if b.status == Unloaded && r.sched.Enqueue(b) {
			r.log.Info("reloading sequence", zap.String("sequence", id))
		}
		return b, nil
	}

	files, err := r.enum.List(path)
	if err != nil {
		r.log.Warn("failed to list sequence",
			zap.String("path", path),
			zap.Error(err))
		return nil, err
	}
	selected := opts.Apply(files)

	b := NewBuffer(id, selected, opts)
	b.log = r.log.With(zap.String("sequence", id))
	r.buffers[id] = b

	r.log.Info("loading sequence",
		zap.String("sequence", id),
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("selected", len(selected)))

	r.sched.Enqueue(b)
	return b, nil
}

// Load re-enqueues a registered buffer that was released. It returns false
// if the id is unknown or the buffer is not Unloaded.
func (r *Registry) Load(id string) bool {
	b, ok := r.buffers[id]
	if !ok {
		return false
	}
	return r.sched.Enqueue(b)
}

// Get returns the buffer registered under id.
func (r *Registry) Get(id string) (*Buffer, bool) {
	b, ok := r.buffers[id]
	return b, ok
}

// Texture returns the current frame of sequence id, or nil.
func (r *Registry) Texture(id string) texture.Texture {
	b, ok := r.buffers[id]
	if !ok {
		return nil
	}
	return b.Current()
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.buffers))
	for id := range r.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered buffers.
func (r *Registry) Len() int { return len(r.buffers) }

// Unload releases the buffer for path and forgets it. It returns false if
// no buffer is registered or it is still Loading.
func (r *Registry) Unload(path string) bool {
	id := SequenceID(path)
	b, ok := r.buffers[id]
	if !ok {
		return false
	}
	if !b.Release() {
		return false
	}
	b.dropFallback()
	delete(r.buffers, id)
	r.log.Info("sequence unloaded", zap.String("sequence", id))
	return true
}

// IsLoadingAny reports whether any sequence still has loads pending.
func (r *Registry) IsLoadingAny() bool {
	for _, b := range r.buffers {
		if b.status == Enqueued || b.status == Loading {
			return true
		}
	}
	return r.sched.IsLoading()
}

// ReleaseAll releases every buffer that is not Loading and returns how many
// buffers remain. Released buffers stay registered so Load can bring them
// back.
func (r *Registry) ReleaseAll() int {
	remaining := 0
	for _, b := range r.buffers {
		if b.status == Loading {
			remaining++
			continue
		}
		b.release()
	}
	return remaining
}

// Close releases every buffer, including those still loading, and empties
// the registry. Late completions are discarded by the scheduler.
func (r *Registry) Close() {
	for id, b := range r.buffers {
		b.release()
		b.dropFallback()
		delete(r.buffers, id)
	}
	r.log.Debug("registry closed")
}
