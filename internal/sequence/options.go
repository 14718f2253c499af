package sequence

import (
	"path/filepath"
	"strings"
)

// Options controls how a sequence is selected from its files and played.
type Options struct {
	// PingPong plays forward then backward instead of wrapping. The file
	// list is cut to its first half plus one, since ping-pong sources
	// already hold the return trip.
	PingPong bool

	// FrameInterval is the time in seconds between frame advances.
	FrameInterval float64

	// MaxImages caps the number of files. Zero means no cap.
	MaxImages int

	// TemporalStride keeps every n-th file. Values below 1 mean 1.
	TemporalStride int
}

// DefaultOptions returns the options used when a caller has no preference:
// ping-pong at 15 fps, every second file.
func DefaultOptions() Options {
	return Options{
		PingPong:       true,
		FrameInterval:  0.0666,
		MaxImages:      0,
		TemporalStride: 2,
	}
}

// Apply selects the files to load: ping-pong truncation first, then the
// count cap, then the temporal stride. The input slice is not modified.
func (o Options) Apply(files []string) []string {
	selected := files
	if o.PingPong && len(selected) > 0 {
		selected = selected[:len(selected)/2+1]
	}
	if o.MaxImages > 0 && o.MaxImages < len(selected) {
		selected = selected[:o.MaxImages]
	}

	stride := max(o.TemporalStride, 1)
	out := make([]string, 0, (len(selected)+stride-1)/stride)
	for i := 0; i < len(selected); i += stride {
		out = append(out, selected[i])
	}
	return out
}

// SequenceID derives the registry key for path: its final element.
func SequenceID(path string) string {
	return filepath.Base(filepath.Clean(strings.TrimSpace(path)))
}
