package sequence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHCLManifest(t *testing.T) {
	dir := writeFrames(t, "shot", "intro.png", "loop_02.png", "loop_01.png", "notes.txt")

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "frames",
			body: `frames = ["loop_02.png", "intro.png"]`,
			want: []string{"loop_02.png", "intro.png"},
		},
		{
			name: "pattern",
			body: `pattern = "loop_*.png"`,
			want: []string{"loop_01.png", "loop_02.png"},
		},
		{
			name: "frames then pattern",
			body: "frames = [\"intro.png\"]\npattern = \"loop_*.png\"",
			want: []string{"intro.png", "loop_01.png", "loop_02.png"},
		},
		{
			name: "manifest_dir variable",
			body: "base = \"${manifest_dir}\"\nframes = [\"intro.png\"]",
			want: []string{"intro.png"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := filepath.Join(dir, "seq.hcl")
			if err := os.WriteFile(manifest, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}

			files, err := DirEnumerator{}.List(manifest)
			if err != nil {
				t.Fatal(err)
			}
			if len(files) != len(tt.want) {
				t.Fatalf("files = %v, want %v", files, tt.want)
			}
			for i, name := range tt.want {
				if files[i] != filepath.Join(dir, name) {
					t.Errorf("files[%d] = %q, want %q", i, files[i], name)
				}
			}
		})
	}
}

func TestHCLManifestBase(t *testing.T) {
	root := t.TempDir()
	frames := filepath.Join(root, "renders")
	if err := os.MkdirAll(frames, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.png", "a.png"} {
		if err := os.WriteFile(filepath.Join(frames, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	manifest := filepath.Join(root, "shot.HCL")
	if err := os.WriteFile(manifest, []byte("base = \"renders\"\npattern = \"*.png\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := DirEnumerator{}.List(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != filepath.Join(frames, "a.png") || files[1] != filepath.Join(frames, "b.png") {
		t.Errorf("files = %v", files)
	}
}

func TestHCLManifestErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		body  string
		empty bool
	}{
		{name: "syntax", body: `frames = [`},
		{name: "unknown attribute", body: `fps = 24`},
		{name: "wrong type", body: `frames = "a.png"`},
		{name: "no matches", body: `pattern = "*.exr"`, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manifest := filepath.Join(dir, "bad.hcl")
			if err := os.WriteFile(manifest, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := DirEnumerator{}.List(manifest)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrEmptySequence); got != tt.empty {
				t.Errorf("errors.Is(err, ErrEmptySequence) = %v, err = %v", got, err)
			}
		})
	}
}

func TestDirEnumeratorSkipsHidden(t *testing.T) {
	dir := writeFrames(t, "walk", ".DS_Store", "b.png", "a.PNG", "c.jpg")
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := DirEnumerator{Extensions: []string{".png"}}.List(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.PNG", "b.png"}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i, name := range want {
		if filepath.Base(files[i]) != name {
			t.Errorf("files[%d] = %q, want %q", i, files[i], name)
		}
	}
}
