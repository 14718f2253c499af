package sequence

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Enumerator resolves a sequence path to its ordered file list.
type Enumerator interface {
	List(path string) ([]string, error)
}

// DirEnumerator lists image sequences from the local filesystem. A
// directory yields its regular files sorted by name. A file ending in .hcl
// is decoded as an HCL manifest; any other file is read as a plain manifest
// with one path per line.
type DirEnumerator struct {
	// Extensions restricts directory listings to these suffixes, matched
	// case-insensitively (e.g. ".png"). Empty keeps every file.
	Extensions []string
}

// List implements Enumerator.
func (e DirEnumerator) List(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return nil, err
	}

	var files []string
	if info.IsDir() {
		files, err = e.listDir(path)
	} else if strings.EqualFold(filepath.Ext(path), ".hcl") {
		files, err = readHCLManifest(path)
	} else {
		files, err = readManifest(path)
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySequence, path)
	}
	return files, nil
}

func (e DirEnumerator) listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(full)
			if err != nil || !target.Mode().IsRegular() {
				continue
			}
		} else if !entry.Type().IsRegular() {
			continue
		}
		if !e.accepts(name) {
			continue
		}
		files = append(files, full)
	}
	return files, nil
}

func (e DirEnumerator) accepts(name string) bool {
	if len(e.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	for _, want := range e.Extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// readManifest reads one path per line. Blank lines and lines starting with
// '#' are skipped; relative paths are taken from the manifest's directory.
func readManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		files = append(files, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return files, nil
}

// hclManifest is the body of an .hcl sequence manifest:
//
//	base    = "${manifest_dir}/renders"
//	frames  = ["intro_000.png", "intro_001.png"]
//	pattern = "loop_*.png"
//
// Explicit frames come first in the given order, followed by the sorted
// matches of pattern. Both are relative to base, which defaults to the
// manifest's directory.
type hclManifest struct {
	Base    string   `hcl:"base,optional"`
	Frames  []string `hcl:"frames,optional"`
	Pattern string   `hcl:"pattern,optional"`
}

func readHCLManifest(path string) ([]string, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, diags)
	}

	dir := filepath.Dir(path)
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"manifest_dir": cty.StringVal(dir),
		},
	}

	var m hclManifest
	if diags := gohcl.DecodeBody(file.Body, ctx, &m); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, diags)
	}

	base := dir
	if m.Base != "" {
		base = m.Base
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, base)
		}
	}

	files := make([]string, 0, len(m.Frames))
	for _, f := range m.Frames {
		if !filepath.IsAbs(f) {
			f = filepath.Join(base, f)
		}
		files = append(files, f)
	}

	if m.Pattern != "" {
		matches, err := filepath.Glob(filepath.Join(base, m.Pattern))
		if err != nil {
			return nil, fmt.Errorf("manifest %s: bad pattern %q: %w", path, m.Pattern, err)
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
