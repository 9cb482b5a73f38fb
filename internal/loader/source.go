package loader

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Source enumerates and fetches raw question documents.
type Source interface {
	// Name identifies the source in logs and diagnostics.
	Name() string
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// embeds the built-in sample bank so the service always has something to serve
//
//go:embed samples/*.json samples/*.yaml
var sampleFS embed.FS

var documentExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

func isDocument(name string) bool {
	return documentExts[strings.ToLower(path.Ext(name))]
}

// DirSource reads every .json/.yaml/.yml file directly under a directory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Name() string { return "dir:" + s.dir }

func (s *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions directory %s: %w", s.dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isDocument(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	// later files overwrite earlier ones on duplicate ids, so keep a stable order
	sort.Strings(names)
	return names, nil
}

func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
}

// FSSource serves documents out of an fs.FS, e.g. the embedded sample bank.
type FSSource struct {
	name string
	fsys fs.FS
	dir  string
}

func NewFSSource(name string, fsys fs.FS, dir string) *FSSource {
	return &FSSource{name: name, fsys: fsys, dir: dir}
}

// NewEmbeddedSource returns the built-in sample question bank.
func NewEmbeddedSource() *FSSource {
	return NewFSSource("embedded", sampleFS, "samples")
}

func (s *FSSource) Name() string { return s.name }

func (s *FSSource) List(ctx context.Context) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isDocument(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	return fs.ReadFile(s.fsys, path.Join(s.dir, name))
}
