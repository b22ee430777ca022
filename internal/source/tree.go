// Package source reads the project source tree through a billy.Filesystem,
// so the compiler runs the same against disk and in-memory trees.
package source

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/christophergorexyz/cosmia-core/internal/model"
)

// File is one source file read from the tree.
type File struct {
	Path    string // location within the filesystem
	Rel     string // slash separated, relative to the walked directory
	Content []byte
}

// Key returns Rel without its extension.
func (f File) Key() string {
	return strings.TrimSuffix(f.Rel, path.Ext(f.Rel))
}

type Tree struct {
	fs billy.Filesystem
}

func New(fs billy.Filesystem) *Tree {
	return &Tree{fs: fs}
}

// Dir opens a tree rooted at a directory on disk.
func Dir(root string) *Tree {
	return New(osfs.New(root))
}

// FS exposes the underlying filesystem.
func (t *Tree) FS() billy.Filesystem {
	return t.fs
}

// Files reads every file below dir whose extension is one of exts, sorted by
// relative path. A missing dir reads as empty.
func (t *Tree) Files(dir string, exts ...string) ([]File, error) {
	if _, err := t.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &model.Error{Kind: model.ErrFileSystem, Path: dir, Err: err}
	}

	var files []File
	err := util.Walk(t.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !hasExt(p, exts) {
			return nil
		}
		content, err := util.ReadFile(t.fs, p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, File{Path: p, Rel: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, model.Wrap(model.ErrFileSystem, dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// ReadFile reads a single file.
func (t *Tree) ReadFile(name string) ([]byte, error) {
	b, err := util.ReadFile(t.fs, name)
	if err != nil {
		return nil, &model.Error{Kind: model.ErrFileSystem, Path: name, Err: err}
	}
	return b, nil
}

func hasExt(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
