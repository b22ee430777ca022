// Package output writes compiled pages to their destination.
package output

import (
	"bytes"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/natefinch/atomic"

	"github.com/christophergorexyz/cosmia-core/internal/model"
)

// Writer stores one compiled page. name is slash separated and relative to
// the writer's root.
type Writer interface {
	Write(name string, data []byte) error
}

// Dir writes pages below a directory on disk. Each file is replaced
// atomically.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

func (d *Dir) Write(name string, data []byte) error {
	dest := filepath.Join(d.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return &model.Error{Kind: model.ErrFileSystem, Path: dest, Err: err}
	}
	if err := atomic.WriteFile(dest, bytes.NewReader(data)); err != nil {
		return &model.Error{Kind: model.ErrFileSystem, Path: dest, Err: err}
	}
	return nil
}

// FS writes pages into a billy filesystem, typically memfs for previews and
// tests.
type FS struct {
	fs billy.Filesystem
}

func NewFS(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

func (w *FS) Write(name string, data []byte) error {
	if err := w.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return &model.Error{Kind: model.ErrFileSystem, Path: name, Err: err}
	}
	if err := util.WriteFile(w.fs, name, data, 0o644); err != nil {
		return &model.Error{Kind: model.ErrFileSystem, Path: name, Err: err}
	}
	return nil
}

// Filesystem exposes what has been written.
func (w *FS) Filesystem() billy.Filesystem {
	return w.fs
}
