package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christophergorexyz/cosmia-core/internal/model"
)

func TestDirWrite(t *testing.T) {
	root := t.TempDir()
	w := NewDir(root)

	require.NoError(t, w.Write("blog/2016/first.html", []byte("one")))
	require.NoError(t, w.Write("blog/2016/first.html", []byte("two")))

	got, err := os.ReadFile(filepath.Join(root, "blog", "2016", "first.html"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestDirWriteFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blog")
	require.NoError(t, os.WriteFile(blocker, []byte("file, not dir"), 0o644))

	err := NewDir(root).Write("blog/index.html", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrFileSystem)
}

func TestFSWrite(t *testing.T) {
	w := NewFS(memfs.New())
	require.NoError(t, w.Write("index.html", []byte("home")))
	require.NoError(t, w.Write("docs/intro/index.html", []byte("intro")))

	got, err := util.ReadFile(w.Filesystem(), "docs/intro/index.html")
	require.NoError(t, err)
	assert.Equal(t, "intro", string(got))

	got, err = util.ReadFile(w.Filesystem(), "index.html")
	require.NoError(t, err)
	assert.Equal(t, "home", string(got))
}
