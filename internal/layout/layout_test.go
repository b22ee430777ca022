package layout

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christophergorexyz/cosmia-core/internal/helpers"
	"github.com/christophergorexyz/cosmia-core/internal/model"
	"github.com/christophergorexyz/cosmia-core/internal/render"
)

func newEngine(t *testing.T) *render.Engine {
	t.Helper()
	e := render.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), helpers.NewRegistry(helpers.Builtins()...))
	require.NoError(t, e.Seal())
	return e
}

func loadLayouts(t *testing.T, e *render.Engine, sources map[string]string) map[string]*model.Layout {
	t.Helper()
	layouts := map[string]*model.Layout{}
	for name, src := range sources {
		l, err := Load(e, name, "layouts/"+name+".html", src)
		require.NoError(t, err)
		layouts[name] = l
	}
	return layouts
}

func TestLoadStripsTemplateData(t *testing.T) {
	e := newEngine(t)
	l, err := Load(e, "post", "layouts/post.html",
		`<script cosmia-template-data>{"parent": "default", "section": "blog"}</script><article>{{.body}}</article>`)
	require.NoError(t, err)
	assert.Equal(t, "default", l.Parent())
	assert.Equal(t, "blog", l.TemplateData["section"])
	assert.Equal(t, `<article>{{.body}}</article>`, l.Content)
}

func TestLoadRejectsNonStringParent(t *testing.T) {
	_, err := Load(newEngine(t), "bad", "layouts/bad.html", `<i cosmia-template-data>{"parent": 3}</i>`)
	assert.ErrorIs(t, err, model.ErrInvalidJSON)
}

func TestChainPrecedenceAndNesting(t *testing.T) {
	e := newEngine(t)
	layouts := loadLayouts(t, e, map[string]string{
		"a": `<div cosmia-template-data>{"parent": "b", "shared": "from-a", "only-a": 1}</div><a-wrap>{{.body}}</a-wrap>`,
		"b": `<div cosmia-template-data>{"shared": "from-b", "only-b": 2}</div><b-wrap>{{index . "cosmia-template-data" "shared"}}|{{.body}}</b-wrap>`,
	})

	chain, err := Chain(layouts, "a", "pages/x.html")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "a", chain[0].Name)
	assert.Equal(t, "b", chain[1].Name)

	td := TemplateData(chain)
	assert.Equal(t, "from-a", td["shared"])
	assert.Equal(t, float64(1), td["only-a"])
	assert.Equal(t, float64(2), td["only-b"])
	assert.Equal(t, "b", td["parent"])

	c := &Compiler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Engine: e, Layouts: layouts}
	out, err := c.CompilePage(&model.Page{
		Key:     "x",
		Path:    "pages/x.html",
		Content: `<p>{{.title}}</p>`,
		Data:    map[string]any{"layout": "a", "title": "T"},
	}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, `<b-wrap>from-a|<a-wrap><p>T</p></a-wrap></b-wrap>`, string(out))
}

func TestChainCycle(t *testing.T) {
	e := newEngine(t)
	layouts := loadLayouts(t, e, map[string]string{
		"a": `<i cosmia-template-data>{"parent": "b"}</i>{{.body}}`,
		"b": `<i cosmia-template-data>{"parent": "a"}</i>{{.body}}`,
	})
	_, err := Chain(layouts, "a", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrCyclicLayoutChain)
	assert.Contains(t, err.Error(), "a -> b -> a")

	self := loadLayouts(t, e, map[string]string{"self": `<i cosmia-template-data>{"parent": "self"}</i>`})
	_, err = Chain(self, "self", "")
	assert.ErrorIs(t, err, model.ErrCyclicLayoutChain)
}

func TestChainUnknownParent(t *testing.T) {
	e := newEngine(t)
	layouts := loadLayouts(t, e, map[string]string{
		"a": `<i cosmia-template-data>{"parent": "ghost"}</i>{{.body}}`,
	})
	_, err := Chain(layouts, "a", "pages/x.html")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrUnknownLayout)
	assert.Contains(t, err.Error(), "layouts/a.html")
}

func TestCompilePageUnknownLayoutFallsBack(t *testing.T) {
	e := newEngine(t)
	layouts := loadLayouts(t, e, map[string]string{"default": `<main>{{.body}}</main>`})

	var logs bytes.Buffer
	c := &Compiler{Logger: slog.New(slog.NewTextHandler(&logs, nil)), Engine: e, Layouts: layouts}
	page := &model.Page{Key: "x", Path: "pages/x.html", Content: "hi", Data: map[string]any{"layout": "missing"}}

	out, err := c.CompilePage(page, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "<main>hi</main>", string(out))
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "layout=missing")

	logs.Reset()
	_, err = c.CompilePage(page, nil, true)
	require.NoError(t, err)
	assert.Empty(t, logs.String())
}

func TestCompilePageMissingDefault(t *testing.T) {
	c := &Compiler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Engine: newEngine(t), Layouts: map[string]*model.Layout{}}
	_, err := c.CompilePage(&model.Page{Key: "x", Path: "pages/x.html", Content: "hi"}, nil, true)
	assert.ErrorIs(t, err, model.ErrUnknownLayout)
}

func TestCompilePageContext(t *testing.T) {
	e := newEngine(t)
	layouts := loadLayouts(t, e, map[string]string{
		"default": `{{index . "page-path"}}|{{.title}}|{{index . "cosmia-script"}}|{{.body}}`,
	})
	c := &Compiler{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Engine:  e,
		Layouts: layouts,
		Data:    map[string]any{"title": "site", "year": 2016},
	}
	page := &model.Page{
		Key:     "foo/index",
		Path:    "pages/foo/index.html",
		Content: `{{.title}} {{.year}} {{index . "cosmia-data" "title"}}`,
		Data:    map[string]any{"title": "page"},
		Script:  `<script cosmia-script>go()</script>`,
	}

	out, err := c.CompilePage(page, map[string]any{"title": "override"}, true)
	require.NoError(t, err)
	assert.Equal(t, `/foo/|override|<script cosmia-script>go()</script>|override 2016 page`, string(out))
}

func TestCompileMarkdownPage(t *testing.T) {
	e := newEngine(t)
	layouts := loadLayouts(t, e, map[string]string{"default": `<main>{{.body}}</main>`})
	c := &Compiler{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Engine: e, Layouts: layouts}

	out, err := c.CompilePage(&model.Page{
		Key:     "notes",
		Path:    "pages/notes.md",
		Content: "# {{.title}}\n\nSome *text*.",
		Data:    map[string]any{"title": "Notes"},
		Format:  model.FormatMarkdown,
	}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "<main><h1 id=\"notes\">Notes</h1>\n<p>Some <em>text</em>.</p>\n</main>", string(out))
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/foo/", CanonicalPath("foo/index"))
	assert.Equal(t, "/foo/bar.html", CanonicalPath("foo/bar"))
	assert.Equal(t, "/", CanonicalPath("index"))
	assert.Equal(t, "/foo/myindex.html", CanonicalPath("foo/myindex"))
}
