package collection

import (
	"html/template"
	"io"
	"log/slog"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christophergorexyz/cosmia-core/internal/model"
	"github.com/christophergorexyz/cosmia-core/internal/source"
)

func newProcessor(t *testing.T, files map[string]string) (*Processor, *model.Site) {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	site := model.NewSite()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProcessor(logger, site, source.New(fs)), site
}

func descriptor(name, raw string) source.File {
	return source.File{Path: "collections/" + name + ".json", Rel: name + ".json", Content: []byte(raw)}
}

const blogDescriptor = `{
	"path": "blog",
	"source": "posts",
	"content-fields": ["title", "body"],
	"index-layout": "blog-index",
	"single-layout": "post"
}`

func TestProcessIndexAndEntries(t *testing.T) {
	p, site := newProcessor(t, map[string]string{
		"posts/index.html": `<h1 cosmia-collection-title>All posts</h1>
<div cosmia-collection-body><p>Welcome</p></div>
<script cosmia-collection-data>{"intro": "hello"}</script>`,
		"posts/first-post.html": `<h1 cosmia-collection-title>First</h1>
<div cosmia-collection-body><p>One</p><p>Two</p></div>
<script cosmia-collection-data>{"date": "2016-01-02", "title": "First!"}</script>
<footer>{{.title}}</footer>`,
	})

	require.NoError(t, p.Process(descriptor("blog", blogDescriptor)))
	assert.Equal(t, []string{"blog/first-post", "blog/index"}, site.Keys())

	index, ok := site.Page("blog/index")
	require.True(t, ok)
	assert.Equal(t, "blog-index", index.Data["layout"])
	assert.Equal(t, template.HTML("All posts"), index.Data["title"])
	assert.Equal(t, template.HTML("<p>Welcome</p>"), index.Data["body"])
	assert.Equal(t, "hello", index.Data["intro"])

	entry, ok := site.Page("blog/first-post")
	require.True(t, ok)
	assert.Equal(t, "post", entry.Data["layout"])
	assert.Equal(t, "/blog/first-post", entry.Data["permalink"])
	assert.Equal(t, "First!", entry.Data["title"], "collection data wins over content fields")
	assert.Equal(t, template.HTML("<p>One</p><p>Two</p>"), entry.Data["body"])
	assert.Equal(t, "\n\n\n<footer>{{.title}}</footer>", entry.Content)

	items := p.Items()["blog"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, entry.Data, items[0])
}

func TestProcessExistingIndexDataWins(t *testing.T) {
	p, site := newProcessor(t, map[string]string{
		"posts/index.html": `<script cosmia-collection-data>{"layout": "ignored", "extra": 1}</script>`,
	})
	require.NoError(t, p.Process(descriptor("blog", blogDescriptor)))

	index, _ := site.Page("blog/index")
	assert.Equal(t, "blog-index", index.Data["layout"])
	assert.Equal(t, float64(1), index.Data["extra"])
	assert.Empty(t, p.Items()["blog"])
}

func TestProcessNestedEntries(t *testing.T) {
	p, site := newProcessor(t, map[string]string{
		"posts/2016/index.html": `<b cosmia-collection-title>Year</b>`,
		"posts/2016/jan.html":   `<b cosmia-collection-title>Jan</b>`,
	})
	require.NoError(t, p.Process(descriptor("blog", blogDescriptor)))

	assert.Equal(t, []string{"blog/2016/index", "blog/2016/jan", "blog/index"}, site.Keys())
	nested, _ := site.Page("blog/2016/index")
	assert.Equal(t, "/blog/2016/", nested.Data["permalink"])
	assert.Len(t, p.Items()["blog"], 2)
}

func TestProcessSort(t *testing.T) {
	p, _ := newProcessor(t, map[string]string{
		"posts/a.html": `<i cosmia-collection-data>{"date": "2016-01-01"}</i>`,
		"posts/b.html": `<i cosmia-collection-data>{"date": "2016-03-01"}</i>`,
		"posts/c.html": `no date`,
		"posts/d.html": `<i cosmia-collection-data>{"date": "2016-02-01"}</i>`,
	})
	desc := `{"path": "blog", "source": "posts", "single-layout": "post", "sort-by": "date", "sort-order": "desc"}`
	require.NoError(t, p.Process(descriptor("blog", desc)))

	var permalinks []string
	for _, item := range p.Items()["blog"].([]any) {
		permalinks = append(permalinks, item.(map[string]any)["permalink"].(string))
	}
	assert.Equal(t, []string{"/blog/b", "/blog/d", "/blog/a", "/blog/c"}, permalinks)
}

func TestProcessFatalErrors(t *testing.T) {
	t.Run("duplicate field element", func(t *testing.T) {
		p, _ := newProcessor(t, map[string]string{
			"posts/x.html": `<h1 cosmia-collection-title>a</h1><h2 cosmia-collection-title>b</h2>`,
		})
		err := p.Process(descriptor("blog", blogDescriptor))
		assert.ErrorIs(t, err, model.ErrMultipleCustomElements)
		assert.Contains(t, err.Error(), "posts/x.html")
	})

	t.Run("malformed collection data", func(t *testing.T) {
		p, _ := newProcessor(t, map[string]string{
			"posts/x.html": `<script cosmia-collection-data>{nope}</script>`,
		})
		err := p.Process(descriptor("blog", blogDescriptor))
		assert.ErrorIs(t, err, model.ErrInvalidJSON)
		assert.Contains(t, err.Error(), "posts/x.html")
	})

	t.Run("malformed descriptor", func(t *testing.T) {
		p, _ := newProcessor(t, nil)
		err := p.Process(descriptor("blog", `{"path": `))
		assert.ErrorIs(t, err, model.ErrInvalidJSON)
		assert.Contains(t, err.Error(), "collections/blog.json")
	})

	t.Run("page collision", func(t *testing.T) {
		p, site := newProcessor(t, nil)
		require.NoError(t, site.AddPage(&model.Page{Key: "blog/index", Path: "pages/blog/index.html"}))
		err := p.Process(descriptor("blog", blogDescriptor))
		assert.ErrorIs(t, err, model.ErrPageCollision)
	})
}

func TestParseDescriptorDefaults(t *testing.T) {
	d, err := ParseDescriptor("collections/archive/news.json", "archive/news", []byte(`{"source": "news"}`))
	require.NoError(t, err)
	assert.Equal(t, "archive/news", d.Path)
	assert.Equal(t, "default", d.IndexLayout)
	assert.Equal(t, "default", d.SingleLayout)

	d, err = ParseDescriptor("collections/news.json", "news", []byte(`{"path": "/docs/guides/", "source": "g"}`))
	require.NoError(t, err)
	assert.Equal(t, "docs/guides", d.Path)

	_, err = ParseDescriptor("collections/news.json", "news", []byte(`{"path": "news"}`))
	assert.ErrorIs(t, err, model.ErrInvalidJSON)
}

func TestPermalink(t *testing.T) {
	assert.Equal(t, "/blog/first-post", Permalink("blog/first-post"))
	assert.Equal(t, "/blog/", Permalink("blog/index"))
	assert.Equal(t, "/blog/reindex", Permalink("blog/reindex"))
}
