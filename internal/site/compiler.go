// Package site ties the compiler together: it ingests a source tree in two
// concurrent phases, then renders every page in key order.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"golang.org/x/sync/errgroup"

	"github.com/christophergorexyz/cosmia-core/internal/collection"
	"github.com/christophergorexyz/cosmia-core/internal/helpers"
	"github.com/christophergorexyz/cosmia-core/internal/layout"
	"github.com/christophergorexyz/cosmia-core/internal/manifest"
	"github.com/christophergorexyz/cosmia-core/internal/markup"
	"github.com/christophergorexyz/cosmia-core/internal/model"
	"github.com/christophergorexyz/cosmia-core/internal/namespace"
	"github.com/christophergorexyz/cosmia-core/internal/output"
	"github.com/christophergorexyz/cosmia-core/internal/render"
	"github.com/christophergorexyz/cosmia-core/internal/source"
)

// Source directories, relative to the source root.
const (
	PartialsDir    = "partials"
	DataDir        = "data"
	LayoutsDir     = "layouts"
	HelpersDir     = "helpers"
	PagesDir       = "pages"
	CollectionsDir = "collections"
)

const outputExt = ".html"

var errNotSetUp = errors.New("site: Setup has not completed")

// Compiler is the state of one compilation run. Setup must complete before
// pages are compiled.
type Compiler struct {
	logger   *slog.Logger
	silent   bool
	src      *source.Tree
	engine   *render.Engine
	data     *namespace.Registry
	site     *model.Site
	coll     *collection.Processor
	manifest *manifest.Recorder
	extra    []helpers.Helper
	pages    *layout.Compiler
}

type Option func(*Compiler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithSilent suppresses warnings about pages falling back to the default
// layout.
func WithSilent(silent bool) Option {
	return func(c *Compiler) {
		c.silent = silent
	}
}

// WithManifest records every written page.
func WithManifest(r *manifest.Recorder) Option {
	return func(c *Compiler) {
		c.manifest = r
	}
}

// WithHelpers registers extra helpers next to the built-in ones.
func WithHelpers(hs ...helpers.Helper) Option {
	return func(c *Compiler) {
		c.extra = append(c.extra, hs...)
	}
}

func New(src *source.Tree, opts ...Option) *Compiler {
	c := &Compiler{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		src:    src,
		data:   namespace.New(),
		site:   model.NewSite(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.engine = render.NewEngine(c.logger, helpers.NewRegistry(append(helpers.Builtins(), c.extra...)...))
	c.coll = collection.NewProcessor(c.logger, c.site, src)
	return c
}

// Setup loads the source tree. Partials, data, helpers and layouts are read
// first, then pages and collections, which may use all of them. overrides
// are laid over the data tree, nested maps merged key by key, and become
// part of every page context.
func (c *Compiler) Setup(ctx context.Context, overrides map[string]any) error {
	if err := c.registerComponents(ctx); err != nil {
		return err
	}
	c.logger.Info("components registered", "helpers", len(c.engine.Helpers().Names()), "layouts", len(c.site.Layouts))

	if err := c.extractData(ctx); err != nil {
		return err
	}

	data := model.Merge(c.data.Tree(), map[string]any{model.KeyCollectionItems: c.coll.Items()})
	data = namespace.Overlay(data, overrides)
	c.pages = &layout.Compiler{
		Logger:  c.logger,
		Engine:  c.engine,
		Layouts: c.site.Layouts,
		Data:    data,
	}
	c.logger.Info("data extracted", "pages", len(c.site.Keys()))
	return nil
}

func (c *Compiler) registerComponents(ctx context.Context) error {
	var layoutFiles []source.File
	group, groupctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		files, err := c.src.Files(PartialsDir, ".html")
		if err != nil {
			return err
		}
		for _, f := range files {
			c.engine.AddPartial(f.Key(), f.Path, string(f.Content))
		}
		return nil
	})
	group.Go(func() error {
		files, err := c.src.Files(DataDir, ".json", ".yaml", ".yml")
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := groupctx.Err(); err != nil {
				return err
			}
			if err := c.data.Register(DataDir, f.Path, f.Content); err != nil {
				return err
			}
		}
		return nil
	})
	group.Go(func() error {
		files, err := c.src.Files(HelpersDir, ".tmpl")
		if err != nil {
			return err
		}
		defined := map[string]string{}
		for _, f := range files {
			name := helpers.Name(path.Base(f.Key()))
			if prev, ok := defined[name]; ok {
				return &model.Error{
					Kind: model.ErrHelperLoad,
					Path: f.Path,
					Err:  fmt.Errorf("helper %q already defined by %s", name, prev),
				}
			}
			defined[name] = f.Path
			c.engine.AddHelperTemplate(name, f.Path, string(f.Content))
		}
		return nil
	})
	group.Go(func() error {
		files, err := c.src.Files(LayoutsDir, ".html")
		layoutFiles = files
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}

	if err := c.engine.Seal(); err != nil {
		return err
	}
	for _, f := range layoutFiles {
		l, err := layout.Load(c.engine, f.Key(), f.Path, string(f.Content))
		if err != nil {
			return err
		}
		c.site.Layouts[l.Name] = l
	}
	return nil
}

func (c *Compiler) extractData(ctx context.Context) error {
	group, groupctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		files, err := c.src.Files(PagesDir, ".html", ".md")
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := groupctx.Err(); err != nil {
				return err
			}
			page, err := c.readPage(f)
			if err != nil {
				return err
			}
			if err := c.site.AddPage(page); err != nil {
				return err
			}
		}
		return nil
	})
	group.Go(func() error {
		files, err := c.src.Files(CollectionsDir, ".json")
		if err != nil {
			return err
		}
		for _, f := range files {
			if err := groupctx.Err(); err != nil {
				return err
			}
			if err := c.coll.Process(f); err != nil {
				return err
			}
		}
		return nil
	})
	return group.Wait()
}

// readPage strips the data and script elements from a page file. Markdown
// pages may also carry YAML front matter, which cosmia-data overrides.
func (c *Compiler) readPage(f source.File) (*model.Page, error) {
	page := &model.Page{Key: f.Key(), Path: f.Path, Data: map[string]any{}}
	content := f.Content

	if strings.EqualFold(path.Ext(f.Path), ".md") {
		page.Format = model.FormatMarkdown
		var matter map[string]any
		body, err := frontmatter.Parse(bytes.NewReader(content), &matter)
		if err != nil {
			c.logger.Warn("Could not parse front matter, treating as plain markdown", "path", f.Path, "error", err)
		} else {
			content = body
			page.Data = model.Merge(page.Data, matter)
		}
	}

	doc, err := markup.Parse(f.Path, string(content))
	if err != nil {
		return nil, err
	}
	doc, data, err := markup.ExtractJSON(doc, markup.AttrData)
	if err != nil {
		return nil, err
	}
	doc, script, err := markup.Extract(doc, markup.AttrScript, markup.OuterHTML, true)
	if err != nil {
		return nil, err
	}

	page.Data = model.Merge(page.Data, data)
	page.Content = doc.String()
	if s, ok := script.(template.HTML); ok {
		page.Script = s
	}
	return page, nil
}

// CompileSite renders every page in key order and hands the result to w.
// The first failure stops the run; pages already written stay.
func (c *Compiler) CompileSite(ctx context.Context, w output.Writer) error {
	if c.pages == nil {
		return errNotSetUp
	}
	for _, key := range c.site.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, _ := c.site.Page(key)
		out, err := c.pages.CompilePage(page, nil, c.silent)
		if err != nil {
			return err
		}

		name := key + outputExt
		if err := w.Write(name, out); err != nil {
			return err
		}
		c.logger.Info("Wrote page", "path", name, "bytes", len(out))

		if c.manifest != nil {
			entry := manifest.NewEntry(key, name, layout.CanonicalPath(key), c.layoutOf(page), page.Path, out)
			if err := c.manifest.Record(entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// CompilePage renders a single loaded page without logging layout
// warnings.
func (c *Compiler) CompilePage(key string, overrides map[string]any) ([]byte, error) {
	if c.pages == nil {
		return nil, errNotSetUp
	}
	page, ok := c.site.Page(key)
	if !ok {
		return nil, &model.Error{Kind: model.ErrPageNotFound, Path: key, Err: fmt.Errorf("no page with key %q", key)}
	}
	return c.pages.CompilePage(page, overrides, true)
}

// Run loads the source tree and writes every page.
func (c *Compiler) Run(ctx context.Context, w output.Writer, overrides map[string]any) error {
	if err := c.Setup(ctx, overrides); err != nil {
		return err
	}
	return c.CompileSite(ctx, w)
}

// Pages returns the keys of all loaded pages, sorted.
func (c *Compiler) Pages() []string {
	return c.site.Keys()
}

// Page returns a loaded page.
func (c *Compiler) Page(key string) (*model.Page, bool) {
	return c.site.Page(key)
}

// Layouts returns the names of all loaded layouts, sorted.
func (c *Compiler) Layouts() []string {
	names := make([]string, 0, len(c.site.Layouts))
	for name := range c.site.Layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Data returns the site context every page is rendered against.
func (c *Compiler) Data() map[string]any {
	if c.pages == nil {
		return nil
	}
	return c.pages.Data
}

// layoutOf reports the layout a page ends up wrapped in.
func (c *Compiler) layoutOf(page *model.Page) string {
	name := model.DefaultLayout
	if v, ok := model.Merge(c.pages.Data, page.Data)[model.KeyLayout].(string); ok && v != "" {
		name = v
	}
	if _, ok := c.site.Layouts[name]; !ok {
		return model.DefaultLayout
	}
	return name
}
