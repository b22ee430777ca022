// Package collection expands collection descriptors into an index page, one
// page per entry file, and the ordered list of entry data exposed to every
// template under "collection-items".
package collection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/christophergorexyz/cosmia-core/internal/markup"
	"github.com/christophergorexyz/cosmia-core/internal/model"
	"github.com/christophergorexyz/cosmia-core/internal/source"
)

// EntryExt is the extension of collection entry files.
const EntryExt = ".html"

// Processor is safe for concurrent use. Pages it creates go straight into
// the site's page set.
type Processor struct {
	logger *slog.Logger
	site   *model.Site
	source *source.Tree
	mu     sync.Mutex
	items  map[string][]any
}

func NewProcessor(logger *slog.Logger, site *model.Site, src *source.Tree) *Processor {
	return &Processor{
		logger: logger,
		site:   site,
		source: src,
		items:  map[string][]any{},
	}
}

// Items returns the entry data of every processed collection keyed by
// collection namespace.
func (p *Processor) Items() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]any, len(p.items))
	for ns, items := range p.items {
		out[ns] = items
	}
	return out
}

// Process expands one descriptor file read from the collections directory.
func (p *Processor) Process(f source.File) error {
	d, err := ParseDescriptor(f.Path, f.Key(), f.Content)
	if err != nil {
		return err
	}

	index := &model.Page{
		Key:  path.Join(d.Path, "index"),
		Path: f.Path,
		Data: map[string]any{model.KeyLayout: d.IndexLayout},
	}
	if err := p.site.AddPage(index); err != nil {
		return err
	}

	p.mu.Lock()
	p.items[d.Path] = []any{}
	p.mu.Unlock()

	files, err := p.source.Files(d.Source, EntryExt)
	if err != nil {
		return err
	}

	items := []any{}
	for _, f := range files {
		key := path.Join(d.Path, f.Key())
		content, data, err := extractEntry(f, d.ContentFields)
		if err != nil {
			return err
		}

		if key == index.Key {
			// existing index data wins over what the entry declares
			index.Data = model.Merge(data, index.Data)
			if strings.TrimSpace(content) != "" {
				index.Content = content
				index.Path = f.Path
			}
			continue
		}

		data[model.KeyLayout] = d.SingleLayout
		data[model.KeyPermalink] = Permalink(key)
		page := &model.Page{Key: key, Path: f.Path, Content: content, Data: data}
		if err := p.site.AddPage(page); err != nil {
			return err
		}
		items = append(items, data)
	}

	if d.SortBy != "" {
		sortItems(items, d.SortBy, strings.EqualFold(d.SortOrder, "desc"))
	}

	p.mu.Lock()
	p.items[d.Path] = items
	p.mu.Unlock()

	p.logger.Info("Processed collection", "path", d.Path, "source", d.Source, "entries", len(items))
	return nil
}

// ParseDescriptor decodes a descriptor and fills in defaults. Without a
// "path" the collection is named by fallback, the descriptor's path relative
// to the collections directory without extension.
func ParseDescriptor(descriptorPath, fallback string, raw []byte) (*model.Descriptor, error) {
	var d model.Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, &model.Error{Kind: model.ErrInvalidJSON, Path: descriptorPath, Err: err}
	}
	if d.Source == "" {
		return nil, &model.Error{Kind: model.ErrInvalidJSON, Path: descriptorPath, Err: fmt.Errorf("collection descriptor has no source")}
	}

	if d.Path == "" {
		d.Path = fallback
	}
	d.Path = strings.Trim(path.Clean("/"+d.Path), "/")
	if d.IndexLayout == "" {
		d.IndexLayout = model.DefaultLayout
	}
	if d.SingleLayout == "" {
		d.SingleLayout = model.DefaultLayout
	}
	return &d, nil
}

// Permalink is the site path of a page key with a trailing index dropped.
func Permalink(key string) string {
	p := path.Join("/", key)
	if path.Base(p) == "index" {
		p = strings.TrimSuffix(p, "index")
	}
	return p
}

// extractEntry pulls the content fields and the collection-data element out
// of an entry file. Collection data wins over field values.
func extractEntry(f source.File, fields []string) (string, map[string]any, error) {
	doc, err := markup.Parse(f.Path, string(f.Content))
	if err != nil {
		return "", nil, err
	}

	data := map[string]any{}
	for _, field := range fields {
		var v any
		doc, v, err = markup.Extract(doc, markup.FieldAttr(field), markup.InnerHTML, true)
		if err != nil {
			return "", nil, err
		}
		if v != nil {
			data[field] = v
		}
	}

	doc, extra, err := markup.ExtractJSON(doc, markup.AttrCollectionData)
	if err != nil {
		return "", nil, err
	}
	for k, v := range extra {
		data[k] = v
	}
	return doc.String(), data, nil
}

// sortItems orders entry data by one field. Entries without the field go
// last regardless of direction.
func sortItems(items []any, field string, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, aok := items[i].(map[string]any)[field]
		b, bok := items[j].(map[string]any)[field]
		switch {
		case !aok || !bok:
			return aok && !bok
		case desc:
			return less(b, a)
		default:
			return less(a, b)
		}
	})
}

func less(a, b any) bool {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			return x < y
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
