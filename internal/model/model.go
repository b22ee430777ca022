package model

import (
	"fmt"
	"html/template"
	"sort"
	"sync"
)

// DefaultLayout is used whenever a page does not name a layout, or names one
// that does not exist.
const DefaultLayout = "default"

// Reserved keys in the render context.
const (
	KeyBody               = "body"
	KeyLayout             = "layout"
	KeyPermalink          = "permalink"
	KeyPagePath           = "page-path"
	KeyCosmiaData         = "cosmia-data"
	KeyCosmiaScript       = "cosmia-script"
	KeyCosmiaTemplateData = "cosmia-template-data"
	KeyCollectionItems    = "collection-items"
	KeyParent             = "parent"
)

// Format tells the page compiler how to post-process a rendered page body.
type Format int

const (
	FormatHTML Format = iota
	FormatMarkdown
)

// Page is a single source page, either read from the pages directory or
// synthesized by a collection.
type Page struct {
	Key     string // logical path relative to the pages root, no extension
	Path    string // source file the page came from
	Content string
	Data    map[string]any
	Script  template.HTML
	Format  Format
}

// Layout is a compiled wrapper template. TemplateData may carry a "parent"
// entry naming the next layout in the chain.
type Layout struct {
	Name         string
	Path         string
	Content      string
	TemplateData map[string]any
	Template     *template.Template
}

// Parent returns the name of the parent layout, or "" at the root of a chain.
func (l *Layout) Parent() string {
	if l == nil || l.TemplateData == nil {
		return ""
	}
	parent, _ := l.TemplateData[KeyParent].(string)
	return parent
}

// Descriptor is a collection definition read from the collections directory.
type Descriptor struct {
	Path          string   `json:"path"`
	Source        string   `json:"source"`
	ContentFields []string `json:"content-fields"`
	IndexLayout   string   `json:"index-layout"`
	SingleLayout  string   `json:"single-layout"`
	SortBy        string   `json:"sort-by"`
	SortOrder     string   `json:"sort-order"`
}

// Site holds the page set and layouts of one compilation run.
// Pages may be added concurrently during ingestion.
type Site struct {
	mu      sync.Mutex
	pages   map[string]*Page
	Layouts map[string]*Layout
}

func NewSite() *Site {
	return &Site{
		pages:   map[string]*Page{},
		Layouts: map[string]*Layout{},
	}
}

// AddPage registers a page. Two sources claiming the same key is an error.
func (s *Site) AddPage(p *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pages[p.Key]; ok {
		return &Error{
			Kind: ErrPageCollision,
			Path: p.Path,
			Err:  fmt.Errorf("page %q already defined by %s", p.Key, existing.Path),
		}
	}
	s.pages[p.Key] = p
	return nil
}

// Page returns the page registered under key.
func (s *Site) Page(key string) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[key]
	return p, ok
}

// Keys returns all page keys in sorted order.
func (s *Site) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.pages))
	for k := range s.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge shallow-merges the given maps left to right into a new map.
// Later maps win on key collision; nil maps are skipped.
func Merge(maps ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
