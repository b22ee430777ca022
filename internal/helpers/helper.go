// Package helpers holds the named functions templates can call.
package helpers

import (
	"html/template"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Helper is a named function callable from template expressions.
type Helper interface {
	Name() string
	Call(args ...any) (any, error)
}

type funcHelper struct {
	name string
	fn   func(args ...any) (any, error)
}

func (h funcHelper) Name() string                  { return h.name }
func (h funcHelper) Call(args ...any) (any, error) { return h.fn(args...) }

// Func wraps a plain function as a Helper.
func Func(name string, fn func(args ...any) (any, error)) Helper {
	return funcHelper{name: name, fn: fn}
}

// Registry collects helpers by name. Later registrations replace earlier
// ones, so project helpers can shadow built-ins.
type Registry struct {
	mu      sync.RWMutex
	helpers map[string]Helper
}

func NewRegistry(hs ...Helper) *Registry {
	r := &Registry{helpers: map[string]Helper{}}
	for _, h := range hs {
		r.Add(h)
	}
	return r
}

func (r *Registry) Add(h Helper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.helpers[h.Name()] = h
}

func (r *Registry) Get(name string) (Helper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.helpers[name]
	return h, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.helpers))
	for name := range r.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FuncMap binds every helper into a template.FuncMap.
func (r *Registry) FuncMap() template.FuncMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fm := make(template.FuncMap, len(r.helpers))
	for name, h := range r.helpers {
		h := h
		fm[name] = func(args ...any) (any, error) {
			return h.Call(args...)
		}
	}
	return fm
}

// Name turns a file basename into a template function name: chunk-list
// becomes chunkList. Template identifiers cannot contain dashes.
func Name(basename string) string {
	parts := strings.FieldsFunc(basename, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	var b strings.Builder
	for i, part := range parts {
		if i == 0 {
			b.WriteString(part)
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	name := b.String()
	if name != "" && unicode.IsDigit([]rune(name)[0]) {
		name = "_" + name
	}
	return name
}
