// Package render wraps html/template: partials, helper functions and one
// clean template set that every page and layout is parsed into a clone of.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"sync"

	"github.com/christophergorexyz/cosmia-core/internal/helpers"
	"github.com/christophergorexyz/cosmia-core/internal/model"
)

const helperPrefix = "helper:"

type source struct {
	name string
	path string
	text string
}

// Engine collects partials and template helpers during ingestion, then
// builds the clean set with Seal. All methods are safe for concurrent use;
// Compile may only be called after Seal.
type Engine struct {
	logger    *slog.Logger
	helpers   *helpers.Registry
	partials  map[string]source
	templated map[string]*templateHelper
	clean     *template.Template
	mu        sync.RWMutex
}

func NewEngine(logger *slog.Logger, registry *helpers.Registry) *Engine {
	return &Engine{
		logger:    logger,
		helpers:   registry,
		partials:  map[string]source{},
		templated: map[string]*templateHelper{},
	}
}

// Helpers returns the helper registry bound into every template.
func (e *Engine) Helpers() *helpers.Registry {
	return e.helpers
}

// AddPartial registers a named fragment callable as {{template "name" .}}.
func (e *Engine) AddPartial(name, path, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.partials[name] = source{name: name, path: path, text: text}
}

// AddHelperTemplate registers a helper implemented as a template. The
// helper renders its template with {"args": args} and returns the markup.
func (e *Engine) AddHelperTemplate(name, path, text string) {
	h := &templateHelper{src: source{name: name, path: path, text: text}}
	e.mu.Lock()
	e.templated[name] = h
	e.mu.Unlock()
	e.helpers.Add(h)
}

// Seal parses every partial and template helper into the clean set.
func (e *Engine) Seal() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clean := template.New("").Funcs(e.helpers.FuncMap())

	for _, name := range sortedKeys(e.templated) {
		h := e.templated[name]
		if _, err := clean.New(helperPrefix + name).Parse(h.src.text); err != nil {
			return &model.Error{Kind: model.ErrHelperLoad, Path: h.src.path, Err: err}
		}
	}
	for _, name := range sortedKeys(e.partials) {
		p := e.partials[name]
		if _, err := clean.New(p.name).Parse(p.text); err != nil {
			return &model.Error{Kind: model.ErrTemplate, Path: p.path, Err: err}
		}
	}

	// Template helpers run in clones of their own: executing a template
	// marks it escaped, and an escaped member makes the set uncloneable.
	for _, name := range sortedKeys(e.templated) {
		set, err := clean.Clone()
		if err != nil {
			return &model.Error{Kind: model.ErrHelperLoad, Path: e.templated[name].src.path, Err: err}
		}
		e.templated[name].set = set
	}

	e.clean = clean
	e.logger.Info("Loaded partials and helpers", "partials", len(e.partials), "helpers", len(e.helpers.Names()))
	return nil
}

// Compile parses text as a new template in a clone of the clean set.
func (e *Engine) Compile(name, path, text string) (*template.Template, error) {
	e.mu.RLock()
	clean := e.clean
	e.mu.RUnlock()
	if clean == nil {
		return nil, fmt.Errorf("render engine used before Seal")
	}

	set, err := clean.Clone()
	if err != nil {
		return nil, &model.Error{Kind: model.ErrTemplate, Path: path, Err: err}
	}
	t, err := set.New(name).Parse(text)
	if err != nil {
		return nil, &model.Error{Kind: model.ErrTemplate, Path: path, Err: err}
	}
	return t, nil
}

// Execute renders t against data.
func Execute(t *template.Template, path string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", &model.Error{Kind: model.ErrTemplate, Path: path, Err: err}
	}
	return buf.String(), nil
}

// Render compiles and executes text in one step.
func (e *Engine) Render(name, path, text string, data any) (string, error) {
	t, err := e.Compile(name, path, text)
	if err != nil {
		return "", err
	}
	return Execute(t, path, data)
}

type templateHelper struct {
	src source
	set *template.Template
}

func (h *templateHelper) Name() string { return h.src.name }

func (h *templateHelper) Call(args ...any) (any, error) {
	if h.set == nil {
		return nil, &model.Error{Kind: model.ErrHelperLoad, Path: h.src.path, Err: fmt.Errorf("helper %s called before it was loaded", h.src.name)}
	}
	var buf bytes.Buffer
	if err := h.set.ExecuteTemplate(&buf, helperPrefix+h.src.name, map[string]any{"args": args}); err != nil {
		return nil, err
	}
	return template.HTML(buf.String()), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
