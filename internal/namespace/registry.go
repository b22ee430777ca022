// Package namespace merges many data documents, each addressed by its file
// path, into one nested tree. data/nav/main.json ends up at tree["nav"]["main"].
package namespace

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/christophergorexyz/cosmia-core/internal/model"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	tree map[string]any
}

func New() *Registry {
	return &Registry{tree: map[string]any{}}
}

// Register parses raw and stores it at the location implied by relPath.
// relPath is taken relative to root when it is not already relative.
// Registering the same path twice replaces the earlier document; documents
// sharing only a directory prefix are merged side by side.
func (r *Registry) Register(root, relPath string, raw []byte) error {
	value, err := Decode(relPath, raw)
	if err != nil {
		return err
	}
	segments := Segments(root, relPath)
	if len(segments) == 0 {
		return &model.Error{Kind: model.ErrInvalidJSON, Path: relPath, Err: fmt.Errorf("no namespace for %q", relPath)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree = Set(r.tree, segments, value)
	return nil
}

// Set assigns value under segments in a copy-on-descend fashion: every
// intermediate map on the way down is shallow-copied, never mutated in place,
// so trees handed out earlier stay unchanged.
func Set(tree map[string]any, segments []string, value any) map[string]any {
	out := model.Merge(tree)
	node := out
	for i, seg := range segments {
		if i == len(segments)-1 {
			node[seg] = value
			break
		}
		child, _ := node[seg].(map[string]any)
		child = model.Merge(child)
		node[seg] = child
		node = child
	}
	return out
}

// Overlay sets every leaf of over into tree along its key path, so maps
// present in both are merged and their other keys kept. A non-map value in
// over replaces whatever tree holds at that path. tree is not modified.
func Overlay(tree, over map[string]any) map[string]any {
	out := model.Merge(tree)
	var walk func(prefix []string, m map[string]any)
	walk = func(prefix []string, m map[string]any) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			segments := append(append([]string{}, prefix...), k)
			if sub, ok := m[k].(map[string]any); ok {
				existing, _ := lookup(out, segments)
				if _, isMap := existing.(map[string]any); isMap {
					walk(segments, sub)
					continue
				}
			}
			out = Set(out, segments, m[k])
		}
	}
	walk(nil, over)
	return out
}

// Tree returns the current tree. Callers must not mutate it.
func (r *Registry) Tree() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tree
}

// Lookup walks the tree along segments.
func (r *Registry) Lookup(segments ...string) (any, bool) {
	return lookup(r.Tree(), segments)
}

func lookup(tree map[string]any, segments []string) (any, bool) {
	var node any = tree
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return node, true
}

// Segments splits a data file path into namespace keys: directories first,
// then the file name without its extension.
func Segments(root, relPath string) []string {
	if root != "" {
		if rel, err := filepath.Rel(root, relPath); err == nil && !strings.HasPrefix(rel, "..") {
			relPath = rel
		}
	}
	p := path.Clean(filepath.ToSlash(relPath))
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, path.Ext(p))
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Decode parses a JSON or YAML document, chosen by file extension.
func Decode(name string, raw []byte) (any, error) {
	var value any
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &value); err != nil {
			return nil, &model.Error{Kind: model.ErrInvalidJSON, Path: name, Err: err}
		}
		return normalizeYAML(value), nil
	default:
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, &model.Error{Kind: model.ErrInvalidJSON, Path: name, Err: err}
		}
		return value, nil
	}
}

// normalizeYAML converts yaml.v2's map[interface{}]interface{} nodes into
// the map[string]any shape produced by encoding/json.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case []interface{}:
		for i := range t {
			t[i] = normalizeYAML(t[i])
		}
		return t
	default:
		return v
	}
}
