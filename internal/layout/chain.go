// Package layout resolves layout chains and composes pages through them.
package layout

import (
	"fmt"
	"html/template"
	"path"
	"strings"

	"github.com/christophergorexyz/cosmia-core/internal/markup"
	"github.com/christophergorexyz/cosmia-core/internal/model"
	"github.com/christophergorexyz/cosmia-core/internal/render"
)

// Load extracts a layout's template-data element and compiles what remains.
func Load(engine *render.Engine, name, filePath, content string) (*model.Layout, error) {
	doc, err := markup.Parse(filePath, content)
	if err != nil {
		return nil, err
	}
	doc, data, err := markup.ExtractJSON(doc, markup.AttrTemplateData)
	if err != nil {
		return nil, err
	}
	if parent, ok := data[model.KeyParent]; ok {
		if _, isString := parent.(string); !isString {
			return nil, &model.Error{
				Kind: model.ErrInvalidJSON,
				Path: filePath,
				Err:  fmt.Errorf("%s must be a layout name, got %T", model.KeyParent, parent),
			}
		}
	}

	t, err := engine.Compile("layout:"+name, filePath, doc.String())
	if err != nil {
		return nil, err
	}
	return &model.Layout{
		Name:         name,
		Path:         filePath,
		Content:      doc.String(),
		TemplateData: data,
		Template:     t,
	}, nil
}

// Chain returns the layout called name followed by its ancestors, leaf
// first. A parent that does not exist, or a chain that revisits a layout,
// is an error. from names the file asking for the layout.
func Chain(layouts map[string]*model.Layout, name, from string) ([]*model.Layout, error) {
	var chain []*model.Layout
	seen := map[string]bool{}
	referrer := from
	for current := name; current != ""; {
		if seen[current] {
			names := make([]string, 0, len(chain)+1)
			for _, l := range chain {
				names = append(names, l.Name)
			}
			names = append(names, current)
			return nil, &model.Error{
				Kind: model.ErrCyclicLayoutChain,
				Path: chain[len(chain)-1].Path,
				Err:  fmt.Errorf("%s", strings.Join(names, " -> ")),
			}
		}
		l, ok := layouts[current]
		if !ok {
			return nil, &model.Error{
				Kind: model.ErrUnknownLayout,
				Path: referrer,
				Err:  fmt.Errorf("layout %q not found", current),
			}
		}
		seen[current] = true
		chain = append(chain, l)
		referrer = l.Path
		current = l.Parent()
	}
	return chain, nil
}

// TemplateData merges the template-data of a chain. A layout's own values
// win over those of its ancestors.
func TemplateData(chain []*model.Layout) map[string]any {
	merged := map[string]any{}
	for _, l := range chain {
		merged = model.Merge(l.TemplateData, merged)
	}
	return merged
}

// Compose wraps body in every layout of the chain, leaf first, so the root
// layout ends up outermost.
func Compose(chain []*model.Layout, body string, ctx map[string]any) (string, error) {
	for _, l := range chain {
		data := model.Merge(map[string]any{model.KeyBody: template.HTML(body)}, ctx)
		out, err := render.Execute(l.Template, l.Path, data)
		if err != nil {
			return "", err
		}
		body = out
	}
	return body, nil
}

// CanonicalPath returns the site-relative URL of a page key. Index pages
// collapse to their directory: blog/index becomes /blog/.
func CanonicalPath(key string) string {
	p := path.Join("/", key+".html")
	if path.Base(p) == "index.html" {
		p = strings.TrimSuffix(p, "index.html")
	}
	return p
}
