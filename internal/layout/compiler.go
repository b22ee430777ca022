package layout

import (
	"log/slog"

	"github.com/christophergorexyz/cosmia-core/internal/helpers"
	"github.com/christophergorexyz/cosmia-core/internal/model"
	"github.com/christophergorexyz/cosmia-core/internal/render"
)

// Compiler renders pages against the site context. It only reads the
// registries it is given.
type Compiler struct {
	Logger  *slog.Logger
	Engine  *render.Engine
	Layouts map[string]*model.Layout
	Data    map[string]any
}

// Context builds the render context of a page: site data, then page data,
// then overrides, plus the reserved keys.
func (c *Compiler) Context(page *model.Page, overrides map[string]any) map[string]any {
	ctx := model.Merge(c.Data, page.Data, overrides)
	ctx[model.KeyCosmiaScript] = page.Script
	ctx[model.KeyCosmiaData] = page.Data
	ctx[model.KeyPagePath] = CanonicalPath(page.Key)
	return ctx
}

// CompilePage renders page through its layout chain. An unknown layout is
// replaced by the default one; silent suppresses the warning.
func (c *Compiler) CompilePage(page *model.Page, overrides map[string]any, silent bool) ([]byte, error) {
	ctx := c.Context(page, overrides)

	layoutName := model.DefaultLayout
	if name, ok := ctx[model.KeyLayout].(string); ok && name != "" {
		layoutName = name
	}

	body, err := c.Engine.Render("page:"+page.Key, page.Path, page.Content, ctx)
	if err != nil {
		return nil, err
	}
	if page.Format == model.FormatMarkdown {
		converted, err := helpers.Markdown([]byte(body))
		if err != nil {
			return nil, model.Wrap(model.ErrTemplate, page.Path, err)
		}
		body = string(converted)
	}

	if _, ok := c.Layouts[layoutName]; !ok {
		if !silent {
			c.Logger.Warn("Layout not found, using default instead",
				"layout", layoutName, "page", page.Key, "default", model.DefaultLayout)
		}
		layoutName = model.DefaultLayout
	}

	chain, err := Chain(c.Layouts, layoutName, page.Path)
	if err != nil {
		return nil, err
	}
	ctx[model.KeyCosmiaTemplateData] = TemplateData(chain)

	out, err := Compose(chain, body, ctx)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
