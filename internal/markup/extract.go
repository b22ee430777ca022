package markup

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/christophergorexyz/cosmia-core/internal/model"
)

// Reserved attributes.
const (
	AttrData             = "cosmia-data"
	AttrScript           = "cosmia-script"
	AttrTemplateData     = "cosmia-template-data"
	AttrCollectionData   = "cosmia-collection-data"
	AttrCollectionPrefix = "cosmia-collection-"
)

// FieldAttr returns the attribute carrying the collection content field name.
func FieldAttr(field string) string {
	return AttrCollectionPrefix + field
}

// Transform turns a matched element into the extracted value.
type Transform func(Element) (any, error)

// Extract looks for the single element carrying attr, anywhere in doc.
// If there is none, doc is returned unchanged with a nil value. If there is
// exactly one, its value is produced by transform and the element is cut out
// of the returned document. An element with no children is removed but
// yields no value.
func Extract(doc *Document, attr string, transform Transform, tolerateMultipleChildren bool) (*Document, any, error) {
	matches := doc.withAttribute(attr)
	switch len(matches) {
	case 0:
		return doc, nil, nil
	case 1:
	default:
		return nil, nil, &model.Error{
			Kind: model.ErrMultipleCustomElements,
			Path: doc.Path,
			Err:  fmt.Errorf("only one %s element is allowed, found %d", attr, len(matches)),
		}
	}

	el := matches[0]
	if el.ChildCount() > 1 && !tolerateMultipleChildren {
		return nil, nil, &model.Error{
			Kind: model.ErrInvalidCustomElementChild,
			Path: doc.Path,
			Err:  fmt.Errorf("the %s element may only have a single child", attr),
		}
	}

	var value any
	if el.ChildCount() > 0 {
		v, err := transform(el)
		if err != nil {
			return nil, nil, withPath(doc.Path, err)
		}
		value = v
	}

	out, err := doc.remove(el.idx)
	if err != nil {
		return nil, nil, err
	}
	return out, value, nil
}

// JSON parses the element's single text child as a JSON object.
func JSON(el Element) (any, error) {
	text, ok := el.Text()
	if !ok {
		return nil, &model.Error{
			Kind: model.ErrInvalidCustomElementChild,
			Err:  fmt.Errorf("the <%s> data element may only have a single text child", el.Tag()),
		}
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, &model.Error{Kind: model.ErrInvalidJSON, Err: err}
	}
	return data, nil
}

// InnerHTML yields the element content as trusted markup.
func InnerHTML(el Element) (any, error) {
	return template.HTML(el.InnerHTML()), nil
}

// OuterHTML yields the whole element as trusted markup.
func OuterHTML(el Element) (any, error) {
	return template.HTML(el.OuterHTML()), nil
}

// ExtractJSON is Extract with the JSON transform and a typed result.
func ExtractJSON(doc *Document, attr string) (*Document, map[string]any, error) {
	out, v, err := Extract(doc, attr, JSON, false)
	if err != nil || v == nil {
		return out, nil, err
	}
	return out, v.(map[string]any), nil
}

func withPath(path string, err error) error {
	var me *model.Error
	if errors.As(err, &me) {
		if me.Path == "" {
			me.Path = path
		}
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}
