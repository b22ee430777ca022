package helpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"reflect"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var mdParser = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
		gmhtml.WithUnsafe(),
	),
)

// Markdown converts markdown source to HTML. Raw HTML in the source is kept.
func Markdown(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdParser.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// Builtins returns the helpers every site gets.
func Builtins() []Helper {
	return []Helper{
		Func("md", md),
		Func("slugify", slugify),
		Func("chunkList", chunkList),
		Func("titleCase", titleCase),
		Func("jsonpath", jsonpath),
		Func("toJSON", toJSON),
	}
}

func md(args ...any) (any, error) {
	s, err := stringArg("md", args, 0)
	if err != nil {
		return nil, err
	}
	out, err := Markdown([]byte(s))
	if err != nil {
		return nil, err
	}
	return template.HTML(out), nil
}

var (
	nonWord = regexp.MustCompile(`[^\w\s]+`)
	spaces  = regexp.MustCompile(` +`)
)

func slugify(args ...any) (any, error) {
	s, err := stringArg("slugify", args, 0)
	if err != nil {
		return nil, err
	}
	s = nonWord.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, "-")
	return strings.ToLower(s), nil
}

func chunkList(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("chunkList: expected a list and a chunk size, got %d arguments", len(args))
	}
	list := reflect.ValueOf(args[0])
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return nil, fmt.Errorf("chunkList: cannot chunk %T", args[0])
	}
	size, err := toInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("chunkList: %w", err)
	}
	if size < 1 {
		return nil, fmt.Errorf("chunkList: chunk size must be positive, got %d", size)
	}

	chunks := [][]any{}
	for i := 0; i < list.Len(); i += size {
		end := min(i+size, list.Len())
		chunk := make([]any, 0, end-i)
		for j := i; j < end; j++ {
			chunk = append(chunk, list.Index(j).Interface())
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func titleCase(args ...any) (any, error) {
	s, err := stringArg("titleCase", args, 0)
	if err != nil {
		return nil, err
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, "-", " "), "_", " ")
	return cases.Title(language.English).String(s), nil
}

// jsonpath evaluates a JSONPath expression against a value, usually the
// page context: {{jsonpath "$.nav.main[*].href" .}}
func jsonpath(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("jsonpath: expected an expression and a value, got %d arguments", len(args))
	}
	expr, err := stringArg("jsonpath", args, 0)
	if err != nil {
		return nil, err
	}
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("jsonpath: invalid expression '%s': %w", expr, err)
	}
	return x.Get(args[1]), nil
}

func toJSON(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("toJSON: expected one argument, got %d", len(args))
	}
	b, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("toJSON: %w", err)
	}
	return string(b), nil
}

func stringArg(helper string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d", helper, i+1)
	}
	switch v := args[i].(type) {
	case string:
		return v, nil
	case template.HTML:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
