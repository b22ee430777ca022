// Package markup finds elements tagged with reserved attributes in template
// markup and cuts them out of the surrounding document.
//
// Templates are not well formed HTML (they contain template actions in text
// and attribute positions), so the document is never re-serialized. Instead
// the tokenizer output is arranged into an arena of nodes that remember the
// byte spans they were read from, and removal splices those spans out of
// the template source.
package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type nodeKind int

const (
	rootNode nodeKind = iota
	elementNode
	textNode
	commentNode
	doctypeNode
)

type node struct {
	kind       nodeKind
	tag        string
	attrs      []html.Attribute
	start      int
	end        int
	innerStart int
	innerEnd   int
	parent     int
	children   []int
}

// Document is a parsed template. The zero node is a synthetic root spanning
// the whole source.
type Document struct {
	Path  string
	src   string
	nodes []node
}

// Parse tokenizes src into a Document. path is only used in error messages.
func Parse(path, src string) (*Document, error) {
	d := &Document{
		Path:  path,
		src:   src,
		nodes: []node{{kind: rootNode, end: len(src), innerEnd: len(src), parent: -1}},
	}

	z := html.NewTokenizer(strings.NewReader(src))
	stack := []int{0}
	pos := 0
	for {
		tt := z.Next()
		start := pos
		pos += len(z.Raw())
		top := stack[len(stack)-1]

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to tokenize %s: %w", path, err)
			}
			for _, idx := range stack[1:] {
				d.nodes[idx].end = len(src)
				d.nodes[idx].innerEnd = len(src)
			}
			return d, nil

		case html.TextToken:
			d.add(node{kind: textNode, start: start, end: pos}, top)

		case html.CommentToken:
			d.add(node{kind: commentNode, start: start, end: pos}, top)

		case html.DoctypeToken:
			d.add(node{kind: doctypeNode, start: start, end: pos}, top)

		case html.SelfClosingTagToken:
			tok := z.Token()
			d.add(node{
				kind: elementNode, tag: tok.Data, attrs: tok.Attr,
				start: start, end: pos, innerStart: pos, innerEnd: pos,
			}, top)

		case html.StartTagToken:
			tok := z.Token()
			idx := d.add(node{
				kind: elementNode, tag: tok.Data, attrs: tok.Attr,
				start: start, innerStart: pos,
			}, top)
			if isVoid(tok.DataAtom) {
				d.nodes[idx].end = pos
				d.nodes[idx].innerEnd = pos
				continue
			}
			stack = append(stack, idx)

		case html.EndTagToken:
			tok := z.Token()
			open := -1
			for i := len(stack) - 1; i > 0; i-- {
				if d.nodes[stack[i]].tag == tok.Data {
					open = i
					break
				}
			}
			if open < 0 {
				// stray end tag
				continue
			}
			// anything still open inside the matched element closes here
			for _, idx := range stack[open+1:] {
				d.nodes[idx].end = start
				d.nodes[idx].innerEnd = start
			}
			matched := stack[open]
			d.nodes[matched].innerEnd = start
			d.nodes[matched].end = pos
			stack = stack[:open]
		}
	}
}

func (d *Document) add(n node, parent int) int {
	n.parent = parent
	idx := len(d.nodes)
	d.nodes = append(d.nodes, n)
	d.nodes[parent].children = append(d.nodes[parent].children, idx)
	return idx
}

// String returns the document source.
func (d *Document) String() string {
	return d.src
}

// withAttribute returns every element carrying attr, in document order.
func (d *Document) withAttribute(attr string) []Element {
	var found []Element
	for i := range d.nodes {
		n := &d.nodes[i]
		if n.kind != elementNode {
			continue
		}
		for _, a := range n.attrs {
			if a.Namespace == "" && a.Key == attr {
				found = append(found, Element{doc: d, idx: i})
				break
			}
		}
	}
	return found
}

// remove returns a new document with the span of node idx cut out.
func (d *Document) remove(idx int) (*Document, error) {
	n := d.nodes[idx]
	return Parse(d.Path, d.src[:n.start]+d.src[n.end:])
}

// Element is a handle to an element node of a Document.
type Element struct {
	doc *Document
	idx int
}

func (e Element) node() *node { return &e.doc.nodes[e.idx] }

// Tag returns the lower-cased element name.
func (e Element) Tag() string { return e.node().tag }

// Attr returns the value of the named attribute.
func (e Element) Attr(name string) (string, bool) {
	for _, a := range e.node().attrs {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// ChildCount returns the number of direct child nodes, text and comments included.
func (e Element) ChildCount() int { return len(e.node().children) }

// Text returns the content of the element when its only child is a text node.
func (e Element) Text() (string, bool) {
	n := e.node()
	if len(n.children) != 1 {
		return "", false
	}
	child := e.doc.nodes[n.children[0]]
	if child.kind != textNode {
		return "", false
	}
	return e.doc.src[child.start:child.end], true
}

// InnerHTML returns the source between the element's start and end tags.
func (e Element) InnerHTML() string {
	n := e.node()
	return e.doc.src[n.innerStart:n.innerEnd]
}

// OuterHTML returns the element's full source span.
func (e Element) OuterHTML() string {
	n := e.node()
	return e.doc.src[n.start:n.end]
}

func isVoid(a atom.Atom) bool {
	switch a {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
		atom.Input, atom.Keygen, atom.Link, atom.Meta, atom.Param, atom.Source,
		atom.Track, atom.Wbr:
		return true
	}
	return false
}
