// Package htmlutil holds small golang.org/x/net/html tree-walk helpers
// shared by the judge adapters that scrape a problem statement page
// rather than calling a JSON API.
package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

// HasClass reports whether n carries class among its space-separated
// "class" attribute values.
func HasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if strings.EqualFold(c, class) {
				return true
			}
		}
	}
	return false
}

// FindByClass returns the first descendant element (including n itself)
// whose tag matches tag (empty matches any tag) and whose class list
// contains class.
func FindByClass(n *html.Node, tag, class string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && (tag == "" || node.Data == tag) && HasClass(node, class) {
			found = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// FindAllByClass returns every descendant matching tag+class, in
// document order.
func FindAllByClass(n *html.Node, tag, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && (tag == "" || node.Data == tag) && HasClass(node, class) {
			found = append(found, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// FindAllByTag returns every descendant element matching tag, in
// document order, regardless of class.
func FindAllByTag(n *html.Node, tag string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			found = append(found, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// FindFirst returns the first descendant (including n) matching tag.
func FindFirst(n *html.Node, tag string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			found = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

// NextSiblingElement returns n's next sibling that is itself an element
// node, skipping text/comment nodes in between.
func NextSiblingElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// TextContent concatenates all text node content under n, trimmed.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// RenderHTML serializes n back to an HTML string.
func RenderHTML(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

// Parse parses an HTML document from raw bytes.
func Parse(raw string) (*html.Node, error) {
	return html.Parse(strings.NewReader(raw))
}

// SiblingsUntil walks element siblings starting at first (inclusive)
// until a node matching stopTag is reached, returning each node's
// rendered text content joined by blank lines. Mirrors the "collect
// everything between this heading and the next" scrape pattern judge
// problem pages commonly use for description/input/output sections.
func SiblingsUntil(first *html.Node, stopTag string) string {
	var parts []string
	for n := first; n != nil && n.Data != stopTag; n = NextSiblingElement(n) {
		if text := TextContent(n); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
