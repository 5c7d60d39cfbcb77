package mailbox

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tableStyle keeps rendered tables legible for the vision model:
// collapsed borders and a little cell padding.
const tableStyle = "table{border-collapse:collapse;} td,th{border:1px solid #ccc;padding:4px;}"

// TablesOnly extracts every <table> subtree from an HTML body and
// returns them re-rendered, one per line. Returns "" when the body
// contains no tables.
func TablesOnly(body string) (string, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html body: %w", err)
	}

	var tables []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			var sb strings.Builder
			if err := html.Render(&sb, n); err == nil {
				tables = append(tables, sb.String())
			}
			// Nested tables stay inside their parent's rendering.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(tables, "\n"), nil
}

// WrapTables builds a standalone HTML document around extracted table
// markup, suitable for rendering.
func WrapTables(tablesHTML string) string {
	return "<html><head><meta charset='utf-8'>" +
		"<style>" + tableStyle + "</style>" +
		"</head><body>" + tablesHTML + "</body></html>"
}

// WrapBody builds a standalone HTML document around a raw message
// body.
func WrapBody(body string) string {
	return "<html><head><meta charset='utf-8'></head><body>" + body + "</body></html>"
}

// WrapText builds a standalone HTML document around a plain-text
// body, preserving line structure.
func WrapText(text string) string {
	escaped := html.EscapeString(text)
	return "<html><head><meta charset='utf-8'></head><body><pre>" + escaped + "</pre></body></html>"
}

// RenderableDocument picks the best HTML document for a fetched
// message: isolated tables when present, the full HTML body otherwise,
// and a plain-text wrapping as a last resort. Returns "" when the
// message has no renderable content at all.
func RenderableDocument(content RawContent) (string, error) {
	if content.HTML != "" {
		tables, err := TablesOnly(content.HTML)
		if err != nil {
			return "", err
		}
		if tables != "" {
			return WrapTables(tables), nil
		}
		return WrapBody(content.HTML), nil
	}
	if content.Text != "" {
		return WrapText(content.Text), nil
	}
	return "", nil
}
