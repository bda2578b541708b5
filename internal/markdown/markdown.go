// SPDX-License-Identifier: AGPL-3.0-only

// Package markdown renders model answers to ANSI-styled terminal output,
// using goldmark for parsing and lipgloss for styling.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs and list items are word-wrapped to width; code blocks keep
// their lines intact behind a gutter.
func Render(source string, width int) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r := newRenderer()
	doc := goldmark.DefaultParser().Parse(text.NewReader([]byte(source)))

	var buf bytes.Buffer
	r.writeBlocks(doc, []byte(source), width, &buf)
	return strings.TrimRight(buf.String(), "\n")
}

type renderer struct {
	heading lipgloss.Style
	bold    lipgloss.Style
	italic  lipgloss.Style
	code    lipgloss.Style
	muted   lipgloss.Style
	link    lipgloss.Style
}

func newRenderer() *renderer {
	return &renderer{
		heading: lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		bold:    lipgloss.NewStyle().Bold(true),
		italic:  lipgloss.NewStyle().Italic(true),
		code:    lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true),
		link:    lipgloss.NewStyle().Underline(true),
	}
}

func (r *renderer) writeBlocks(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.writeBlock(c, source, width, buf)
	}
}

func (r *renderer) writeBlock(node ast.Node, source []byte, width int, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Paragraph:
		buf.WriteString(lipgloss.NewStyle().Width(width).Render(r.inlineText(n, source)))
		buf.WriteString("\n")
		r.blockGap(n, buf)

	case *ast.Heading:
		styled := r.heading.Render(r.inlineText(n, source))
		buf.WriteString(lipgloss.NewStyle().Width(width).Render(styled))
		buf.WriteString("\n")
		r.blockGap(n, buf)

	case *ast.FencedCodeBlock:
		if lang := string(n.Language(source)); lang != "" {
			buf.WriteString(r.muted.Render(lang))
			buf.WriteString("\n")
		}
		r.writeCodeLines(n.Lines(), source, buf)
		r.blockGap(n, buf)

	case *ast.CodeBlock:
		r.writeCodeLines(n.Lines(), source, buf)
		r.blockGap(n, buf)

	case *ast.List:
		r.writeList(n, source, width, buf, 0)
		r.blockGap(n, buf)

	case *ast.Blockquote:
		var inner bytes.Buffer
		r.writeBlocks(n, source, width-2, &inner)
		gutter := r.muted.Render(">") + " "
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			buf.WriteString(gutter + line + "\n")
		}
		r.blockGap(n, buf)

	case *ast.ThematicBreak:
		buf.WriteString("---\n")
		r.blockGap(n, buf)

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			buf.Write(lines.At(i).Value(source))
		}

	default:
		// Unrecognized blocks: recurse into children.
		r.writeBlocks(node, source, width, buf)
	}
}

// blockGap separates sibling blocks with one blank line.
func (r *renderer) blockGap(node ast.Node, buf *bytes.Buffer) {
	if node.NextSibling() != nil {
		buf.WriteString("\n")
	}
}

func (r *renderer) writeCodeLines(lines *text.Segments, source []byte, buf *bytes.Buffer) {
	gutter := r.muted.Render("│") + " "
	for i := 0; i < lines.Len(); i++ {
		content := strings.TrimRight(string(lines.At(i).Value(source)), "\n")
		buf.WriteString(gutter + content + "\n")
	}
}

func (r *renderer) writeList(node *ast.List, source []byte, width int, buf *bytes.Buffer, depth int) {
	num := node.Start
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "- "
		if node.IsOrdered() {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}
		indent := strings.Repeat("  ", depth)

		var itemText strings.Builder
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				itemText.WriteString(r.inlineText(in, source))
			case *ast.List:
				if itemText.Len() > 0 {
					r.writeListItem(buf, indent, marker, itemText.String(), width)
					itemText.Reset()
					marker = strings.Repeat(" ", len(marker))
				}
				r.writeList(in, source, width, buf, depth+1)
			default:
				var nested bytes.Buffer
				r.writeBlock(ic, source, width, &nested)
				itemText.WriteString(nested.String())
			}
		}
		if itemText.Len() > 0 {
			r.writeListItem(buf, indent, marker, itemText.String(), width)
		}
	}
}

// writeListItem writes one item with continuation lines indented under the
// marker.
func (r *renderer) writeListItem(buf *bytes.Buffer, indent, marker, content string, width int) {
	prefix := indent + marker
	itemWidth := width - len(prefix)
	if itemWidth < 10 {
		itemWidth = 10
	}
	wrapped := lipgloss.NewStyle().Width(itemWidth).Render(content)
	continuation := strings.Repeat(" ", len(prefix))
	for i, line := range strings.Split(wrapped, "\n") {
		if i == 0 {
			buf.WriteString(prefix + line + "\n")
		} else {
			buf.WriteString(continuation + line + "\n")
		}
	}
}

// inlineText collects the styled inline content of a node's children.
func (r *renderer) inlineText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		r.writeInline(c, source, &buf)
	}
	return buf.String()
}

func (r *renderer) writeInline(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() {
			buf.WriteByte(' ')
		}
		if n.HardLineBreak() {
			buf.WriteByte('\n')
		}

	case *ast.String:
		buf.Write(n.Value)

	case *ast.Emphasis:
		inner := r.inlineText(n, source)
		if n.Level == 1 {
			buf.WriteString(r.italic.Render(inner))
		} else {
			buf.WriteString(r.bold.Render(inner))
		}

	case *ast.CodeSpan:
		buf.WriteString(r.code.Render(r.inlineText(n, source)))

	case *ast.Link:
		buf.WriteString(r.link.Render(r.inlineText(n, source)))
		buf.WriteString(" ")
		buf.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.AutoLink:
		buf.WriteString(r.link.Render(string(n.URL(source))))

	case *ast.Image:
		buf.WriteString(r.link.Render(r.inlineText(n, source)))
		buf.WriteString(" ")
		buf.WriteString(r.muted.Render("(" + string(n.Destination) + ")"))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			buf.Write(n.Segments.At(i).Value(source))
		}

	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			r.writeInline(c, source, buf)
		}
	}
}
