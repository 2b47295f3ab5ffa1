package chunking

import (
	"fmt"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// block is one content unit inside a section.
type block struct {
	atomic bool // Tables, code blocks and raw HTML are never split
	text   string
}

// section groups the blocks that share one breadcrumb. Content before the
// first heading belongs to a root section with an empty breadcrumb.
type section struct {
	id         int
	breadcrumb string
	blocks     []block
}

// crumb is one entry of the heading stack.
type crumb struct {
	text  string
	depth int
}

// extractSections parses markdown into breadcrumb-labeled sections.
// Top-level AST nodes are walked in order; a heading of depth d pops all
// stack entries with depth >= d before pushing itself.
func extractSections(markdown string) []*section {
	parser := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	doc := parser.Parse([]byte(markdown))

	var (
		sections []*section
		stack    []crumb
		current  *section
	)

	openSection := func() *section {
		if current == nil {
			current = &section{id: len(sections), breadcrumb: breadcrumbPath(stack)}
			sections = append(sections, current)
		}
		return current
	}

	for node := doc.FirstChild; node != nil; node = node.Next {
		switch node.Type {
		case blackfriday.Heading:
			depth := node.Level
			for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, crumb{text: inlineText(node), depth: depth})
			current = nil // Next content node opens the new section

		case blackfriday.Table:
			sec := openSection()
			sec.blocks = append(sec.blocks, block{atomic: true, text: serializeTable(node)})

		case blackfriday.CodeBlock:
			sec := openSection()
			sec.blocks = append(sec.blocks, block{atomic: true, text: serializeCodeBlock(node)})

		case blackfriday.HTMLBlock:
			text := strings.TrimSpace(string(node.Literal))
			if text != "" {
				sec := openSection()
				sec.blocks = append(sec.blocks, block{atomic: true, text: text})
			}

		case blackfriday.HorizontalRule:
			// Carries no content.

		default:
			text := blockText(node)
			if strings.TrimSpace(text) == "" {
				continue
			}
			sec := openSection()
			sec.blocks = append(sec.blocks, block{text: text})
		}
	}

	return sections
}

// breadcrumbPath joins the heading stack into "A > B > C".
func breadcrumbPath(stack []crumb) string {
	if len(stack) == 0 {
		return ""
	}
	parts := make([]string, len(stack))
	for i, c := range stack {
		parts[i] = c.text
	}
	return strings.Join(parts, " > ")
}

// inlineText flattens the inline children of a node into plain text.
func inlineText(node *blackfriday.Node) string {
	var b strings.Builder
	node.Walk(func(n *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if !entering {
			return blackfriday.GoToNext
		}
		switch n.Type {
		case blackfriday.Text, blackfriday.Code:
			b.Write(n.Literal)
		case blackfriday.Softbreak:
			b.WriteByte(' ')
		case blackfriday.Hardbreak:
			b.WriteByte('\n')
		}
		return blackfriday.GoToNext
	})
	return strings.TrimSpace(b.String())
}

// blockText renders a splittable block node (paragraph, list, blockquote)
// to plain text.
func blockText(node *blackfriday.Node) string {
	switch node.Type {
	case blackfriday.Paragraph:
		return inlineText(node)

	case blackfriday.List:
		return listText(node, "")

	case blackfriday.BlockQuote:
		var parts []string
		for child := node.FirstChild; child != nil; child = child.Next {
			text := blockText(child)
			if text == "" {
				continue
			}
			lines := strings.Split(text, "\n")
			for i, line := range lines {
				lines[i] = "> " + line
			}
			parts = append(parts, strings.Join(lines, "\n"))
		}
		return strings.Join(parts, "\n")

	default:
		return inlineText(node)
	}
}

// listText renders a list with one line per item, recursing into nested
// lists with indentation. Ordered lists are numbered.
func listText(list *blackfriday.Node, indent string) string {
	ordered := list.ListFlags&blackfriday.ListTypeOrdered != 0
	var lines []string
	number := 1

	for item := list.FirstChild; item != nil; item = item.Next {
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", number)
			number++
		}

		for child := item.FirstChild; child != nil; child = child.Next {
			if child.Type == blackfriday.List {
				if nested := listText(child, indent+"  "); nested != "" {
					lines = append(lines, nested)
				}
				continue
			}
			if text := blockText(child); text != "" {
				lines = append(lines, indent+marker+text)
				marker = "  " // Continuation blocks align under the marker
			}
		}
	}
	return strings.Join(lines, "\n")
}

// serializeCodeBlock renders a fenced code block, keeping the info string.
func serializeCodeBlock(node *blackfriday.Node) string {
	info := strings.TrimSpace(string(node.Info))
	code := strings.TrimRight(string(node.Literal), "\n")
	return "```" + info + "\n" + code + "\n```"
}

// serializeTable renders a table to a header/row textual form that survives
// embedding: "Table: a | b" followed by "Row: 1 | 2" lines.
func serializeTable(table *blackfriday.Node) string {
	var lines []string

	for part := table.FirstChild; part != nil; part = part.Next {
		prefix := "Row: "
		if part.Type == blackfriday.TableHead {
			prefix = "Table: "
		}
		for row := part.FirstChild; row != nil; row = row.Next {
			var cells []string
			for cell := row.FirstChild; cell != nil; cell = cell.Next {
				cells = append(cells, inlineText(cell))
			}
			lines = append(lines, prefix+strings.Join(cells, " | "))
		}
	}
	return strings.Join(lines, "\n")
}
