package markup

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DocumentSanitizer parses the markup into a document and walks it. Unlike
// PatternSanitizer it decodes every entity the HTML parser knows.
type DocumentSanitizer struct {
	fallback *PatternSanitizer
}

// NewDocumentSanitizer creates a DocumentSanitizer
func NewDocumentSanitizer() *DocumentSanitizer {
	return &DocumentSanitizer{fallback: NewPatternSanitizer()}
}

// ToText renders paragraphs separated by a blank line and <br> as a newline
func (s *DocumentSanitizer) ToText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return s.fallback.ToText(content)
	}

	var b strings.Builder
	paragraphs := 0
	render(&b, doc.Find("body"), &paragraphs)
	return strings.TrimSpace(b.String())
}

func render(b *strings.Builder, sel *goquery.Selection, paragraphs *int) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		switch goquery.NodeName(node) {
		case "#text":
			b.WriteString(node.Text())
		case "br":
			b.WriteString("\n")
		case "p":
			if *paragraphs > 0 {
				b.WriteString("\n\n")
			}
			*paragraphs++
			render(b, node, paragraphs)
		case "script", "style":
		default:
			render(b, node, paragraphs)
		}
	})
}
