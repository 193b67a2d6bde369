package fetch

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements get a trailing space so adjacent blocks do not run together.
const blockElements = "p, br, li, div, tr, td, h1, h2, h3, h4, h5, h6, section, article"

// PlainText converts an HTML or HTML-encoded string to plain text. Entities
// are unescaped first (Greenhouse double-encodes its content), then markup is
// dropped and whitespace collapsed. Unparseable input is returned with
// whitespace collapsed.
func PlainText(content string) string {
	unescaped := html.UnescapeString(content)
	if !strings.Contains(unescaped, "<") {
		return strings.Join(strings.Fields(unescaped), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return strings.Join(strings.Fields(unescaped), " ")
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}
