package clients

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	blankLinesRegex = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText converts an HTML body into readable markdown-ish text.
// Scripts, styles and the document head are dropped before conversion.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return StripHTML(html)
	}
	doc.Find("script, style, head, noscript").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return StripHTML(html)
	}

	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(cleaned)
	if err != nil {
		return StripHTML(html)
	}
	return strings.TrimSpace(blankLinesRegex.ReplaceAllString(text, "\n\n"))
}

// StripHTML removes HTML tags from a string
func StripHTML(html string) string {
	text := htmlTagRegex.ReplaceAllString(html, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	return strings.Join(strings.Fields(text), " ")
}
