package filter

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var disallowedChars = regexp.MustCompile(`[^\w\s.,!?-]`)

// PlainText strips markup and entities from s and collapses whitespace.
// Text that does not parse as HTML is only whitespace-collapsed.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseWhitespace(s)
	}
	doc.Find("script, style, noscript").Remove()
	return collapseWhitespace(doc.Text())
}

// CleanText is PlainText followed by removal of everything outside word
// characters, whitespace and basic punctuation. It is idempotent.
func CleanText(s string) string {
	return collapseWhitespace(disallowedChars.ReplaceAllString(PlainText(s), ""))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
