package lyrics

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxCleanPasses = 10

// CleanText strips markup and entities and collapses whitespace runs to a
// single space. Each pass only shortens the text, so repeating passes until
// nothing changes yields a fixed point: CleanText(CleanText(s)) == CleanText(s).
func CleanText(s string) string {
	current := s
	for range maxCleanPasses {
		cleaned := cleanOnce(current)
		if cleaned == current {
			break
		}
		current = cleaned
	}
	return current
}

func cleanOnce(s string) string {
	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			doc.Find("script, style, noscript").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// wordCount counts whitespace separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
