package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageContent holds the features pulled from a fetched HTML page. These
// are the only page-derived inputs to classification, so extraction
// must be stable: the same markup always yields the same content.
type PageContent struct {
	Title           string
	MetaDescription string
	Snippet         string // visible body text, whitespace-collapsed
}

// Extractor parses HTML and produces bounded page features.
type Extractor struct {
	maxSnippetChars int
}

// NewExtractor creates an Extractor. The snippet is truncated to
// maxSnippetChars runes (0 disables the bound).
func NewExtractor(maxSnippetChars int) *Extractor {
	return &Extractor{maxSnippetChars: maxSnippetChars}
}

// Extract parses html and returns its page features. A parse failure
// returns zero content rather than an error: a page we cannot parse is
// simply a page with no extractable features.
func (e *Extractor) Extract(html string) PageContent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageContent{}
	}

	var content PageContent
	content.Title = collapseWhitespace(doc.Find("title").First().Text())

	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(name, "description") {
			return true
		}
		if v, ok := s.Attr("content"); ok {
			content.MetaDescription = collapseWhitespace(v)
			return false
		}
		return true
	})

	// Script, style and template bodies are markup noise, not visible text.
	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	var text string
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}
	content.Snippet = truncateRunes(collapseWhitespace(text), e.maxSnippetChars)

	return content
}

// collapseWhitespace trims and folds runs of whitespace to single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
