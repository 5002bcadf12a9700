package service

import (
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// MinContentLength is the floor below which an extracted page is treated
// as empty and skipped by the indexer.
const MinContentLength = 80

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reHeading    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	reNoRender   = regexp.MustCompile(`(?is)<(script|style|noscript|template|iframe)[^>]*>.*?</(script|style|noscript|template|iframe)>`)
	reTag        = regexp.MustCompile(`(?s)<[^>]*>`)
)

// ExtractContent turns raw page markup into normalized plain text plus a
// title. The text concatenates the title, the top-level heading, and the
// main-content body (whole-body text when no main region is found). Pages
// shorter than MinContentLength after extraction come back with empty text,
// which callers treat as a skip signal.
func ExtractContent(markup, pageURL string) (string, string) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		parsedURL = &url.URL{}
	}

	var title, body string
	article, err := readability.FromReader(strings.NewReader(markup), parsedURL)
	if err == nil {
		title = strings.TrimSpace(article.Title)
		body = article.TextContent
	}
	if strings.TrimSpace(body) == "" {
		body = stripMarkup(markup)
	}

	heading := topHeading(markup)

	var parts []string
	for _, part := range []string{title, heading, body} {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}

	text := collapseWhitespace(strings.Join(parts, " "))
	if len(text) < MinContentLength {
		return "", title
	}

	return sanitizeUTF8(text), title
}

// topHeading returns the first h1 of the document, tags stripped.
func topHeading(markup string) string {
	match := reHeading.FindStringSubmatch(markup)
	if match == nil {
		return ""
	}
	return collapseWhitespace(reTag.ReplaceAllString(match[1], " "))
}

// stripMarkup is the whole-body fallback: drops non-rendering elements and
// every remaining tag.
func stripMarkup(markup string) string {
	cleaned := reNoRender.ReplaceAllString(markup, " ")
	return reTag.ReplaceAllString(cleaned, " ")
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}
