package service

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Academic Calendar | Temple Law</title>
<script>window.analytics = { track: function () {} };</script>
<style>.hidden { display: none; }</style>
</head>
<body>
<h1>Academic Calendar</h1>
<main>
<p>The fall semester begins on Monday, August 24 and ends on Friday, December 11.</p>
<p>Spring registration opens in early November for all continuing students.</p>
</main>
</body>
</html>`

func TestExtractContentStripsMarkup(t *testing.T) {
	text, title := ExtractContent(samplePage, "https://law.temple.edu/academics/calendar/")
	if text == "" {
		t.Fatal("expected non-empty text")
	}
	if title == "" {
		t.Fatal("expected non-empty title")
	}

	if strings.Contains(text, "<") || strings.Contains(text, ">") {
		t.Fatalf("extracted text still contains markup: %q", text)
	}
	if strings.Contains(text, "analytics") {
		t.Fatalf("extracted text contains script content: %q", text)
	}
	if strings.Contains(text, "display: none") {
		t.Fatalf("extracted text contains style content: %q", text)
	}
	if !strings.Contains(text, "fall semester begins") {
		t.Fatalf("extracted text is missing body content: %q", text)
	}
}

func TestExtractContentIncludesHeading(t *testing.T) {
	text, _ := ExtractContent(samplePage, "https://law.temple.edu/academics/calendar/")
	if !strings.Contains(text, "Academic Calendar") {
		t.Fatalf("extracted text is missing the page heading: %q", text)
	}
}

func TestExtractContentTooShort(t *testing.T) {
	text, _ := ExtractContent("<html><body><p>Hi.</p></body></html>", "https://law.temple.edu/x/")
	if text != "" {
		t.Fatalf("expected empty text for a near-empty page, got %q", text)
	}
}

func TestExtractContentCollapsesWhitespace(t *testing.T) {
	text, _ := ExtractContent(samplePage, "https://law.temple.edu/academics/calendar/")
	if strings.Contains(text, "  ") || strings.Contains(text, "\n") {
		t.Fatalf("extracted text is not whitespace-normalized: %q", text)
	}
}
